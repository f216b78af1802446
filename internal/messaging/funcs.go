package messaging

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/derive/internal/engine"
	"github.com/roach88/derive/internal/ir"
	"github.com/roach88/derive/internal/record"
)

// ViewRole is the group-member role that makes a member's person part of
// the group's people.
const ViewRole = "view"

// Funcs returns the compute functions the messaging models reference.
func Funcs() engine.Funcs {
	return engine.Funcs{
		"group.people":           groupPeople,
		"message.recipientsById": recipientsByID,
		"message.people":         messagePeople,
	}
}

// groupPeople collects the person of every viewing member, in member order.
// Members without a person are skipped.
func groupPeople(_ *engine.Scope, self *record.Record) (any, error) {
	members, err := self.HasMany("groupMembers")
	if err != nil {
		return nil, err
	}

	people := []*record.Record{}
	for _, m := range members.Records() {
		roles, err := m.Attr("roles")
		if err != nil {
			return nil, err
		}
		arr, _ := roles.(ir.IRArray)
		if !arr.ContainsString(ViewRole) {
			continue
		}
		p, err := m.BelongsTo("person")
		if err != nil {
			return nil, err
		}
		if p != nil {
			people = append(people, p)
		}
	}
	return people, nil
}

// recipientsByID indexes every person the message reaches. A recipient with
// a person is direct; otherwise its group's people are expanded.
func recipientsByID(s *engine.Scope, self *record.Record) (any, error) {
	recipients, err := self.HasMany("recipients")
	if err != nil {
		return nil, err
	}

	byID := map[string]*record.Record{}
	for _, r := range recipients.Records() {
		p, err := r.BelongsTo("person")
		if err != nil {
			return nil, err
		}
		if p != nil {
			byID[p.ID()] = p
			continue
		}

		g, err := r.BelongsTo("group")
		if err != nil {
			return nil, err
		}
		if g == nil {
			continue
		}
		v, err := s.Get(g, "people")
		if err != nil {
			return nil, err
		}
		people, ok := v.([]*record.Record)
		if !ok {
			return nil, fmt.Errorf("%s.people: unexpected %T", g, v)
		}
		for _, gp := range people {
			byID[gp.ID()] = gp
		}
	}
	return byID, nil
}

// messagePeople sorts the reached people by name, then id.
func messagePeople(s *engine.Scope, self *record.Record) (any, error) {
	v, err := s.Get(self, "recipientsById")
	if err != nil {
		return nil, err
	}
	byID, ok := v.(map[string]*record.Record)
	if !ok {
		return nil, fmt.Errorf("%s.recipientsById: unexpected %T", self, v)
	}

	people := slices.Collect(maps.Values(byID))
	slices.SortFunc(people, func(a, b *record.Record) int {
		return cmp.Or(
			cmp.Compare(a.StringAttr("name"), b.StringAttr("name")),
			cmp.Compare(a.ID(), b.ID()),
		)
	})
	return people, nil
}
