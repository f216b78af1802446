package engine

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/derive/internal/ir"
	"github.com/roach88/derive/internal/record"
)

// groupPeopleKeys are the dependency keys of group.people. Tests that
// exercise stale-read detection swap in an incomplete set.
var groupPeopleKeys = []string{"groupMembers.@each.{roles,person}"}

func messagingModels(peopleKeys []string) []ir.ModelSpec {
	return []ir.ModelSpec{
		{
			Name:  "person",
			Attrs: []ir.AttrSpec{{Name: "name", Kind: ir.AttrString}},
		},
		{
			Name: "recipient",
			Relationships: []ir.RelationshipSpec{
				{Name: "group", Kind: ir.BelongsTo, Target: "group", Inverse: ir.NoInverse},
				{Name: "person", Kind: ir.BelongsTo, Target: "person", Inverse: ir.NoInverse},
				{Name: "message", Kind: ir.BelongsTo, Target: "message"},
			},
		},
		{
			Name:  "group-member",
			Attrs: []ir.AttrSpec{{Name: "roles", Kind: ir.AttrArray}},
			Relationships: []ir.RelationshipSpec{
				{Name: "group", Kind: ir.BelongsTo, Target: "group"},
				{Name: "person", Kind: ir.BelongsTo, Target: "person", Inverse: ir.NoInverse},
			},
		},
		{
			Name:  "group",
			Attrs: []ir.AttrSpec{{Name: "groupName", Kind: ir.AttrString}},
			Relationships: []ir.RelationshipSpec{
				{Name: "groupMembers", Kind: ir.HasMany, Target: "group-member"},
			},
			Computed: []ir.ComputedSpec{
				{Name: "people", DependsOn: peopleKeys, Fn: "group.people"},
			},
		},
		{
			Name:  "message",
			Attrs: []ir.AttrSpec{{Name: "title", Kind: ir.AttrString}},
			Relationships: []ir.RelationshipSpec{
				{Name: "recipients", Kind: ir.HasMany, Target: "recipient"},
				{Name: "group", Kind: ir.BelongsTo, Target: "group", Inverse: ir.NoInverse},
			},
			Computed: []ir.ComputedSpec{
				{Name: "recipientsById", DependsOn: []string{"recipients.@each.{person,group}", "group.people.[]"}, Fn: "message.recipientsById"},
				{Name: "people", DependsOn: []string{"recipientsById.@each.name"}, Fn: "message.people"},
			},
		},
	}
}

// messagingFuncs is a pared-down rendition of the messaging bundle. Every
// read goes through Scope.Get so path reads inside compute functions are
// tracked the same way relationship accessors are.
var messagingFuncs = Funcs{
	"group.people": func(s *Scope, self *record.Record) (any, error) {
		members, err := s.Get(self, "groupMembers")
		if err != nil {
			return nil, err
		}
		people := []*record.Record{}
		for _, m := range members.(*record.Collection).Records() {
			roles, err := s.Get(m, "roles")
			if err != nil {
				return nil, err
			}
			if arr, _ := roles.(ir.IRArray); !arr.ContainsString("view") {
				continue
			}
			p, err := s.Get(m, "person")
			if err != nil {
				return nil, err
			}
			if p != nil {
				people = append(people, p.(*record.Record))
			}
		}
		return people, nil
	},
	"message.recipientsById": func(s *Scope, self *record.Record) (any, error) {
		recipients, err := s.Get(self, "recipients")
		if err != nil {
			return nil, err
		}
		byID := map[string]*record.Record{}
		for _, r := range recipients.(*record.Collection).Records() {
			p, err := s.Get(r, "person")
			if err != nil {
				return nil, err
			}
			if p != nil {
				byID[p.(*record.Record).ID()] = p.(*record.Record)
				continue
			}
			v, err := s.Get(r, "group.people")
			if err != nil {
				return nil, err
			}
			people, _ := v.([]*record.Record)
			for _, gp := range people {
				byID[gp.ID()] = gp
			}
		}
		return byID, nil
	},
	"message.people": func(s *Scope, self *record.Record) (any, error) {
		v, err := s.Get(self, "recipientsById")
		if err != nil {
			return nil, err
		}
		people := slices.Collect(maps.Values(v.(map[string]*record.Record)))
		slices.SortFunc(people, func(a, b *record.Record) int {
			return cmp.Or(cmp.Compare(a.StringAttr("name"), b.StringAttr("name")), cmp.Compare(a.ID(), b.ID()))
		})
		return people, nil
	},
}

func setupEngine(t *testing.T, opts ...EngineOption) (*record.Store, *Engine) {
	t.Helper()
	return setupEngineWith(t, messagingModels(groupPeopleKeys), messagingFuncs, opts...)
}

func setupEngineWith(t *testing.T, models []ir.ModelSpec, funcs Funcs, opts ...EngineOption) (*record.Store, *Engine) {
	t.Helper()
	s, err := record.NewStore(models)
	require.NoError(t, err)
	e, err := New(s, funcs, opts...)
	require.NoError(t, err)
	return s, e
}

func create(t *testing.T, s *record.Store, typ string, fields map[string]any) *record.Record {
	t.Helper()
	rec, err := s.Create(typ, fields)
	require.NoError(t, err)
	return rec
}

// seedScenario builds one group with a single viewing member and a message
// that reaches the group through one recipient.
func seedScenario(t *testing.T, s *record.Store) (group, message *record.Record) {
	t.Helper()
	group = create(t, s, "group", map[string]any{"id": "group-1", "groupName": "group 1"})
	p1 := create(t, s, "person", map[string]any{"id": "person-1", "name": "Alice"})
	create(t, s, "group-member", map[string]any{"id": "group-member-1", "roles": []string{"view"}, "person": p1, "group": group})
	r := create(t, s, "recipient", map[string]any{"group": group})
	message = create(t, s, "message", map[string]any{"id": "message-1", "group": group, "recipients": []*record.Record{r}})
	return group, message
}

func addMember(t *testing.T, s *record.Store, group *record.Record, n int, name string, roles ...string) *record.Record {
	t.Helper()
	p := create(t, s, "person", map[string]any{"id": fmt.Sprintf("person-%d", n), "name": name})
	return create(t, s, "group-member", map[string]any{
		"id":     fmt.Sprintf("group-member-%d", n),
		"roles":  roles,
		"person": p,
		"group":  group,
	})
}

func getInt(t *testing.T, e *Engine, rec *record.Record, path string) int {
	t.Helper()
	v, err := e.Get(rec, path)
	require.NoError(t, err)
	n, ok := v.(int)
	require.True(t, ok, "%s: got %T", path, v)
	return n
}

func ids(recs []*record.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID()
	}
	return out
}
