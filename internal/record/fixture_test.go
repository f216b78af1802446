package record

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/derive/internal/ir"
)

func messagingModels() []ir.ModelSpec {
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
		},
		{
			Name:  "message",
			Attrs: []ir.AttrSpec{{Name: "title", Kind: ir.AttrString}},
			Relationships: []ir.RelationshipSpec{
				{Name: "recipients", Kind: ir.HasMany, Target: "recipient"},
				{Name: "group", Kind: ir.BelongsTo, Target: "group", Inverse: ir.NoInverse},
			},
		},
	}
}

// recordingObserver captures notifications in order.
type recordingObserver struct {
	reads   []string
	changes []string
	created []string
	deleted []string
}

func (o *recordingObserver) FieldRead(rec *Record, field string) {
	o.reads = append(o.reads, rec.Key().String()+"."+field)
}

func (o *recordingObserver) FieldChanged(rec *Record, field string) error {
	o.changes = append(o.changes, rec.Key().String()+"."+field)
	return nil
}

func (o *recordingObserver) RecordCreated(rec *Record) error {
	o.created = append(o.created, rec.Key().String())
	return nil
}

func (o *recordingObserver) RecordDeleted(rec *Record) error {
	o.deleted = append(o.deleted, rec.Key().String())
	return nil
}

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	n := 0
	s, err := NewStore(messagingModels(), WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	}))
	require.NoError(t, err)
	return s
}

func mustCreate(t *testing.T, s *Store, typ string, fields map[string]any) *Record {
	t.Helper()
	rec, err := s.Create(typ, fields)
	require.NoError(t, err)
	return rec
}
