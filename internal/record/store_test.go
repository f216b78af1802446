package record

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/derive/internal/ir"
)

func TestNewStore_RejectsBadSchema(t *testing.T) {
	models := []ir.ModelSpec{
		{Name: "a", Relationships: []ir.RelationshipSpec{{Name: "b", Kind: ir.BelongsTo, Target: "missing"}}},
	}
	_, err := NewStore(models)
	require.Error(t, err)
	var se *SchemaError
	assert.ErrorAs(t, err, &se)
}

func TestCreate_DefaultsAndGeneratedID(t *testing.T) {
	s := setupTestStore(t)

	p := mustCreate(t, s, "person", nil)
	assert.Equal(t, "gen-1", p.ID())
	v, err := p.Attr("name")
	require.NoError(t, err)
	assert.Equal(t, ir.IRNull{}, v)

	named := mustCreate(t, s, "person", map[string]any{"id": "p1", "name": "Ada"})
	assert.Equal(t, "p1", named.ID())
	assert.Equal(t, "Ada", named.StringAttr("name"))
	assert.Equal(t, 2, s.Len())
}

func TestCreate_Errors(t *testing.T) {
	s := setupTestStore(t)
	mustCreate(t, s, "person", map[string]any{"id": "p1"})

	tests := []struct {
		name   string
		typ    string
		fields map[string]any
		check  func(error) bool
	}{
		{"unknown type", "robot", nil, func(err error) bool { var e *UnknownTypeError; return errors.As(err, &e) }},
		{"unknown field", "person", map[string]any{"age": 3}, IsUnknownField},
		{"attr kind", "person", map[string]any{"name": 3}, IsTypeMismatch},
		{"duplicate id", "person", map[string]any{"id": "p1"}, func(err error) bool { var e *DuplicateRecordError; return errors.As(err, &e) }},
		{"missing ref", "group-member", map[string]any{"person": "nobody"}, IsUnknownRecord},
		{"wrong ref type", "recipient", map[string]any{"person": mustPeek(t, s, "person", "p1"), "group": mustPeek(t, s, "person", "p1")}, IsTypeMismatch},
		{"field of another model", "person", map[string]any{"id": "p9", "name": "x", "people": 1}, IsUnknownField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := s.Len()
			_, err := s.Create(tt.typ, tt.fields)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
			assert.Equal(t, before, s.Len(), "failed create must not add a record")
		})
	}
}

func TestCreate_MaintainsInverse(t *testing.T) {
	s := setupTestStore(t)
	g := mustCreate(t, s, "group", map[string]any{"id": "g1"})
	gm := mustCreate(t, s, "group-member", map[string]any{"id": "gm1", "group": "g1", "roles": []string{"view"}})

	members, err := g.HasMany("groupMembers")
	require.NoError(t, err)
	assert.Equal(t, []string{"gm1"}, members.IDs())

	ref, err := gm.BelongsTo("group")
	require.NoError(t, err)
	assert.Same(t, g, ref)
}

func TestSet_BelongsToMovesBetweenCollections(t *testing.T) {
	s := setupTestStore(t)
	g1 := mustCreate(t, s, "group", map[string]any{"id": "g1"})
	g2 := mustCreate(t, s, "group", map[string]any{"id": "g2"})
	gm := mustCreate(t, s, "group-member", map[string]any{"id": "gm1", "group": g1})

	obs := &recordingObserver{}
	s.Attach(obs)
	require.NoError(t, s.Set(gm, "group", g2))

	m1, _ := g1.HasMany("groupMembers")
	m2, _ := g2.HasMany("groupMembers")
	assert.Empty(t, m1.IDs())
	assert.Equal(t, []string{"gm1"}, m2.IDs())
	assert.ElementsMatch(t, []string{
		"group-member:gm1.group",
		"group:g1.groupMembers",
		"group:g2.groupMembers",
	}, obs.changes)

	require.NoError(t, s.Set(gm, "group", nil))
	assert.Empty(t, m2.IDs())
	ref, _ := gm.BelongsTo("group")
	assert.Nil(t, ref)
}

func TestSet_HasManyReplacesAndReorders(t *testing.T) {
	s := setupTestStore(t)
	g := mustCreate(t, s, "group", map[string]any{"id": "g1"})
	a := mustCreate(t, s, "group-member", map[string]any{"id": "a", "group": g})
	b := mustCreate(t, s, "group-member", map[string]any{"id": "b", "group": g})
	c := mustCreate(t, s, "group-member", map[string]any{"id": "c"})

	require.NoError(t, s.Set(g, "groupMembers", []any{"c", b}))

	members, _ := g.HasMany("groupMembers")
	assert.Equal(t, []string{"c", "b"}, members.IDs())

	ref, _ := a.BelongsTo("group")
	assert.Nil(t, ref, "dropped member loses its back link")
	ref, _ = c.BelongsTo("group")
	assert.Same(t, g, ref)

	obs := &recordingObserver{}
	s.Attach(obs)
	require.NoError(t, s.Set(g, "groupMembers", []string{"b", "c"}))
	assert.Equal(t, []string{"b", "c"}, members.IDs())
	assert.Equal(t, []string{"group:g1.groupMembers"}, obs.changes, "reorder changes only the collection")
}

func TestSet_UnchangedAttrIsSilent(t *testing.T) {
	s := setupTestStore(t)
	p := mustCreate(t, s, "person", map[string]any{"id": "p1", "name": "Ada"})

	obs := &recordingObserver{}
	s.Attach(obs)
	require.NoError(t, s.Set(p, "name", "Ada"))
	assert.Empty(t, obs.changes)

	require.NoError(t, s.Set(p, "name", "Grace"))
	assert.Equal(t, []string{"person:p1.name"}, obs.changes)
}

func TestAddToRemoveFrom(t *testing.T) {
	s := setupTestStore(t)
	g := mustCreate(t, s, "group", map[string]any{"id": "g1"})
	gm := mustCreate(t, s, "group-member", map[string]any{"id": "gm1"})

	require.NoError(t, s.AddTo(g, "groupMembers", "gm1"))
	members, _ := g.HasMany("groupMembers")
	assert.True(t, members.Contains(gm))
	ref, _ := gm.BelongsTo("group")
	assert.Same(t, g, ref)

	// Adding twice is a no-op.
	require.NoError(t, s.AddTo(g, "groupMembers", gm))
	assert.Equal(t, 1, members.Len())

	require.NoError(t, s.RemoveFrom(g, "groupMembers", gm))
	assert.Equal(t, 0, members.Len())
	ref, _ = gm.BelongsTo("group")
	assert.Nil(t, ref)

	err := s.AddTo(g, "groupName", gm)
	assert.True(t, IsUnknownField(err))
	err = s.AddTo(g, "groupMembers", "ghost")
	assert.True(t, IsUnknownRecord(err))
}

func TestDelete_UnlinksAndInvalidatesHandle(t *testing.T) {
	s := setupTestStore(t)
	g := mustCreate(t, s, "group", map[string]any{"id": "g1"})
	gm := mustCreate(t, s, "group-member", map[string]any{"id": "gm1", "group": g})
	mustCreate(t, s, "group-member", map[string]any{"id": "gm2", "group": g})

	obs := &recordingObserver{}
	s.Attach(obs)
	require.NoError(t, s.Delete(gm))

	members, _ := g.HasMany("groupMembers")
	assert.Equal(t, []string{"gm2"}, members.IDs())
	assert.Equal(t, []string{"group:g1.groupMembers"}, obs.changes)
	assert.Equal(t, []string{"group-member:gm1"}, obs.deleted)
	assert.True(t, gm.Deleted())

	_, ok := s.Peek("group-member", "gm1")
	assert.False(t, ok)
	_, err := gm.Attr("roles")
	assert.True(t, IsUnknownRecord(err))
	assert.True(t, IsUnknownRecord(s.Set(gm, "roles", []string{})))
	_, err = s.Find("group-member", "gm1")
	assert.True(t, IsUnknownRecord(err))

	ids := []string{}
	for _, r := range s.All("group-member") {
		ids = append(ids, r.ID())
	}
	assert.Equal(t, []string{"gm2"}, ids)
}

func TestObserver_ReportsReads(t *testing.T) {
	s := setupTestStore(t)
	g := mustCreate(t, s, "group", map[string]any{"id": "g1", "groupName": "team"})

	obs := &recordingObserver{}
	s.Attach(obs)
	_, err := g.Get("groupName")
	require.NoError(t, err)
	members, err := g.HasMany("groupMembers")
	require.NoError(t, err)
	members.Len()

	assert.Equal(t, []string{"group:g1.groupName", "group:g1.groupMembers", "group:g1.groupMembers"}, obs.reads)

	// Snapshot is not a tracked read.
	obs.reads = nil
	snap := g.Snapshot()
	assert.Empty(t, obs.reads)
	assert.Equal(t, ir.IRString("team"), snap["groupName"])
	assert.Equal(t, ir.IRArray{}, snap["groupMembers"])
}

func TestGet_DerivedWithoutDeriver(t *testing.T) {
	models := messagingModels()
	models[3].Computed = []ir.ComputedSpec{{Name: "people", DependsOn: []string{"groupMembers.@each.roles"}, Fn: "group.people"}}
	s, err := NewStore(models)
	require.NoError(t, err)

	g := mustCreate(t, s, "group", nil)
	_, err = g.Get("people")
	assert.Error(t, err)

	s.SetDeriver(deriverFunc(func(rec *Record, name string) (any, error) {
		return rec.ID() + "/" + name, nil
	}))
	v, err := g.Get("people")
	require.NoError(t, err)
	assert.Equal(t, g.ID()+"/people", v)
}

func TestCollection_Each(t *testing.T) {
	s := setupTestStore(t)
	g := mustCreate(t, s, "group", map[string]any{"id": "g1"})
	for _, id := range []string{"a", "b", "c"} {
		mustCreate(t, s, "group-member", map[string]any{"id": id, "group": g})
	}
	members, _ := g.HasMany("groupMembers")

	var seen []string
	members.Each(func(i int, r *Record) bool {
		seen = append(seen, r.ID())
		return i < 1
	})
	assert.Equal(t, []string{"a", "b"}, seen)
}

type deriverFunc func(rec *Record, name string) (any, error)

func (f deriverFunc) Derive(rec *Record, name string) (any, error) { return f(rec, name) }

func mustPeek(t *testing.T, s *Store, typ, id string) *Record {
	t.Helper()
	r, ok := s.Peek(typ, id)
	require.True(t, ok)
	return r
}

func TestDelete_ClearsOneSidedReferences(t *testing.T) {
	s := setupTestStore(t)
	p := mustCreate(t, s, "person", map[string]any{"id": "p1"})
	gm := mustCreate(t, s, "group-member", map[string]any{"id": "gm1", "person": p})

	obs := &recordingObserver{}
	s.Attach(obs)
	require.NoError(t, s.Delete(p))

	ref, err := gm.BelongsTo("person")
	require.NoError(t, err)
	assert.Nil(t, ref)
	assert.Equal(t, []string{"group-member:gm1.person"}, obs.changes)
}
