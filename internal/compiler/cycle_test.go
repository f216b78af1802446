package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/derive/internal/ir"
)

func computed(name string, deps ...string) ir.ComputedSpec {
	return ir.ComputedSpec{Name: name, DependsOn: deps}
}

func TestAnalyzeCycles_Empty(t *testing.T) {
	warnings := AnalyzeCycles(nil)
	assert.Empty(t, warnings)
}

func TestAnalyzeCycles_MessagingIsAcyclic(t *testing.T) {
	models := messagingModels(t)
	models = append(models,
		ir.ModelSpec{
			Name: "message",
			Relationships: []ir.RelationshipSpec{
				{Name: "group", Kind: ir.BelongsTo, Target: "group", Inverse: ir.NoInverse},
			},
			Computed: []ir.ComputedSpec{
				computed("recipientsById", "group.people.[]"),
				computed("people", "recipientsById.@each.name"),
			},
		},
	)

	assert.Empty(t, AnalyzeCycles(models))
}

func TestAnalyzeCycles_SelfLoop(t *testing.T) {
	models := []ir.ModelSpec{{
		Name:     "a",
		Computed: []ir.ComputedSpec{computed("x", "x")},
	}}

	warnings := AnalyzeCycles(models)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"a.x", "a.x"}, warnings[0].Path)
	assert.Equal(t, LevelError, warnings[0].Level)
	assert.Equal(t, "derived properties depend on each other: a.x → a.x", warnings[0].Message)
}

func TestAnalyzeCycles_TwoNodeLocalCycle(t *testing.T) {
	models := []ir.ModelSpec{{
		Name:     "a",
		Computed: []ir.ComputedSpec{computed("x", "y"), computed("y", "x")},
	}}

	warnings := AnalyzeCycles(models)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"a.x", "a.y", "a.x"}, warnings[0].Path)
	assert.Equal(t, LevelError, warnings[0].Level)
}

func TestAnalyzeCycles_ThreeNodeCycleWithBraces(t *testing.T) {
	models := []ir.ModelSpec{{
		Name:  "a",
		Attrs: []ir.AttrSpec{{Name: "n", Kind: ir.AttrInt}},
		Computed: []ir.ComputedSpec{
			computed("x", "{n,y}"),
			computed("y", "z"),
			computed("z", "x"),
		},
	}}

	warnings := AnalyzeCycles(models)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"a.x", "a.y", "a.z", "a.x"}, warnings[0].Path)
	assert.Equal(t, LevelError, warnings[0].Level)
}

func TestAnalyzeCycles_AcrossRelationshipIsWarning(t *testing.T) {
	models := []ir.ModelSpec{{
		Name: "node",
		Relationships: []ir.RelationshipSpec{
			{Name: "parent", Kind: ir.BelongsTo, Target: "node", Inverse: "children"},
			{Name: "children", Kind: ir.HasMany, Target: "node", Inverse: "parent"},
		},
		Computed: []ir.ComputedSpec{computed("total", "children.@each.total")},
	}}

	warnings := AnalyzeCycles(models)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"node.total", "node.total"}, warnings[0].Path)
	assert.Equal(t, LevelWarning, warnings[0].Level)
	assert.Contains(t, warnings[0].Message, "across relationships")
}

func TestAnalyzeCycles_CrossModelCycleIsWarning(t *testing.T) {
	models := []ir.ModelSpec{
		{
			Name:          "a",
			Relationships: []ir.RelationshipSpec{{Name: "b", Kind: ir.BelongsTo, Target: "b", Inverse: ir.NoInverse}},
			Computed:      []ir.ComputedSpec{computed("x", "b.y")},
		},
		{
			Name:          "b",
			Relationships: []ir.RelationshipSpec{{Name: "a", Kind: ir.BelongsTo, Target: "a", Inverse: ir.NoInverse}},
			Computed:      []ir.ComputedSpec{computed("y", "a.x")},
		},
	}

	warnings := AnalyzeCycles(models)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"a.x", "b.y", "a.x"}, warnings[0].Path)
	assert.Equal(t, LevelWarning, warnings[0].Level)
}

func TestAnalyzeCycles_MultipleIndependentCycles(t *testing.T) {
	models := []ir.ModelSpec{
		{Name: "a", Computed: []ir.ComputedSpec{computed("x", "y"), computed("y", "x")}},
		{Name: "b", Computed: []ir.ComputedSpec{computed("p", "p"), computed("q", "p")}},
	}

	warnings := AnalyzeCycles(models)
	require.Len(t, warnings, 2)
	assert.Equal(t, "a.x", warnings[0].Path[0])
	assert.Equal(t, "b.p", warnings[1].Path[0])
}

func TestAnalyzeCycles_SkipsUnresolvedKeys(t *testing.T) {
	models := []ir.ModelSpec{{
		Name:     "a",
		Computed: []ir.ComputedSpec{computed("x", "missing.x", "{broken")},
	}}
	assert.Empty(t, AnalyzeCycles(models))
}

func TestBuildDependencyGraph(t *testing.T) {
	models := messagingModels(t)
	models = append(models, ir.ModelSpec{
		Name: "message",
		Relationships: []ir.RelationshipSpec{
			{Name: "group", Kind: ir.BelongsTo, Target: "group", Inverse: ir.NoInverse},
		},
		Computed: []ir.ComputedSpec{
			computed("recipientsById", "group.people.[]"),
			computed("people", "recipientsById.@each.name"),
		},
	})

	g := buildDependencyGraph(models)
	assert.Equal(t, []string{}, g.edges["group.people"])
	assert.Equal(t, []string{"group.people"}, g.edges["message.recipientsById"])
	assert.Equal(t, []string{"message.recipientsById"}, g.edges["message.people"])
	assert.False(t, g.local[[2]string{"message.recipientsById", "group.people"}])
	assert.True(t, g.local[[2]string{"message.people", "message.recipientsById"}])
}

func TestTarjanSCC_DAG(t *testing.T) {
	g := dependencyGraph{edges: map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {},
	}}

	sccs := tarjanSCC(g)
	assert.Len(t, sccs, 3)
	for _, scc := range sccs {
		assert.Len(t, scc, 1)
	}
}

func TestTarjanSCC_TwoNodeCycle(t *testing.T) {
	g := dependencyGraph{edges: map[string][]string{
		"a": {"b"},
		"b": {"a"},
	}}

	sccs := tarjanSCC(g)
	require.Len(t, sccs, 1)
	assert.Equal(t, []string{"a", "b"}, sccs[0])
}

func TestReconstructCyclePath_Empty(t *testing.T) {
	assert.Equal(t, []string{}, reconstructCyclePath(nil, dependencyGraph{}))
}
