package deppath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keys(paths []Path) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = p.String()
	}
	return out
}

func TestParse_SimpleField(t *testing.T) {
	paths, err := Parse("groupName")
	require.NoError(t, err)
	require.Len(t, paths, 1)

	assert.Equal(t, []Segment{{Kind: Field, Name: "groupName"}}, paths[0].Segments)
	assert.Equal(t, 1, paths[0].Len())
}

func TestParse_RelationshipChain(t *testing.T) {
	paths, err := Parse("group.people.[]")
	require.NoError(t, err)
	require.Len(t, paths, 1)

	p := paths[0]
	assert.Equal(t, 3, p.Len())
	assert.Equal(t, Segment{Kind: Field, Name: "group"}, p.Head())
	assert.Equal(t, Members, p.Segments[2].Kind)
	assert.Equal(t, []string{"group", "people"}, p.Fields())
	assert.Equal(t, "people.[]", p.Rest().String())
}

func TestParse_Each(t *testing.T) {
	paths, err := Parse("groupMembers.@each.roles")
	require.NoError(t, err)
	require.Len(t, paths, 1)

	assert.Equal(t, []Segment{
		{Kind: Field, Name: "groupMembers"},
		{Kind: Each},
		{Kind: Field, Name: "roles"},
	}, paths[0].Segments)
	assert.Equal(t, Each, paths[0].Segments[1].Kind)
	assert.Equal(t, "groupMembers.@each.roles", paths[0].String())
}

func TestParse_LengthIsMembership(t *testing.T) {
	paths, err := Parse("people.length")
	require.NoError(t, err)

	assert.Equal(t, Members, paths[0].Segments[1].Kind)
	assert.Equal(t, "people.length", paths[0].String())
}

func TestParse_LengthAsFirstSegmentIsAField(t *testing.T) {
	paths, err := Parse("length")
	require.NoError(t, err)
	assert.Equal(t, Field, paths[0].Head().Kind)
}

func TestParse_BraceExpansion(t *testing.T) {
	paths, err := Parse("groupMembers.@each.{roles,person}")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"groupMembers.@each.roles",
		"groupMembers.@each.person",
	}, keys(paths))
}

func TestParse_MultipleBraceGroups(t *testing.T) {
	paths, err := Parse("{a,b}.@each.{c,d}")
	require.NoError(t, err)

	assert.Equal(t, []string{"a.@each.c", "a.@each.d", "b.@each.c", "b.@each.d"}, keys(paths))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		msg  string
	}{
		{"empty key", "", "empty key"},
		{"empty segment", "group..people", "empty segment"},
		{"leading each", "@each.roles", "@each must follow a collection"},
		{"trailing each", "members.@each", "@each must be followed by a field"},
		{"double each", "a.@each.@each.b", "repeated @each"},
		{"members first", "[]", "[] must follow a collection"},
		{"after members", "a.[].b", "nothing may follow []"},
		{"each then members", "a.@each.[]", "cannot follow @each"},
		{"unbalanced open", "a.{b,c", "unbalanced '{'"},
		{"unbalanced close", "a.b}", "unbalanced '}'"},
		{"nested braces", "a.{b,{c}}", "nested braces"},
		{"empty alternative", "a.{b,}", "empty brace alternative"},
		{"bad character", "a.b[0]", "invalid character"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.key)
			require.Error(t, err)

			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.key, pe.Key)
			assert.Contains(t, pe.Msg, tt.msg)
		})
	}
}

func TestParseAll_Dedupes(t *testing.T) {
	paths, err := ParseAll([]string{"recipients.[]", "recipients.[]", "group.people.[]"})
	require.NoError(t, err)

	assert.Equal(t, []string{"recipients.[]", "group.people.[]"}, keys(paths))
}

func TestParseAll_PropagatesErrors(t *testing.T) {
	_, err := ParseAll([]string{"ok", "bad..key"})
	require.Error(t, err)
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("") })
	assert.NotPanics(t, func() { MustParse("a.b") })
}

func TestSegmentKindString(t *testing.T) {
	assert.Equal(t, "field", Field.String())
	assert.Equal(t, "@each", Each.String())
	assert.Equal(t, "members", Members.String())
	assert.Equal(t, "SegmentKind(9)", SegmentKind(9).String())
}
