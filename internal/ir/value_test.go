package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRValueSealed(t *testing.T) {
	var _ IRValue = IRNull{}
	var _ IRValue = IRString("test")
	var _ IRValue = IRInt(42)
	var _ IRValue = IRBool(true)
	var _ IRValue = IRArray{IRString("a"), IRInt(1)}
	var _ IRValue = IRObject{"key": IRString("value")}
}

func TestIRObjectSortedKeys(t *testing.T) {
	obj := IRObject{
		"zebra":  IRString("z"),
		"apple":  IRString("a"),
		"banana": IRString("b"),
	}

	assert.Equal(t, []string{"apple", "banana", "zebra"}, obj.SortedKeys())
}

func TestIRObjectSortedKeysUTF16Order(t *testing.T) {
	// U+FB01 is a single UTF-16 unit (0xFB01); U+1F600 is a surrogate pair
	// starting at 0xD83D. UTF-8 byte order would put the emoji last.
	obj := IRObject{
		"ﬁ":     IRInt(1),
		"\U0001F600": IRInt(2),
		"a":          IRInt(3),
	}

	assert.Equal(t, []string{"a", "\U0001F600", "ﬁ"}, obj.SortedKeys())
}

func TestIRArrayContainsString(t *testing.T) {
	roles := IRArray{IRString("edit"), IRString("view")}

	assert.True(t, roles.ContainsString("view"))
	assert.False(t, roles.ContainsString("admin"))
	assert.False(t, IRArray{IRInt(1)}.ContainsString("1"))
}

func TestConforms(t *testing.T) {
	tests := []struct {
		name  string
		value IRValue
		kind  AttrKind
		want  bool
	}{
		{"string ok", IRString("x"), AttrString, true},
		{"string wrong", IRInt(1), AttrString, false},
		{"int ok", IRInt(1), AttrInt, true},
		{"bool ok", IRBool(true), AttrBool, true},
		{"array ok", IRArray{}, AttrArray, true},
		{"array wrong", IRObject{}, AttrArray, false},
		{"object ok", IRObject{}, AttrObject, true},
		{"any accepts all", IRArray{}, AttrAny, true},
		{"null always", IRNull{}, AttrInt, true},
		{"unknown kind", IRString("x"), AttrKind("date"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Conforms(tt.value, tt.kind))
		})
	}
}

func TestFromGo(t *testing.T) {
	v, err := FromGo(map[string]any{
		"roles": []any{"view", "edit"},
		"count": 3,
		"flag":  true,
		"none":  nil,
		"whole": float64(2),
	})
	require.NoError(t, err)

	assert.Equal(t, IRObject{
		"roles": IRArray{IRString("view"), IRString("edit")},
		"count": IRInt(3),
		"flag":  IRBool(true),
		"none":  IRNull{},
		"whole": IRInt(2),
	}, v)
}

func TestFromGoStrings(t *testing.T) {
	v, err := FromGo([]string{"view"})
	require.NoError(t, err)
	assert.Equal(t, IRArray{IRString("view")}, v)
}

func TestFromGoRejectsFractionalFloat(t *testing.T) {
	_, err := FromGo(1.5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are forbidden")

	_, err = FromGo([]any{"a", 0.25})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "array[1]")
}

func TestFromGoRejectsUnsupported(t *testing.T) {
	_, err := FromGo(struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type")
}

func TestToGo(t *testing.T) {
	v := IRObject{
		"name":  IRString("Alice"),
		"roles": IRArray{IRString("view")},
		"age":   IRInt(30),
		"unset": IRNull{},
	}

	assert.Equal(t, map[string]any{
		"name":  "Alice",
		"roles": []any{"view"},
		"age":   int64(30),
		"unset": nil,
	}, ToGo(v))
}

func TestUnmarshalIRValue(t *testing.T) {
	v, err := UnmarshalIRValue([]byte(`{"a":[1,"x",true,null]}`))
	require.NoError(t, err)
	assert.Equal(t, IRObject{"a": IRArray{IRInt(1), IRString("x"), IRBool(true), IRNull{}}}, v)

	_, err = UnmarshalIRValue([]byte(`1.5`))
	require.Error(t, err)
}

func TestMarshalIRValueSortsKeys(t *testing.T) {
	b, err := MarshalIRValue(IRObject{"b": IRInt(1), "a": IRArray{IRNull{}}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":[null],"b":1}`, string(b))
}
