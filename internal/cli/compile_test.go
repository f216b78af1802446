package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/derive/internal/compiler"
	"github.com/roach88/derive/internal/ir"
)

func executeCompile(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestCompileMessagingSchema(t *testing.T) {
	out, err := executeCompile(t, "text", messagingSchemaDir(t))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Compiled 5 model(s)")
	assert.Contains(t, out, "people = message.people [recipientsById.@each.name]")
	assert.Contains(t, out, "groupMembers: hasMany group-member (inverse group)")
}

func TestCompileMessagingSchemaJSON(t *testing.T) {
	out, err := executeCompile(t, "json", messagingSchemaDir(t))
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Models, 5)

	group := resp.Data.Models[3]
	assert.Equal(t, "group", group.Name)
	rel, ok := group.Relationship("groupMembers")
	require.True(t, ok)
	assert.Equal(t, "group", rel.Inverse, "inverse is inferred")
}

func TestCompileOutputFile(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "models.json")

	out, err := executeCompile(t, "text", messagingSchemaDir(t), "-o", outFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote model IR to "+outFile)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Len(t, result.Models, 5)
}

func TestCompileNonExistentDirectory(t *testing.T) {
	out, err := executeCompile(t, "text", "/nonexistent/schemas")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestCompileErrorsJSON(t *testing.T) {
	dir := writeSchemaDir(t, map[string]string{"bad.cue": `
model: item: attrs: price: float
model: tag: relationships: items: {}
`})

	out, err := executeCompile(t, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   []CLIError `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, compiler.ErrInvalidAttrKind, resp.Error.Code)
	assert.Contains(t, resp.Data[1].Message, "relationship needs a belongsTo or hasMany target")
}

func TestCalculateStats(t *testing.T) {
	stats := calculateStats(&CompilationResult{Models: []ir.ModelSpec{
		{Name: "a", Attrs: []ir.AttrSpec{{Name: "x", Kind: ir.AttrInt}}},
		{Name: "b", Computed: []ir.ComputedSpec{{Name: "y"}, {Name: "z"}}},
	}})
	assert.Equal(t, CompilationStats{ModelCount: 2, AttrCount: 1, ComputedCount: 2}, stats)
}
