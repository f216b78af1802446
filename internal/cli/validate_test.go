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
	"github.com/roach88/derive/internal/messaging"
)

// writeSchemaDir writes CUE files into a temp dir as package "test".
func writeSchemaDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("package test\n\n"+body), 0644))
	}
	return dir
}

func messagingSchemaDir(t *testing.T) string {
	return writeSchemaDir(t, map[string]string{"schema.cue": string(messaging.Schema())})
}

func executeValidate(t *testing.T, format string, dir string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{dir})
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidateMessagingSchema(t *testing.T) {
	out, err := executeValidate(t, "text", messagingSchemaDir(t))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All schemas valid (5 models)")
}

func TestValidateMessagingSchemaJSON(t *testing.T) {
	out, err := executeValidate(t, "json", messagingSchemaDir(t))
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, []string{"person", "recipient", "group-member", "group", "message"}, resp.Data.Models)
	assert.Empty(t, resp.Data.Warnings)
}

func TestValidateSchemaAcrossFiles(t *testing.T) {
	dir := writeSchemaDir(t, map[string]string{
		"person.cue": `model: person: attrs: name: string`,
		"team/team.cue": `model: team: {
	relationships: members: {hasMany: "person", inverse: ""}
}`,
	})

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"person.cue", "team/team.cue"}, files)

	out, err := executeValidate(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "All schemas valid")
}

func TestValidateNonExistentDirectory(t *testing.T) {
	out, err := executeValidate(t, "text", "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Contains(t, out, "not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateEmptyDirectory(t *testing.T) {
	_, err := executeValidate(t, "text", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNoFiles)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateInvalidCUESyntax(t *testing.T) {
	dir := writeSchemaDir(t, map[string]string{"bad.cue": `model: person: {`})

	_, err := executeValidate(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateFloatAttr(t *testing.T) {
	dir := writeSchemaDir(t, map[string]string{"bad.cue": `model: item: attrs: price: float`})

	out, err := executeValidate(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, compiler.ErrInvalidAttrKind)
	assert.Contains(t, out, "float types are forbidden")
}

func TestValidateUnknownFunction(t *testing.T) {
	dir := writeSchemaDir(t, map[string]string{"schema.cue": `
model: person: {
	attrs: name: string
	computed: shout: {dependsOn: ["name"], fn: "person.shout"}
}`})

	out, err := executeValidate(t, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 1)
	assert.Equal(t, compiler.ErrUnknownFunction, resp.Data.Errors[0].Code)
	assert.Equal(t, "person.shout", resp.Data.Errors[0].Field)
	assert.Equal(t, compiler.ErrUnknownFunction, resp.Error.Code)
}

func TestValidateLocalCycleIsError(t *testing.T) {
	dir := writeSchemaDir(t, map[string]string{"schema.cue": `
model: group: {
	computed: {
		people:  {dependsOn: ["members"], fn: "group.people"}
		members: {dependsOn: ["people"], fn: "group.people"}
	}
}`})

	out, err := executeValidate(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, compiler.ErrDependencyCycle)
	assert.Contains(t, out, "derived properties depend on each other")
}

func TestValidateSchemaDir(t *testing.T) {
	errs, err := ValidateSchemaDir(messagingSchemaDir(t))
	require.NoError(t, err)
	assert.Empty(t, errs)

	_, err = ValidateSchemaDir("/nonexistent")
	require.Error(t, err)
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"type", compiler.ErrInvalidAttrKind},
		{"computed.people.dependsOn", compiler.ErrInvalidDependencyKey},
		{"computed.people.dependsOn[0]", compiler.ErrInvalidDependencyKey},
		{"model", ErrCodeGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, MapFieldToErrorCode(tt.field))
		})
	}
}
