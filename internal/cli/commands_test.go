package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTVarThenGet(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "store.db")

	out := &bytes.Buffer{}
	root := NewRootCommand()
	root.SetOut(out)
	root.SetArgs([]string{"--db", dbPath, "--format", "json", "new-tvar", "c", "0"})
	require.NoError(t, root.Execute())

	out.Reset()
	root = NewRootCommand()
	root.SetOut(out)
	root.SetArgs([]string{"--db", dbPath, "--format", "json", "get", "c"})
	require.NoError(t, root.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.EqualValues(t, 0, resp.Data)
}

func TestNewTVarDuplicateFails(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "store.db")

	out := &bytes.Buffer{}
	root := NewRootCommand()
	root.SetOut(out)
	root.SetArgs([]string{"--db", dbPath, "new-tvar", "c", "0"})
	require.NoError(t, root.Execute())

	root = NewRootCommand()
	root.SetOut(out)
	root.SetArgs([]string{"--db", dbPath, "new-tvar", "c", "1"})
	err := root.Execute()
	require.Error(t, err)
}

func TestGetMissingTVarFails(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "store.db")

	out := &bytes.Buffer{}
	root := NewRootCommand()
	root.SetOut(out)
	root.SetArgs([]string{"--db", dbPath, "get", "missing"})
	err := root.Execute()
	require.Error(t, err)
}

func TestListReturnsCreatedIDs(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "store.db")

	for _, id := range []string{"b", "a"} {
		out := &bytes.Buffer{}
		root := NewRootCommand()
		root.SetOut(out)
		root.SetArgs([]string{"--db", dbPath, "new-tvar", id, "0"})
		require.NoError(t, root.Execute())
	}

	out := &bytes.Buffer{}
	root := NewRootCommand()
	root.SetOut(out)
	root.SetArgs([]string{"--db", dbPath, "--format", "json", "list"})
	require.NoError(t, root.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []any{"a", "b"}, resp.Data)
}

func TestIncrementAppliesDelta(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "store.db")

	out := &bytes.Buffer{}
	root := NewRootCommand()
	root.SetOut(out)
	root.SetArgs([]string{"--db", dbPath, "new-tvar", "c", "5"})
	require.NoError(t, root.Execute())

	out.Reset()
	root = NewRootCommand()
	root.SetOut(out)
	root.SetArgs([]string{"--db", dbPath, "--format", "json", "increment", "c", "--delta", "3"})
	require.NoError(t, root.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	out.Reset()
	root = NewRootCommand()
	root.SetOut(out)
	root.SetArgs([]string{"--db", dbPath, "--format", "json", "get", "c"})
	require.NoError(t, root.Execute())
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.EqualValues(t, 8, resp.Data)
}

func TestGetMissingTVarReportsStructuredErrorCode(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "store.db")

	out := &bytes.Buffer{}
	root := NewRootCommand()
	root.SetOut(out)
	root.SetArgs([]string{"--db", dbPath, "--format", "json", "get", "missing"})
	err := root.Execute()
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeNotFound, resp.Error.Code)
}

func TestNewTVarDuplicateReportsAlreadyExistsCode(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "store.db")

	out := &bytes.Buffer{}
	root := NewRootCommand()
	root.SetOut(out)
	root.SetArgs([]string{"--db", dbPath, "new-tvar", "c", "0"})
	require.NoError(t, root.Execute())

	out.Reset()
	root = NewRootCommand()
	root.SetOut(out)
	root.SetArgs([]string{"--db", dbPath, "--format", "json", "new-tvar", "c", "1"})
	err := root.Execute()
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeAlreadyExists, resp.Error.Code)
}

func TestMissingDBFlagFails(t *testing.T) {
	out := &bytes.Buffer{}
	root := NewRootCommand()
	root.SetOut(out)
	root.SetArgs([]string{"get", "c"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--db is required")
}
