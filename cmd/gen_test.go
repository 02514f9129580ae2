package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cottand/qinfer/export"
	"github.com/cottand/qinfer/hardcoded"
	"github.com/cottand/qinfer/inference/session"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emptyDocument(t *testing.T) *export.Document {
	t.Helper()
	doc, err := export.NewDocument(session.New(), hardcoded.New())
	require.NoError(t, err)
	return doc
}

func testCommand() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	return cmd
}

func TestSetupLogging(t *testing.T) {
	t.Cleanup(func() { _ = setupLogging(LogConfig{Level: "warn", Sections: []string{"inference"}}) })

	require.NoError(t, setupLogging(LogConfig{Level: "debug"}))
	err := setupLogging(LogConfig{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid log level "loud"`)
}

func TestWriteOutputYAMLFile(t *testing.T) {
	doc := emptyDocument(t)
	path := filepath.Join(t.TempDir(), "out.yaml")

	require.NoError(t, writeOutput(testCommand(), OutputConfig{Format: FormatYAML, Path: path}, doc))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	back, err := export.ReadYAML(f)
	require.NoError(t, err)
	assert.Equal(t, doc.Session, back.Session)
	assert.Equal(t, doc.TypeSystem, back.TypeSystem)
}

func TestWriteOutputSQLite(t *testing.T) {
	doc := emptyDocument(t)
	path := filepath.Join(t.TempDir(), "out.db")
	cmd := testCommand()

	require.NoError(t, writeOutput(cmd, OutputConfig{Format: FormatSQLite, Path: path}, doc))
	store, err := export.OpenSQLite(cmd.Context(), path)
	require.NoError(t, err)
	defer store.Close()
	back, err := store.Load(cmd.Context(), doc.Session)
	require.NoError(t, err)
	assert.Equal(t, doc.TypeSystem, back.TypeSystem)
}

func TestWriteOutputMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.yaml")
	err := writeOutput(testCommand(), OutputConfig{Format: FormatYAML, Path: path}, emptyDocument(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not create output file")
}
