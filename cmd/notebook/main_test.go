package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedrocostadev/ai-notebook-sub000/config"
)

const lighthouseText = `Lighthouses mark dangerous coastlines and guide ships into safe harbours.
Early lighthouses burned wood or coal in open fires, later replaced by oil lamps and
Fresnel lenses that concentrate the light into a narrow beam visible for many miles.
Keepers trimmed wicks, wound clockwork rotation mechanisms and logged the weather.`

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"notebook", "--log-level", "error"}, args...))
	return out.String(), err
}

func TestSetupLogger(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}
	err := app.Run([]string{"notebook", "--log-level", "loud", "status"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestInitConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notebook.yaml")

	out, err := runApp(t, "init-config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Retrieval, cfg.Retrieval)

	_, err = runApp(t, "init-config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = runApp(t, "init-config")
	require.Error(t, err)
}

func TestStatusCommand_Empty(t *testing.T) {
	out, err := runApp(t, "--data-dir", t.TempDir(), "status")
	require.NoError(t, err)
	assert.Contains(t, out, "No documents")
}

func TestIngestCommand_Queues(t *testing.T) {
	dataDir := t.TempDir()
	path := filepath.Join(t.TempDir(), "lighthouses.txt")
	require.NoError(t, os.WriteFile(path, []byte(lighthouseText), 0o644))

	out, err := runApp(t, "--data-dir", dataDir, "ingest", path)
	require.NoError(t, err)
	assert.Contains(t, out, "lighthouses")

	out, err = runApp(t, "--data-dir", dataDir, "status")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "lighthouses")
	assert.Contains(t, lines[1], "processing")

	id := strings.Fields(lines[1])[0]
	out, err = runApp(t, "--data-dir", dataDir, "status", "--document", id)
	require.NoError(t, err)
	assert.Contains(t, out, "pending")
}

func TestIngestCommand_Errors(t *testing.T) {
	dataDir := t.TempDir()

	_, err := runApp(t, "--data-dir", dataDir, "ingest")
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "notes.docx")
	require.NoError(t, os.WriteFile(path, []byte(lighthouseText), 0o644))
	_, err = runApp(t, "--data-dir", dataDir, "ingest", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}

func TestDocumentCommandsRequireDocument(t *testing.T) {
	for _, command := range []string{"cancel", "delete", "ask"} {
		t.Run(command, func(t *testing.T) {
			_, err := runApp(t, "--data-dir", t.TempDir(), command, "question")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "document")
		})
	}
}

func TestCancelCommand_UnknownDocument(t *testing.T) {
	_, err := runApp(t, "--data-dir", t.TempDir(), "cancel", "--document", "42")
	require.Error(t, err)
}
