package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ConsoleAndFile(t *testing.T) {
	t.Parallel()
	var console bytes.Buffer
	dir := t.TempDir()

	logger, closer, err := New(Options{Console: &console, LogDir: dir, Level: zerolog.InfoLevel})
	require.NoError(t, err)

	logger.Info().Str("phase", "storage").Msg("bucket created")
	logger.Debug().Msg("hidden")
	require.NoError(t, closer.Close())

	assert.Contains(t, console.String(), "bucket created")
	assert.Contains(t, console.String(), "phase=storage")
	assert.NotContains(t, console.String(), "\x1b[", "no colour for non-terminal writers")
	assert.NotContains(t, console.String(), "hidden")

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "bucket created", entry["message"])
	assert.Equal(t, "storage", entry["phase"])
	assert.Contains(t, entry, "time")
}

func TestNew_ConsoleOnly(t *testing.T) {
	t.Parallel()
	var console bytes.Buffer

	logger, closer, err := New(Options{Console: &console})
	require.NoError(t, err)
	defer closer.Close()

	logger.Warn().Msg("careful")
	assert.Contains(t, console.String(), "careful")
}

func TestNew_BadLogDir(t *testing.T) {
	t.Parallel()
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, _, err := New(Options{Console: &bytes.Buffer{}, LogDir: filepath.Join(file, "sub")})
	require.Error(t, err)
}
