// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// Tests for the logging package

package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stderrFile gives the logger a non-terminal console destination whose
// contents the test can read back.
func stderrFile(t *testing.T) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "stderr")
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestNew_StderrOnlyEmitsJSONWhenNotATerminal(t *testing.T) {
	out := stderrFile(t)
	logger := New(Config{Level: LevelInfo, Stderr: out})

	logger.Info("chain append", "metric", "Federal Funds Rate")

	content := readFile(t, out.Name())
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(content)), &entry))
	assert.Equal(t, "chain append", entry["msg"])
	assert.Equal(t, "Federal Funds Rate", entry["metric"])
}

func TestNew_LevelFiltersDebug(t *testing.T) {
	out := stderrFile(t)
	logger := New(Config{Level: LevelInfo, Stderr: out})

	logger.Debug("not emitted")
	logger.Info("emitted")

	content := readFile(t, out.Name())
	assert.NotContains(t, content, "not emitted")
	assert.Contains(t, content, "emitted")
}

func TestNew_FileLoggingCreatesServiceDateFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	logger := New(Config{Level: LevelInfo, LogDir: dir, Service: "qa", Stderr: stderrFile(t)})
	defer logger.Close()

	logger.Info("indexed", "count", 3)
	require.NoError(t, logger.Close())

	expected := filepath.Join(dir, "qa_"+time.Now().Format("2006-01-02")+".log")
	content := readFile(t, expected)
	assert.Contains(t, content, "indexed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(content)), &entry))
	assert.Equal(t, float64(3), entry["count"])
}

func TestNew_BadLogDirDegradesToStderr(t *testing.T) {
	out := stderrFile(t)
	file := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	// LogDir points at an existing file, so MkdirAll fails.
	logger := New(Config{Level: LevelInfo, LogDir: file, Stderr: out})
	logger.Info("still works")

	assert.Contains(t, readFile(t, out.Name()), "still works")
}

func TestWith_CarriesAttributes(t *testing.T) {
	out := stderrFile(t)
	logger := New(Config{Level: LevelInfo, Stderr: out}).With("service", "qa")

	logger.Info("ready")

	content := readFile(t, out.Name())
	assert.Contains(t, content, `"service":"qa"`)
}

func TestClose_IsIdempotent(t *testing.T) {
	logger := New(Config{Level: LevelInfo, LogDir: t.TempDir(), Service: "qa", Stderr: stderrFile(t)})
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())
}

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
}

func TestExpandPath_Home(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "logs"), expandPath("~/logs"))
	assert.Equal(t, "/var/logs", expandPath("/var/logs"))
}
