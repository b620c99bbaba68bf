package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Initialize(dir, Config{DefaultType: "CHART", LogLevel: "debug"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, Dir), cfg.Path())
	assert.Equal(t, filepath.Join(dir, Dir, DatabaseFile), cfg.DatabasePath())

	loaded, err := LoadFrom(cfg.Path())
	require.NoError(t, err)
	assert.Equal(t, "CHART", loaded.DefaultType)
	assert.Equal(t, "debug", loaded.LogLevel)
	assert.Empty(t, loaded.Remote)

	loaded.Remote = "origin"
	require.NoError(t, loaded.Save())

	again, err := LoadFrom(cfg.Path())
	require.NoError(t, err)
	assert.Equal(t, "origin", again.Remote)
}

func TestInitialize_AlreadyExists(t *testing.T) {
	dir := t.TempDir()
	_, err := Initialize(dir, Config{})
	require.NoError(t, err)

	_, err = Initialize(dir, Config{})
	assert.ErrorContains(t, err, "already exists")
}

func TestFindRootFrom_WalksUp(t *testing.T) {
	dir := t.TempDir()
	_, err := Initialize(dir, Config{})
	require.NoError(t, err)

	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	root, err := findRootFrom(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, Dir), root)
}

func TestFindRootFrom_Missing(t *testing.T) {
	_, err := findRootFrom(t.TempDir())
	assert.ErrorContains(t, err, "not a vizedit workspace")
}

func TestLoadFrom_BadTOML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFile), []byte("remote = ["), 0644))

	_, err := LoadFrom(dir)
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, (&Config{}).SlogLevel())
	assert.Equal(t, slog.LevelDebug, (&Config{LogLevel: "DEBUG"}).SlogLevel())
	assert.Equal(t, slog.LevelInfo, (&Config{LogLevel: "info"}).SlogLevel())
	assert.Equal(t, slog.LevelError, (&Config{LogLevel: "error"}).SlogLevel())
}
