package site

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir is the pre-Go-1.24 equivalent of t.Chdir, which the local
// toolchain (go1.21) does not provide.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestResolveContentDirConfiguredWins(t *testing.T) {
	dir := t.TempDir()

	resolved, err := ResolveContentDir(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, resolved)
}

func TestResolveContentDirPrefersContentSubdir(t *testing.T) {
	chdir(t, t.TempDir())
	sub := filepath.Join(DefaultBaseDir, "content")
	require.NoError(t, os.MkdirAll(sub, 0755))

	resolved, err := ResolveContentDir("")
	require.NoError(t, err)
	assert.Equal(t, sub, resolved)
}

func TestResolveContentDirFallsBackToBaseDir(t *testing.T) {
	chdir(t, t.TempDir())
	require.NoError(t, os.MkdirAll(DefaultBaseDir, 0755))

	resolved, err := ResolveContentDir("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseDir, resolved)
}

func TestResolveContentDirMissingBaseDir(t *testing.T) {
	chdir(t, t.TempDir())

	// Configured dir that does not exist falls through to the base dir
	_, err := ResolveContentDir("nonexistent")
	assert.ErrorContains(t, err, "not found")
}

func TestIndexPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html></html>"), 0644))

	path, err := IndexPath(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "index.html"), path)
}

func TestIndexPathMissingIndex(t *testing.T) {
	dir := t.TempDir()

	_, err := IndexPath(dir)
	assert.ErrorContains(t, err, "index.html not found")
}
