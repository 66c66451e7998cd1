package examples

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("// "+name), 0o644))
	}
}

func TestCatalogListsScripts(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "screenshot.js", "pdf.js", ".hidden.js", "README.md")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir.js"), 0o755))

	c := NewCatalog(dir)
	require.NoError(t, c.Load())

	assert.Equal(t, []string{"pdf.js", "screenshot.js"}, c.Names())
	assert.Equal(t, 2, c.Len())
}

func TestCatalogLoadsOnce(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.js")

	c := NewCatalog(dir)
	require.NoError(t, c.Load())

	writeFiles(t, dir, "b.js")
	require.NoError(t, c.Load())
	assert.Equal(t, []string{"a.js"}, c.Names())

	require.NoError(t, c.Reload())
	assert.Equal(t, []string{"a.js", "b.js"}, c.Names())
}

func TestCatalogRead(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.js")
	c := NewCatalog(dir)
	require.NoError(t, c.Load())

	data, err := c.Read("a.js")
	require.NoError(t, err)
	assert.Equal(t, "// a.js", string(data))

	for _, name := range []string{"missing.js", "../a.js", ".hidden.js", ""} {
		_, err := c.Read(name)
		assert.ErrorIs(t, err, ErrNotFound, name)
	}
}

func TestCatalogMissingDirIsEmpty(t *testing.T) {
	c := NewCatalog(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, c.Load())
	assert.Zero(t, c.Len())
}
