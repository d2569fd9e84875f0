package walker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFiles_WalksNestedDirectories(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "a.txt"), "a")
	mustWrite(t, filepath.Join(dir, "sub", "b.txt"), "b")
	mustWrite(t, filepath.Join(dir, "sub", "deep", "c.txt"), "c")

	w := New(Options{})
	files := w.Files(dir)

	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "sub", "b.txt"),
		filepath.Join(dir, "sub", "deep", "c.txt"),
	}, files)
}

func TestFiles_FileRootYieldsItself(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "only.txt")
	mustWrite(t, path, "x")

	w := New(Options{})
	assert.Equal(t, []string{path}, w.Files(path))
}

func TestFiles_MissingRootYieldsNothing(t *testing.T) {
	w := New(Options{})
	assert.Empty(t, w.Files(filepath.Join(t.TempDir(), "absent")))
}

func TestFiles_ExcludePatterns(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "keep.txt"), "k")
	mustWrite(t, filepath.Join(dir, "skip.log"), "s")
	mustWrite(t, filepath.Join(dir, "node_modules", "dep.js"), "d")

	w := New(Options{ExcludePatterns: []string{"*.log", "node_modules/**"}})
	files := w.Files(dir)

	assert.Equal(t, []string{filepath.Join(dir, "keep.txt")}, files)
}

func TestFiles_ExcludedDirectoryIsPruned(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "src", "main.go"), "m")
	mustWrite(t, filepath.Join(dir, "vendor", "lib.go"), "l")

	w := New(Options{ExcludePatterns: []string{"vendor/"}})
	files := w.Files(dir)

	assert.Equal(t, []string{filepath.Join(dir, "src", "main.go")}, files)
}

func TestFiles_MaxFileSize(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "small.txt"), "ok")
	mustWrite(t, filepath.Join(dir, "big.txt"), "this file is over the limit")

	w := New(Options{MaxFileSize: 10})
	files := w.Files(dir)

	assert.Equal(t, []string{filepath.Join(dir, "small.txt")}, files)
}
