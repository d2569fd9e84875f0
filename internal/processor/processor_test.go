package processor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/czadmedia/FileIndexer/internal/index"
	"github.com/czadmedia/FileIndexer/internal/tokenizer"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newProcessor(opts Options) *FileProcessor {
	return New(tokenizer.NewWord(), opts)
}

func TestProcessFileWithPositions_AssignsGlobalOrdinals(t *testing.T) {
	// Given: a file spanning multiple lines
	dir := t.TempDir()
	path := writeFile(t, dir, "f.txt", "first line ends\nsecond line starts")

	// When: processed with positions
	p := newProcessor(Options{})
	positions := p.ProcessFileWithPositions(path)

	// Then: positions are 0-based ordinals across the whole stream
	require.NotNil(t, positions)
	assert.Equal(t, index.Positions{0}, positions["first"])
	assert.Equal(t, index.Positions{1, 4}, positions["line"])
	assert.Equal(t, index.Positions{2}, positions["ends"])
	assert.Equal(t, index.Positions{3}, positions["second"])
	assert.Equal(t, index.Positions{5}, positions["starts"])
}

func TestProcessFileWithPositions_DuplicateTokens(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "f.txt", "echo echo echo echo echo")

	p := newProcessor(Options{})
	positions := p.ProcessFileWithPositions(path)

	require.NotNil(t, positions)
	assert.Equal(t, index.Positions{0, 1, 2, 3, 4}, positions["echo"])
}

func TestProcessFileWithPositions_TokenSpansChunkBoundary(t *testing.T) {
	// Given: a chunk size that cuts through a token
	dir := t.TempDir()
	content := strings.Repeat("a ", 6) + "boundary" // "a a a a a a boundary"
	path := writeFile(t, dir, "f.txt", content)

	// When: streamed with a tiny chunk size
	p := newProcessor(Options{ChunkSize: 7})
	positions := p.ProcessFileWithPositions(path)

	// Then: the split token comes out whole with the right position
	require.NotNil(t, positions)
	assert.Equal(t, index.Positions{6}, positions["boundary"])
	assert.Equal(t, index.Positions{0, 1, 2, 3, 4, 5}, positions["a"])
}

func TestProcessFileWithPositions_MultiByteRunesAcrossChunks(t *testing.T) {
	dir := t.TempDir()
	content := strings.Repeat("héllo wörld ", 20)
	path := writeFile(t, dir, "f.txt", content)

	p := newProcessor(Options{ChunkSize: 5})
	positions := p.ProcessFileWithPositions(path)

	require.NotNil(t, positions)
	assert.Len(t, positions["héllo"], 20)
	assert.Len(t, positions["wörld"], 20)
}

func TestProcessFileWithPositions_MissingFile(t *testing.T) {
	p := newProcessor(Options{})
	assert.Nil(t, p.ProcessFileWithPositions(filepath.Join(t.TempDir(), "absent.txt")))
}

func TestProcessFileWithPositions_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "empty.txt", "")

	p := newProcessor(Options{})
	positions := p.ProcessFileWithPositions(path)

	// Readable but token-free: an empty map, not a nil failure marker.
	require.NotNil(t, positions)
	assert.Empty(t, positions)
}

func TestProcessFile_ReturnsDistinctTokens(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "f.txt", "alpha bravo alpha bravo charlie")

	p := newProcessor(Options{})
	tokens := p.ProcessFile(path)

	assert.ElementsMatch(t, []string{"alpha", "bravo", "charlie"}, tokens)
}

func TestCanProcess(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "f.txt", "x")

	p := newProcessor(Options{})
	assert.True(t, p.CanProcess(path))
	assert.False(t, p.CanProcess(dir))
	assert.False(t, p.CanProcess(filepath.Join(dir, "absent.txt")))
}
