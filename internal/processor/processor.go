// Package processor turns files into token position maps. It streams
// file content in fixed-size chunks through a tokenizer session and
// assigns each emitted token its 0-based ordinal in the file's global
// token stream.
package processor

import (
	"io"
	"log/slog"
	"os"
	"unicode/utf8"

	"github.com/czadmedia/FileIndexer/internal/index"
	"github.com/czadmedia/FileIndexer/internal/tokenizer"
)

// DefaultChunkSize is the read buffer size for streaming files.
const DefaultChunkSize = 32 * 1024

// FileProcessor reads files through a tokenizer.
type FileProcessor struct {
	tok       tokenizer.Tokenizer
	chunkSize int
}

// Options configures a FileProcessor.
type Options struct {
	// ChunkSize is the streaming read size in bytes. Default: 32KiB.
	ChunkSize int
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	if o.ChunkSize == 0 {
		o.ChunkSize = DefaultChunkSize
	}
	return o
}

// New creates a FileProcessor using the given tokenizer.
func New(tok tokenizer.Tokenizer, opts Options) *FileProcessor {
	opts = opts.WithDefaults()
	return &FileProcessor{tok: tok, chunkSize: opts.ChunkSize}
}

// CanProcess reports whether path is an existing regular file.
func (p *FileProcessor) CanProcess(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ProcessFileWithPositions tokenizes the file and returns each token's
// positions. Returns nil when the file cannot be read; the caller
// treats that as "unprocessable, remove from index".
func (p *FileProcessor) ProcessFileWithPositions(path string) index.TokenPositions {
	positions := make(index.TokenPositions)
	next := 0
	ok := p.stream(path, func(token string) {
		positions[token] = append(positions[token], next)
		next++
	})
	if !ok {
		return nil
	}
	return positions
}

// ProcessFile tokenizes the file and returns its distinct tokens.
// Returns nil when the file cannot be read.
func (p *FileProcessor) ProcessFile(path string) []string {
	seen := make(map[string]struct{})
	tokens := []string{}
	ok := p.stream(path, func(token string) {
		if _, dup := seen[token]; dup {
			return
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
	})
	if !ok {
		return nil
	}
	return tokens
}

// stream feeds the file through one tokenizer session, calling emit for
// every token in stream order. The position counter is shared across
// all chunks and the final flush; it is never reset.
func (p *FileProcessor) stream(path string, emit func(token string)) bool {
	f, err := os.Open(path)
	if err != nil {
		slog.Warn("cannot open file for indexing",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return false
	}
	defer func() { _ = f.Close() }()

	session := p.tok.NewSession()
	buf := make([]byte, p.chunkSize)
	// Bytes of an incomplete UTF-8 rune at a chunk boundary, carried
	// into the next read so the session always sees whole runes.
	var carry []byte

	for {
		n, err := f.Read(buf)
		if n > 0 {
			chunk := append(carry, buf[:n]...)
			valid := trailingValid(chunk)
			for _, token := range session.ProcessText(string(chunk[:valid])) {
				emit(token)
			}
			carry = append([]byte(nil), chunk[valid:]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			slog.Warn("read failed while indexing",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return false
		}
	}

	if len(carry) > 0 {
		for _, token := range session.ProcessText(string(carry)) {
			emit(token)
		}
	}
	for _, token := range session.Finalize() {
		emit(token)
	}
	return true
}

// trailingValid returns the length of the longest prefix of b that ends
// on a UTF-8 rune boundary.
func trailingValid(b []byte) int {
	end := len(b)
	for i := 0; i < utf8.UTFMax && end > 0; i++ {
		r, size := utf8.DecodeLastRune(b[:end])
		if r != utf8.RuneError || size > 1 {
			return end
		}
		end--
	}
	if end == 0 {
		// Not valid UTF-8 at all; hand it over as-is rather than
		// buffering forever.
		return len(b)
	}
	return end
}
