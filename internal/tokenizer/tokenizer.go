// Package tokenizer defines the tokenization contract the indexer
// consumes and a default word tokenizer. The index store treats tokens
// as opaque keys; all normalization happens here.
package tokenizer

import (
	"strings"
	"unicode"
)

// Session is a stateful tokenization run over a stream of text chunks.
// A token split across a chunk boundary is held until the next chunk or
// Finalize completes it.
type Session interface {
	// ProcessText tokenizes the next chunk and returns the tokens it
	// completed, in order.
	ProcessText(chunk string) []string

	// Finalize flushes any held partial token. The session must not be
	// used afterwards.
	Finalize() []string
}

// Tokenizer produces normalized tokens from text.
type Tokenizer interface {
	// Tokens tokenizes a complete text in one shot.
	Tokens(text string) []string

	// Normalize normalizes a single already-split token. The default
	// implementation lowercases and trims whitespace.
	Normalize(token string) string

	// NewSession starts a stateful session for chunked input.
	NewSession() Session
}

// Word is the default tokenizer. It splits on any rune that is neither
// a letter nor a digit and lowercases the result, so "2.0" tokenizes to
// ["2", "0"].
type Word struct{}

var _ Tokenizer = Word{}

// NewWord returns the default word tokenizer.
func NewWord() Word {
	return Word{}
}

// Tokens tokenizes text in one shot.
func (w Word) Tokens(text string) []string {
	s := w.NewSession()
	tokens := s.ProcessText(text)
	return append(tokens, s.Finalize()...)
}

// Normalize lowercases and trims a single token.
func (w Word) Normalize(token string) string {
	return strings.ToLower(strings.TrimSpace(token))
}

// NewSession starts a stateful word-splitting session.
func (w Word) NewSession() Session {
	return &wordSession{}
}

type wordSession struct {
	partial strings.Builder
}

func (s *wordSession) ProcessText(chunk string) []string {
	var tokens []string
	for _, r := range chunk {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			s.partial.WriteRune(unicode.ToLower(r))
			continue
		}
		if s.partial.Len() > 0 {
			tokens = append(tokens, s.partial.String())
			s.partial.Reset()
		}
	}
	return tokens
}

func (s *wordSession) Finalize() []string {
	if s.partial.Len() == 0 {
		return nil
	}
	token := s.partial.String()
	s.partial.Reset()
	return []string{token}
}
