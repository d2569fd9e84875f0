package index

import (
	"sort"
	"sync"
)

// PhraseVerifier re-checks whether a candidate file actually contains
// the phrase. The simple store cannot answer phrase queries from its own
// data, so it narrows candidates by token membership and delegates the
// final word to the verifier (typically a re-read of the file).
type PhraseVerifier func(path string, tokens []string) bool

// SimpleIndex is the token-set store family. It records which tokens a
// file contains but not where, trading phrase-query speed for memory.
// PositionalIndex is the default; this variant exists for
// memory-constrained deployments.
type SimpleIndex struct {
	mu       sync.RWMutex
	inverted map[string]map[string]struct{}
	files    map[string]map[string]struct{}
	verify   PhraseVerifier
}

var _ TokenStore = (*SimpleIndex)(nil)

// NewSimple creates an empty simple index. verify may be nil, in which
// case phrase queries of length >= 2 return only token-membership
// candidates unverified.
func NewSimple(verify PhraseVerifier) *SimpleIndex {
	return &SimpleIndex{
		inverted: make(map[string]map[string]struct{}),
		files:    make(map[string]map[string]struct{}),
		verify:   verify,
	}
}

// ReplaceTokens atomically replaces the token set for path.
func (x *SimpleIndex) ReplaceTokens(path string, tokens []string, oldHint []string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	var oldTokens []string
	if entry, ok := x.files[path]; ok {
		oldTokens = make([]string, 0, len(entry))
		for token := range entry {
			oldTokens = append(oldTokens, token)
		}
	} else {
		oldTokens = oldHint
	}

	for _, token := range oldTokens {
		x.removePostingLocked(token, path)
	}

	newEntry := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		if token == "" {
			continue
		}
		newEntry[token] = struct{}{}

		posting, ok := x.inverted[token]
		if !ok {
			posting = make(map[string]struct{})
			x.inverted[token] = posting
		}
		posting[path] = struct{}{}
	}

	if len(newEntry) == 0 {
		delete(x.files, path)
		return
	}
	x.files[path] = newEntry
}

// RemoveFile removes path from all postings and returns its tokens.
func (x *SimpleIndex) RemoveFile(path string) []string {
	x.mu.Lock()
	defer x.mu.Unlock()

	entry, ok := x.files[path]
	if !ok {
		return nil
	}
	tokens := make([]string, 0, len(entry))
	for token := range entry {
		tokens = append(tokens, token)
		x.removePostingLocked(token, path)
	}
	delete(x.files, path)
	sort.Strings(tokens)
	return tokens
}

func (x *SimpleIndex) removePostingLocked(token, path string) {
	posting, ok := x.inverted[token]
	if !ok {
		return
	}
	delete(posting, path)
	if len(posting) == 0 {
		delete(x.inverted, token)
	}
}

// Query returns the files whose posting contains token.
func (x *SimpleIndex) Query(token string) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	posting, ok := x.inverted[token]
	if !ok {
		return nil
	}
	paths := make([]string, 0, len(posting))
	for path := range posting {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// QueryPhrase intersects the postings of all tokens, then verifies each
// candidate through the configured verifier.
func (x *SimpleIndex) QueryPhrase(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	if len(tokens) == 1 {
		return x.Query(tokens[0])
	}

	candidates := x.intersect(tokens)
	if len(candidates) == 0 || x.verify == nil {
		return candidates
	}

	// Verification reads files; it must run outside the lock.
	verified := candidates[:0]
	for _, path := range candidates {
		if x.verify(path, tokens) {
			verified = append(verified, path)
		}
	}
	return verified
}

// intersect returns the sorted set of files containing every token.
func (x *SimpleIndex) intersect(tokens []string) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	first, ok := x.inverted[tokens[0]]
	if !ok {
		return nil
	}

	var result []string
candidates:
	for path := range first {
		for _, token := range tokens[1:] {
			posting, ok := x.inverted[token]
			if !ok {
				return nil
			}
			if _, ok := posting[path]; !ok {
				continue candidates
			}
		}
		result = append(result, path)
	}
	sort.Strings(result)
	return result
}

// TokensOf returns the tokens recorded for path.
func (x *SimpleIndex) TokensOf(path string) ([]string, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	entry, ok := x.files[path]
	if !ok {
		return nil, false
	}
	tokens := make([]string, 0, len(entry))
	for token := range entry {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens, true
}

// Dump returns a snapshot of token -> sorted file list.
func (x *SimpleIndex) Dump() map[string][]string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make(map[string][]string, len(x.inverted))
	for token, posting := range x.inverted {
		paths := make([]string, 0, len(posting))
		for path := range posting {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		out[token] = paths
	}
	return out
}

// Clear removes all state.
func (x *SimpleIndex) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.inverted = make(map[string]map[string]struct{})
	x.files = make(map[string]map[string]struct{})
}
