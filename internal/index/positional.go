package index

import (
	"sort"
	"sync"
)

// PositionalIndex is the default store. It keeps two views of the same
// data: the inverted index (token -> file -> positions) and the file
// index (file -> token -> positions), sharing position slices between
// them so the views cannot disagree.
//
// A single RWMutex guards both maps. Store operations are pure map work
// with no I/O or callbacks under the lock, so contention is bounded by
// the scheduler's worker count.
type PositionalIndex struct {
	mu       sync.RWMutex
	inverted map[string]map[string]Positions
	files    map[string]map[string]Positions
}

var _ PositionalStore = (*PositionalIndex)(nil)

// NewPositional creates an empty positional index.
func NewPositional() *PositionalIndex {
	return &PositionalIndex{
		inverted: make(map[string]map[string]Positions),
		files:    make(map[string]map[string]Positions),
	}
}

// ReplacePositions atomically replaces the entry for path.
func (x *PositionalIndex) ReplacePositions(path string, positions TokenPositions, oldHint []string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	// Determine the token set to clean up: prefer the live entry, fall
	// back to the caller's hint when the entry was lost.
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

	newEntry := make(map[string]Positions, len(positions))
	for token, list := range positions {
		if token == "" || len(list) == 0 {
			// Empty lists are pruned on insert so Query never
			// advertises a token with no occurrences.
			continue
		}
		owned := make(Positions, len(list))
		copy(owned, list)
		newEntry[token] = owned

		posting, ok := x.inverted[token]
		if !ok {
			posting = make(map[string]Positions)
			x.inverted[token] = posting
		}
		posting[path] = owned
	}

	if len(newEntry) == 0 {
		delete(x.files, path)
		return
	}
	x.files[path] = newEntry
}

// RemoveFile removes path from all postings and returns its tokens.
func (x *PositionalIndex) RemoveFile(path string) []string {
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

// removePostingLocked drops path from one token's posting, pruning the
// token entirely when its posting empties.
func (x *PositionalIndex) removePostingLocked(token, path string) {
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
func (x *PositionalIndex) Query(token string) []string {
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

// QueryPhrase returns the files containing the tokens at consecutive
// positions.
//
// For each file in the first token's posting, the first token's
// positions are walked in order; a start position s matches when every
// subsequent token i has position s+i in the same file. The first match
// admits the file. Membership is answered by binary search on the
// sorted position lists.
func (x *PositionalIndex) QueryPhrase(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	if len(tokens) == 1 {
		return x.Query(tokens[0])
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	first, ok := x.inverted[tokens[0]]
	if !ok {
		return nil
	}

	// Every token must occur somewhere for any file to match.
	postings := make([]map[string]Positions, 0, len(tokens)-1)
	for _, token := range tokens[1:] {
		posting, ok := x.inverted[token]
		if !ok {
			return nil
		}
		postings = append(postings, posting)
	}

	var result []string
candidates:
	for path, starts := range first {
		rest := make([]Positions, 0, len(postings))
		for _, posting := range postings {
			list, ok := posting[path]
			if !ok {
				continue candidates
			}
			rest = append(rest, list)
		}

		for _, start := range starts {
			matched := true
			for i, list := range rest {
				if !containsPosition(list, start+i+1) {
					matched = false
					break
				}
			}
			if matched {
				result = append(result, path)
				break
			}
		}
	}
	sort.Strings(result)
	return result
}

// containsPosition reports whether the sorted list contains pos.
func containsPosition(list Positions, pos int) bool {
	i := sort.SearchInts(list, pos)
	return i < len(list) && list[i] == pos
}

// TokensOf returns the tokens recorded for path.
func (x *PositionalIndex) TokensOf(path string) ([]string, bool) {
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

// PositionsOf returns the position list for one (token, file) pair.
func (x *PositionalIndex) PositionsOf(path, token string) (Positions, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	entry, ok := x.files[path]
	if !ok {
		return nil, false
	}
	list, ok := entry[token]
	if !ok {
		return nil, false
	}
	owned := make(Positions, len(list))
	copy(owned, list)
	return owned, true
}

// Dump returns a snapshot of token -> sorted file list.
func (x *PositionalIndex) Dump() map[string][]string {
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

// DumpPositions returns a positional snapshot for debugging.
func (x *PositionalIndex) DumpPositions() map[string]map[string]Positions {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make(map[string]map[string]Positions, len(x.inverted))
	for token, posting := range x.inverted {
		files := make(map[string]Positions, len(posting))
		for path, list := range posting {
			owned := make(Positions, len(list))
			copy(owned, list)
			files[path] = owned
		}
		out[token] = files
	}
	return out
}

// Clear removes all state.
func (x *PositionalIndex) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.inverted = make(map[string]map[string]Positions)
	x.files = make(map[string]map[string]Positions)
}
