// Package fileindexer is the public surface of FileIndexer. It wires
// the walker, the file processor, the indexing scheduler, the positional
// index store, and the filesystem watcher into a single service value
// answering token and exact-phrase queries.
package fileindexer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/czadmedia/FileIndexer/internal/ferrors"
	"github.com/czadmedia/FileIndexer/internal/index"
	"github.com/czadmedia/FileIndexer/internal/scheduler"
	"github.com/czadmedia/FileIndexer/internal/watcher"
)

// ErrServiceClosed is returned by operations that require a live
// service after Close.
var ErrServiceClosed = ferrors.New(ferrors.ErrCodeServiceClosed, "service is closed", nil)

// FileProcessor is the processing contract the service consumes.
type FileProcessor interface {
	// CanProcess reports whether path is currently indexable.
	CanProcess(path string) bool

	// ProcessFile returns the distinct tokens of the file, or nil when
	// the file cannot be read.
	ProcessFile(path string) []string

	// ProcessFileWithPositions returns every token's positions, or nil
	// when the file cannot be read.
	ProcessFileWithPositions(path string) index.TokenPositions
}

// PathWalker yields the regular files rooted at a path.
type PathWalker interface {
	Files(root string) []string
}

// Tokenizer matches the tokenizer package contract; re-declared here so
// callers can inject their own without importing internals.
type Tokenizer interface {
	Tokens(text string) []string
	Normalize(token string) string
}

// Service is the file-indexing and phrase-search facade. The zero value
// is not usable; construct with New. Multiple independent Service
// values may coexist.
type Service struct {
	tok      Tokenizer
	proc     FileProcessor
	store    index.Store
	walker   PathWalker
	watcher  watcher.Watcher
	sched    *scheduler.Scheduler
	cache    *lru.Cache[string, cacheEntry]
	applyFn  func(path string)
	debounce time.Duration

	mu      sync.Mutex
	closed  bool
	watchWG sync.WaitGroup
}

type cacheEntry struct {
	gen   uint64
	paths []string
}

// Index walks each root and schedules every regular file found for
// indexing. It returns once all files are scheduled; use Query or the
// other read operations to await completion.
func (s *Service) Index(roots ...string) {
	var g errgroup.Group
	for _, root := range roots {
		root := root
		g.Go(func() error {
			for _, path := range s.walker.Files(root) {
				s.schedule(path)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// StartWatching begins watching the given roots, scheduling reindexing
// on create and modify events and removing deleted files from the
// index. Fails with ErrAlreadyWatching while a watch is active.
func (s *Service) StartWatching(roots ...string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrServiceClosed
	}
	s.mu.Unlock()

	if err := s.watcher.Start(roots...); err != nil {
		return err
	}

	events := s.watcher.Events()
	if s.debounce > 0 {
		// Let bursts settle before they reach the scheduler. The
		// scheduler coalesces per-file on its own, so this stage is
		// off unless configured.
		deb := watcher.NewDebouncer(s.debounce)
		s.watchWG.Add(2)
		go func() {
			defer s.watchWG.Done()
			for ev := range events {
				deb.Add(ev)
			}
			deb.Stop()
		}()
		go func() {
			defer s.watchWG.Done()
			for ev := range deb.Events() {
				s.dispatch(ev)
			}
		}()
		return nil
	}

	s.watchWG.Add(1)
	go func() {
		defer s.watchWG.Done()
		for ev := range events {
			s.dispatch(ev)
		}
	}()
	return nil
}

// dispatch routes one filesystem event into the pipeline.
func (s *Service) dispatch(ev watcher.Event) {
	switch ev.Op {
	case watcher.OpCreate:
		if ev.IsDir {
			// A created directory may already contain files (or be a
			// moved-in subtree); walk it so none are missed.
			for _, path := range s.walker.Files(ev.Path) {
				s.schedule(path)
			}
			return
		}
		s.schedule(ev.Path)
	case watcher.OpModify:
		s.schedule(ev.Path)
	case watcher.OpDelete:
		// Deletions skip the scheduler: removal is cheap and the
		// worker-side CanProcess gate handles the race with any
		// in-flight reindex of the same path. No batch starts, so the
		// generation-tagged query cache is purged explicitly.
		s.store.RemoveFile(ev.Path)
		if s.cache != nil {
			s.cache.Purge()
		}
	}
}

// schedule submits one file to the scheduler with the store-mutation
// closure.
func (s *Service) schedule(path string) {
	s.sched.Schedule(path, s.proc, s.applyFn)
}

// apply is the per-file store mutation run by scheduler workers. It
// re-checks processability inside the critical path so a deletion that
// raced with this run removes the entry instead of resurrecting it.
func (s *Service) apply(path string) {
	if !s.proc.CanProcess(path) {
		s.store.RemoveFile(path)
		return
	}

	// Collect the old token set before processing; the store falls
	// back to it if the live entry is gone by the time we swap.
	oldTokens, _ := s.store.TokensOf(path)

	switch st := s.store.(type) {
	case index.PositionalStore:
		positions := s.proc.ProcessFileWithPositions(path)
		if positions == nil {
			s.store.RemoveFile(path)
			return
		}
		st.ReplacePositions(path, positions, oldTokens)
	case index.TokenStore:
		tokens := s.proc.ProcessFile(path)
		if tokens == nil {
			s.store.RemoveFile(path)
			return
		}
		st.ReplaceTokens(path, tokens, oldTokens)
	default:
		slog.Warn("store supports no known mutation variant",
			slog.String("path", path))
	}
}

// Query returns the files containing the normalized form of text. It
// waits for all indexing work admitted before the call to complete.
// Blank text returns an empty result without waiting.
func (s *Service) Query(ctx context.Context, text string) ([]string, error) {
	token := s.tok.Normalize(text)
	if token == "" {
		return nil, nil
	}
	if err := s.quiesce(ctx); err != nil {
		return nil, err
	}

	key := "q\x00" + token
	if paths, ok := s.cached(key); ok {
		return paths, nil
	}
	paths := s.store.Query(token)
	s.remember(key, paths)
	return paths, nil
}

// QueryPhrase tokenizes text and returns the files containing the
// resulting tokens at consecutive positions.
func (s *Service) QueryPhrase(ctx context.Context, text string) ([]string, error) {
	return s.queryPhrase(ctx, s.tok.Tokens(text))
}

// QueryPhraseTokens normalizes each token individually and runs the
// same phrase query.
func (s *Service) QueryPhraseTokens(ctx context.Context, tokens []string) ([]string, error) {
	normalized := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if n := s.tok.Normalize(t); n != "" {
			normalized = append(normalized, n)
		}
	}
	return s.queryPhrase(ctx, normalized)
}

func (s *Service) queryPhrase(ctx context.Context, tokens []string) ([]string, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	if err := s.quiesce(ctx); err != nil {
		return nil, err
	}

	key := "p\x00"
	for _, t := range tokens {
		key += t + "\x00"
	}
	if paths, ok := s.cached(key); ok {
		return paths, nil
	}
	paths := s.store.QueryPhrase(tokens)
	s.remember(key, paths)
	return paths, nil
}

// Wait blocks until every file scheduled before the call has finished
// its last scheduled run, or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	return s.quiesce(ctx)
}

// quiesce waits until every file scheduled before this call finished
// its last scheduled run. Work scheduled concurrently with the wait may
// or may not be observed.
func (s *Service) quiesce(ctx context.Context) error {
	select {
	case <-s.sched.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cached returns a cache hit only when no indexing batch has started
// since the entry was stored. Watcher deletions purge the whole cache.
func (s *Service) cached(key string) ([]string, bool) {
	if s.cache == nil {
		return nil, false
	}
	entry, ok := s.cache.Get(key)
	if !ok || entry.gen != s.sched.Generation() {
		return nil, false
	}
	// Hand out a copy; callers own their result slices.
	paths := make([]string, len(entry.paths))
	copy(paths, entry.paths)
	return paths, true
}

func (s *Service) remember(key string, paths []string) {
	if s.cache == nil {
		return
	}
	owned := make([]string, len(paths))
	copy(owned, paths)
	s.cache.Add(key, cacheEntry{gen: s.sched.Generation(), paths: owned})
}

// Dump returns a non-blocking snapshot of token -> files.
func (s *Service) Dump() map[string][]string {
	return s.store.Dump()
}

// IsWatching reports whether a filesystem watch is active.
func (s *Service) IsWatching() bool {
	return s.watcher.IsWatching()
}

// Close stops the watcher and then the scheduler. Idempotent; the index
// store itself holds no releasable resources.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	_ = s.watcher.Stop()
	s.watchWG.Wait()
	s.sched.Close()
	return nil
}
