package fileindexer

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/czadmedia/FileIndexer/internal/index"
	"github.com/czadmedia/FileIndexer/internal/processor"
	"github.com/czadmedia/FileIndexer/internal/scheduler"
	"github.com/czadmedia/FileIndexer/internal/tokenizer"
	"github.com/czadmedia/FileIndexer/internal/walker"
	"github.com/czadmedia/FileIndexer/internal/watcher"
)

// DefaultCacheSize is the default query result cache capacity.
const DefaultCacheSize = 256

// Option customizes a Service.
type Option func(*builder)

type builder struct {
	tok         Tokenizer
	fullTok     tokenizer.Tokenizer
	proc        FileProcessor
	store       index.Store
	walker      PathWalker
	watcher     watcher.Watcher
	workers     int
	cacheSize   int
	excludes    []string
	maxFileSize int64
	debounce    time.Duration
	progress    func(path string)
}

// WithTokenizer injects a custom tokenizer. When proc is not also
// injected, the default processor is built on the full tokenizer
// contract, so custom tokenizers that should drive the default
// processor must implement tokenizer.Tokenizer.
func WithTokenizer(tok Tokenizer) Option {
	return func(b *builder) {
		b.tok = tok
		if full, ok := tok.(tokenizer.Tokenizer); ok {
			b.fullTok = full
		}
	}
}

// WithProcessor injects a custom file processor.
func WithProcessor(proc FileProcessor) Option {
	return func(b *builder) { b.proc = proc }
}

// WithStore injects a custom index store. The store must implement
// index.PositionalStore or index.TokenStore; the service dispatches to
// whichever mutation family the store supports.
func WithStore(store index.Store) Option {
	return func(b *builder) { b.store = store }
}

// WithWalker injects a custom path walker.
func WithWalker(w PathWalker) Option {
	return func(b *builder) { b.walker = w }
}

// WithWatcher injects a custom filesystem watcher.
func WithWatcher(w watcher.Watcher) Option {
	return func(b *builder) { b.watcher = w }
}

// WithWorkers sets the scheduler worker pool size.
func WithWorkers(n int) Option {
	return func(b *builder) { b.workers = n }
}

// WithCacheSize sets the query result cache capacity. Zero or negative
// disables the cache.
func WithCacheSize(n int) Option {
	return func(b *builder) { b.cacheSize = n }
}

// WithExcludePatterns sets the default walker's exclude globs.
func WithExcludePatterns(patterns ...string) Option {
	return func(b *builder) { b.excludes = patterns }
}

// WithMaxFileSize sets the default walker's file size limit in bytes.
func WithMaxFileSize(limit int64) Option {
	return func(b *builder) { b.maxFileSize = limit }
}

// WithDebounce inserts a settling stage between the watcher and the
// scheduler: events for a path are held until it has been quiet for
// the given window, with rapid sequences merged into one event. Zero
// disables the stage; the scheduler still coalesces per-file either
// way.
func WithDebounce(window time.Duration) Option {
	return func(b *builder) { b.debounce = window }
}

// WithProgressFunc registers a callback invoked after each file's
// indexing run completes. Used by the CLI for progress reporting.
func WithProgressFunc(fn func(path string)) Option {
	return func(b *builder) { b.progress = fn }
}

// New constructs a Service. With no options it indexes with the default
// word tokenizer into a positional store, using max(2, NumCPU) workers.
func New(opts ...Option) (*Service, error) {
	b := &builder{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(b)
	}

	if b.fullTok == nil {
		b.fullTok = tokenizer.NewWord()
	}
	if b.tok == nil {
		b.tok = b.fullTok
	}
	if b.proc == nil {
		b.proc = processor.New(b.fullTok, processor.Options{})
	}
	if b.store == nil {
		b.store = index.NewPositional()
	}
	if b.walker == nil {
		b.walker = walker.New(walker.Options{
			ExcludePatterns: b.excludes,
			MaxFileSize:     b.maxFileSize,
		})
	}
	if b.watcher == nil {
		b.watcher = watcher.NewFS(watcher.Options{})
	}

	s := &Service{
		tok:      b.tok,
		proc:     b.proc,
		store:    b.store,
		walker:   b.walker,
		watcher:  b.watcher,
		sched:    scheduler.New(scheduler.Options{Workers: b.workers}),
		debounce: b.debounce,
	}

	if b.cacheSize > 0 {
		cache, err := lru.New[string, cacheEntry](b.cacheSize)
		if err != nil {
			return nil, err
		}
		s.cache = cache
	}

	if b.progress != nil {
		inner := s.apply
		progress := b.progress
		s.applyFn = func(path string) {
			inner(path)
			progress(path)
		}
	} else {
		s.applyFn = s.apply
	}

	return s, nil
}
