// Package scheduler executes indexing work on a fixed worker pool while
// enforcing two per-file guarantees: at most one task for a given file
// runs at any instant, and a burst of requests for the same file
// coalesces into at most one queued re-run (latest wins). A batch
// completion channel lets query callers wait for quiescence.
package scheduler

import (
	"log/slog"
	"runtime"
	"sync"
)

// Processor gates scheduling: files it rejects are never enqueued.
type Processor interface {
	CanProcess(path string) bool
}

// Options configures a Scheduler.
type Options struct {
	// Workers is the worker pool size. Default: max(2, NumCPU).
	Workers int
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
		if o.Workers < 2 {
			o.Workers = 2
		}
	}
	return o
}

type task struct {
	path  string
	proc  Processor
	apply func(path string)
}

// Scheduler is the indexing work executor.
//
// All bookkeeping (the in-flight set, the pending-rerun map, the
// outstanding batch set, and the batch channel) mutates under a single
// mutex, so the batch channel is installed and closed exactly once per
// batch.
type Scheduler struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []task
	inFlight map[string]struct{}
	pending  map[string]task
	batch    map[string]struct{}
	done     chan struct{} // nil while idle
	gen      uint64        // increments when a new batch begins
	closed   bool

	wg sync.WaitGroup
}

// closedChan is returned by Done when no work is outstanding.
var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// New creates a Scheduler and starts its worker pool.
func New(opts Options) *Scheduler {
	opts = opts.WithDefaults()
	s := &Scheduler{
		inFlight: make(map[string]struct{}),
		pending:  make(map[string]task),
		batch:    make(map[string]struct{}),
	}
	s.cond = sync.NewCond(&s.mu)

	s.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go s.worker()
	}
	return s
}

// Schedule requests that path be (re-)indexed by apply. If the file is
// already being processed, the request is parked as its single pending
// re-run, overwriting any earlier parked request. Calls after Close are
// silently dropped.
func (s *Scheduler) Schedule(path string, proc Processor, apply func(string)) {
	if proc == nil || !proc.CanProcess(path) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if _, busy := s.inFlight[path]; busy {
		// Latest wins: at most one deferred re-run per file.
		s.pending[path] = task{path: path, proc: proc, apply: apply}
		return
	}

	s.admitLocked(task{path: path, proc: proc, apply: apply})
}

// admitLocked registers path with the current batch (starting a new one
// if the outstanding set is empty) and enqueues the task.
func (s *Scheduler) admitLocked(t task) {
	s.inFlight[t.path] = struct{}{}
	if len(s.batch) == 0 {
		s.done = make(chan struct{})
		s.gen++
	}
	s.batch[t.path] = struct{}{}
	s.queue = append(s.queue, t)
	s.cond.Signal()
}

// Done returns a channel that closes when every file in the current
// batch has finished its last scheduled run. When no work is
// outstanding the returned channel is already closed.
func (s *Scheduler) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return s.done
	}
	return closedChan
}

// Generation returns a counter that increments each time a new batch
// begins. Callers can use it to detect that the index may have changed
// since a previous read.
func (s *Scheduler) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Close stops accepting work, drops queued tasks and pending re-runs,
// and waits for in-flight applies to finish. Idempotent.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.queue = nil
	s.pending = make(map[string]task)
	s.cond.Broadcast()
	s.mu.Unlock()

	s.wg.Wait()

	// Tasks dropped from the queue never reach a worker; release any
	// waiters on the batch channel.
	s.mu.Lock()
	s.inFlight = make(map[string]struct{})
	s.batch = make(map[string]struct{})
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	s.mu.Unlock()
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		t := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.run(t)
	}
}

// run executes one task and advances the per-file state machine:
// honor a parked re-run without leaving the batch, or unregister the
// file and complete the batch when it was the last one.
func (s *Scheduler) run(t task) {
	s.invoke(t)

	for {
		s.mu.Lock()
		next, rerun := s.pending[t.path]
		if rerun {
			delete(s.pending, t.path)
		}
		if !rerun || s.closed {
			s.finishLocked(t.path)
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		// Re-entry gate, checked outside the lock: the file may have
		// been deleted while this run was in flight.
		if next.proc.CanProcess(next.path) {
			s.mu.Lock()
			if s.closed {
				s.finishLocked(t.path)
			} else {
				// The path stays in inFlight and in the batch across
				// the hand-off, so concurrent Schedule calls keep
				// parking into pending and Done waiters keep waiting.
				s.queue = append(s.queue, next)
				s.cond.Signal()
			}
			s.mu.Unlock()
			return
		}
		// Rejected re-run; a newer request may have been parked while
		// the gate was checked, so look again before unregistering.
	}
}

// finishLocked removes path from the in-flight and batch sets, closing
// the batch channel when the outstanding set empties.
func (s *Scheduler) finishLocked(path string) {
	delete(s.inFlight, path)
	delete(s.batch, path)
	if len(s.batch) == 0 && s.done != nil {
		close(s.done)
		s.done = nil
	}
}

// invoke runs the apply closure, containing panics so a failing file
// never takes down the pool.
func (s *Scheduler) invoke(t task) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("indexing task panicked",
				slog.String("path", t.path),
				slog.Any("panic", r))
		}
	}()
	t.apply(t.path)
}
