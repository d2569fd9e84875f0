package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProcessor gates scheduling via a settable answer.
type fakeProcessor struct {
	allow atomic.Bool
}

func newFakeProcessor(allow bool) *fakeProcessor {
	p := &fakeProcessor{}
	p.allow.Store(allow)
	return p
}

func (p *fakeProcessor) CanProcess(string) bool {
	return p.allow.Load()
}

func awaitDone(t *testing.T, s *Scheduler) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for batch completion")
	}
}

func TestSchedule_RunsApply(t *testing.T) {
	s := New(Options{Workers: 2})
	defer s.Close()

	var got atomic.Value
	s.Schedule("/f1", newFakeProcessor(true), func(path string) {
		got.Store(path)
	})
	awaitDone(t, s)

	assert.Equal(t, "/f1", got.Load())
}

func TestSchedule_RejectedByProcessor(t *testing.T) {
	s := New(Options{Workers: 2})
	defer s.Close()

	s.Schedule("/f1", newFakeProcessor(false), func(string) {
		t.Error("apply must not run for rejected files")
	})

	// The no-op schedule leaves the scheduler idle.
	awaitDone(t, s)
}

func TestDone_IdleReturnsCompletedHandle(t *testing.T) {
	s := New(Options{Workers: 2})
	defer s.Close()

	select {
	case <-s.Done():
	default:
		t.Fatal("idle scheduler must return a completed handle")
	}
}

func TestSchedule_AtMostOneConcurrentRunPerFile(t *testing.T) {
	// Given: an apply that records its own concurrency
	s := New(Options{Workers: 4})
	defer s.Close()

	var current, peak, total atomic.Int32
	apply := func(string) {
		c := current.Add(1)
		for {
			p := peak.Load()
			if c <= p || peak.CompareAndSwap(p, c) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		current.Add(-1)
		total.Add(1)
	}

	// When: the same file is scheduled from many goroutines
	proc := newFakeProcessor(true)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Schedule("/same", proc, apply)
		}()
	}
	wg.Wait()
	awaitDone(t, s)

	// Then: runs never overlapped, and the burst coalesced to at most
	// two runs (one in flight plus one latest-wins rerun)
	assert.Equal(t, int32(1), peak.Load())
	assert.LessOrEqual(t, total.Load(), int32(2))
	assert.GreaterOrEqual(t, total.Load(), int32(1))
}

func TestSchedule_LatestWins(t *testing.T) {
	// Given: a first run blocked on a gate
	s := New(Options{Workers: 2})
	defer s.Close()

	gate := make(chan struct{})
	started := make(chan struct{})
	var runs []string
	var mu sync.Mutex
	proc := newFakeProcessor(true)

	s.Schedule("/f", proc, func(string) {
		close(started)
		<-gate
		mu.Lock()
		runs = append(runs, "first")
		mu.Unlock()
	})
	<-started

	// When: three more requests arrive while the first is in flight
	for _, name := range []string{"second", "third", "fourth"} {
		name := name
		s.Schedule("/f", proc, func(string) {
			mu.Lock()
			runs = append(runs, name)
			mu.Unlock()
		})
	}
	close(gate)
	awaitDone(t, s)

	// Then: only the first and the last-parked request ran
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "fourth"}, runs)
}

func TestDone_CompletesWhenBatchDrains(t *testing.T) {
	s := New(Options{Workers: 4})
	defer s.Close()

	var total atomic.Int32
	proc := newFakeProcessor(true)
	for _, path := range []string{"/a", "/b", "/c", "/d", "/e"} {
		s.Schedule(path, proc, func(string) {
			time.Sleep(2 * time.Millisecond)
			total.Add(1)
		})
	}

	awaitDone(t, s)
	assert.Equal(t, int32(5), total.Load())
}

func TestDone_RerunKeepsBatchOpen(t *testing.T) {
	// Given: a file whose first run parks a rerun before finishing
	s := New(Options{Workers: 2})
	defer s.Close()

	gate := make(chan struct{})
	started := make(chan struct{})
	rerunRan := make(chan struct{})
	proc := newFakeProcessor(true)

	s.Schedule("/f", proc, func(string) {
		close(started)
		<-gate
	})
	<-started
	done := s.Done()
	s.Schedule("/f", proc, func(string) {
		close(rerunRan)
	})

	// When: the first run finishes
	close(gate)

	// Then: the batch handle completes only after the rerun also ran
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for batch completion")
	}
	select {
	case <-rerunRan:
	default:
		t.Fatal("batch completed before the parked rerun executed")
	}
}

func TestSchedule_PanickingApplyAdvancesState(t *testing.T) {
	s := New(Options{Workers: 2})
	defer s.Close()

	proc := newFakeProcessor(true)
	s.Schedule("/boom", proc, func(string) {
		panic("broken file")
	})
	awaitDone(t, s)

	// The pool survives and accepts further work.
	ran := make(chan struct{})
	s.Schedule("/ok", proc, func(string) { close(ran) })
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not recover after a panicking apply")
	}
}

func TestSchedule_RerunDroppedWhenFileVanishes(t *testing.T) {
	// Given: a rerun parked while the file is processable
	s := New(Options{Workers: 2})
	defer s.Close()

	gate := make(chan struct{})
	started := make(chan struct{})
	proc := newFakeProcessor(true)

	s.Schedule("/f", proc, func(string) {
		close(started)
		<-gate
	})
	<-started
	s.Schedule("/f", proc, func(string) {
		t.Error("rerun must not execute after the file vanished")
	})

	// When: the file vanishes before the first run completes
	proc.allow.Store(false)
	close(gate)

	// Then: the batch still drains
	awaitDone(t, s)
}

func TestClose_DropsNewWork(t *testing.T) {
	s := New(Options{Workers: 2})
	s.Close()

	s.Schedule("/f", newFakeProcessor(true), func(string) {
		t.Error("apply must not run after close")
	})
	time.Sleep(20 * time.Millisecond)
}

func TestClose_Idempotent(t *testing.T) {
	s := New(Options{Workers: 2})
	s.Close()
	s.Close()
}

func TestClose_ReleasesDoneWaiters(t *testing.T) {
	s := New(Options{Workers: 1})

	gate := make(chan struct{})
	started := make(chan struct{})
	proc := newFakeProcessor(true)
	s.Schedule("/slow", proc, func(string) {
		close(started)
		<-gate
	})
	<-started
	done := s.Done()

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(gate)
	}()
	s.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("close left batch waiters hanging")
	}
}

func TestGeneration_IncrementsPerBatch(t *testing.T) {
	s := New(Options{Workers: 2})
	defer s.Close()

	require.Equal(t, uint64(0), s.Generation())

	proc := newFakeProcessor(true)
	s.Schedule("/a", proc, func(string) {})
	awaitDone(t, s)
	first := s.Generation()

	s.Schedule("/b", proc, func(string) {})
	awaitDone(t, s)

	assert.Equal(t, uint64(1), first)
	assert.Equal(t, uint64(2), s.Generation())
}
