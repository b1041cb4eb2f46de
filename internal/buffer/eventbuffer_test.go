package buffer

import (
	"slices"
	"sync"
	"testing"
	"time"
)

// batchRecorder collects delivered batches for assertions.
type batchRecorder struct {
	mu      sync.Mutex
	batches [][]int
	ch      chan []int
}

func newBatchRecorder() *batchRecorder {
	return &batchRecorder{ch: make(chan []int, 64)}
}

func (r *batchRecorder) flush(batch []int) {
	r.mu.Lock()
	r.batches = append(r.batches, slices.Clone(batch))
	r.mu.Unlock()
	r.ch <- batch
}

func (r *batchRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

// manualTicker lets tests fire flush ticks deterministically.
type manualTicker struct {
	mu      sync.Mutex
	ch      chan time.Time
	created int
	stopped int
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time)}
}

func (m *manualTicker) factory(time.Duration) (<-chan time.Time, func()) {
	m.mu.Lock()
	m.created++
	m.mu.Unlock()
	return m.ch, func() {
		m.mu.Lock()
		m.stopped++
		m.mu.Unlock()
	}
}

func (m *manualTicker) fire() {
	m.ch <- time.Now()
}

func newTestBuffer(rec *batchRecorder, ticker *manualTicker) *EventBuffer[int] {
	b := New(rec.flush)
	b.newTicker = ticker.factory
	return b
}

func waitBatch(t *testing.T, rec *batchRecorder) []int {
	t.Helper()
	select {
	case batch := <-rec.ch:
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for flush")
		return nil
	}
}

func TestEventBuffer_TickFlushesInPushOrder(t *testing.T) {
	rec := newBatchRecorder()
	ticker := newManualTicker()
	b := newTestBuffer(rec, ticker)
	b.Start()
	defer b.Stop()

	b.Push(1)
	b.Push(2)
	ticker.fire()

	got := waitBatch(t, rec)
	if !slices.Equal(got, []int{1, 2}) {
		t.Fatalf("batch = %v, want [1 2]", got)
	}

	// An empty tick must not invoke the callback.
	ticker.fire()
	ticker.fire()
	if n := rec.count(); n != 1 {
		t.Fatalf("flush count = %d, want 1", n)
	}
}

func TestEventBuffer_EmptyFlushIsNoop(t *testing.T) {
	rec := newBatchRecorder()
	b := New(rec.flush)

	b.Flush()
	if n := rec.count(); n != 0 {
		t.Fatalf("flush count = %d, want 0", n)
	}
}

func TestEventBuffer_StopFlushesExactlyOnce(t *testing.T) {
	rec := newBatchRecorder()
	ticker := newManualTicker()
	b := newTestBuffer(rec, ticker)
	b.Start()

	b.Push(3)
	b.Stop()

	if n := rec.count(); n != 1 {
		t.Fatalf("flush count after Stop = %d, want 1", n)
	}
	got := <-rec.ch
	if !slices.Equal(got, []int{3}) {
		t.Fatalf("final batch = %v, want [3]", got)
	}

	b.Stop()
	if n := rec.count(); n != 1 {
		t.Fatalf("flush count after second Stop = %d, want 1", n)
	}
	if ticker.stopped != 1 {
		t.Fatalf("ticker stopped %d times, want 1", ticker.stopped)
	}
}

func TestEventBuffer_StopWithoutStartStillFlushes(t *testing.T) {
	rec := newBatchRecorder()
	b := New(rec.flush)

	b.Push(7)
	b.Stop()

	if n := rec.count(); n != 1 {
		t.Fatalf("flush count = %d, want 1", n)
	}
}

func TestEventBuffer_StartIsIdempotent(t *testing.T) {
	rec := newBatchRecorder()
	ticker := newManualTicker()
	b := newTestBuffer(rec, ticker)

	b.Start()
	b.Start()
	defer b.Stop()

	if ticker.created != 1 {
		t.Fatalf("tickers created = %d, want 1", ticker.created)
	}
	if !b.Running() {
		t.Fatal("expected buffer to be running")
	}
}

func TestEventBuffer_PendingTracksUnflushed(t *testing.T) {
	rec := newBatchRecorder()
	b := New(rec.flush)

	for i := 0; i < 5; i++ {
		b.Push(i)
	}
	if got := b.Pending(); got != 5 {
		t.Fatalf("Pending() = %d, want 5", got)
	}

	b.Flush()
	<-rec.ch
	if got := b.Pending(); got != 0 {
		t.Fatalf("Pending() after flush = %d, want 0", got)
	}
}

func TestEventBuffer_RealTimerFlush(t *testing.T) {
	rec := newBatchRecorder()
	b := New(rec.flush, Config{FlushInterval: 10 * time.Millisecond})
	b.Start()
	defer b.Stop()

	b.Push(1)
	b.Push(2)

	got := waitBatch(t, rec)
	if !slices.Equal(got, []int{1, 2}) {
		t.Fatalf("batch = %v, want [1 2]", got)
	}
}

func TestEventBuffer_ConcurrentPush(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[int]int)
	b := New(func(batch []int) {
		mu.Lock()
		defer mu.Unlock()
		for _, v := range batch {
			seen[v]++
		}
	}, Config{FlushInterval: 2 * time.Millisecond})
	b.Start()

	const workers = 10
	const perWorker = 100
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				b.Push(w*perWorker + i)
			}
		}(w)
	}
	wg.Wait()
	b.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != workers*perWorker {
		t.Fatalf("delivered %d distinct items, want %d", len(seen), workers*perWorker)
	}
	for v, n := range seen {
		if n != 1 {
			t.Fatalf("item %d delivered %d times", v, n)
		}
	}
}
