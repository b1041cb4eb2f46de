package buffer

import (
	"sync"
	"time"

	"github.com/tinytelemetry/netglobe/internal/model"
)

// Config holds tunable parameters for the event buffer.
type Config struct {
	FlushInterval time.Duration
}

// EventBuffer decouples producers pushing at arbitrary rates from a consumer
// that wants batches on a fixed cadence. Push never blocks on the consumer.
//
// The flush callback runs on the buffer's timer goroutine (or the caller of
// Flush/Stop) and must not call Flush or Stop itself.
type EventBuffer[T any] struct {
	onFlush       func([]T)
	flushInterval time.Duration
	newTicker     func(time.Duration) (<-chan time.Time, func())

	mu      sync.Mutex
	pending []T
	running bool
	done    chan struct{}
	tickWg  sync.WaitGroup

	// flushMu keeps batches in order when the timer and a manual flush race.
	flushMu sync.Mutex
}

// New creates a stopped buffer that delivers batches to onFlush.
func New[T any](onFlush func([]T), conf ...Config) *EventBuffer[T] {
	flushInterval := model.DefaultFlushInterval
	if len(conf) > 0 && conf[0].FlushInterval > 0 {
		flushInterval = conf[0].FlushInterval
	}
	return &EventBuffer[T]{
		onFlush:       onFlush,
		flushInterval: flushInterval,
		newTicker:     realTicker,
		pending:       make([]T, 0, 64),
	}
}

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Push appends an item to the pending batch.
func (b *EventBuffer[T]) Push(item T) {
	b.mu.Lock()
	b.pending = append(b.pending, item)
	b.mu.Unlock()
}

// Start begins periodic flushing. Calling Start on a running buffer is a no-op.
func (b *EventBuffer[T]) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return
	}
	b.running = true
	b.done = make(chan struct{})

	tick, stop := b.newTicker(b.flushInterval)
	b.tickWg.Add(1)
	go b.tickLoop(tick, stop, b.done)
}

// tickLoop flushes on every tick until done is closed.
func (b *EventBuffer[T]) tickLoop(tick <-chan time.Time, stop func(), done <-chan struct{}) {
	defer b.tickWg.Done()
	defer stop()

	for {
		select {
		case <-tick:
			b.Flush()
		case <-done:
			return
		}
	}
}

// Stop cancels the timer, waits for an in-flight flush to finish, then
// delivers whatever is still pending. Once Stop returns no timer flush will
// fire until Start is called again.
func (b *EventBuffer[T]) Stop() {
	b.mu.Lock()
	if b.running {
		b.running = false
		close(b.done)
	}
	b.mu.Unlock()

	b.tickWg.Wait()
	b.Flush()
}

// Flush hands the pending batch to the consumer. Empty batches are never delivered.
func (b *EventBuffer[T]) Flush() {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.pending
	b.pending = make([]T, 0, cap(batch))
	b.mu.Unlock()

	b.onFlush(batch)
}

// Pending returns the number of buffered, not yet flushed items.
func (b *EventBuffer[T]) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Running reports whether the flush timer is active.
func (b *EventBuffer[T]) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}
