// Package source provides the inputs that feed traffic events into the
// pipeline. Every input exposes the same Source contract so the server can
// merge any mix of them.
package source

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/tinytelemetry/netglobe/internal/model"
)

// DefaultBuffer is the default channel buffer size of a source.
const DefaultBuffer = 1024

// Source is a unified interface for all event inputs.
type Source interface {
	Envelopes() <-chan model.IngestEnvelope // closed when the source ends
	Stop()                                  // graceful shutdown, idempotent
	Name() string                           // "tcp", "stdin", "redis", ...
}

// feed is the channel plumbing shared by the goroutine-backed sources.
type feed struct {
	name     string
	ch       chan model.IngestEnvelope
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

func newFeed(parent context.Context, name string, buffer int) (*feed, context.Context) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ctx, cancel := context.WithCancel(parent)
	return &feed{
		name:   name,
		ch:     make(chan model.IngestEnvelope, buffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}, ctx
}

// run executes fn in a goroutine and closes the channel when it returns.
func (f *feed) run(ctx context.Context, fn func(ctx context.Context)) {
	go func() {
		defer close(f.done)
		defer close(f.ch)
		fn(ctx)
	}()
}

func (f *feed) sendLine(ctx context.Context, line string) bool {
	if line == "" {
		return true
	}
	return f.send(ctx, model.IngestEnvelope{Source: f.name, Line: line})
}

func (f *feed) sendEvent(ctx context.Context, e model.RawEvent) bool {
	return f.send(ctx, model.IngestEnvelope{Source: f.name, Event: &e})
}

func (f *feed) send(ctx context.Context, env model.IngestEnvelope) bool {
	select {
	case f.ch <- env:
		return true
	case <-ctx.Done():
		return false
	}
}

func (f *feed) Envelopes() <-chan model.IngestEnvelope { return f.ch }
func (f *feed) Name() string                           { return f.name }

// Stop cancels the source and waits for its goroutine to exit.
func (f *feed) Stop() {
	f.stopOnce.Do(f.cancel)
	<-f.done
}

const (
	minBackoff = time.Second
	maxBackoff = 60 * time.Second
)

// reconnect runs session until ctx is cancelled. A failed session is retried
// with exponential backoff; calling connected inside a session resets it.
func reconnect(ctx context.Context, name string, session func(ctx context.Context, connected func()) error) {
	backoff := minBackoff
	for ctx.Err() == nil {
		err := session(ctx, func() { backoff = minBackoff })
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Printf("source: %s: %v, retrying in %v", name, err, backoff)
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
