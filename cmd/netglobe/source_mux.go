package main

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/netglobe/internal/model"
	"github.com/tinytelemetry/netglobe/internal/source"
)

// DefaultMuxBuffer is the default channel buffer size for the source multiplexer.
const DefaultMuxBuffer = 10_000

// inlet is one merged source with its forwarding tally.
type inlet struct {
	src       source.Source
	forwarded atomic.Int64
	skipped   atomic.Int64
}

// SourceMultiplexer fans every source into one envelope stream. Envelopes
// leave it tagged with the name of the source they came from.
type SourceMultiplexer struct {
	ctx    context.Context
	cancel context.CancelFunc
	inlets []*inlet
	out    chan model.IngestEnvelope
	pumps  errgroup.Group

	started   atomic.Bool
	stopOnce  sync.Once
	closeOnce sync.Once
}

func NewSourceMultiplexer(parent context.Context, sources []source.Source, buffer int) *SourceMultiplexer {
	if buffer <= 0 {
		buffer = DefaultMuxBuffer
	}
	ctx, cancel := context.WithCancel(parent)
	inlets := make([]*inlet, len(sources))
	for i, src := range sources {
		inlets[i] = &inlet{src: src}
	}
	return &SourceMultiplexer{ctx: ctx, cancel: cancel, inlets: inlets, out: make(chan model.IngestEnvelope, buffer)}
}

// Start launches one pump per source. The output closes once every source
// has ended, or immediately when there are none.
func (m *SourceMultiplexer) Start() {
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	for _, in := range m.inlets {
		m.pumps.Go(func() error {
			m.pump(in)
			return nil
		})
	}
	go func() {
		_ = m.pumps.Wait()
		m.closeOutput()
	}()
}

// Stop stops every source, waits for the pumps and logs per-source totals.
func (m *SourceMultiplexer) Stop() {
	m.stopOnce.Do(func() {
		m.started.Store(true)
		m.cancel()
		for _, in := range m.inlets {
			in.src.Stop()
		}
		_ = m.pumps.Wait()
		m.closeOutput()
		for _, in := range m.inlets {
			log.Printf("server: source %s forwarded %d envelopes (%d empty skipped)", in.src.Name(), in.forwarded.Load(), in.skipped.Load())
		}
	})
}

// Len reports how many sources are merged.
func (m *SourceMultiplexer) Len() int {
	return len(m.inlets)
}

// Names lists the merged sources in registration order.
func (m *SourceMultiplexer) Names() []string {
	names := make([]string, len(m.inlets))
	for i, in := range m.inlets {
		names[i] = in.src.Name()
	}
	return names
}

// Forwarded returns the number of envelopes each source has delivered.
func (m *SourceMultiplexer) Forwarded() map[string]int64 {
	counts := make(map[string]int64, len(m.inlets))
	for _, in := range m.inlets {
		counts[in.src.Name()] += in.forwarded.Load()
	}
	return counts
}

func (m *SourceMultiplexer) Envelopes() <-chan model.IngestEnvelope {
	return m.out
}

func (m *SourceMultiplexer) pump(in *inlet) {
	name := in.src.Name()
	envelopes := in.src.Envelopes()
	for {
		var env model.IngestEnvelope
		var ok bool
		select {
		case <-m.ctx.Done():
			return
		case env, ok = <-envelopes:
		}
		if !ok {
			return
		}

		env, keep := tagEnvelope(env, name)
		if !keep {
			in.skipped.Add(1)
			continue
		}
		select {
		case m.out <- env:
			in.forwarded.Add(1)
		case <-m.ctx.Done():
			return
		}
	}
}

// tagEnvelope drops envelopes that carry neither a line nor an event and
// fills in the source name when the producer left it blank.
func tagEnvelope(env model.IngestEnvelope, name string) (model.IngestEnvelope, bool) {
	if env.Empty() {
		return env, false
	}
	if env.Source == "" {
		env.Source = name
	}
	return env, true
}

func (m *SourceMultiplexer) closeOutput() {
	m.closeOnce.Do(func() {
		close(m.out)
	})
}
