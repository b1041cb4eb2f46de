package pipeline

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tinytelemetry/netglobe/internal/buffer"
	"github.com/tinytelemetry/netglobe/internal/model"
	"github.com/tinytelemetry/netglobe/internal/stats"
	"github.com/tinytelemetry/netglobe/internal/visual"
	"github.com/tinytelemetry/netglobe/internal/window"
)

// Observer receives a snapshot every time the published state changes.
// Observers run synchronously, in order, and must not call Stop. They may
// read the pipeline (Snapshot, TotalCount) while running.
type Observer func(model.Snapshot)

type subscription struct {
	id int
	fn Observer
}

// Pipeline owns the live traffic state: it buffers pushed events, folds
// each batch into the rolling windows, recomputes statistics, admits
// visual entities, and publishes snapshots to observers.
type Pipeline struct {
	cfg   Config
	now   func() time.Time
	newID func() string

	buffer    *buffer.EventBuffer[model.TrafficEvent]
	store     *window.Store
	publisher *stats.Publisher
	visuals   *visual.Manager
	points    *visual.PointSet

	// mu serializes state transitions from the flush and sweep timers.
	mu    sync.Mutex
	stats model.StatsSnapshot

	// notifyMu keeps observer deliveries in state order. It is always
	// taken before mu and held while observers run, never under mu.
	notifyMu  sync.Mutex
	obsMu     sync.RWMutex
	observers []subscription
	nextObsID int

	lifeMu    sync.Mutex
	running   bool
	sweepDone chan struct{}
	sweepWg   sync.WaitGroup
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithClock replaces the wall clock used for timestamps, TTLs and windows.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithIDGenerator replaces the event id generator.
func WithIDGenerator(newID func() string) Option {
	return func(p *Pipeline) { p.newID = newID }
}

// New creates a stopped pipeline.
func New(cfg Config, opts ...Option) *Pipeline {
	cfg = cfg.withDefaults()
	p := &Pipeline{
		cfg:       cfg,
		now:       time.Now,
		newID:     uuid.NewString,
		store:     window.NewStore(cfg.windowConfig()),
		publisher: stats.NewPublisher(),
		visuals:   visual.NewManager(cfg.visualConfig()),
		points:    visual.NewPointSet(cfg.PointsThrottle),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.buffer = buffer.New(p.ingest, buffer.Config{FlushInterval: cfg.FlushInterval})
	p.stats, _ = p.publisher.Update(stats.Compute(nil, nil, p.now(), cfg.statsConfig()))
	return p
}

// Push stamps a raw event with its id and ingestion time and buffers it.
// It never blocks on downstream processing.
func (p *Pipeline) Push(raw model.RawEvent) model.TrafficEvent {
	e := raw.WithIdentity(p.newID(), p.now().Truncate(time.Millisecond))
	p.buffer.Push(e)
	return e
}

// Start begins the flush and sweep timers. It is idempotent.
func (p *Pipeline) Start() {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()
	if p.running {
		return
	}
	p.running = true

	p.buffer.Start()
	p.sweepDone = make(chan struct{})
	p.sweepWg.Add(1)
	go p.sweepLoop(p.sweepDone)

	log.Printf("pipeline: started (flush=%s sweep=%s window=%d)", p.cfg.FlushInterval, p.cfg.SweepInterval, p.cfg.RollingWindow)
}

// Stop halts both timers and flushes buffered events. It is idempotent and
// returns only after no timer callback can run.
func (p *Pipeline) Stop() {
	p.lifeMu.Lock()
	if p.running {
		p.running = false
		close(p.sweepDone)
	}
	p.lifeMu.Unlock()

	p.sweepWg.Wait()
	p.buffer.Stop()
}

// Flush forces buffered events into the windows immediately.
func (p *Pipeline) Flush() {
	p.buffer.Flush()
}

// Pending returns the number of buffered events not yet ingested.
func (p *Pipeline) Pending() int {
	return p.buffer.Pending()
}

func (p *Pipeline) sweepLoop(done <-chan struct{}) {
	defer p.sweepWg.Done()
	ticker := time.NewTicker(p.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.sweep(p.now())
		case <-done:
			return
		}
	}
}

// ingest is the buffer's flush consumer.
func (p *Pipeline) ingest(batch []model.TrafficEvent) {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	now := p.now()
	p.store.Ingest(batch)
	events := p.store.Events()
	threats := p.store.Threats()
	p.stats, _ = p.publisher.Update(stats.Compute(events, threats, now, p.cfg.statsConfig()))
	p.visuals.Admit(batch, now)
	p.points.Update(events, now)
	snap := p.snapshotLocked(now, events, threats)
	p.mu.Unlock()

	p.notify(snap)
}

// sweep expires visual entities and refreshes time-dependent statistics,
// publishing only when something changed.
func (p *Pipeline) sweep(now time.Time) {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	visualsChanged := p.visuals.Sweep(now)
	events := p.store.Events()
	threats := p.store.Threats()
	var statsChanged bool
	p.stats, statsChanged = p.publisher.Update(stats.Compute(events, threats, now, p.cfg.statsConfig()))
	if !visualsChanged && !statsChanged {
		p.mu.Unlock()
		return
	}
	snap := p.snapshotLocked(now, events, threats)
	p.mu.Unlock()

	p.notify(snap)
}

func (p *Pipeline) snapshotLocked(now time.Time, events, threats []model.TrafficEvent) model.Snapshot {
	logEntries := min(p.cfg.LogEntries, len(events))
	logTail := make([]model.TrafficEvent, logEntries)
	copy(logTail, events[:logEntries])

	return model.Snapshot{
		Events:      events,
		Threats:     threats,
		Log:         logTail,
		TotalCount:  p.store.Total(),
		Stats:       p.stats,
		Arcs:        p.visuals.Arcs(),
		Rings:       p.visuals.Rings(),
		Points:      p.points.Points(),
		GeneratedAt: now,
	}
}

// Snapshot returns a copy of the current state.
func (p *Pipeline) Snapshot() model.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked(p.now(), p.store.Events(), p.store.Threats())
}

// TotalCount returns the number of events ingested since start.
func (p *Pipeline) TotalCount() int64 {
	return p.store.Total()
}

// Subscribe registers an observer and returns a function that removes it.
func (p *Pipeline) Subscribe(fn Observer) (unsubscribe func()) {
	p.obsMu.Lock()
	p.nextObsID++
	id := p.nextObsID
	p.observers = append(p.observers, subscription{id: id, fn: fn})
	p.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.obsMu.Lock()
			defer p.obsMu.Unlock()
			for i, s := range p.observers {
				if s.id == id {
					p.observers = append(p.observers[:i:i], p.observers[i+1:]...)
					return
				}
			}
		})
	}
}

func (p *Pipeline) notify(snap model.Snapshot) {
	p.obsMu.RLock()
	observers := make([]subscription, len(p.observers))
	copy(observers, p.observers)
	p.obsMu.RUnlock()

	for _, s := range observers {
		s.fn(snap)
	}
}
