package visual

import (
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/tinytelemetry/netglobe/internal/model"
)

// ringIDPrefix distinguishes ring ids from arc ids for the same event.
const ringIDPrefix = "ring-"

// Config holds the caps and lifetimes of visual entities.
type Config struct {
	MaxArcs  int
	MaxRings int
	ArcTTL   time.Duration
	RingTTL  time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxArcs <= 0 {
		c.MaxArcs = model.DefaultMaxArcs
	}
	if c.MaxRings <= 0 {
		c.MaxRings = model.DefaultMaxRings
	}
	if c.ArcTTL <= 0 {
		c.ArcTTL = model.DefaultArcTTL
	}
	if c.RingTTL <= 0 {
		c.RingTTL = model.DefaultRingTTL
	}
	return c
}

// Manager is the single owner of the arc and ring sets. Entities are
// admitted from freshly ingested events and expire after their TTL.
type Manager struct {
	mu      sync.Mutex
	cfg     Config
	arcs    []model.Arc
	rings   []model.Ring
	arcIDs  map[string]struct{}
	ringIDs map[string]struct{}
	jitter  func() float64
}

// NewManager creates an empty manager.
func NewManager(conf ...Config) *Manager {
	var c Config
	if len(conf) > 0 {
		c = conf[0]
	}
	c = c.withDefaults()
	return &Manager{
		cfg:     c,
		arcs:    make([]model.Arc, 0, c.MaxArcs),
		rings:   make([]model.Ring, 0, c.MaxRings),
		arcIDs:  make(map[string]struct{}, c.MaxArcs),
		ringIDs: make(map[string]struct{}, c.MaxRings),
		jitter:  rand.Float64,
	}
}

// Admit creates arcs and rings for events not yet tracked, stamped with now.
// Events already tracked (or repeated within the batch) are skipped without
// consuming capacity. Once a set is full, further entities of that kind are
// dropped for this batch.
func (m *Manager) Admit(batch []model.TrafficEvent, now time.Time) (arcsAdded, ringsAdded int) {
	if len(batch) == 0 {
		return 0, 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range batch {
		if _, ok := m.arcIDs[e.ID]; ok {
			continue
		}
		theme := NormalTheme
		if e.IsThreat() {
			theme = ThreatTheme
		}

		if len(m.arcIDs) < m.cfg.MaxArcs {
			m.arcs = append(m.arcs, model.Arc{
				ID:          e.ID,
				StartLat:    e.SrcLat,
				StartLng:    e.SrcLng,
				EndLat:      e.DstLat,
				EndLng:      e.DstLng,
				Colors:      theme.Arc.Colors,
				Stroke:      theme.Arc.Stroke,
				DashGap:     theme.Arc.DashGap,
				DashLength:  theme.Arc.DashLength,
				AnimateTime: minAnimateTime + int(m.jitter()*animateTimeJitter),
				IsThreat:    e.IsThreat(),
				CreatedAt:   now,
			})
			m.arcIDs[e.ID] = struct{}{}
			arcsAdded++
		}

		ringID := ringIDPrefix + e.ID
		if _, ok := m.ringIDs[ringID]; ok {
			continue
		}
		if len(m.ringIDs) < m.cfg.MaxRings {
			m.rings = append(m.rings, model.Ring{
				ID:               ringID,
				Lat:              e.DstLat,
				Lng:              e.DstLng,
				MaxRadius:        theme.Ring.MaxRadius,
				PropagationSpeed: theme.Ring.PropagationSpeed,
				RepeatPeriod:     theme.Ring.RepeatPeriod,
				Color:            theme.Ring.Color,
				CreatedAt:        now,
			})
			m.ringIDs[ringID] = struct{}{}
			ringsAdded++
		}
	}
	return arcsAdded, ringsAdded
}

// Sweep removes entities whose age has reached their TTL and reports
// whether anything was removed.
func (m *Manager) Sweep(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	arcs := m.arcs[:0:0]
	for _, a := range m.arcs {
		if now.Sub(a.CreatedAt) < m.cfg.ArcTTL {
			arcs = append(arcs, a)
		}
	}
	rings := m.rings[:0:0]
	for _, r := range m.rings {
		if now.Sub(r.CreatedAt) < m.cfg.RingTTL {
			rings = append(rings, r)
		}
	}

	changed := len(arcs) != len(m.arcs) || len(rings) != len(m.rings)
	if !changed {
		return false
	}

	m.arcs = arcs
	m.rings = rings
	m.arcIDs = make(map[string]struct{}, len(arcs))
	for _, a := range arcs {
		m.arcIDs[a.ID] = struct{}{}
	}
	m.ringIDs = make(map[string]struct{}, len(rings))
	for _, r := range rings {
		m.ringIDs[r.ID] = struct{}{}
	}
	return true
}

// Arcs returns a copy of the live arcs in admission order.
func (m *Manager) Arcs() []model.Arc {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.arcs)
}

// Rings returns a copy of the live rings in admission order.
func (m *Manager) Rings() []model.Ring {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.rings)
}

// Counts returns the number of live arcs and rings.
func (m *Manager) Counts() (arcs, rings int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.arcs), len(m.rings)
}
