package stats

import (
	"maps"
	"slices"
	"sync"

	"github.com/tinytelemetry/netglobe/internal/model"
)

// Publisher stabilizes successive snapshots. Sub-objects equal by value to
// the previously published ones are replaced by the previous instances, so
// consumers comparing by identity see no change.
type Publisher struct {
	mu        sync.Mutex
	current   model.StatsSnapshot
	published bool
}

// NewPublisher creates a publisher with no previous snapshot.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Update merges next into the published state and reports whether any
// field differs from the previous snapshot.
func (p *Publisher) Update(next model.StatsSnapshot) (model.StatsSnapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.published {
		p.current = next
		p.published = true
		return next, true
	}

	prev := p.current
	changed := false

	if maps.Equal(prev.ProtocolDistribution, next.ProtocolDistribution) {
		next.ProtocolDistribution = prev.ProtocolDistribution
	} else {
		changed = true
	}
	if maps.Equal(prev.CountryDistribution, next.CountryDistribution) {
		next.CountryDistribution = prev.CountryDistribution
	} else {
		changed = true
	}
	if maps.Equal(prev.ThreatsByType, next.ThreatsByType) {
		next.ThreatsByType = prev.ThreatsByType
	} else {
		changed = true
	}
	if slices.Equal(prev.BandwidthHistory, next.BandwidthHistory) {
		next.BandwidthHistory = prev.BandwidthHistory
	} else {
		changed = true
	}

	if prev.TotalPackets != next.TotalPackets ||
		prev.TotalBandwidth != next.TotalBandwidth ||
		prev.ThreatCount != next.ThreatCount ||
		prev.AvgThreatLevel != next.AvgThreatLevel ||
		prev.PacketsPerSecond != next.PacketsPerSecond {
		changed = true
	}

	if !changed {
		return prev, false
	}
	p.current = next
	return next, true
}

// Current returns the last published snapshot.
func (p *Publisher) Current() model.StatsSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}
