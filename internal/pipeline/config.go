package pipeline

import (
	"time"

	"github.com/tinytelemetry/netglobe/internal/model"
	"github.com/tinytelemetry/netglobe/internal/stats"
	"github.com/tinytelemetry/netglobe/internal/visual"
	"github.com/tinytelemetry/netglobe/internal/window"
)

// Config holds every pipeline tunable. Zero fields fall back to defaults.
type Config struct {
	FlushInterval  time.Duration
	SweepInterval  time.Duration
	RollingWindow  int
	ThreatWindow   int
	MaxArcs        int
	MaxRings       int
	ArcTTL         time.Duration
	RingTTL        time.Duration
	BucketCount    int
	BucketWidth    time.Duration
	RateWindow     time.Duration
	LogEntries     int
	PointsThrottle time.Duration
}

// DefaultConfig returns the stock tunables.
func DefaultConfig() Config {
	return Config{
		FlushInterval:  model.DefaultFlushInterval,
		SweepInterval:  model.DefaultSweepInterval,
		RollingWindow:  model.DefaultRollingWindow,
		ThreatWindow:   model.DefaultMaxThreatEntries,
		MaxArcs:        model.DefaultMaxArcs,
		MaxRings:       model.DefaultMaxRings,
		ArcTTL:         model.DefaultArcTTL,
		RingTTL:        model.DefaultRingTTL,
		BucketCount:    model.DefaultBandwidthBucketCount,
		BucketWidth:    model.DefaultBandwidthBucketWidth,
		RateWindow:     model.DefaultPPSWindow,
		LogEntries:     model.DefaultLogEntries,
		PointsThrottle: model.DefaultPointsThrottle,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FlushInterval <= 0 {
		c.FlushInterval = d.FlushInterval
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = d.SweepInterval
	}
	if c.RollingWindow <= 0 {
		c.RollingWindow = d.RollingWindow
	}
	if c.ThreatWindow <= 0 {
		c.ThreatWindow = d.ThreatWindow
	}
	if c.LogEntries <= 0 {
		c.LogEntries = d.LogEntries
	}
	return c
}

func (c Config) windowConfig() window.Config {
	return window.Config{Capacity: c.RollingWindow, ThreatCapacity: c.ThreatWindow}
}

func (c Config) statsConfig() stats.Config {
	return stats.Config{BucketCount: c.BucketCount, BucketWidth: c.BucketWidth, RateWindow: c.RateWindow}
}

func (c Config) visualConfig() visual.Config {
	return visual.Config{MaxArcs: c.MaxArcs, MaxRings: c.MaxRings, ArcTTL: c.ArcTTL, RingTTL: c.RingTTL}
}
