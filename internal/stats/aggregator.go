package stats

import (
	"math"
	"time"

	"github.com/tinytelemetry/netglobe/internal/model"
)

// Config describes the trailing windows used for time-based statistics.
type Config struct {
	BucketCount int
	BucketWidth time.Duration
	RateWindow  time.Duration
}

func (c Config) withDefaults() Config {
	if c.BucketCount <= 0 {
		c.BucketCount = model.DefaultBandwidthBucketCount
	}
	if c.BucketWidth <= 0 {
		c.BucketWidth = model.DefaultBandwidthBucketWidth
	}
	if c.RateWindow <= 0 {
		c.RateWindow = model.DefaultPPSWindow
	}
	return c
}

// HistoryWindow returns the span covered by the bandwidth histogram.
func (c Config) HistoryWindow() time.Duration {
	c = c.withDefaults()
	return time.Duration(c.BucketCount) * c.BucketWidth
}

// Compute derives a statistics snapshot from the current windows.
// It has no side effects and depends only on its arguments.
func Compute(events, threats []model.TrafficEvent, now time.Time, conf ...Config) model.StatsSnapshot {
	var c Config
	if len(conf) > 0 {
		c = conf[0]
	}
	c = c.withDefaults()

	snap := model.StatsSnapshot{
		TotalPackets:         len(events),
		ProtocolDistribution: make(map[string]int),
		CountryDistribution:  make(map[string]int),
		ThreatCount:          len(threats),
		ThreatsByType:        make(map[string]int),
		BandwidthHistory:     make([]int64, c.BucketCount),
	}

	historyStart := now.Add(-c.HistoryWindow())
	rateStart := now.Add(-c.RateWindow)
	recent := 0

	for _, e := range events {
		snap.TotalBandwidth += int64(e.PacketSize)
		snap.ProtocolDistribution[e.Protocol]++
		snap.CountryDistribution[e.SrcCountryCode]++

		if !e.CreatedAt.Before(historyStart) {
			idx := int(e.CreatedAt.Sub(historyStart) / c.BucketWidth)
			if idx > c.BucketCount-1 {
				idx = c.BucketCount - 1
			}
			snap.BandwidthHistory[idx] += int64(e.PacketSize)
		}
		if !e.CreatedAt.Before(rateStart) {
			recent++
		}
	}

	levelSum := 0
	for _, e := range threats {
		levelSum += e.ThreatLevel
		if e.ThreatType != "" {
			snap.ThreatsByType[e.ThreatType]++
		}
	}
	if len(threats) > 0 {
		snap.AvgThreatLevel = float64(levelSum) / float64(len(threats))
	}

	snap.PacketsPerSecond = int(math.Round(float64(recent) / c.RateWindow.Seconds()))
	return snap
}
