package model

import "time"

// Shared defaults used by the server, the dashboard client and the pipeline.
const (
	DefaultFlushInterval        = 300 * time.Millisecond
	DefaultRollingWindow        = 200
	DefaultMaxThreatEntries     = 50
	DefaultMaxArcs              = 50
	DefaultMaxRings             = 15
	DefaultArcTTL               = 6000 * time.Millisecond
	DefaultRingTTL              = 3000 * time.Millisecond
	DefaultBandwidthBucketCount = 10
	DefaultBandwidthBucketWidth = 3 * time.Second
	DefaultPPSWindow            = 5 * time.Second
	DefaultSweepInterval        = 1000 * time.Millisecond
	DefaultLogEntries           = 50
	DefaultPointsThrottle       = 2000 * time.Millisecond
	DefaultGenerationInterval   = 100 * time.Millisecond
	DefaultUpdateInterval       = 500 * time.Millisecond
	DefaultSkin                 = "default"
)
