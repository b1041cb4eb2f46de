package main

import (
	"time"

	"github.com/tinytelemetry/netglobe/internal/generator"
	"github.com/tinytelemetry/netglobe/internal/geoip"
	"github.com/tinytelemetry/netglobe/internal/model"
	"github.com/tinytelemetry/netglobe/internal/tcpserver"
)

const (
	defaultBindHost           = "127.0.0.1"
	defaultTCPPort            = 4000
	defaultAPIPort            = 3000
	defaultOTLPPort           = 4317
	defaultMuxBufferSize      = DefaultMuxBuffer
	defaultQueryTimeout       = 5 * time.Second
	defaultMaxConcurrentReads = 4
	defaultMirrorInterval     = time.Second
	defaultRedisChannel       = "traffic_events"
	defaultPostgresChannel    = "traffic_events"
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	Host      string `mapstructure:"host"`
	Processor string `mapstructure:"processor"`

	// Pipeline tunables.
	FlushInterval        time.Duration `mapstructure:"flush-interval"`
	SweepInterval        time.Duration `mapstructure:"sweep-interval"`
	RollingWindow        int           `mapstructure:"rolling-window"`
	ThreatWindow         int           `mapstructure:"threat-window"`
	MaxArcs              int           `mapstructure:"max-arcs"`
	MaxRings             int           `mapstructure:"max-rings"`
	ArcTTL               time.Duration `mapstructure:"arc-ttl"`
	RingTTL              time.Duration `mapstructure:"ring-ttl"`
	BandwidthBucketCount int           `mapstructure:"bandwidth-bucket-count"`
	BandwidthBucketWidth time.Duration `mapstructure:"bandwidth-bucket-width"`
	PPSWindow            time.Duration `mapstructure:"pps-window"`
	LogEntries           int           `mapstructure:"log-entries"`
	PointsThrottle       time.Duration `mapstructure:"points-throttle"`

	// Inputs.
	MuxBufferSize      int           `mapstructure:"mux-buffer-size"`
	TCPEnabled         bool          `mapstructure:"tcp-enabled"`
	TCPPort            int           `mapstructure:"tcp-port"`
	TCPAddr            string        `mapstructure:"tcp-addr"`
	TCPMaxConnections  int           `mapstructure:"tcp-max-connections"`
	TCPIdleTimeout     time.Duration `mapstructure:"tcp-idle-timeout"`
	GeneratorEnabled   bool          `mapstructure:"generator-enabled"`
	GeneratorInterval  time.Duration `mapstructure:"generator-interval"`
	ThreatProbability  float64       `mapstructure:"generator-threat-probability"`
	GeneratorSeed      uint64        `mapstructure:"generator-seed"`
	OTLPEnabled        bool          `mapstructure:"otlp-enabled"`
	OTLPPort           int           `mapstructure:"otlp-port"`
	OTLPAddr           string        `mapstructure:"otlp-addr"`
	WebSocketURL       string        `mapstructure:"websocket-url"`
	WebSocketSubscribe string        `mapstructure:"websocket-subscribe"`
	RedisAddr          string        `mapstructure:"redis-addr"`
	RedisPassword      string        `mapstructure:"redis-password"`
	RedisDB            int           `mapstructure:"redis-db"`
	RedisChannel       string        `mapstructure:"redis-channel"`
	PostgresDSN        string        `mapstructure:"postgres-dsn"`
	PostgresChannel    string        `mapstructure:"postgres-channel"`
	ReplayFile         string        `mapstructure:"replay-file"`

	// Enrichment.
	GeoIPDB        string `mapstructure:"geoip-db"`
	GeoIPCacheSize int    `mapstructure:"geoip-cache-size"`

	// Read surfaces.
	APIEnabled         bool          `mapstructure:"api-enabled"`
	APIPort            int           `mapstructure:"api-port"`
	APIAddr            string        `mapstructure:"api-addr"`
	SocketPath         string        `mapstructure:"socket-path"`
	MirrorEnabled      bool          `mapstructure:"mirror-enabled"`
	MirrorInterval     time.Duration `mapstructure:"mirror-interval"`
	QueryTimeout       time.Duration `mapstructure:"query-timeout"`
	MaxConcurrentReads int           `mapstructure:"max-concurrent-queries"`

	ConfigPath string `mapstructure:"-"` // not from config file
}

func setDefaults(set func(key string, value any)) {
	set("host", defaultBindHost)
	set("processor", "json")

	set("flush-interval", model.DefaultFlushInterval)
	set("sweep-interval", model.DefaultSweepInterval)
	set("rolling-window", model.DefaultRollingWindow)
	set("threat-window", model.DefaultMaxThreatEntries)
	set("max-arcs", model.DefaultMaxArcs)
	set("max-rings", model.DefaultMaxRings)
	set("arc-ttl", model.DefaultArcTTL)
	set("ring-ttl", model.DefaultRingTTL)
	set("bandwidth-bucket-count", model.DefaultBandwidthBucketCount)
	set("bandwidth-bucket-width", model.DefaultBandwidthBucketWidth)
	set("pps-window", model.DefaultPPSWindow)
	set("log-entries", model.DefaultLogEntries)
	set("points-throttle", model.DefaultPointsThrottle)

	set("mux-buffer-size", defaultMuxBufferSize)
	set("tcp-enabled", true)
	set("tcp-port", defaultTCPPort)
	set("tcp-max-connections", tcpserver.DefaultMaxConnections)
	set("tcp-idle-timeout", time.Duration(0))
	set("generator-enabled", true)
	set("generator-interval", model.DefaultGenerationInterval)
	set("generator-threat-probability", generator.DefaultThreatProbability)
	set("generator-seed", uint64(0))
	set("otlp-enabled", false)
	set("otlp-port", defaultOTLPPort)
	set("redis-db", 0)
	set("redis-channel", defaultRedisChannel)
	set("postgres-channel", defaultPostgresChannel)

	set("geoip-cache-size", geoip.DefaultCacheSize)

	set("api-enabled", true)
	set("api-port", defaultAPIPort)
	set("mirror-enabled", true)
	set("mirror-interval", defaultMirrorInterval)
	set("query-timeout", defaultQueryTimeout)
	set("max-concurrent-queries", defaultMaxConcurrentReads)
}
