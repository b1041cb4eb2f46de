package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tinytelemetry/netglobe/internal/ingest"
	"github.com/tinytelemetry/netglobe/internal/pipeline"
	"github.com/tinytelemetry/netglobe/internal/socketrpc"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	var configPath string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/netglobe/config.yml)")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("netglobe - Live Traffic Pipeline\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := runServer(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("NETGLOBE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	setDefaults(v.SetDefault)
	v.SetDefault("socket-path", socketrpc.DefaultSocketPath())

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "netglobe", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()
	if _, statErr := os.Stat(cfg.ConfigPath); statErr != nil {
		cfg.ConfigPath = ""
	}

	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}

	for _, p := range []*string{&cfg.GeoIPDB, &cfg.ReplayFile, &cfg.SocketPath} {
		if strings.HasPrefix(*p, "~/") {
			*p = filepath.Join(home, (*p)[2:])
		}
	}

	if cfg.TCPAddr == "" {
		cfg.TCPAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.TCPPort))
	}
	if cfg.APIAddr == "" {
		cfg.APIAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.APIPort))
	}
	if cfg.OTLPAddr == "" {
		cfg.OTLPAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.OTLPPort))
	}

	return cfg, nil
}

func validateConfig(cfg appConfig) error {
	ports := []struct {
		key  string
		port int
	}{
		{"tcp-port", cfg.TCPPort},
		{"api-port", cfg.APIPort},
		{"otlp-port", cfg.OTLPPort},
	}
	for _, p := range ports {
		if p.port <= 0 || p.port > 65535 {
			return fmt.Errorf("invalid %s: %d", p.key, p.port)
		}
	}

	capacities := []struct {
		key   string
		value int
	}{
		{"rolling-window", cfg.RollingWindow},
		{"threat-window", cfg.ThreatWindow},
		{"max-arcs", cfg.MaxArcs},
		{"max-rings", cfg.MaxRings},
		{"bandwidth-bucket-count", cfg.BandwidthBucketCount},
		{"log-entries", cfg.LogEntries},
	}
	for _, c := range capacities {
		if c.value <= 0 {
			return fmt.Errorf("invalid %s: %d (must be positive)", c.key, c.value)
		}
	}

	durations := []struct {
		key   string
		value time.Duration
	}{
		{"flush-interval", cfg.FlushInterval},
		{"sweep-interval", cfg.SweepInterval},
		{"arc-ttl", cfg.ArcTTL},
		{"ring-ttl", cfg.RingTTL},
		{"bandwidth-bucket-width", cfg.BandwidthBucketWidth},
		{"pps-window", cfg.PPSWindow},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("invalid %s: %s (must be positive)", d.key, d.value)
		}
	}

	if cfg.ThreatProbability < 0 || cfg.ThreatProbability > 1 {
		return fmt.Errorf("invalid generator-threat-probability: %v (want 0..1)", cfg.ThreatProbability)
	}
	switch cfg.Processor {
	case "", ingest.ProcessorNameJSON, ingest.ProcessorNameOTLP:
	default:
		return fmt.Errorf("invalid processor %q (want %q or %q)", cfg.Processor, ingest.ProcessorNameJSON, ingest.ProcessorNameOTLP)
	}
	return nil
}

func pipelineConfig(cfg appConfig) pipeline.Config {
	return pipeline.Config{
		FlushInterval:  cfg.FlushInterval,
		SweepInterval:  cfg.SweepInterval,
		RollingWindow:  cfg.RollingWindow,
		ThreatWindow:   cfg.ThreatWindow,
		MaxArcs:        cfg.MaxArcs,
		MaxRings:       cfg.MaxRings,
		ArcTTL:         cfg.ArcTTL,
		RingTTL:        cfg.RingTTL,
		BucketCount:    cfg.BandwidthBucketCount,
		BucketWidth:    cfg.BandwidthBucketWidth,
		RateWindow:     cfg.PPSWindow,
		LogEntries:     cfg.LogEntries,
		PointsThrottle: cfg.PointsThrottle,
	}
}
