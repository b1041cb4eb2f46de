package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/tinytelemetry/netglobe/internal/generator"
	"github.com/tinytelemetry/netglobe/internal/otlpreceiver"
	"github.com/tinytelemetry/netglobe/internal/source"
	"github.com/tinytelemetry/netglobe/internal/tcpserver"
)

// InputSourcePlugin is a small plugin primitive for wiring event inputs.
type InputSourcePlugin interface {
	Name() string
	Enabled() bool
	Build(ctx context.Context) (source.Source, error)
}

// InputPluginConfig defines runtime input selection.
type InputPluginConfig struct {
	TCPEnabled        bool
	TCPAddr           string
	TCPMaxConnections int
	TCPIdleTimeout    time.Duration

	GeneratorEnabled  bool
	GeneratorInterval time.Duration
	Generator         generator.Config

	OTLPEnabled bool
	OTLPAddr    string

	WebSocketURL       string
	WebSocketSubscribe string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	PostgresDSN     string
	PostgresChannel string

	ReplayFile string
}

func inputPluginConfig(cfg appConfig) InputPluginConfig {
	return InputPluginConfig{
		TCPEnabled:        cfg.TCPEnabled,
		TCPAddr:           cfg.TCPAddr,
		TCPMaxConnections: cfg.TCPMaxConnections,
		TCPIdleTimeout:    cfg.TCPIdleTimeout,
		GeneratorEnabled:  cfg.GeneratorEnabled,
		GeneratorInterval: cfg.GeneratorInterval,
		Generator: generator.Config{
			ThreatProbability: cfg.ThreatProbability,
			Seed:              cfg.GeneratorSeed,
		},
		OTLPEnabled:        cfg.OTLPEnabled,
		OTLPAddr:           cfg.OTLPAddr,
		WebSocketURL:       cfg.WebSocketURL,
		WebSocketSubscribe: cfg.WebSocketSubscribe,
		RedisAddr:          cfg.RedisAddr,
		RedisPassword:      cfg.RedisPassword,
		RedisDB:            cfg.RedisDB,
		RedisChannel:       cfg.RedisChannel,
		PostgresDSN:        cfg.PostgresDSN,
		PostgresChannel:    cfg.PostgresChannel,
		ReplayFile:         cfg.ReplayFile,
	}
}

func buildInputPlugins(cfg InputPluginConfig) []InputSourcePlugin {
	return []InputSourcePlugin{
		tcpInputPlugin{
			addr:    cfg.TCPAddr,
			enabled: cfg.TCPEnabled,
			conf: tcpserver.ServerConfig{
				MaxConnections: cfg.TCPMaxConnections,
				IdleTimeout:    cfg.TCPIdleTimeout,
			},
		},
		otlpInputPlugin{addr: cfg.OTLPAddr, enabled: cfg.OTLPEnabled},
		websocketInputPlugin{url: cfg.WebSocketURL, subscribe: cfg.WebSocketSubscribe},
		redisInputPlugin{conf: source.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Channel:  cfg.RedisChannel,
		}},
		postgresInputPlugin{conf: source.PostgresConfig{DSN: cfg.PostgresDSN, Channel: cfg.PostgresChannel}},
		replayInputPlugin{path: cfg.ReplayFile},
		generatorInputPlugin{
			enabled: cfg.GeneratorEnabled,
			conf:    source.GeneratorConfig{Interval: cfg.GeneratorInterval, Generator: cfg.Generator},
		},
		stdinInputPlugin{},
	}
}

type tcpInputPlugin struct {
	addr    string
	enabled bool
	conf    tcpserver.ServerConfig
}

func (p tcpInputPlugin) Name() string { return "tcp" }

func (p tcpInputPlugin) Enabled() bool { return p.enabled }

func (p tcpInputPlugin) Build(_ context.Context) (source.Source, error) {
	server := tcpserver.NewServer(p.addr, p.conf)
	if err := server.Start(); err != nil {
		return nil, fmt.Errorf("start tcp server: %w", err)
	}
	return source.NewTCP(server), nil
}

type otlpInputPlugin struct {
	addr    string
	enabled bool
}

func (p otlpInputPlugin) Name() string { return "otlp" }

func (p otlpInputPlugin) Enabled() bool { return p.enabled }

func (p otlpInputPlugin) Build(_ context.Context) (source.Source, error) {
	server := otlpreceiver.NewServer(p.addr)
	if err := server.Start(); err != nil {
		return nil, fmt.Errorf("start otlp receiver: %w", err)
	}
	return source.NewOTLP(server), nil
}

type websocketInputPlugin struct {
	url       string
	subscribe string
}

func (p websocketInputPlugin) Name() string { return "websocket" }

func (p websocketInputPlugin) Enabled() bool { return p.url != "" }

func (p websocketInputPlugin) Build(ctx context.Context) (source.Source, error) {
	src, err := source.NewWebSocket(ctx, source.WebSocketConfig{URL: p.url, Subscribe: p.subscribe})
	if err != nil {
		return nil, err
	}
	return src, nil
}

type redisInputPlugin struct {
	conf source.RedisConfig
}

func (p redisInputPlugin) Name() string { return "redis" }

func (p redisInputPlugin) Enabled() bool { return p.conf.Addr != "" }

func (p redisInputPlugin) Build(ctx context.Context) (source.Source, error) {
	src, err := source.NewRedis(ctx, p.conf)
	if err != nil {
		return nil, err
	}
	return src, nil
}

type postgresInputPlugin struct {
	conf source.PostgresConfig
}

func (p postgresInputPlugin) Name() string { return "postgres" }

func (p postgresInputPlugin) Enabled() bool { return p.conf.DSN != "" }

func (p postgresInputPlugin) Build(ctx context.Context) (source.Source, error) {
	src, err := source.NewPostgres(ctx, p.conf)
	if err != nil {
		return nil, err
	}
	return src, nil
}

type replayInputPlugin struct {
	path string
}

func (p replayInputPlugin) Name() string { return "replay" }

func (p replayInputPlugin) Enabled() bool { return p.path != "" }

func (p replayInputPlugin) Build(ctx context.Context) (source.Source, error) {
	sc, err := source.LoadScenario(p.path)
	if err != nil {
		return nil, err
	}
	return source.NewReplay(ctx, sc), nil
}

type generatorInputPlugin struct {
	enabled bool
	conf    source.GeneratorConfig
}

func (p generatorInputPlugin) Name() string { return "generator" }

func (p generatorInputPlugin) Enabled() bool { return p.enabled }

func (p generatorInputPlugin) Build(ctx context.Context) (source.Source, error) {
	return source.NewGenerator(ctx, p.conf), nil
}

type stdinInputPlugin struct{}

func (p stdinInputPlugin) Name() string { return "stdin" }

func (p stdinInputPlugin) Enabled() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

func (p stdinInputPlugin) Build(ctx context.Context) (source.Source, error) {
	return source.NewStdin(ctx), nil
}
