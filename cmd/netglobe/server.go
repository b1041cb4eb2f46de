package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/netglobe/internal/duckdb"
	"github.com/tinytelemetry/netglobe/internal/geoip"
	"github.com/tinytelemetry/netglobe/internal/httpserver"
	"github.com/tinytelemetry/netglobe/internal/ingest"
	"github.com/tinytelemetry/netglobe/internal/model"
	"github.com/tinytelemetry/netglobe/internal/pipeline"
	"github.com/tinytelemetry/netglobe/internal/source"
	"github.com/tinytelemetry/netglobe/internal/socketrpc"
)

// runServer starts the pipeline, its inputs and its read surfaces.
func runServer(cfg appConfig) error {
	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	pipe := pipeline.New(pipelineConfig(cfg))
	pipe.Start()
	defer pipe.Stop() // early-return paths; the normal path drains below

	// Optional GeoIP enrichment for producers that send bare addresses.
	var enricher ingest.Enricher
	if cfg.GeoIPDB != "" {
		geo, err := geoip.Open(cfg.GeoIPDB, cfg.GeoIPCacheSize)
		if err != nil {
			return fmt.Errorf("failed to open GeoIP database: %w", err)
		}
		defer geo.Close()
		enricher = geo
	}

	processor, err := ingest.NewEnvelopeProcessor(cfg.Processor, pipe, enricher)
	if err != nil {
		return err
	}

	// The window mirror keeps an in-memory DuckDB copy of the rolling
	// window for ad-hoc SQL.
	var querier model.WindowQuerier
	if cfg.MirrorEnabled {
		store, err := duckdb.NewStore(cfg.QueryTimeout)
		if err != nil {
			return fmt.Errorf("failed to initialize DuckDB: %w", err)
		}
		defer store.Close()
		store.SetMaxConcurrentQueries(cfg.MaxConcurrentReads)

		mirror := duckdb.NewMirror(store, cfg.MirrorInterval)
		unsubscribe := pipe.Subscribe(mirror.Observe)
		defer mirror.Stop()
		defer unsubscribe()
		querier = store
	}

	// Start HTTP API server if enabled
	if cfg.APIEnabled {
		apiServer := httpserver.NewServer(cfg.APIAddr, pipe, querier)
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
		unsubscribe := pipe.Subscribe(apiServer.Hub().Publish)
		defer unsubscribe()
	}

	// Start socket RPC server for TUI IPC
	sockServer := socketrpc.NewServer(cfg.SocketPath, pipe, querier)
	if err := sockServer.Start(); err != nil {
		log.Printf("Warning: failed to start socket server: %v", err)
	} else {
		defer sockServer.Stop()
	}

	// Set up context and signal handling before errgroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		// Shutdown deadline starts now, not at boot.
		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		cleanupSocket(cfg.SocketPath)
		os.Exit(1)
	}()

	sources := buildSources(ctx, buildInputPlugins(inputPluginConfig(cfg)))

	mux := NewSourceMultiplexer(ctx, sources, cfg.MuxBufferSize)
	mux.Start()

	printStartupBanner(cfg, mux.Names(), processor.Name())

	// Use errgroup for concurrent goroutine lifecycle management.
	g, gctx := errgroup.WithContext(ctx)

	// Ingestion loop
	if mux.Len() > 0 {
		g.Go(func() error {
			for env := range mux.Envelopes() {
				processor.ProcessEnvelope(env)
			}
			log.Printf("server: all sources ended")
			return nil
		})
	}

	// Wait for context cancellation (from signal handler) in the errgroup
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("server: errgroup exited with error: %v", err)
	}

	cancel()
	drainInputs(mux, pipe)

	// If we reach here, graceful shutdown succeeded within the deadline.
	signal.Stop(sigCh)

	return nil
}

// drainInputs stops the sources, then the pipeline. The pipeline's final
// flush must publish while the mirror and stream observers are still
// subscribed, so this runs before the read surfaces are torn down.
func drainInputs(mux *SourceMultiplexer, pipe *pipeline.Pipeline) {
	mux.Stop()
	pipe.Stop()
}

// buildSources builds every enabled plugin. Plugins that fail are logged
// and skipped so one unreachable broker does not keep the rest down.
func buildSources(ctx context.Context, plugins []InputSourcePlugin) []source.Source {
	sources := make([]source.Source, 0, len(plugins))
	for _, plugin := range plugins {
		if !plugin.Enabled() {
			continue
		}
		src, err := plugin.Build(ctx)
		if err != nil {
			log.Printf("Error initializing input plugin %q: %v", plugin.Name(), err)
			continue
		}
		sources = append(sources, src)
	}
	return sources
}

func cleanupSocket(path string) {
	if path != "" {
		os.Remove(path)
	}
}

func configureRuntimeLogger() func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	home, err := os.UserHomeDir()
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logDir := filepath.Join(home, ".local", "state", "netglobe")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logPath := filepath.Join(logDir, "netglobe.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		_ = f.Close()
	}
}

func printStartupBanner(cfg appConfig, sourceNames []string, processorName string) {
	fmt.Println(renderStartupBanner(cfg, sourceNames, processorName))
}

func renderStartupBanner(cfg appConfig, sourceNames []string, processorName string) string {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╔╗╔╔═╗╔╦╗╔═╗╦  ╔═╗╔╗ ╔═╗
    ║║║║╣  ║ ║ ╦║  ║ ║╠╩╗║╣
    ╝╚╝╚═╝ ╩ ╚═╝╩═╝╚═╝╚═╝╚═╝`)

	active := make(map[string]bool, len(sourceNames))
	for _, name := range sourceNames {
		active[name] = true
	}
	row := func(on bool, label, value string) string {
		if on {
			return fmt.Sprintf("    %s  %-14s %s", check, label, cyan.Render(value))
		}
		return fmt.Sprintf("    %s  %-14s %s", dot, label, dim.Render(value))
	}
	orDisabled := func(on bool, value string) string {
		if on {
			return value
		}
		return "disabled"
	}

	separator := dim.Render("    ─────────────────────────────────")
	lines := []string{"", logo, "    " + dim.Render("v"+version), "", separator, ""}

	lines = append(lines, bold.Render("    Inputs"), "")
	lines = append(lines,
		row(active["tcp"], "TCP Ingest", orDisabled(active["tcp"], cfg.TCPAddr)),
		row(active["otlp"], "OTLP gRPC", orDisabled(active["otlp"], cfg.OTLPAddr)),
		row(active["generator"], "Generator", orDisabled(active["generator"], "every "+cfg.GeneratorInterval.String())),
		row(active["websocket"], "WebSocket", orDisabled(active["websocket"], cfg.WebSocketURL)),
		row(active["redis"], "Redis", orDisabled(active["redis"], cfg.RedisAddr+" #"+cfg.RedisChannel)),
		row(active["postgres"], "Postgres", orDisabled(active["postgres"], "LISTEN "+cfg.PostgresChannel)),
		row(active["replay"], "Replay", orDisabled(active["replay"], shortenPath(cfg.ReplayFile))),
		row(active["stdin"], "Stdin", orDisabled(active["stdin"], "piped")),
		"",
	)

	lines = append(lines, bold.Render("    Gateway"), "")
	lines = append(lines,
		row(cfg.APIEnabled, "HTTP API", orDisabled(cfg.APIEnabled, cfg.APIAddr)),
		row(true, "Unix Socket", shortenPath(cfg.SocketPath)),
		row(cfg.MirrorEnabled, "SQL Mirror", orDisabled(cfg.MirrorEnabled, "in-memory, every "+cfg.MirrorInterval.String())),
		"",
	)

	lines = append(lines, bold.Render("    Runtime"), "")
	lines = append(lines,
		row(true, "Processor", processorName),
		row(true, "Window", fmt.Sprintf("%d events / %d threats", cfg.RollingWindow, cfg.ThreatWindow)),
		row(cfg.GeoIPDB != "", "GeoIP", orDisabled(cfg.GeoIPDB != "", shortenPath(cfg.GeoIPDB))),
		"",
	)

	lines = append(lines, bold.Render("    Config"), "")
	if cfg.ConfigPath != "" {
		lines = append(lines, row(true, "Config File", shortenPath(cfg.ConfigPath)))
	} else {
		lines = append(lines, row(false, "Config File", "default (no file)"))
	}

	lines = append(lines, "", separator, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"), "")

	return strings.Join(lines, "\n")
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
