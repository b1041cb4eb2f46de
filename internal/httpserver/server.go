package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tinytelemetry/netglobe/internal/model"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = "127.0.0.1:3000"

// Server provides the HTTP API over the live pipeline state: JSON reads,
// a GeoJSON export of the visual entities, a WebSocket snapshot stream,
// SQL over the mirrored window and Prometheus metrics.
type Server struct {
	addr      string
	reader    model.SnapshotReader
	querier   model.WindowQuerier // nil disables the SQL endpoints
	hub       *Hub
	metrics   *metrics
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server. querier may be nil.
func NewServer(addr string, reader model.SnapshotReader, querier model.WindowQuerier) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	return &Server{
		addr:      addr,
		reader:    reader,
		querier:   querier,
		hub:       hub,
		metrics:   newMetrics(reader, hub),
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
}

// Hub returns the stream hub. Register Hub().Publish as a pipeline observer.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.metrics.instrument)
	r.GET("/metrics", s.metrics.handler())

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/snapshot", s.handleSnapshot)
	api.GET("/events", s.handleEvents)
	api.GET("/threats", s.handleThreats)
	api.GET("/stats", s.handleStats)
	api.GET("/visuals", s.handleVisuals)
	api.GET("/visuals.geojson", s.handleVisualsGeoJSON)
	api.GET("/stream", s.handleStream)
	api.GET("/schema", s.requireQuerier, s.handleSchema)
	api.GET("/routes", s.requireQuerier, s.handleRoutes)
	api.POST("/query", s.requireQuerier, s.handleQuery)
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.routes(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("httpserver: listen %s: %w", s.addr, err)
	}
	s.listener = listener
	s.startTime = time.Now()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("httpserver: serve: %v", err)
		}
	}()
	return nil
}

// Stop closes stream clients and gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	s.hub.Close()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Addr returns the active listen address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}
