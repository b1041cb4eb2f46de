// Package otlpreceiver accepts OTLP/gRPC log exports and turns each log
// record that describes a flow into a traffic event.
package otlpreceiver

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/tinytelemetry/netglobe/internal/ingest"
	"github.com/tinytelemetry/netglobe/internal/model"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
)

const (
	// DefaultAddr is the standard OTLP/gRPC port on localhost.
	DefaultAddr = "127.0.0.1:4317"

	// DefaultChannelSize is the default buffer of decoded events.
	DefaultChannelSize = 10_000

	// DefaultMaxRecvMsgSize bounds a single export request.
	DefaultMaxRecvMsgSize = 16 * 1024 * 1024
)

// Config holds tunable parameters for the receiver.
type Config struct {
	ChannelSize    int
	MaxRecvMsgSize int
}

// Server is an OTLP LogsService endpoint.
type Server struct {
	collogspb.UnimplementedLogsServiceServer

	addr     string
	events   chan model.IngestEnvelope
	grpc     *grpc.Server
	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewServer creates a receiver. An empty addr selects DefaultAddr.
func NewServer(addr string, conf ...Config) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	c := Config{ChannelSize: DefaultChannelSize, MaxRecvMsgSize: DefaultMaxRecvMsgSize}
	if len(conf) > 0 {
		if conf[0].ChannelSize > 0 {
			c.ChannelSize = conf[0].ChannelSize
		}
		if conf[0].MaxRecvMsgSize > 0 {
			c.MaxRecvMsgSize = conf[0].MaxRecvMsgSize
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		addr:   addr,
		events: make(chan model.IngestEnvelope, c.ChannelSize),
		ctx:    ctx,
		cancel: cancel,
	}
	s.grpc = grpc.NewServer(
		grpc.MaxRecvMsgSize(c.MaxRecvMsgSize),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: 5 * time.Minute,
			Time:              30 * time.Second,
			Timeout:           10 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             10 * time.Second,
			PermitWithoutStream: true,
		}),
	)
	collogspb.RegisterLogsServiceServer(s.grpc, s)
	return s
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("otlpreceiver: listen %s: %w", s.addr, err)
	}
	s.listener = listener

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.grpc.Serve(listener); err != nil {
			log.Printf("otlpreceiver: serve: %v", err)
		}
	}()
	return nil
}

// Export implements the OTLP LogsService.
func (s *Server) Export(ctx context.Context, req *collogspb.ExportLogsServiceRequest) (*collogspb.ExportLogsServiceResponse, error) {
	events := ingest.EventsFromOTLP(req)
	for i := range events {
		select {
		case s.events <- model.IngestEnvelope{Source: "otlp", Event: &events[i]}:
		case <-ctx.Done():
			return nil, status.FromContextError(ctx.Err()).Err()
		case <-s.ctx.Done():
			return nil, status.Error(codes.Unavailable, "receiver shutting down")
		}
	}

	resp := &collogspb.ExportLogsServiceResponse{}
	if rejected := countRecords(req) - len(events); rejected > 0 {
		resp.PartialSuccess = &collogspb.ExportLogsPartialSuccess{
			RejectedLogRecords: int64(rejected),
			ErrorMessage:       "log records without src/dst attributes are not traffic events",
		}
	}
	return resp, nil
}

func countRecords(req *collogspb.ExportLogsServiceRequest) int {
	n := 0
	for _, rl := range req.GetResourceLogs() {
		for _, sl := range rl.GetScopeLogs() {
			n += len(sl.GetLogRecords())
		}
	}
	return n
}

// Stop drains in-flight exports and closes the event channel.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		s.grpc.GracefulStop()
		s.wg.Wait()
		close(s.events)
	})
}

// Events returns the channel of decoded events.
func (s *Server) Events() <-chan model.IngestEnvelope {
	return s.events
}

// Addr returns the active listen address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}
