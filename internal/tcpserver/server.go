package tcpserver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinytelemetry/netglobe/internal/model"
)

const (
	// DefaultAddr is the listen address used when none is configured.
	DefaultAddr = "127.0.0.1:4000"

	// DefaultLineChannelSize is the default buffer size for the incoming line channel.
	DefaultLineChannelSize = 10_000

	// DefaultMaxLineSize is the default maximum size (in bytes) of a single line.
	DefaultMaxLineSize = 1024 * 1024 // 1MB

	// DefaultMaxConnections caps concurrently served producers.
	DefaultMaxConnections = 64
)

// ServerConfig holds tunable parameters for the TCP server.
type ServerConfig struct {
	LineChannelSize int
	MaxLineSize     int
	MaxConnections  int
	// IdleTimeout closes a connection that sends nothing for this long.
	// Zero disables the deadline.
	IdleTimeout time.Duration
}

// Server accepts newline-delimited JSON traffic events over TCP. Each
// connection is scanned line by line; lines are tagged with the "tcp"
// source and handed to the ingest processor through Lines.
type Server struct {
	listener       net.Listener
	addr           string
	lineChan       chan model.IngestEnvelope
	maxLineSize    int
	idleTimeout    time.Duration
	slots          chan struct{}
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	stopOnce       sync.Once
	active         atomic.Int64
	served         atomic.Int64
	lastRefusedLog atomic.Int64
}

// NewServer creates a new TCP server. An empty addr selects DefaultAddr.
func NewServer(addr string, conf ...ServerConfig) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	lineChannelSize := DefaultLineChannelSize
	maxLineSize := DefaultMaxLineSize
	maxConns := DefaultMaxConnections
	var idle time.Duration
	if len(conf) > 0 {
		if conf[0].LineChannelSize > 0 {
			lineChannelSize = conf[0].LineChannelSize
		}
		if conf[0].MaxLineSize > 0 {
			maxLineSize = conf[0].MaxLineSize
		}
		if conf[0].MaxConnections > 0 {
			maxConns = conf[0].MaxConnections
		}
		if conf[0].IdleTimeout > 0 {
			idle = conf[0].IdleTimeout
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:        addr,
		lineChan:    make(chan model.IngestEnvelope, lineChannelSize),
		maxLineSize: maxLineSize,
		idleTimeout: idle,
		slots:       make(chan struct{}, maxConns),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins accepting TCP connections.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("tcpserver: listen %s: %w", s.addr, err)
	}
	s.listener = listener

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		select {
		case s.slots <- struct{}{}:
		default:
			s.logRefused(conn.RemoteAddr())
			_ = conn.Close()
			continue
		}
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	s.active.Add(1)
	s.served.Add(1)
	defer func() {
		s.active.Add(-1)
		<-s.slots
		s.wg.Done()
	}()
	defer conn.Close()

	// Unblock the scanner when the server stops.
	stop := context.AfterFunc(s.ctx, func() { _ = conn.Close() })
	defer stop()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), s.maxLineSize)

	for {
		if s.idleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		}
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		select {
		case s.lineChan <- model.IngestEnvelope{Source: "tcp", Line: line}:
		case <-s.ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil && s.ctx.Err() == nil {
		var netErr net.Error
		switch {
		case errors.Is(err, bufio.ErrTooLong):
			log.Printf("tcpserver: dropped connection %s due to line exceeding max size (%d bytes)", conn.RemoteAddr(), s.maxLineSize)
		case errors.As(err, &netErr) && netErr.Timeout():
			log.Printf("tcpserver: closed idle connection %s", conn.RemoteAddr())
		default:
			log.Printf("tcpserver: scanner error from %s: %v", conn.RemoteAddr(), err)
		}
	}
}

func (s *Server) logRefused(remote net.Addr) {
	now := time.Now().Unix()
	last := s.lastRefusedLog.Load()
	if now-last >= 10 && s.lastRefusedLog.CompareAndSwap(last, now) {
		log.Printf("tcpserver: refusing %s, %d connections already open", remote, cap(s.slots))
	}
}

// Stop gracefully shuts down the TCP server. It is safe to call more than once.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		s.cancel()
		if s.listener != nil {
			err = s.listener.Close()
		}
		s.wg.Wait()
		close(s.lineChan)
	})
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

// Lines returns the channel of received lines.
func (s *Server) Lines() <-chan model.IngestEnvelope {
	return s.lineChan
}

// Addr returns the active listen address.
// Before Start, it returns the configured address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Connections returns the number of open and total served connections.
func (s *Server) Connections() (active, served int64) {
	return s.active.Load(), s.served.Load()
}
