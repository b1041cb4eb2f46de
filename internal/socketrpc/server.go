package socketrpc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tinytelemetry/netglobe/internal/model"
)

const (
	// scannerInitBufSize is the initial buffer size for the per-connection scanner.
	scannerInitBufSize = 64 * 1024
	// scannerMaxTokenSize is the maximum request size the scanner will accept (1 MB).
	scannerMaxTokenSize = 1024 * 1024
)

var errMirrorDisabled = errors.New("window mirror is disabled")

// Server exposes the pipeline's read surface over a Unix domain socket
// using JSON-RPC 2.0.
type Server struct {
	socketPath string
	reader     model.SnapshotReader
	querier    model.WindowQuerier // nil disables Routes and Query
	listener   net.Listener
	wg         sync.WaitGroup
	quit       chan struct{}
	stopOnce   sync.Once

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewServer creates a new socket RPC server. querier may be nil.
func NewServer(socketPath string, reader model.SnapshotReader, querier model.WindowQuerier) *Server {
	return &Server{
		socketPath: socketPath,
		reader:     reader,
		querier:    querier,
		quit:       make(chan struct{}),
		conns:      make(map[net.Conn]struct{}),
	}
}

// Start begins listening on the Unix socket and accepting connections.
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0755); err != nil {
		return fmt.Errorf("socketrpc: mkdir: %w", err)
	}

	// A socket file nobody answers on is left over from a crash.
	if _, err := os.Stat(s.socketPath); err == nil {
		conn, dialErr := net.DialTimeout("unix", s.socketPath, 500*time.Millisecond)
		if dialErr != nil {
			os.Remove(s.socketPath)
		} else {
			conn.Close()
			return fmt.Errorf("socketrpc: another server is already listening on %s", s.socketPath)
		}
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("socketrpc: listen: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()

	log.Printf("socketrpc: listening on %s", s.socketPath)
	return nil
}

// Stop closes the listener and open connections, waits for handlers to
// return, and removes the socket file.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
		if s.listener != nil {
			s.listener.Close()
		}
		s.mu.Lock()
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
		os.Remove(s.socketPath)
	})
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				log.Printf("socketrpc: accept error: %v", err)
				continue
			}
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		select {
		case <-s.quit:
			return
		default:
		}

		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			resp := Response{JSONRPC: "2.0", Error: &RPCError{Code: CodeParseError, Message: "parse error"}}
			if encoder.Encode(resp) != nil {
				return
			}
			continue
		}

		if err := encoder.Encode(s.dispatch(req)); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	resp := Response{JSONRPC: "2.0", ID: req.ID}

	marshalResult := func(v interface{}, err error) Response {
		if err != nil {
			resp.Error = &RPCError{Code: CodeAppError, Message: err.Error()}
			return resp
		}
		data, merr := json.Marshal(v)
		if merr != nil {
			resp.Error = &RPCError{Code: CodeInternalError, Message: merr.Error()}
			return resp
		}
		resp.Result = data
		return resp
	}

	invalidParams := func(err error) Response {
		resp.Error = &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
		return resp
	}

	// Limit params are optional; only genuinely malformed JSON is rejected.
	var limit struct{ Limit int }
	decodeLimit := func() error {
		if len(req.Params) == 0 || string(req.Params) == "null" {
			return nil
		}
		return json.Unmarshal(req.Params, &limit)
	}

	switch req.Method {
	case "Snapshot":
		return marshalResult(s.reader.Snapshot(), nil)

	case "Events":
		if err := decodeLimit(); err != nil {
			return invalidParams(err)
		}
		return marshalResult(head(s.reader.Snapshot().Events, limit.Limit), nil)

	case "Threats":
		if err := decodeLimit(); err != nil {
			return invalidParams(err)
		}
		return marshalResult(head(s.reader.Snapshot().Threats, limit.Limit), nil)

	case "Stats":
		return marshalResult(s.reader.Snapshot().Stats, nil)

	case "Visuals":
		snap := s.reader.Snapshot()
		return marshalResult(model.Visuals{Arcs: snap.Arcs, Rings: snap.Rings, Points: snap.Points}, nil)

	case "TotalCount":
		return marshalResult(s.reader.TotalCount(), nil)

	case "Routes":
		if err := decodeLimit(); err != nil {
			return invalidParams(err)
		}
		if s.querier == nil {
			return marshalResult(nil, errMirrorDisabled)
		}
		return marshalResult(s.querier.TopRoutes(limit.Limit))

	case "Query":
		var p struct{ SQL string }
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return invalidParams(err)
		}
		if p.SQL == "" {
			return invalidParams(errors.New("SQL is required"))
		}
		if s.querier == nil {
			return marshalResult(nil, errMirrorDisabled)
		}
		return marshalResult(s.querier.ExecuteQuery(p.SQL))

	default:
		resp.Error = &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
		return resp
	}
}

// head returns up to limit leading events; limit <= 0 returns all.
func head(events []model.TrafficEvent, limit int) []model.TrafficEvent {
	if events == nil {
		return []model.TrafficEvent{}
	}
	if limit > 0 && limit < len(events) {
		return events[:limit]
	}
	return events
}
