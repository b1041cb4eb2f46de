package source

import (
	"github.com/tinytelemetry/netglobe/internal/model"
	"github.com/tinytelemetry/netglobe/internal/tcpserver"
)

// TCPSource wraps a tcpserver.Server as a Source.
type TCPSource struct {
	server *tcpserver.Server
}

// NewTCP creates a TCPSource from an already-started TCP server.
func NewTCP(server *tcpserver.Server) *TCPSource {
	return &TCPSource{server: server}
}

func (t *TCPSource) Envelopes() <-chan model.IngestEnvelope { return t.server.Lines() }
func (t *TCPSource) Stop()                                  { _ = t.server.Stop() }
func (t *TCPSource) Name() string                           { return "tcp" }
