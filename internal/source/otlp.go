package source

import (
	"github.com/tinytelemetry/netglobe/internal/model"
	"github.com/tinytelemetry/netglobe/internal/otlpreceiver"
)

// OTLPSource wraps an otlpreceiver.Server as a Source.
type OTLPSource struct {
	server *otlpreceiver.Server
}

// NewOTLP creates an OTLPSource from an already-started receiver.
func NewOTLP(server *otlpreceiver.Server) *OTLPSource {
	return &OTLPSource{server: server}
}

func (o *OTLPSource) Envelopes() <-chan model.IngestEnvelope { return o.server.Events() }
func (o *OTLPSource) Stop()                                  { o.server.Stop() }
func (o *OTLPSource) Name() string                           { return "otlp" }
