package ingest

import (
	"fmt"

	"github.com/tinytelemetry/netglobe/internal/model"
)

const (
	// ProcessorNameJSON is the default processor: flat rows, arrays,
	// change-feed envelopes and OTLP/JSON.
	ProcessorNameJSON = "json"
	// ProcessorNameOTLP accepts only OTLP/JSON logs exports.
	ProcessorNameOTLP = "otlp"
)

// EventSink receives parsed events. *pipeline.Pipeline satisfies it.
type EventSink interface {
	Push(model.RawEvent) model.TrafficEvent
}

// Enricher fills in missing event fields (for example geolocation) before
// events reach the sink.
type Enricher interface {
	Enrich(*model.RawEvent)
}

// EnvelopeProcessor consumes source-tagged ingest items and emits events.
type EnvelopeProcessor interface {
	Name() string
	ProcessEnvelope(model.IngestEnvelope) *ProcessResult
}

// NewEnvelopeProcessor creates the processor for the given mode.
// An empty mode selects the JSON processor.
func NewEnvelopeProcessor(mode string, sink EventSink, enricher Enricher) (EnvelopeProcessor, error) {
	switch mode {
	case "", ProcessorNameJSON:
		return NewProcessor(sink, enricher), nil
	case ProcessorNameOTLP:
		p := NewProcessor(sink, enricher)
		p.otlpOnly = true
		return p, nil
	default:
		return nil, fmt.Errorf("unknown processor %q (want %q or %q)", mode, ProcessorNameJSON, ProcessorNameOTLP)
	}
}
