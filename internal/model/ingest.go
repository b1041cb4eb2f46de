package model

// IngestEnvelope carries one inbound item with source metadata.
// Text transports (TCP, stdin, WebSocket, Redis, Postgres) set Line;
// structured producers (generator, OTLP, replay) set Event directly.
// It is the transport contract between ingestion plugins and processing.
type IngestEnvelope struct {
	Source string
	Line   string
	Event  *RawEvent
}

// Empty reports whether the envelope carries nothing to process.
func (e IngestEnvelope) Empty() bool {
	return e.Line == "" && e.Event == nil
}
