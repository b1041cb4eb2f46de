package ingest

import (
	"testing"

	"github.com/tinytelemetry/netglobe/internal/model"
)

type cityEnricher struct{}

func (cityEnricher) Enrich(e *model.RawEvent) {
	if e.SrcCity == "" {
		e.SrcCity = "Enriched"
	}
}

func TestProcessor_SingleLine(t *testing.T) {
	t.Parallel()
	sink := &recordingSink{}
	p := NewProcessor(sink, cityEnricher{})

	res := p.ProcessEnvelope(model.IngestEnvelope{Source: "tcp", Line: `{"src_ip":"1.2.3.4","protocol":"tcp","packet_size":100}`})
	if res == nil || len(res.Events) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if sink.events[0].SrcCity != "Enriched" {
		t.Errorf("SrcCity = %q, want enriched", sink.events[0].SrcCity)
	}
	if accepted, rejected := p.Counts(); accepted != 1 || rejected != 0 {
		t.Errorf("Counts() = %d, %d; want 1, 0", accepted, rejected)
	}
}

func TestProcessor_MultiLineDocument(t *testing.T) {
	t.Parallel()
	sink := &recordingSink{}
	p := NewProcessor(sink, nil)

	lines := []string{
		`{`,
		`  "src_ip": "8.8.8.8",`,
		`  "protocol": "DNS",`,
		`  "packet_size": 80`,
		`}`,
	}
	for i, line := range lines[:len(lines)-1] {
		if res := p.ProcessEnvelope(model.IngestEnvelope{Source: "stdin", Line: line}); res != nil {
			t.Fatalf("line %d produced a result before the document closed", i)
		}
	}
	res := p.ProcessEnvelope(model.IngestEnvelope{Source: "stdin", Line: lines[len(lines)-1]})
	if res == nil || len(res.Events) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if sink.events[0].SrcIP != "8.8.8.8" {
		t.Errorf("SrcIP = %q", sink.events[0].SrcIP)
	}
}

func TestProcessor_InterleavedSourcesAccumulateSeparately(t *testing.T) {
	t.Parallel()
	sink := &recordingSink{}
	p := NewProcessor(sink, nil)

	p.ProcessEnvelope(model.IngestEnvelope{Source: "a", Line: `{`})
	p.ProcessEnvelope(model.IngestEnvelope{Source: "b", Line: `{"src_ip":"2.2.2.2"}`})
	p.ProcessEnvelope(model.IngestEnvelope{Source: "a", Line: `"src_ip":"1.1.1.1"}`})

	if len(sink.events) != 2 {
		t.Fatalf("sink received %d events, want 2", len(sink.events))
	}
	if sink.events[0].SrcIP != "2.2.2.2" || sink.events[1].SrcIP != "1.1.1.1" {
		t.Errorf("events = %+v", sink.events)
	}
}

func TestProcessor_StructuredEnvelope(t *testing.T) {
	t.Parallel()
	sink := &recordingSink{}
	p := NewProcessor(sink, nil)

	raw := model.RawEvent{SrcIP: "3.3.3.3", Protocol: "icmp", ThreatLevel: -1}
	res := p.ProcessEnvelope(model.IngestEnvelope{Source: "generator", Event: &raw})
	if res == nil || len(res.Events) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if sink.events[0].Protocol != "ICMP" || sink.events[0].ThreatLevel != 0 {
		t.Errorf("event not normalized: %+v", sink.events[0])
	}
	if raw.Protocol != "icmp" {
		t.Error("processor mutated the caller's event")
	}
}

func TestProcessor_RejectsGarbage(t *testing.T) {
	t.Parallel()
	sink := &recordingSink{}
	p := NewProcessor(sink, nil)

	if res := p.ProcessLine("hello world"); res != nil {
		t.Fatalf("garbage produced %+v", res)
	}
	if res := p.ProcessLine(""); res != nil {
		t.Fatalf("empty line produced %+v", res)
	}
	if _, rejected := p.Counts(); rejected != 1 {
		t.Errorf("rejected = %d, want 1", rejected)
	}
}
