package ingest

import (
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinytelemetry/netglobe/internal/model"
)

// Processor parses inbound lines into events and routes them to the sink.
// Lines are accumulated per source so a pretty-printed JSON document split
// across lines is parsed once complete.
type Processor struct {
	sink     EventSink
	enricher Enricher
	otlpOnly bool

	mu      sync.Mutex
	pending map[string]*jsonAccumulator

	accepted atomic.Int64
	rejected atomic.Int64
	lastLog  atomic.Int64 // unix timestamp of last rejection log
}

type jsonAccumulator struct {
	buf   strings.Builder
	depth int
}

// NewProcessor creates a new event processor.
func NewProcessor(sink EventSink, enricher Enricher) *Processor {
	return &Processor{
		sink:     sink,
		enricher: enricher,
		pending:  make(map[string]*jsonAccumulator),
	}
}

// ProcessResult holds the events produced from one envelope.
type ProcessResult struct {
	Events []model.TrafficEvent
}

// Name returns the processor mode.
func (p *Processor) Name() string {
	if p.otlpOnly {
		return ProcessorNameOTLP
	}
	return ProcessorNameJSON
}

// ProcessEnvelope processes one source-tagged item. It returns nil when the
// item was consumed into a multi-line document or could not be parsed.
func (p *Processor) ProcessEnvelope(env model.IngestEnvelope) *ProcessResult {
	if env.Event != nil {
		e := *env.Event
		Normalize(&e)
		return p.emit([]model.RawEvent{e})
	}
	if env.Line == "" {
		return nil
	}

	doc, complete := p.accumulate(env.Source, env.Line)
	if !complete {
		return nil
	}

	if p.otlpOnly && !strings.Contains(doc, "resourceLogs") {
		p.reject(env.Source, "not an OTLP logs export")
		return nil
	}
	events, err := ParseEvents(doc)
	if err != nil {
		p.reject(env.Source, err.Error())
		return nil
	}
	return p.emit(events)
}

// ProcessLine processes an untagged line.
func (p *Processor) ProcessLine(line string) *ProcessResult {
	return p.ProcessEnvelope(model.IngestEnvelope{Line: line})
}

func (p *Processor) emit(raws []model.RawEvent) *ProcessResult {
	result := &ProcessResult{Events: make([]model.TrafficEvent, 0, len(raws))}
	for i := range raws {
		if p.enricher != nil {
			p.enricher.Enrich(&raws[i])
		}
		if p.sink != nil {
			result.Events = append(result.Events, p.sink.Push(raws[i]))
		}
	}
	p.accepted.Add(int64(len(raws)))
	return result
}

// accumulate buffers lines of a JSON document that spans several lines.
// It returns the complete document once its brackets balance.
func (p *Processor) accumulate(source, line string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, inProgress := p.pending[source]
	if !inProgress {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
			return line, true
		}
		depth := CountJSONDepth(line)
		if depth <= 0 {
			return line, true
		}
		acc = &jsonAccumulator{depth: depth}
		acc.buf.WriteString(line)
		acc.buf.WriteString("\n")
		p.pending[source] = acc
		return "", false
	}

	acc.buf.WriteString(line)
	acc.buf.WriteString("\n")
	acc.depth += CountJSONDepth(line)
	if acc.depth > 0 {
		return "", false
	}
	delete(p.pending, source)
	return strings.TrimSpace(acc.buf.String()), true
}

// CountJSONDepth counts the net change in JSON nesting depth for a line.
func CountJSONDepth(line string) int {
	depth := 0
	inString := false
	escaped := false

	for _, char := range line {
		if escaped {
			escaped = false
			continue
		}

		switch char {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{', '[':
			if !inString {
				depth++
			}
		case '}', ']':
			if !inString {
				depth--
			}
		}
	}

	return depth
}

// reject counts an unparseable item and logs at most once per 10 seconds.
func (p *Processor) reject(source, reason string) {
	count := p.rejected.Add(1)
	now := time.Now().Unix()
	last := p.lastLog.Load()
	if now-last >= 10 && p.lastLog.CompareAndSwap(last, now) {
		log.Printf("ingest: dropping unparseable input from %q (%d rejected so far): %s", source, count, reason)
	}
}

// Counts returns the number of accepted events and rejected inputs.
func (p *Processor) Counts() (accepted, rejected int64) {
	return p.accepted.Load(), p.rejected.Load()
}
