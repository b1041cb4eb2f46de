package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/biter777/countries"
	"github.com/tinytelemetry/netglobe/internal/model"
	"github.com/tinytelemetry/netglobe/internal/severity"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"google.golang.org/protobuf/encoding/protojson"
)

// ErrEmptyLine is returned for blank input.
var ErrEmptyLine = errors.New("empty line")

// ParseEvents parses one complete JSON document into raw events.
// Accepted shapes:
//   - a single event row: {"src_ip": ..., "protocol": ..., ...}
//   - an array of event rows
//   - a change-feed envelope carrying the row under "record" or "new"
//   - an OTLP/JSON logs export request ({"resourceLogs": [...]})
func ParseEvents(doc string) ([]model.RawEvent, error) {
	trimmed := bytes.TrimSpace([]byte(doc))
	if len(trimmed) == 0 {
		return nil, ErrEmptyLine
	}

	if trimmed[0] == '[' {
		var rows []json.RawMessage
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("decode event array: %w", err)
		}
		events := make([]model.RawEvent, 0, len(rows))
		for i, row := range rows {
			e, err := parseRow(row)
			if err != nil {
				return nil, fmt.Errorf("event %d: %w", i, err)
			}
			events = append(events, e)
		}
		return events, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	if _, ok := probe["resourceLogs"]; ok {
		var req collogspb.ExportLogsServiceRequest
		if err := protojson.Unmarshal(trimmed, &req); err != nil {
			return nil, fmt.Errorf("decode otlp logs: %w", err)
		}
		return EventsFromOTLP(&req), nil
	}

	for _, key := range []string{"record", "new"} {
		if inner, ok := probe[key]; ok && len(inner) > 0 && inner[0] == '{' {
			e, err := parseRow(inner)
			if err != nil {
				return nil, err
			}
			return []model.RawEvent{e}, nil
		}
	}

	e, err := parseRow(trimmed)
	if err != nil {
		return nil, err
	}
	return []model.RawEvent{e}, nil
}

func parseRow(row []byte) (model.RawEvent, error) {
	var e model.RawEvent
	if err := json.Unmarshal(row, &e); err != nil {
		return e, fmt.Errorf("decode event: %w", err)
	}
	Normalize(&e)
	return e, nil
}

// Normalize canonicalizes an inbound event in place: country codes become
// ISO alpha-2 where recognizable, protocols are upper-cased, threat levels
// are clamped to 0..5, and status defaults to "active".
func Normalize(e *model.RawEvent) {
	e.SrcIP = strings.TrimSpace(e.SrcIP)
	e.DstIP = strings.TrimSpace(e.DstIP)
	e.SrcCountryCode = NormalizeCountry(e.SrcCountryCode)
	e.DstCountryCode = NormalizeCountry(e.DstCountryCode)
	e.SrcCity = strings.TrimSpace(e.SrcCity)
	e.DstCity = strings.TrimSpace(e.DstCity)
	e.Protocol = strings.ToUpper(strings.TrimSpace(e.Protocol))
	e.ThreatType = strings.TrimSpace(e.ThreatType)

	e.ThreatLevel = severity.Clamp(e.ThreatLevel)
	if e.PacketSize < 0 {
		e.PacketSize = 0
	}
	if e.Port != nil && (*e.Port < 0 || *e.Port > 65535) {
		e.Port = nil
	}
	if e.Status == "" {
		e.Status = "active"
	}
}

// NormalizeCountry maps a country code or name to its ISO 3166-1 alpha-2
// code. Unrecognized values are upper-cased and passed through.
func NormalizeCountry(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if c := countries.ByName(value); c != countries.Unknown {
		return c.Alpha2()
	}
	return strings.ToUpper(value)
}

// CountryName returns the English name for an alpha-2 code, or the code
// itself when unknown.
func CountryName(code string) string {
	if c := countries.ByName(code); c != countries.Unknown {
		return c.String()
	}
	return code
}
