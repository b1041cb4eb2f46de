package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/tinytelemetry/netglobe/internal/model"
	"github.com/tinytelemetry/netglobe/internal/timefmt"
)

func TestSortedDistribution(t *testing.T) {
	got := sortedDistribution(map[string]int{"UDP": 2, "TCP": 5, "ICMP": 2})
	want := []string{"TCP", "ICMP", "UDP"}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i, k := range want {
		if got[i].key != k {
			t.Fatalf("entry %d = %q, want %q (%v)", i, got[i].key, k, got)
		}
	}
}

func TestRenderDistribution_LimitsRows(t *testing.T) {
	out := renderDistribution(map[string]int{"a": 3, "b": 2, "c": 1}, 2, 40, nil)
	if lines := strings.Split(out, "\n"); len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), out)
	}
	if strings.Contains(out, "c ") {
		t.Fatalf("lowest entry should be cut:\n%s", out)
	}
	if got := renderDistribution(nil, 5, 40, nil); !strings.Contains(got, "None") {
		t.Fatalf("empty distribution = %q", got)
	}
}

func TestCountryName(t *testing.T) {
	if got := countryName("US"); got == "US" || got == "" {
		t.Fatalf("countryName(US) = %q, want a full name", got)
	}
	if got := countryName("atlantis"); got != "atlantis" {
		t.Fatalf("unknown code should pass through, got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 4, "hel…"},
		{"hello", 1, "…"},
		{"hello", 0, ""},
		{"→→→→", 3, "→→…"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestFormatEventLine(t *testing.T) {
	clock := timefmt.New(time.UTC)
	port := 8443
	e := model.TrafficEvent{
		CreatedAt: time.Date(2025, 3, 1, 10, 4, 5, 0, time.UTC),
		SrcIP:     "1.1.1.1", DstIP: "2.2.2.2", Protocol: "TCP", Port: &port, PacketSize: 64, Status: "allowed",
	}
	line := formatEventLine(e, clock, 200)
	for _, want := range []string{"10:04:05", "1.1.1.1", "2.2.2.2", "8443", "allowed"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}

	e.Port = nil
	if line := formatEventLine(e, clock, 200); !strings.Contains(line, " - ") {
		t.Errorf("portless event should show '-': %q", line)
	}
}

func TestRenderThreats(t *testing.T) {
	clock := timefmt.New(time.UTC)
	if got := renderThreats(nil, 0, 5, 60, clock); !strings.Contains(got, "No active threats") {
		t.Fatalf("empty threats = %q", got)
	}

	threats := []model.TrafficEvent{
		{ThreatLevel: 5, ThreatType: "malware", SrcCountryCode: "RU", DstCountryCode: "US"},
		{ThreatLevel: 2, ThreatType: "scan", SrcCountryCode: "CN", DstCountryCode: "DE"},
	}
	out := renderThreats(threats, 1, 5, 60, clock)
	if strings.Contains(out, "malware") || !strings.Contains(out, "scan") {
		t.Fatalf("offset 1 should skip the first threat:\n%s", out)
	}
	if !strings.Contains(renderThreats(threats, 0, 5, 60, clock), "SEVERE") {
		t.Fatal("threat rows should carry the level label")
	}
}

func TestRenderBandwidth(t *testing.T) {
	if got := renderBandwidth(nil, 40, 6); !strings.Contains(got, "No data") {
		t.Fatalf("empty history = %q", got)
	}
	out := renderBandwidth([]int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 40, 6)
	if out == "" || strings.Contains(out, "No data") {
		t.Fatalf("expected a chart, got %q", out)
	}
	if got := bandwidthTitle([]int64{0, 2048}); !strings.Contains(got, "2.0 KiB") {
		t.Fatalf("title = %q", got)
	}
}
