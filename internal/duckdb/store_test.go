package duckdb

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tinytelemetry/netglobe/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore()
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func windowEvent(id, src, dst string, size, threat int) model.TrafficEvent {
	port := 443
	return model.TrafficEvent{
		ID:             id,
		CreatedAt:      time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		SrcIP:          "203.0.113.1",
		SrcCountryCode: src,
		SrcLat:         1,
		SrcLng:         2,
		DstIP:          "198.51.100.1",
		DstCountryCode: dst,
		DstLat:         3,
		DstLng:         4,
		Protocol:       "HTTPS",
		Port:           &port,
		PacketSize:     size,
		ThreatLevel:    threat,
		Status:         "active",
	}
}

func TestReplaceWindow_SwapsContents(t *testing.T) {
	s := newTestStore(t)

	first := []model.TrafficEvent{
		windowEvent("a", "US", "DE", 100, 0),
		windowEvent("b", "US", "DE", 200, 3),
	}
	if err := s.ReplaceWindow(first); err != nil {
		t.Fatalf("ReplaceWindow: %v", err)
	}
	counts, err := s.TableRowCounts()
	if err != nil {
		t.Fatalf("TableRowCounts: %v", err)
	}
	if counts["traffic_window"] != 2 || counts["threat_window"] != 1 {
		t.Fatalf("counts = %v, want 2 rows / 1 threat", counts)
	}

	second := []model.TrafficEvent{windowEvent("c", "JP", "BR", 50, 0)}
	if err := s.ReplaceWindow(second); err != nil {
		t.Fatalf("ReplaceWindow: %v", err)
	}
	rows, err := s.ExecuteQuery("SELECT id, position, port, threat_type FROM traffic_window")
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}
	if len(rows) != 1 || rows[0]["id"] != "c" {
		t.Fatalf("rows = %v, want only c", rows)
	}
	if rows[0]["threat_type"] != nil {
		t.Fatalf("threat_type = %v, want NULL", rows[0]["threat_type"])
	}
}

func TestReplaceWindow_NullPort(t *testing.T) {
	s := newTestStore(t)

	e := windowEvent("a", "US", "DE", 100, 0)
	e.Port = nil
	if err := s.ReplaceWindow([]model.TrafficEvent{e}); err != nil {
		t.Fatalf("ReplaceWindow: %v", err)
	}
	rows, err := s.ExecuteQuery("SELECT COUNT(*) AS n FROM traffic_window WHERE port IS NULL")
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}
	if n, _ := rows[0]["n"].(int64); n != 1 {
		t.Fatalf("null ports = %v, want 1", rows[0]["n"])
	}
}

func TestTopRoutes(t *testing.T) {
	s := newTestStore(t)

	window := []model.TrafficEvent{
		windowEvent("1", "US", "DE", 100, 0),
		windowEvent("2", "US", "DE", 300, 2),
		windowEvent("3", "JP", "BR", 1000, 0),
		windowEvent("4", "US", "DE", 50, 0),
	}
	if err := s.ReplaceWindow(window); err != nil {
		t.Fatalf("ReplaceWindow: %v", err)
	}
	routes, err := s.TopRoutes(5)
	if err != nil {
		t.Fatalf("TopRoutes: %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("len(routes) = %d, want 2", len(routes))
	}
	want := model.RouteCount{Src: "US", Dst: "DE", Events: 3, Bytes: 450, Threats: 1}
	if routes[0] != want {
		t.Fatalf("routes[0] = %+v, want %+v", routes[0], want)
	}
}

func TestExecuteQuery_RejectsWrites(t *testing.T) {
	s := newTestStore(t)

	bad := []string{
		"",
		"DELETE FROM traffic_window",
		"SELECT 1; DROP TABLE traffic_window",
		"WITH x AS (SELECT 1) INSERT INTO traffic_window SELECT * FROM x",
		"/* comment */ UPDATE traffic_window SET status = 'x'",
		"SELECT * FROM read_csv('/etc/passwd')",
		"PRAGMA database_list",
	}
	for _, q := range bad {
		if _, err := s.ExecuteQuery(q); err == nil {
			t.Errorf("ExecuteQuery(%q) succeeded, want rejection", q)
		}
	}
}

func TestExecuteQuery_AllowsCommentsAndCTEs(t *testing.T) {
	s := newTestStore(t)
	if err := s.ReplaceWindow([]model.TrafficEvent{windowEvent("a", "US", "DE", 100, 4)}); err != nil {
		t.Fatalf("ReplaceWindow: %v", err)
	}

	rows, err := s.ExecuteQuery("-- threats only\nWITH t AS (SELECT * FROM threat_window) SELECT COUNT(*) AS n FROM t")
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}
	if n, _ := rows[0]["n"].(int64); n != 1 {
		t.Fatalf("n = %v, want 1", rows[0]["n"])
	}
}

func TestGetSchemaDescription_NamesRelations(t *testing.T) {
	s := newTestStore(t)
	desc := s.GetSchemaDescription()
	for _, want := range []string{"traffic_window", "threat_window", "threat_level"} {
		if !strings.Contains(desc, want) {
			t.Errorf("schema description missing %q", want)
		}
	}
}

type recordingWriter struct {
	mu      sync.Mutex
	windows [][]model.TrafficEvent
}

func (w *recordingWriter) ReplaceWindow(events []model.TrafficEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.windows = append(w.windows, events)
	return nil
}

func (w *recordingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.windows)
}

func TestMirror_CoalescesAndFlushesOnStop(t *testing.T) {
	t.Parallel()

	w := &recordingWriter{}
	m := NewMirror(w, time.Hour)
	m.Offer([]model.TrafficEvent{windowEvent("a", "US", "DE", 1, 0)})
	m.Observe(model.Snapshot{Events: []model.TrafficEvent{windowEvent("b", "US", "DE", 1, 0)}})
	m.Stop()
	m.Stop()

	if w.count() != 1 {
		t.Fatalf("writes = %d, want 1 coalesced write", w.count())
	}
	if got := w.windows[0][0].ID; got != "b" {
		t.Fatalf("written window = %q, want latest b", got)
	}
}

func TestMirror_SkipsWhenClean(t *testing.T) {
	t.Parallel()

	w := &recordingWriter{}
	m := NewMirror(w, 5*time.Millisecond)
	m.Offer(nil)
	deadline := time.Now().Add(2 * time.Second)
	for w.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(30 * time.Millisecond)
	m.Stop()
	if w.count() != 1 {
		t.Fatalf("writes = %d, want 1", w.count())
	}
}
