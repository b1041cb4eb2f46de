package socketrpc_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tinytelemetry/netglobe/internal/model"
	"github.com/tinytelemetry/netglobe/internal/socketrpc"
)

// mockReader serves a fixed snapshot for roundtrip testing.
type mockReader struct{}

func (m *mockReader) Snapshot() model.Snapshot {
	port := 443
	events := []model.TrafficEvent{
		{ID: "e2", SrcCountryCode: "CN", DstCountryCode: "US", Protocol: "TCP", Port: &port, PacketSize: 900, ThreatLevel: 4, ThreatType: "ddos", Status: "blocked"},
		{ID: "e1", SrcCountryCode: "DE", DstCountryCode: "FR", Protocol: "UDP", PacketSize: 100, Status: "allowed"},
	}
	return model.Snapshot{
		Events:     events,
		Threats:    events[:1],
		TotalCount: 42,
		Stats: model.StatsSnapshot{
			TotalPackets:         2,
			TotalBandwidth:       1000,
			ProtocolDistribution: map[string]int{"TCP": 1, "UDP": 1},
			ThreatCount:          1,
		},
		Arcs:        []model.Arc{{ID: "e2", IsThreat: true}},
		Rings:       []model.Ring{{ID: "ring-e2"}},
		Points:      []model.Point{{Lat: 1, Lng: 2}},
		GeneratedAt: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *mockReader) TotalCount() int64 { return 42 }

type mockQuerier struct{}

func (m *mockQuerier) ExecuteQuery(query string) ([]map[string]interface{}, error) {
	return []map[string]interface{}{{"ok": true}}, nil
}
func (m *mockQuerier) GetSchemaDescription() string { return "schema" }
func (m *mockQuerier) TableRowCounts() (map[string]int64, error) {
	return map[string]int64{"traffic_window": 2}, nil
}
func (m *mockQuerier) TopRoutes(limit int) ([]model.RouteCount, error) {
	return []model.RouteCount{{Src: "CN", Dst: "US", Events: 1, Bytes: 900, Threats: 1}}, nil
}

func startTestServer(t *testing.T, querier model.WindowQuerier) (string, *socketrpc.Server) {
	t.Helper()
	sockPath := filepath.Join(t.TempDir(), "test.sock")
	srv := socketrpc.NewServer(sockPath, &mockReader{}, querier)
	if err := srv.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	return sockPath, srv
}

func TestRoundtrip(t *testing.T) {
	sockPath, srv := startTestServer(t, &mockQuerier{})
	defer srv.Stop()

	client, err := socketrpc.Dial(sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	t.Run("Snapshot", func(t *testing.T) {
		snap, err := client.Snapshot()
		if err != nil {
			t.Fatal(err)
		}
		if snap.TotalCount != 42 || len(snap.Events) != 2 {
			t.Fatalf("unexpected snapshot: %+v", snap)
		}
		if snap.Events[0].Port == nil || *snap.Events[0].Port != 443 {
			t.Fatalf("port lost in transit: %+v", snap.Events[0])
		}
		if !snap.GeneratedAt.Equal(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)) {
			t.Fatalf("generated at = %v", snap.GeneratedAt)
		}
	})

	t.Run("Events", func(t *testing.T) {
		events, err := client.Events(1)
		if err != nil {
			t.Fatal(err)
		}
		if len(events) != 1 || events[0].ID != "e2" {
			t.Fatalf("unexpected events: %v", events)
		}
		all, err := client.Events(0)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 2 {
			t.Fatalf("limit 0 returned %d events, want 2", len(all))
		}
	})

	t.Run("Threats", func(t *testing.T) {
		threats, err := client.Threats(10)
		if err != nil {
			t.Fatal(err)
		}
		if len(threats) != 1 || threats[0].ThreatType != "ddos" {
			t.Fatalf("unexpected threats: %v", threats)
		}
	})

	t.Run("Stats", func(t *testing.T) {
		stats, err := client.Stats()
		if err != nil {
			t.Fatal(err)
		}
		if stats.TotalBandwidth != 1000 || stats.ProtocolDistribution["TCP"] != 1 {
			t.Fatalf("unexpected stats: %+v", stats)
		}
	})

	t.Run("Visuals", func(t *testing.T) {
		v, err := client.Visuals()
		if err != nil {
			t.Fatal(err)
		}
		if len(v.Arcs) != 1 || len(v.Rings) != 1 || len(v.Points) != 1 {
			t.Fatalf("unexpected visuals: %+v", v)
		}
	})

	t.Run("TotalCount", func(t *testing.T) {
		n, err := client.TotalCount()
		if err != nil {
			t.Fatal(err)
		}
		if n != 42 {
			t.Fatalf("got %d, want 42", n)
		}
	})

	t.Run("Routes", func(t *testing.T) {
		routes, err := client.Routes(5)
		if err != nil {
			t.Fatal(err)
		}
		if len(routes) != 1 || routes[0].Src != "CN" || routes[0].Bytes != 900 {
			t.Fatalf("unexpected routes: %v", routes)
		}
	})

	t.Run("Query", func(t *testing.T) {
		rows, err := client.Query("SELECT 1")
		if err != nil {
			t.Fatal(err)
		}
		if len(rows) != 1 || rows[0]["ok"] != true {
			t.Fatalf("unexpected rows: %v", rows)
		}
	})
}

func TestMirrorDisabled(t *testing.T) {
	sockPath, srv := startTestServer(t, nil)
	defer srv.Stop()

	client, err := socketrpc.Dial(sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	_, err = client.Routes(5)
	rpcErr, ok := err.(*socketrpc.RPCError)
	if !ok || rpcErr.Code != socketrpc.CodeAppError {
		t.Fatalf("Routes err = %v, want app error", err)
	}

	// The connection stays usable after an application error.
	if _, err := client.TotalCount(); err != nil {
		t.Fatalf("TotalCount after error: %v", err)
	}
}

func TestDialFailure(t *testing.T) {
	_, err := socketrpc.Dial(filepath.Join(t.TempDir(), "nonexistent.sock"))
	if err == nil {
		t.Fatal("expected error dialing nonexistent socket")
	}
}

func TestServerStopCleansSocket(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "cleanup.sock")
	srv := socketrpc.NewServer(sockPath, &mockReader{}, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	srv.Stop()
	srv.Stop()

	if _, err := os.Stat(sockPath); !os.IsNotExist(err) {
		t.Fatalf("socket file still present after Stop: %v", err)
	}
}

func TestSecondServerRefused(t *testing.T) {
	sockPath, srv := startTestServer(t, nil)
	defer srv.Stop()

	other := socketrpc.NewServer(sockPath, &mockReader{}, nil)
	if err := other.Start(); err == nil {
		other.Stop()
		t.Fatal("expected second server on the same socket to fail")
	}
}

func TestStaleSocketReplaced(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "stale.sock")
	if err := os.WriteFile(sockPath, nil, 0600); err != nil {
		t.Fatal(err)
	}
	srv := socketrpc.NewServer(sockPath, &mockReader{}, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("start over stale file: %v", err)
	}
	defer srv.Stop()

	client, err := socketrpc.Dial(sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()
	if _, err := client.TotalCount(); err != nil {
		t.Fatal(err)
	}
}
