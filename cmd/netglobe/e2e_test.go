package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tinytelemetry/netglobe/internal/duckdb"
	"github.com/tinytelemetry/netglobe/internal/httpserver"
	"github.com/tinytelemetry/netglobe/internal/ingest"
	"github.com/tinytelemetry/netglobe/internal/model"
	"github.com/tinytelemetry/netglobe/internal/pipeline"
	"github.com/tinytelemetry/netglobe/internal/socketrpc"
	"github.com/tinytelemetry/netglobe/internal/source"
	"github.com/tinytelemetry/netglobe/internal/tcpserver"
)

type e2eStack struct {
	pipe    *pipeline.Pipeline
	store   *duckdb.Store
	mirror  *duckdb.Mirror
	api     *httpserver.Server
	socket  *socketrpc.Server
	tcp     *tcpserver.Server
	mux     *SourceMultiplexer
	apiAddr string
	sock    string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func startE2EStack(t *testing.T, cfg pipeline.Config) *e2eStack {
	t.Helper()

	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 20 * time.Millisecond
	}
	pipe := pipeline.New(cfg)
	pipe.Start()

	store, err := duckdb.NewStore(5 * time.Second)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	mirror := duckdb.NewMirror(store, 20*time.Millisecond)
	unsubMirror := pipe.Subscribe(mirror.Observe)

	api := httpserver.NewServer("127.0.0.1:0", pipe, store)
	if err := api.Start(); err != nil {
		t.Fatalf("http Start: %v", err)
	}
	unsubHub := pipe.Subscribe(api.Hub().Publish)

	sock := filepath.Join(os.TempDir(), fmt.Sprintf("netglobe-e2e-%d.sock", time.Now().UnixNano()))
	socket := socketrpc.NewServer(sock, pipe, store)
	if err := socket.Start(); err != nil {
		t.Fatalf("socket Start: %v", err)
	}

	tcp := tcpserver.NewServer("127.0.0.1:0")
	if err := tcp.Start(); err != nil {
		t.Fatalf("tcp Start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	mux := NewSourceMultiplexer(ctx, []source.Source{source.NewTCP(tcp)}, 0)
	mux.Start()

	processor, err := ingest.NewEnvelopeProcessor("", pipe, nil)
	if err != nil {
		t.Fatalf("NewEnvelopeProcessor: %v", err)
	}

	stack := &e2eStack{
		pipe:    pipe,
		store:   store,
		mirror:  mirror,
		api:     api,
		socket:  socket,
		tcp:     tcp,
		mux:     mux,
		apiAddr: api.Addr(),
		sock:    sock,
		cancel:  cancel,
	}

	stack.wg.Add(1)
	go func() {
		defer stack.wg.Done()
		for env := range mux.Envelopes() {
			processor.ProcessEnvelope(env)
		}
	}()

	waitEventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		resp, err := http.Get("http://" + stack.apiAddr + "/api/health")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, "api health endpoint did not become ready")

	t.Cleanup(func() {
		stack.cancel()
		stack.mux.Stop()
		stack.wg.Wait()
		unsubHub()
		unsubMirror()
		stack.mirror.Stop()
		stack.pipe.Stop()
		stack.socket.Stop()
		_ = stack.api.Stop()
		_ = stack.store.Close()
	})

	return stack
}

func waitEventually(t *testing.T, timeout, interval time.Duration, condition func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if condition() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("eventually timeout: %s", msg)
		}
		time.Sleep(interval)
	}
}

func sendTCPLines(t *testing.T, addr string, lines []string) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 3*time.Second)
	if err != nil {
		t.Fatalf("dial tcp %s: %v", addr, err)
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	w := bufio.NewWriterSize(conn, 256*1024)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			t.Fatalf("write line: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func eventLine(t *testing.T, src, dst string, level int, threatType string) string {
	t.Helper()
	port := 443
	raw := model.RawEvent{
		SrcIP: "203.0.113.7", SrcCountryCode: src, SrcLat: 35.68, SrcLng: 139.69, SrcCity: "Tokyo",
		DstIP: "198.51.100.9", DstCountryCode: dst, DstLat: 40.71, DstLng: -74.01, DstCity: "New York",
		Protocol: "TCP", Port: &port, PacketSize: 1000, ThreatLevel: level, ThreatType: threatType, Status: "allowed",
	}
	data, err := json.Marshal(raw)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return string(data)
}

type sqlResponse struct {
	Rows     []map[string]interface{} `json:"rows"`
	RowCount int                      `json:"row_count"`
}

func postSQL(addr, sql string) (int, sqlResponse, error) {
	body, _ := json.Marshal(map[string]string{"sql": sql})
	resp, err := http.Post("http://"+addr+"/api/query", "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, sqlResponse{}, err
	}
	defer resp.Body.Close()
	var out sqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return resp.StatusCode, out, err
	}
	return resp.StatusCode, out, nil
}

func TestE2E_Pipeline_TCPToHTTPAndSocket(t *testing.T) {
	stack := startE2EStack(t, pipeline.Config{})
	lines := []string{
		eventLine(t, "JP", "US", 0, ""),
		eventLine(t, "JP", "US", 4, "ddos"),
		eventLine(t, "DE", "FR", 0, ""),
	}

	sendTCPLines(t, stack.tcp.Addr(), lines)
	waitEventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return stack.pipe.TotalCount() == int64(len(lines))
	}, "events did not reach the pipeline")

	client, err := socketrpc.Dial(stack.sock)
	if err != nil {
		t.Fatalf("socket dial: %v", err)
	}
	defer client.Close()

	snap, err := client.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Events) != 3 || len(snap.Threats) != 1 {
		t.Fatalf("events=%d threats=%d, want 3 and 1", len(snap.Events), len(snap.Threats))
	}
	if snap.Stats.ThreatsByType["ddos"] != 1 || snap.Stats.ProtocolDistribution["TCP"] != 3 {
		t.Fatalf("unexpected stats: %+v", snap.Stats)
	}
	if len(snap.Arcs) != 3 {
		t.Fatalf("arcs=%d want 3", len(snap.Arcs))
	}

	waitEventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		code, resp, err := postSQL(stack.apiAddr, "SELECT COUNT(*) AS c FROM traffic_window")
		return err == nil && code == http.StatusOK && resp.RowCount == 1 && resp.Rows[0]["c"] == float64(3)
	}, "mirror did not catch up with the window")

	routes, err := client.Routes(10)
	if err != nil {
		t.Fatalf("Routes: %v", err)
	}
	if len(routes) != 2 || routes[0].Src != "JP" || routes[0].Events != 2 || routes[0].Threats != 1 {
		t.Fatalf("unexpected routes: %+v", routes)
	}
}

func TestE2E_BurstIngest_WindowBounded(t *testing.T) {
	stack := startE2EStack(t, pipeline.Config{RollingWindow: 100, ThreatWindow: 10})

	const total = 500
	lines := make([]string, 0, total)
	for i := 0; i < total; i++ {
		level, kind := 0, ""
		if i%5 == 0 {
			level, kind = 1+i%5, "scan"
		}
		lines = append(lines, eventLine(t, "JP", "US", level, kind))
	}
	sendTCPLines(t, stack.tcp.Addr(), lines)

	waitEventually(t, 8*time.Second, 20*time.Millisecond, func() bool {
		return stack.pipe.TotalCount() == total
	}, "burst was not fully ingested")

	snap := stack.pipe.Snapshot()
	if len(snap.Events) != 100 {
		t.Fatalf("window holds %d events, want 100", len(snap.Events))
	}
	if len(snap.Threats) != 10 {
		t.Fatalf("threat window holds %d events, want 10", len(snap.Threats))
	}
	if snap.Stats.TotalPackets != 100 {
		t.Fatalf("stats cover %d packets, want the 100 in the window", snap.Stats.TotalPackets)
	}
}

func TestDrainInputs_FinalFlushReachesObservers(t *testing.T) {
	cfg := pipeline.DefaultConfig()
	cfg.FlushInterval = time.Hour
	pipe := pipeline.New(cfg)
	pipe.Start()

	var mu sync.Mutex
	var lastTotal int64
	unsubscribe := pipe.Subscribe(func(s model.Snapshot) {
		mu.Lock()
		lastTotal = s.TotalCount
		mu.Unlock()
	})
	defer unsubscribe()

	src := newFakeSource("tcp", 1)
	mux := NewSourceMultiplexer(context.Background(), []source.Source{src}, 4)
	mux.Start()

	pipe.Push(model.RawEvent{Protocol: "TCP", PacketSize: 64, Status: "active"})
	drainInputs(mux, pipe)

	mu.Lock()
	defer mu.Unlock()
	if lastTotal != 1 {
		t.Fatalf("observer saw TotalCount %d after drain, want 1", lastTotal)
	}
	select {
	case <-src.stopped:
	default:
		t.Fatal("sources should be stopped before the pipeline")
	}
}
