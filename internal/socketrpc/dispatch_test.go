package socketrpc

import (
	"encoding/json"
	"testing"

	"github.com/tinytelemetry/netglobe/internal/model"
)

// stubReader returns a small fixed snapshot for dispatch unit testing.
type stubReader struct{}

func (r *stubReader) Snapshot() model.Snapshot {
	events := []model.TrafficEvent{{ID: "a", ThreatLevel: 3}, {ID: "b"}, {ID: "c"}}
	return model.Snapshot{Events: events, Threats: events[:1], TotalCount: 3}
}

func (r *stubReader) TotalCount() int64 { return 3 }

func newTestDispatcher() *Server {
	return &Server{reader: &stubReader{}}
}

func TestDispatch_AllMethods(t *testing.T) {
	t.Parallel()
	srv := newTestDispatcher()

	tests := []struct {
		method string
		params string
	}{
		{"Snapshot", ``},
		{"Events", `{"Limit":2}`},
		{"Events", ``},
		{"Threats", `{"Limit":10}`},
		{"Stats", ``},
		{"Visuals", ``},
		{"TotalCount", `null`},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			req := Request{JSONRPC: "2.0", ID: 1, Method: tt.method}
			if tt.params != "" {
				req.Params = json.RawMessage(tt.params)
			}
			resp := srv.dispatch(req)
			if resp.Error != nil {
				t.Fatalf("unexpected error: %v", resp.Error)
			}
			if resp.Result == nil {
				t.Fatal("expected result")
			}
			if resp.ID != 1 || resp.JSONRPC != "2.0" {
				t.Fatalf("bad envelope: %+v", resp)
			}
		})
	}
}

func TestDispatch_EventsLimit(t *testing.T) {
	t.Parallel()
	srv := newTestDispatcher()

	resp := srv.dispatch(Request{JSONRPC: "2.0", ID: 2, Method: "Events", Params: json.RawMessage(`{"Limit":2}`)})
	var events []model.TrafficEvent
	if err := json.Unmarshal(resp.Result, &events); err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].ID != "a" || events[1].ID != "b" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestDispatch_MethodNotFound(t *testing.T) {
	t.Parallel()
	srv := newTestDispatcher()

	resp := srv.dispatch(Request{JSONRPC: "2.0", ID: 1, Method: "NoSuchMethod"})
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected method not found, got %+v", resp.Error)
	}
}

func TestDispatch_InvalidParams(t *testing.T) {
	t.Parallel()
	srv := newTestDispatcher()

	for _, method := range []string{"Events", "Threats", "Routes"} {
		resp := srv.dispatch(Request{JSONRPC: "2.0", ID: 1, Method: method, Params: json.RawMessage(`{"Limit":"ten"}`)})
		if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
			t.Fatalf("%s: expected invalid params, got %+v", method, resp.Error)
		}
	}

	resp := srv.dispatch(Request{JSONRPC: "2.0", ID: 1, Method: "Query", Params: json.RawMessage(`{}`)})
	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Fatalf("Query without SQL: expected invalid params, got %+v", resp.Error)
	}
}

func TestDispatch_MirrorDisabled(t *testing.T) {
	t.Parallel()
	srv := newTestDispatcher()

	resp := srv.dispatch(Request{JSONRPC: "2.0", ID: 1, Method: "Query", Params: json.RawMessage(`{"SQL":"SELECT 1"}`)})
	if resp.Error == nil || resp.Error.Code != CodeAppError {
		t.Fatalf("expected app error, got %+v", resp.Error)
	}
}

func TestHead(t *testing.T) {
	t.Parallel()
	if got := head(nil, 5); got == nil || len(got) != 0 {
		t.Fatalf("head(nil) = %v, want empty slice", got)
	}
	events := make([]model.TrafficEvent, 4)
	if got := head(events, 3); len(got) != 3 {
		t.Fatalf("head(4, 3) = %d", len(got))
	}
	if got := head(events, 10); len(got) != 4 {
		t.Fatalf("head(4, 10) = %d", len(got))
	}
	if got := head(events, -1); len(got) != 4 {
		t.Fatalf("head(4, -1) = %d", len(got))
	}
}
