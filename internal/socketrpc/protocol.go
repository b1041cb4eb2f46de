package socketrpc

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// JSON-RPC 2.0 Method Reference
//
// The socket RPC server exposes the live pipeline state (and, when the
// window mirror is enabled, SQL over it) on a Unix domain socket. Requests
// and responses are newline-delimited JSON objects.
//
//   Method        Params              Result
//   ──────────    ─────────────────   ──────────────────────
//   Snapshot      (none)              model.Snapshot
//   Events        {Limit: int}        []model.TrafficEvent   newest first
//   Threats       {Limit: int}        []model.TrafficEvent   newest first
//   Stats         (none)              model.StatsSnapshot
//   Visuals       (none)              model.Visuals
//   TotalCount    (none)              int64
//   Routes        {Limit: int}        []model.RouteCount     mirror only
//   Query         {SQL: string}       []map[string]any       mirror only
//
// Limit <= 0 means the whole window.
//
// Error codes follow JSON-RPC 2.0:
//   -32700  Parse error (malformed JSON)
//   -32601  Method not found
//   -32602  Invalid params
//   -32603  Internal error (marshal failure)
//   -32000  Application error (query failure, mirror disabled)

// Error codes.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeAppError       = -32000
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return e.Message }

// DefaultSocketPath returns the default Unix socket path.
// It prefers $XDG_RUNTIME_DIR/netglobe/netglobe.sock, falling back to
// ~/.local/state/netglobe/netglobe.sock.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "netglobe", "netglobe.sock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "netglobe.sock")
	}
	return filepath.Join(home, ".local", "state", "netglobe", "netglobe.sock")
}
