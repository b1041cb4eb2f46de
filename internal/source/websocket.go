package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// WebSocketConfig configures a WebSocket subscription.
type WebSocketConfig struct {
	URL string
	// Subscribe is sent as a text message after every (re)connect.
	Subscribe  string
	BufferSize int
}

// WebSocketSource subscribes to a remote event stream. Each text message
// is either a single JSON document or newline-delimited JSON lines.
type WebSocketSource struct {
	*feed
	url       string
	subscribe string
	dialer    *websocket.Dialer
}

// NewWebSocket validates the URL and starts the subscription loop.
// Connection failures are retried with backoff for the life of ctx.
func NewWebSocket(ctx context.Context, conf WebSocketConfig) (*WebSocketSource, error) {
	u, err := url.Parse(conf.URL)
	if err != nil {
		return nil, fmt.Errorf("source: websocket url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("source: websocket url %q: scheme must be ws or wss", conf.URL)
	}
	f, ctx := newFeed(ctx, "websocket", conf.BufferSize)
	s := &WebSocketSource{
		feed:      f,
		url:       conf.URL,
		subscribe: conf.Subscribe,
		dialer:    websocket.DefaultDialer,
	}
	f.run(ctx, func(ctx context.Context) { reconnect(ctx, s.url, s.session) })
	return s, nil
}

func (s *WebSocketSource) session(ctx context.Context, connected func()) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if s.subscribe != "" {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(s.subscribe)); err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
	}
	connected()

	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if kind != websocket.TextMessage {
			continue
		}
		for _, line := range splitMessage(string(msg)) {
			if !s.sendLine(ctx, line) {
				return nil
			}
		}
	}
}

// splitMessage keeps a pretty-printed document whole and splits NDJSON.
func splitMessage(msg string) []string {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return nil
	}
	lines := strings.Split(msg, "\n")
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if l != "" && l[0] != '{' && l[0] != '[' {
			return []string{msg}
		}
		if l != "" && !balanced(l) {
			return []string{msg}
		}
	}
	return lines
}

func balanced(line string) bool {
	depth := 0
	inString, escaped := false, false
	for _, c := range line {
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{' || c == '[':
			depth++
		case c == '}' || c == ']':
			depth--
		}
	}
	return depth == 0
}
