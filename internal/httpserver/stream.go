package httpserver

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/tinytelemetry/netglobe/internal/model"
)

const (
	streamWriteWait  = 5 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = 50 * time.Second
)

// Stream views select what each message carries.
const (
	ViewSnapshot = "snapshot"
	ViewStats    = "stats"
	ViewVisuals  = "visuals"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
	// Read-only public data; any dashboard origin may subscribe.
	CheckOrigin: func(*http.Request) bool { return true },
}

// StreamMessage is one frame on /api/stream.
type StreamMessage struct {
	Type        string               `json:"type"`
	TotalCount  int64                `json:"total_count"`
	GeneratedAt time.Time            `json:"generated_at"`
	Snapshot    *model.Snapshot      `json:"snapshot,omitempty"`
	Stats       *model.StatsSnapshot `json:"stats,omitempty"`
	Visuals     *model.Visuals       `json:"visuals,omitempty"`
}

func newStreamMessage(view string, snap model.Snapshot) StreamMessage {
	msg := StreamMessage{Type: view, TotalCount: snap.TotalCount, GeneratedAt: snap.GeneratedAt}
	switch view {
	case ViewStats:
		msg.Stats = &snap.Stats
	case ViewVisuals:
		msg.Visuals = &model.Visuals{Arcs: snap.Arcs, Rings: snap.Rings, Points: snap.Points}
	default:
		msg.Type = ViewSnapshot
		msg.Snapshot = &snap
	}
	return msg
}

// streamClient holds at most one pending snapshot; a slow client skips
// intermediate snapshots and always receives the newest.
type streamClient struct {
	send chan model.Snapshot
}

// Hub fans published snapshots out to WebSocket clients.
type Hub struct {
	mu      sync.Mutex
	clients map[*streamClient]struct{}
	closed  bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*streamClient]struct{})}
}

// Publish delivers snap to every client without blocking.
func (h *Hub) Publish(snap model.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- snap:
			continue
		default:
		}
		// Replace the stale pending snapshot.
		select {
		case <-c.send:
		default:
		}
		select {
		case c.send <- snap:
		default:
		}
	}
}

func (h *Hub) register() (*streamClient, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	c := &streamClient{send: make(chan model.Snapshot, 1)}
	h.clients[c] = struct{}{}
	return c, true
}

func (h *Hub) unregister(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Clients returns the number of connected stream clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// handleStream upgrades to a WebSocket and pushes one message per published
// snapshot, starting with the current one. ?view=stats|visuals narrows the
// payload.
func (s *Server) handleStream(c *gin.Context) {
	view := c.DefaultQuery("view", ViewSnapshot)
	if view != ViewSnapshot && view != ViewStats && view != ViewVisuals {
		c.JSON(http.StatusBadRequest, gin.H{"error": "view must be snapshot, stats or visuals"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	client, ok := s.hub.register()
	if !ok {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(streamWriteWait))
		return
	}
	defer s.hub.unregister(client)

	// The read side only handles control frames and notices disconnects.
	gone := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(snap model.Snapshot) error {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		return conn.WriteJSON(newStreamMessage(view, snap))
	}
	if err := write(s.reader.Snapshot()); err != nil {
		return
	}

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			return
		case snap, ok := <-client.send:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(streamWriteWait))
				return
			}
			if err := write(snap); err != nil {
				log.Printf("httpserver: stream write to %s failed: %v", conn.RemoteAddr(), err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}
