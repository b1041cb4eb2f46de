package socketrpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tinytelemetry/netglobe/internal/model"
)

// Client calls a socket RPC server over a Unix domain socket.
// It is safe for concurrent use; calls are serialized.
type Client struct {
	conn    net.Conn
	mu      sync.Mutex
	nextID  int
	scanner *bufio.Scanner
	encoder *json.Encoder
	timeout time.Duration
}

// Dial connects to the socket RPC server at the given path.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("socketrpc: dial: %w", err)
	}
	scanner := bufio.NewScanner(conn)
	// A full snapshot with 200 events is well under this.
	scanner.Buffer(make([]byte, 0, 256*1024), 16*1024*1024)
	return &Client{
		conn:    conn,
		scanner: scanner,
		encoder: json.NewEncoder(conn),
		timeout: 10 * time.Second,
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// call performs a JSON-RPC call and unmarshals the result into dest.
func (c *Client) call(method string, params interface{}, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	req := Request{JSONRPC: "2.0", ID: c.nextID, Method: method}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("socketrpc: marshal params: %w", err)
		}
		req.Params = data
	}

	c.conn.SetDeadline(time.Now().Add(c.timeout))
	defer c.conn.SetDeadline(time.Time{})

	if err := c.encoder.Encode(req); err != nil {
		return fmt.Errorf("socketrpc: send: %w", err)
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return fmt.Errorf("socketrpc: read: %w", err)
		}
		return fmt.Errorf("socketrpc: connection closed")
	}

	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return fmt.Errorf("socketrpc: unmarshal response: %w", err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if resp.ID != req.ID {
		return fmt.Errorf("socketrpc: response id %d does not match request %d", resp.ID, req.ID)
	}

	if dest != nil {
		if err := json.Unmarshal(resp.Result, dest); err != nil {
			return fmt.Errorf("socketrpc: unmarshal result: %w", err)
		}
	}
	return nil
}

func (c *Client) Snapshot() (model.Snapshot, error) {
	var result model.Snapshot
	err := c.call("Snapshot", nil, &result)
	return result, err
}

func (c *Client) Events(limit int) ([]model.TrafficEvent, error) {
	var result []model.TrafficEvent
	err := c.call("Events", map[string]interface{}{"Limit": limit}, &result)
	return result, err
}

func (c *Client) Threats(limit int) ([]model.TrafficEvent, error) {
	var result []model.TrafficEvent
	err := c.call("Threats", map[string]interface{}{"Limit": limit}, &result)
	return result, err
}

func (c *Client) Stats() (model.StatsSnapshot, error) {
	var result model.StatsSnapshot
	err := c.call("Stats", nil, &result)
	return result, err
}

func (c *Client) Visuals() (model.Visuals, error) {
	var result model.Visuals
	err := c.call("Visuals", nil, &result)
	return result, err
}

func (c *Client) TotalCount() (int64, error) {
	var result int64
	err := c.call("TotalCount", nil, &result)
	return result, err
}

func (c *Client) Routes(limit int) ([]model.RouteCount, error) {
	var result []model.RouteCount
	err := c.call("Routes", map[string]interface{}{"Limit": limit}, &result)
	return result, err
}

func (c *Client) Query(sql string) ([]map[string]interface{}, error) {
	var result []map[string]interface{}
	err := c.call("Query", map[string]interface{}{"SQL": sql}, &result)
	return result, err
}
