package replication

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/wtengine/wtengine/internal/snapshot"
)

// Client is the replica side of subscribe-to-updates(start_scan_id): it
// dials a Hub's endpoint and exposes the Envelope stream a caller applies to
// its own Snapshot via Snapshot.Apply (spec §4.F).
type Client struct {
	conn *websocket.Conn
}

// Dial connects to addr (a ws:// or wss:// URL, already carrying any
// start_scan_id query parameter the caller wants) and returns a Client ready
// to stream Envelopes via Recv.
func Dial(ctx context.Context, addr string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("replication: dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Recv blocks for the next Envelope the Hub ships, skipping websocket
// control frames (pings are answered by the underlying connection
// automatically).
func (c *Client) Recv() (snapshot.Envelope, error) {
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			return snapshot.Envelope{}, err
		}
		if kind != websocket.TextMessage {
			continue
		}
		return decodeEnvelope(data)
	}
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }
