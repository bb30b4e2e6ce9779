// Package transport attaches WebSocket connections to rooms and pumps
// frames in both directions.
package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/spot-the-bot/backend/internal/v1/logging"
	"github.com/spot-the-bot/backend/internal/v1/room"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Client frames are tiny
	// advisory hints, so this is deliberately small.
	maxMessageSize = 1024

	// Outbound buffer per connection. A full buffer drops frames rather
	// than blocking the room.
	sendBufferSize = 64
)

// clientFrame is the only shape clients may send over the socket. The
// authoritative mutations (message, vote, leave) go through REST.
type clientFrame struct {
	Type  string `json:"type"`
	State string `json:"state,omitempty"`
}

// Client is one player's WebSocket attachment. It implements
// room.Connection; Send never blocks.
type Client struct {
	conn     *websocket.Conn
	playerID string
	roomRef  *room.Room

	send      chan []byte
	closeOnce sync.Once
	closed    chan struct{}
}

func newClient(conn *websocket.Conn, playerID string, r *room.Room) *Client {
	return &Client{
		conn:     conn,
		playerID: playerID,
		roomRef:  r,
		send:     make(chan []byte, sendBufferSize),
		closed:   make(chan struct{}),
	}
}

// PlayerID returns the player this connection belongs to.
func (c *Client) PlayerID() string { return c.playerID }

// Send enqueues a frame for delivery. Frames beyond the buffer are dropped;
// a client that cannot keep up falls behind rather than stalling the room.
func (c *Client) Send(data []byte) {
	select {
	case c.send <- data:
	case <-c.closed:
	default:
		logging.Warn(context.Background(), "dropping frame for slow websocket client",
			zap.String("player_id", c.playerID))
	}
}

// Close shuts the connection down. Safe to call multiple times.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
}

// readPump consumes client frames until the socket drops. Unknown frame
// types are ignored; a dropped socket detaches the connection but never
// removes the player from the game.
func (c *Client) readPump() {
	defer func() {
		c.roomRef.RemoveConnection(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn(context.Background(), "websocket read error",
					zap.String("player_id", c.playerID), zap.Error(err))
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		switch frame.Type {
		case "typing":
			c.roomRef.HumanTyping(c.playerID, frame.State)
		case "ping":
			// Application-level keepalive; the pong handler above covers
			// protocol pings.
		}
	}
}

// writePump drains the send channel onto the socket and keeps the
// connection alive with protocol pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closed:
			return
		}
	}
}
