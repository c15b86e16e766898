/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 10
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one channel connection. A TV display is a Client with no
// identity; a phone is a Client bound to a player.
type Client struct {
	conn    *websocket.Conn
	send    chan any
	done    chan struct{}
	once    sync.Once
	code    string
	token   string
	limiter *rate.Limiter

	mu       sync.Mutex
	identity Identity
	joined   bool
}

func newClient(conn *websocket.Conn, code, token string, id Identity, limiter *rate.Limiter) *Client {
	return &Client{
		conn:     conn,
		send:     make(chan any, sendBuffer),
		done:     make(chan struct{}),
		code:     code,
		token:    token,
		limiter:  limiter,
		identity: id,
	}
}

// Identity returns the player bound to this connection and whether that
// player is currently a member of the room through it.
func (c *Client) Identity() (Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.identity, c.joined
}

func (c *Client) bind(id Identity, joined bool) {
	c.mu.Lock()
	c.identity = id
	c.joined = joined
	c.mu.Unlock()
}

func (c *Client) setJoined(joined bool) {
	c.mu.Lock()
	c.joined = joined
	c.mu.Unlock()
}

func (c *Client) isPlayer(playerID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.joined && c.identity.PlayerID == playerID
}

// deliver queues msg without blocking. A client that cannot keep up is
// closed.
func (c *Client) deliver(msg any) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		c.close()
		return false
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
	})
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) readPump(g *Gateway) {
	defer func() {
		g.Disconnect(c)
		c.close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				g.logger.Debug().Err(err).Str("room", c.code).Msg("ROOMS: Connection read failed")
			}

			return
		}

		if c.limiter != nil && !c.limiter.Allow() {
			g.logger.Debug().Str("room", c.code).Msg("ROOMS: Dropped event over rate limit")

			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.deliver(newErrorMessage(ErrMalformed))

			continue
		}

		g.Dispatch(c, msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			c.flush()
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// flush writes whatever is still queued, so a room_closed notice reaches the
// client before the socket goes away.
func (c *Client) flush() {
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}
