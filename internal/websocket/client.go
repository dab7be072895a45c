package websocket

import (
	"context"
	"encoding/json"
	"time"

	ws "github.com/coder/websocket"

	"github.com/e2dconnect/e2d/internal/auth"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
	readLimit      = 512
)

var pongFrame = []byte(`{"type":"pong"}`)

// Client is one signed-in dashboard tab. The server pushes change
// messages; the browser may only send {"type":"ping"} keepalives, which
// are answered with a pong frame.
type Client struct {
	hub  *Hub
	conn *ws.Conn
	auth auth.AuthContext
	send chan []byte
	pong chan struct{}
}

func NewClient(hub *Hub, conn *ws.Conn, ac auth.AuthContext) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		auth: ac,
		send: make(chan []byte, sendBufferSize),
		pong: make(chan struct{}, 1),
	}
}

// accepts reports whether the client's role may see messages guarded by perm.
func (c *Client) accepts(perm string) bool {
	return c.auth.Can(perm)
}

// Run attaches the client to the hub and returns once either side hangs up.
func (c *Client) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.hub.Register(c)
	defer c.hub.Unregister(c)

	c.conn.SetReadLimit(readLimit)
	go c.readLoop(ctx, cancel)
	c.writeLoop(ctx)
}

func (c *Client) readLoop(ctx context.Context, done context.CancelFunc) {
	defer done()
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != ws.MessageText {
			continue
		}
		var in struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(data, &in) != nil || in.Type != "ping" {
			continue
		}
		select {
		case c.pong <- struct{}{}:
		default:
		}
	}
}

func (c *Client) writeLoop(ctx context.Context) {
	keepalive := time.NewTicker(pingInterval)
	defer keepalive.Stop()
	defer c.conn.CloseNow()

	for {
		var err error
		select {
		case <-ctx.Done():
			c.conn.Close(ws.StatusNormalClosure, "")
			return
		case msg, ok := <-c.send:
			if !ok {
				c.conn.Close(ws.StatusGoingAway, "")
				return
			}
			err = c.write(ctx, msg)
		case <-c.pong:
			err = c.write(ctx, pongFrame)
		case <-keepalive.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.conn.Ping(pingCtx)
			cancel()
		}
		if err != nil {
			return
		}
	}
}

func (c *Client) write(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, ws.MessageText, msg)
}
