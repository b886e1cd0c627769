package signal

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"cinesync/internal/core/domain"
	"cinesync/internal/core/ports"
	"cinesync/internal/infrastructure/middleware"
	"cinesync/pkg/optimize"
)

var (
	errConnClosed     = errors.New("connection closed")
	errSendBufferFull = errors.New("send buffer full")
)

type outboundFrame struct {
	Destination string          `json:"destination"`
	Body        json.RawMessage `json:"body"`
}

// client is one upgraded socket. Reads happen on the handler goroutine and
// writes on writePump; Send may be called from any goroutine.
type client struct {
	id       string
	identity middleware.Identity
	conn     *websocket.Conn
	buffers  *optimize.BufferPool
	limiter  *rate.Limiter

	send      chan *bytes.Buffer
	done      chan struct{}
	closeOnce sync.Once

	// owned by the reader goroutine
	joined map[domain.RoomID]ports.Member
}

func newClient(id string, identity middleware.Identity, conn *websocket.Conn, buffers *optimize.BufferPool, bufferSize int, limiter *rate.Limiter) *client {
	return &client{
		id:       id,
		identity: identity,
		conn:     conn,
		buffers:  buffers,
		limiter:  limiter,
		send:     make(chan *bytes.Buffer, bufferSize),
		done:     make(chan struct{}),
		joined:   make(map[domain.RoomID]ports.Member),
	}
}

func (c *client) ID() string { return c.id }

func (c *client) member() ports.Member {
	return ports.Member{UserID: c.identity.UserID, Username: c.identity.Username}
}

// Send queues a frame without blocking. A slow socket loses frames rather
// than stalling the broadcaster.
func (c *client) Send(destination string, body []byte) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}

	buf := c.buffers.Get()
	if err := json.NewEncoder(buf).Encode(outboundFrame{Destination: destination, Body: body}); err != nil {
		c.buffers.Put(buf)
		return err
	}

	select {
	case c.send <- buf:
		return nil
	case <-c.done:
		c.buffers.Put(buf)
		return errConnClosed
	default:
		c.buffers.Put(buf)
		return errSendBufferFull
	}
}

func (c *client) allow() bool {
	return c.limiter == nil || c.limiter.Allow()
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// closeWith sends a close frame before tearing the socket down.
func (c *client) closeWith(code int, reason string, timeout time.Duration) {
	msg := websocket.FormatCloseMessage(code, truncateReason(reason))
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(timeout))
	c.close()
}

// Close reasons must fit a control frame.
func truncateReason(reason string) string {
	const max = 120
	if len(reason) > max {
		return reason[:max]
	}
	return reason
}

func (c *client) writePump(pingInterval, writeTimeout time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case buf := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := c.conn.WriteMessage(websocket.TextMessage, bytes.TrimRight(buf.Bytes(), "\n"))
			c.buffers.Put(buf)
			if err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
