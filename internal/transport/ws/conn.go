package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/cheese-arena/internal/presence"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

var ErrSendBufferFull = errors.New("send buffer full")

// Conn is one accepted websocket. Send only enqueues; a dedicated writer
// goroutine drains the queue, so room handlers never block on a slow peer.
type Conn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte

	writeTimeout time.Duration
	pingInterval time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}

	log *zap.Logger
}

func newConn(parent context.Context, wsc *websocket.Conn, buffer int, writeTimeout, pingInterval time.Duration, log *zap.Logger) *Conn {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(parent)
	return &Conn{
		id:           id,
		ws:           wsc,
		send:         make(chan []byte, buffer),
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		log:          log.With(zap.String("conn_id", id)),
	}
}

func (c *Conn) ID() string { return c.id }

// Send enqueues p. It fails once the connection is closing or when the peer
// has fallen a full buffer behind; the latter also closes the socket so the
// client reconnects instead of idling without updates.
func (c *Conn) Send(_ context.Context, p []byte) error {
	select {
	case <-c.ctx.Done():
		return presence.ErrClosed
	default:
	}
	select {
	case c.send <- p:
		return nil
	default:
		c.log.Warn("ws_slow_consumer", zap.Int("buffered", len(c.send)))
		// Callers hold a room lock; the close handshake must not run under it.
		c.cancel()
		go c.Close(websocket.StatusPolicyViolation, "slow consumer")
		return ErrSendBufferFull
	}
}

func (c *Conn) writePump() {
	defer close(c.done)
	t := time.NewTicker(c.pingInterval)
	defer t.Stop()
	for {
		select {
		case msg := <-c.send:
			ctx, cancel := context.WithTimeout(c.ctx, c.writeTimeout)
			err := c.ws.Write(ctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				c.log.Debug("ws_write_failed", zap.Error(err))
				c.Close(websocket.StatusInternalError, "write failed")
				return
			}
		case <-t.C:
			ctx, cancel := context.WithTimeout(c.ctx, 3*time.Second)
			err := c.ws.Ping(ctx)
			cancel()
			if err != nil {
				c.log.Debug("ws_ping_failed", zap.Error(err))
				c.Close(websocket.StatusGoingAway, "ping timeout")
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// Close is idempotent.
func (c *Conn) Close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.ws.Close(code, reason)
	})
}

// flush waits for queued frames to be written, up to d.
func (c *Conn) flush(d time.Duration) {
	deadline := time.After(d)
	for len(c.send) > 0 {
		select {
		case <-deadline:
			return
		case <-c.done:
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}
