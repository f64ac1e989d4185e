package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const defaultWriteTimeout = 5 * time.Second

var (
	// ErrObserverClosed is returned by Send after the connection is gone.
	ErrObserverClosed = errors.New("observer closed")
	// ErrObserverSlow is returned by Send when the outbound queue is full.
	ErrObserverSlow = errors.New("observer outbound queue full")
)

// Conn is a broadcast.Observer backed by a WebSocket connection. Send only
// queues; a single writer goroutine owns the socket.
type Conn struct {
	ws           *websocket.Conn
	out          chan []byte
	done         chan struct{}
	once         sync.Once
	writeTimeout time.Duration
}

// NewConn wraps ws with an outbound queue of the given size.
func NewConn(ws *websocket.Conn, buffer int, writeTimeout time.Duration) *Conn {
	if buffer < 1 {
		buffer = 1
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &Conn{
		ws:           ws,
		out:          make(chan []byte, buffer),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
	}
}

// Send queues data for the writer without blocking.
func (c *Conn) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrObserverClosed
	default:
	}
	select {
	case c.out <- data:
		return nil
	default:
		return ErrObserverSlow
	}
}

// Close stops the writer. The socket itself is closed by the writer.
func (c *Conn) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Conn) writeLoop(ctx context.Context) {
	defer func() {
		c.Close()
		_ = c.ws.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case data := <-c.out:
			wctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
			err := c.ws.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
