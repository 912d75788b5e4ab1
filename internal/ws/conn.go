package ws

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// StreamConn presents a websocket as a byte stream so that STOMP frames can
// be read and written over it. Every Write is sent as one text message.
type StreamConn struct {
	ws *websocket.Conn

	rmu sync.Mutex
	r   io.Reader

	wmu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
}

var _ net.Conn = (*StreamConn)(nil)

func NewStreamConn(c *websocket.Conn) *StreamConn {
	return &StreamConn{ws: c, done: make(chan struct{})}
}

// Done is closed once the websocket fails or is closed.
func (c *StreamConn) Done() <-chan struct{} {
	return c.done
}

func (c *StreamConn) Read(p []byte) (int, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()

	for {
		if c.r == nil {
			_, r, err := c.ws.NextReader()
			if err != nil {
				c.markDone()
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			c.r = r
		}
		n, err := c.r.Read(p)
		if errors.Is(err, io.EOF) {
			c.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *StreamConn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if err := c.ws.WriteMessage(websocket.TextMessage, p); err != nil {
		c.markDone()
		return 0, err
	}
	return len(p), nil
}

// Close sends a normal close frame and releases the socket. It is safe to
// call more than once.
func (c *StreamConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}

func (c *StreamConn) markDone() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *StreamConn) LocalAddr() net.Addr  { return c.ws.LocalAddr() }
func (c *StreamConn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

func (c *StreamConn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}

func (c *StreamConn) SetReadDeadline(t time.Time) error  { return c.ws.SetReadDeadline(t) }
func (c *StreamConn) SetWriteDeadline(t time.Time) error { return c.ws.SetWriteDeadline(t) }
