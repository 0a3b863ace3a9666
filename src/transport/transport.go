package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tastyware/tastytrade/src/helpers"
	"github.com/tastyware/tastytrade/src/interfaces"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	writeTimeout            = 10 * time.Second
)

// -----------------------------------------------------------------------------
// WSConn wraps a gorilla websocket connection behind the ITransport
// interface. Reads are driven by a single goroutine; writes take a mutex
// because gorilla allows at most one concurrent writer.
// -----------------------------------------------------------------------------

type WSConn struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	closed  sync.Once
}

// -----------------------------------------------------------------------------

func (c *WSConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, helpers.NewTransportError("read", err)
	}
	return data, nil
}

// -----------------------------------------------------------------------------

func (c *WSConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return helpers.NewTransportError("write", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Close sends a close frame best effort and tears the connection down. Safe
// to call from any goroutine and more than once.
func (c *WSConn) Close() error {
	var err error
	c.closed.Do(func() {
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// -----------------------------------------------------------------------------
// WSDialer opens websocket connections for the streamers.
// -----------------------------------------------------------------------------

type WSDialer struct {
	HandshakeTimeout time.Duration
}

func NewWSDialer() *WSDialer {
	return &WSDialer{HandshakeTimeout: defaultHandshakeTimeout}
}

// -----------------------------------------------------------------------------

func (d *WSDialer) Dial(ctx context.Context, url string) (interfaces.ITransport, error) {
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
		Proxy:            http.ProxyFromEnvironment,
	}

	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, helpers.NewTransportError("dial", err)
	}
	return &WSConn{conn: conn}, nil
}
