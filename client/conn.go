package client

import (
	"sync"
	"sync/atomic"
	"time"

	"relay/protocol"
)

// Conn is the client side of a relay connection. Send may be called from
// several goroutines; ReadLine belongs to the listener.
type Conn struct {
	conn   protocol.LineConn
	sendMu sync.Mutex
	closed atomic.Bool
}

// Connect dials the relay server
func Connect(addr string, timeout time.Duration) (*Conn, error) {
	conn, err := protocol.Dial(addr, timeout)
	if err != nil {
		return nil, err
	}
	return NewConn(conn), nil
}

func NewConn(conn protocol.LineConn) *Conn {
	return &Conn{conn: conn}
}

// Send writes one frame to the server
func (c *Conn) Send(frame protocol.Frame) error {
	if c.closed.Load() {
		return protocol.ErrClosed
	}

	line, err := protocol.Encode(frame)
	if err != nil {
		return err
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.conn.WriteLine(line)
}

func (c *Conn) ReadLine() ([]byte, error) {
	return c.conn.ReadLine()
}

// IsConnected returns connection status
func (c *Conn) IsConnected() bool {
	return !c.closed.Load()
}

// Disconnect half-closes the connection, then closes it.
func (c *Conn) Disconnect() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.sendMu.Lock()
	c.conn.CloseWrite()
	c.sendMu.Unlock()

	return c.conn.Close()
}
