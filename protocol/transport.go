package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

var ErrClosed = errors.New("connection closed")

// LineConn carries one frame per ReadLine/WriteLine call.
// Implementations are not safe for concurrent writers; callers serialize.
type LineConn interface {
	ReadLine() ([]byte, error)
	WriteLine(line []byte) error
	// CloseWrite signals the peer that no more frames will be sent.
	CloseWrite() error
	Close() error
	RemoteAddr() string
}

// IsClosed reports whether err means the connection is gone for good.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, websocket.ErrCloseSent)
}

// Dial connects to a relay server. Addresses starting with ws:// or wss://
// use the WebSocket transport, anything else is treated as host:port over TCP.
func Dial(addr string, timeout time.Duration) (LineConn, error) {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		dialer := websocket.Dialer{HandshakeTimeout: timeout}
		conn, _, err := dialer.Dial(addr, nil)
		if err != nil {
			return nil, err
		}
		return NewWSConn(conn, 0), nil
	}

	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	return NewTCPConn(conn, 0), nil
}

type tcpConn struct {
	conn         net.Conn
	reader       *bufio.Reader
	writeTimeout time.Duration
}

// NewTCPConn wraps a stream connection carrying newline-delimited frames.
// A zero writeTimeout disables write deadlines.
func NewTCPConn(conn net.Conn, writeTimeout time.Duration) LineConn {
	return &tcpConn{
		conn:         conn,
		reader:       bufio.NewReader(conn),
		writeTimeout: writeTimeout,
	}
}

func (c *tcpConn) ReadLine() ([]byte, error) {
	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		// a final unterminated line is still a frame
		if errors.Is(err, io.EOF) && len(bytes.TrimSpace(line)) > 0 {
			return bytes.TrimSpace(line), nil
		}
		return nil, err
	}
	return bytes.TrimSpace(line), nil
}

func (c *tcpConn) WriteLine(line []byte) error {
	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')
	_, err := c.conn.Write(buf)
	return err
}

func (c *tcpConn) CloseWrite() error {
	if cw, ok := c.conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return nil
}

func (c *tcpConn) Close() error {
	return c.conn.Close()
}

func (c *tcpConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

// NewWSConn wraps a WebSocket connection carrying one frame per text message.
func NewWSConn(conn *websocket.Conn, writeTimeout time.Duration) LineConn {
	return &wsConn{conn: conn, writeTimeout: writeTimeout}
}

func (c *wsConn) ReadLine() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, err
	}
	return bytes.TrimSpace(data), nil
}

func (c *wsConn) WriteLine(line []byte) error {
	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, line)
}

func (c *wsConn) CloseWrite() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	return c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

func (c *wsConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
