package server

import (
	"sync"

	"relay/protocol"
)

type sessionState int

const (
	stateUnauthenticated sessionState = iota
	stateAuthenticated
	stateClosed
)

func (s sessionState) String() string {
	switch s {
	case stateUnauthenticated:
		return "unauthenticated"
	case stateAuthenticated:
		return "authenticated"
	default:
		return "closed"
	}
}

// Session is one accepted connection. Frames may be written to it by any
// connection worker; mu keeps those writes from interleaving.
type Session struct {
	conn protocol.LineConn
	mu   sync.Mutex

	// username is the name this session is logged in as. Guarded by Engine.mu.
	username string
	// state is only touched by the worker reading this connection.
	state sessionState
}

func newSession(conn protocol.LineConn) *Session {
	return &Session{conn: conn, state: stateUnauthenticated}
}

// Send writes one frame to the connection.
func (s *Session) Send(frame protocol.Frame) error {
	line, err := protocol.Encode(frame)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteLine(line)
}

func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr()
}

func (s *Session) Close() error {
	return s.conn.Close()
}
