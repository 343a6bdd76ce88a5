package server

import (
	"relay/protocol"
)

// handleFrame dispatches one decoded frame and reports whether the
// connection is done.
func (s *Server) handleFrame(session *Session, frame protocol.Frame) bool {
	if session.state != stateAuthenticated && frame.Type != protocol.TypeLogin {
		s.log.Warn("Ignoring frame before login", "type", frame.Type, "remote", session.RemoteAddr())
		return false
	}

	switch frame.Type {
	case protocol.TypeLogin:
		s.handleLogin(session, frame)
	case protocol.TypeSend:
		s.handleSend(session, frame)
	case protocol.TypeFetch:
		s.handleFetch(session)
	case protocol.TypeLogout:
		s.handleLogout(session, frame)
		return true
	default:
		s.log.Warn("Ignoring unexpected frame", "type", frame.Type, "remote", session.RemoteAddr())
	}
	return false
}

func (s *Server) handleLogin(session *Session, frame protocol.Frame) {
	s.engine.Login(session, frame.Username)
	session.state = stateAuthenticated
	s.log.Info("User logged in", "user", frame.Username, "remote", session.RemoteAddr())
}

func (s *Server) handleSend(session *Session, frame protocol.Frame) {
	msg := frame.Message()
	s.log.Debug("Message received", "id", msg.ID, "from", msg.Sender, "to", msg.Recipient)
	s.engine.Send(session, msg)
}

func (s *Server) handleFetch(session *Session) {
	if n := s.engine.Fetch(session); n > 0 {
		s.log.Debug("Fetch delivered messages", "count", n, "remote", session.RemoteAddr())
	}
}

func (s *Server) handleLogout(session *Session, frame protocol.Frame) {
	username, ok := s.engine.Logout(session)
	session.state = stateClosed
	if ok && username != frame.Username {
		s.log.Warn("Logout name does not match session", "session", username, "frame", frame.Username)
	}
	if ok {
		s.log.Info("User logged out", "user", username, "remote", session.RemoteAddr())
	}
	// the connection is closed by handleConnection
}
