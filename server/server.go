package server

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"relay/protocol"
)

type Server struct {
	engine *Engine
	config *ServerConfig
	log    *slog.Logger

	mu       sync.Mutex
	active   map[*Session]struct{}
	closers  []io.Closer
	shutdown bool
}

type ServerConfig struct {
	Addr          string
	WebSocketAddr string
	WriteTimeout  time.Duration
}

func New(queues QueueStore, config *ServerConfig, log *slog.Logger) *Server {
	return &Server{
		engine: NewEngine(queues, log),
		config: config,
		log:    log,
		active: make(map[*Session]struct{}),
	}
}

// Start listens on the configured TCP address and serves until Shutdown.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve accepts newline-delimited connections from listener until Shutdown.
func (s *Server) Serve(listener net.Listener) error {
	if !s.addCloser(listener) {
		listener.Close()
		return nil
	}
	defer listener.Close()

	s.log.Info("Relay server started", "addr", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Error("Error accepting connection", "error", err)
			continue
		}

		go s.handleConnection(protocol.NewTCPConn(conn, s.config.WriteTimeout))
	}
}

// StartWebSocket serves the websocket transport on the configured address.
func (s *Server) StartWebSocket() error {
	listener, err := net.Listen("tcp", s.config.WebSocketAddr)
	if err != nil {
		return err
	}
	return s.ServeWebSocket(listener)
}

// ServeWebSocket upgrades requests on /ws and handles them like TCP connections.
func (s *Server) ServeWebSocket(listener net.Listener) error {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		s.handleConnection(protocol.NewWSConn(ws, s.config.WriteTimeout))
	})

	httpServer := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	if !s.addCloser(httpServer) {
		listener.Close()
		return nil
	}

	s.log.Info("Websocket listener started", "addr", listener.Addr().String())
	if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleConnection(conn protocol.LineConn) {
	remoteAddr := conn.RemoteAddr()
	session := newSession(conn)

	if !s.track(session) {
		conn.Close()
		return
	}

	defer func() {
		if username, ok := s.engine.Logout(session); ok {
			s.log.Info("Client disconnected", "user", username, "remote", remoteAddr)
		} else {
			s.log.Info("Client disconnected", "remote", remoteAddr)
		}
		session.state = stateClosed
		s.untrack(session)
		conn.Close()
	}()

	s.log.Info("New client connected", "remote", remoteAddr)

	for {
		line, err := conn.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) && !protocol.IsClosed(err) {
				s.log.Warn("Error reading from client", "remote", remoteAddr, "error", err)
			}
			return
		}

		if len(line) == 0 {
			continue
		}

		frame, err := protocol.Decode(line)
		if err != nil {
			s.log.Warn("Dropping frame", "remote", remoteAddr, "error", err)
			continue
		}

		if done := s.handleFrame(session, frame); done {
			return
		}
	}
}

func (s *Server) track(session *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return false
	}
	s.active[session] = struct{}{}
	return true
}

func (s *Server) untrack(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, session)
}

func (s *Server) addCloser(c io.Closer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return false
	}
	s.closers = append(s.closers, c)
	return true
}

// Shutdown stops the listeners and closes every open connection. Queued
// messages are not preserved beyond the process.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return
	}
	s.shutdown = true
	closers := s.closers
	sessions := lo.Keys(s.active)
	s.mu.Unlock()

	for _, c := range closers {
		c.Close()
	}
	for _, session := range sessions {
		session.Close()
	}
	s.log.Info("Relay server stopped", "connections", len(sessions))
}

// GetStats returns server statistics as a formatted string
func (s *Server) GetStats() string {
	s.mu.Lock()
	connections := len(s.active)
	s.mu.Unlock()

	stats := s.engine.Stats()
	queued := lo.Sum(lo.Values(stats.Queued))

	return "connections=" + strconv.Itoa(connections) +
		",users=" + strings.Join(stats.Users, ";") +
		",queued=" + strconv.Itoa(queued)
}
