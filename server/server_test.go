package server

import (
	"bufio"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay/db"
	"relay/models"
	"relay/protocol"
)

// setupTestServer creates a server backed by an in-memory queue
func setupTestServer(t *testing.T) *Server {
	config := &ServerConfig{
		Addr:         "127.0.0.1:0",
		WriteTimeout: 5 * time.Second,
	}
	srv := New(NewMemoryQueue(), config, logs.GetLoggerFromLevel(slog.LevelWarn))
	t.Cleanup(srv.Shutdown)
	return srv
}

type testClient struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

// connect simulates a client over net.Pipe
func connect(t *testing.T, srv *Server) *testClient {
	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() {
		serverConn.Close()
		clientConn.Close()
	})

	go srv.handleConnection(protocol.NewTCPConn(serverConn, 0))

	return &testClient{t: t, conn: clientConn, reader: bufio.NewReader(clientConn)}
}

func (c *testClient) sendRaw(line string) {
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(c.t, err)
}

func (c *testClient) send(frame protocol.Frame) {
	line, err := protocol.Encode(frame)
	require.NoError(c.t, err)
	c.sendRaw(string(line))
}

func (c *testClient) read() protocol.Frame {
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, err := c.reader.ReadString('\n')
	require.NoError(c.t, err)
	frame, err := protocol.Decode([]byte(strings.TrimSpace(line)))
	require.NoError(c.t, err)
	return frame
}

// roundTrip sends a message to self and checks it comes back in order, which
// proves nothing else was pending on the connection.
func (c *testClient) roundTrip(username, id string) {
	c.send(protocol.Send(models.Message{ID: id, Sender: username, Recipient: username, Content: "ping", Timestamp: "00:00"}))
	require.Equal(c.t, protocol.StatusUpdate(id, models.StatusServerAck), c.read())
	got := c.read()
	require.Equal(c.t, protocol.TypeMessage, got.Type)
	require.Equal(c.t, id, got.ID)
	require.Equal(c.t, protocol.StatusUpdate(id, models.StatusDelivered), c.read())
}

func (c *testClient) login(srv *Server, username string) {
	c.send(protocol.Login(username))
	waitForUsers(c.t, srv, username)
}

func waitForUsers(t *testing.T, srv *Server, usernames ...string) {
	require.Eventually(t, func() bool {
		users := srv.engine.Stats().Users
		for _, u := range usernames {
			if !contains(users, u) {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// A sends to an offline B; B logs in later and fetches.
func TestScenario_OfflineRecipient(t *testing.T) {
	srv := setupTestServer(t)
	alice := connect(t, srv)
	alice.login(srv, "A")

	m1 := models.Message{ID: "m1", Sender: "A", Recipient: "B", Content: "hi", Timestamp: "09:30"}
	alice.send(protocol.Send(m1))
	assert.Equal(t, protocol.StatusUpdate("m1", models.StatusServerAck), alice.read())

	bob := connect(t, srv)
	bob.login(srv, "B")
	bob.send(protocol.Fetch())

	got := bob.read()
	assert.Equal(t, protocol.Frame{Type: protocol.TypeMessage, ID: "m1", From: "A", Content: "hi", Timestamp: "09:30"}, got)
	assert.Equal(t, protocol.StatusUpdate("m1", models.StatusDelivered), alice.read())

	// a second fetch returns nothing
	bob.send(protocol.Fetch())
	bob.roundTrip("B", "self-b")
	alice.roundTrip("A", "self-a")
}

// A sends to an online B: ack, then delivered; B gets it once via the push.
func TestScenario_OnlineRecipient(t *testing.T) {
	srv := setupTestServer(t)
	alice := connect(t, srv)
	bob := connect(t, srv)
	alice.login(srv, "A")
	bob.login(srv, "B")

	m1 := models.Message{ID: "m1", Sender: "A", Recipient: "B", Content: "hello, world", Timestamp: "09:31"}
	alice.send(protocol.Send(m1))

	assert.Equal(t, protocol.StatusUpdate("m1", models.StatusServerAck), alice.read())
	assert.Equal(t, protocol.Deliver(m1), bob.read())
	assert.Equal(t, protocol.StatusUpdate("m1", models.StatusDelivered), alice.read())

	bob.send(protocol.Fetch())
	bob.roundTrip("B", "self-b")
}

func TestFramesBeforeLoginAreIgnored(t *testing.T) {
	srv := setupTestServer(t)
	client := connect(t, srv)

	client.send(protocol.Fetch())
	client.send(protocol.Send(models.Message{ID: "early", Sender: "A", Recipient: "B", Content: "x", Timestamp: "00:00"}))

	client.login(srv, "A")
	client.roundTrip("A", "self")

	assert.Zero(t, srv.engine.Stats().Queued["B"], "send before login must not be queued")
}

func TestMalformedFramesKeepConnectionOpen(t *testing.T) {
	srv := setupTestServer(t)
	client := connect(t, srv)
	client.login(srv, "A")

	client.sendRaw("this is not json")
	client.sendRaw(`{"type":"send","id":"m1","from":"A"}`)
	client.sendRaw(`{"type":"ping"}`)
	client.sendRaw(`{"type":"status","id":"m1","status":"delivered"}`)
	client.sendRaw("")

	client.roundTrip("A", "still-open")
}

func TestEmptyContentIsAckedAndQueued(t *testing.T) {
	srv := setupTestServer(t)
	alice := connect(t, srv)
	alice.login(srv, "A")

	alice.sendRaw(`{"type":"send","id":"m1","from":"A","to":"B","content":"","timestamp":"10:00"}`)
	assert.Equal(t, protocol.StatusUpdate("m1", models.StatusServerAck), alice.read())
	alice.roundTrip("A", "after-empty")
	assert.Equal(t, 1, srv.engine.Stats().Queued["B"])

	bob := connect(t, srv)
	bob.login(srv, "B")
	bob.send(protocol.Fetch())
	assert.Equal(t, protocol.Frame{Type: protocol.TypeMessage, ID: "m1", From: "A", Timestamp: "10:00"}, bob.read())
	assert.Equal(t, protocol.StatusUpdate("m1", models.StatusDelivered), alice.read())
}

func TestLogoutClosesConnection(t *testing.T) {
	srv := setupTestServer(t)
	client := connect(t, srv)
	client.login(srv, "A")

	client.send(protocol.Logout("A"))

	client.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, err := client.reader.ReadString('\n')
	require.Error(t, err)

	require.Eventually(t, func() bool {
		return len(srv.engine.Stats().Users) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConnectionLossKeepsQueuedMessages(t *testing.T) {
	srv := setupTestServer(t)
	alice := connect(t, srv)
	bob := connect(t, srv)
	alice.login(srv, "A")
	bob.login(srv, "B")

	bob.conn.Close()
	require.Eventually(t, func() bool {
		return !contains(srv.engine.Stats().Users, "B")
	}, 2*time.Second, 10*time.Millisecond)

	alice.send(protocol.Send(models.Message{ID: "m1", Sender: "A", Recipient: "B", Content: "later", Timestamp: "10:00"}))
	assert.Equal(t, protocol.StatusUpdate("m1", models.StatusServerAck), alice.read())
	alice.roundTrip("A", "self")

	assert.Equal(t, 1, srv.engine.Stats().Queued["B"])

	bob = connect(t, srv)
	bob.login(srv, "B")
	bob.send(protocol.Fetch())
	assert.Equal(t, "m1", bob.read().ID)
	assert.Equal(t, protocol.StatusUpdate("m1", models.StatusDelivered), alice.read())
}

func TestGetStats(t *testing.T) {
	srv := setupTestServer(t)
	alice := connect(t, srv)
	alice.login(srv, "A")

	alice.send(protocol.Send(models.Message{ID: "m1", Sender: "A", Recipient: "B", Content: "x", Timestamp: "10:00"}))
	alice.read()
	alice.roundTrip("A", "self")

	assert.Equal(t, "connections=1,users=A,queued=1", srv.GetStats())
}

func TestServeTCPWithSQLiteQueue(t *testing.T) {
	store, err := db.New(":memory:")
	require.NoError(t, err)
	defer store.Close()

	srv := New(store, &ServerConfig{}, logs.GetLoggerFromLevel(slog.LevelWarn))
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(listener) }()

	alice, err := protocol.Dial(listener.Addr().String(), 5*time.Second)
	require.NoError(t, err)
	defer alice.Close()

	write := func(f protocol.Frame) {
		line, err := protocol.Encode(f)
		require.NoError(t, err)
		require.NoError(t, alice.WriteLine(line))
	}
	read := func() protocol.Frame {
		line, err := alice.ReadLine()
		require.NoError(t, err)
		f, err := protocol.Decode(line)
		require.NoError(t, err)
		return f
	}

	write(protocol.Login("A"))
	write(protocol.Send(models.Message{ID: "m1", Sender: "A", Recipient: "B", Content: "x", Timestamp: "10:00"}))
	assert.Equal(t, protocol.StatusUpdate("m1", models.StatusServerAck), read())

	write(protocol.Login("B"))
	write(protocol.Fetch())
	assert.Equal(t, "m1", read().ID)

	srv.Shutdown()
	require.NoError(t, <-done)
}

func TestServeWebSocket(t *testing.T) {
	srv := setupTestServer(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go srv.ServeWebSocket(listener)

	conn, err := protocol.Dial("ws://"+listener.Addr().String()+"/ws", 5*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	for _, f := range []protocol.Frame{
		protocol.Login("A"),
		protocol.Send(models.Message{ID: "m1", Sender: "A", Recipient: "A", Content: "self", Timestamp: "10:00"}),
	} {
		line, err := protocol.Encode(f)
		require.NoError(t, err)
		require.NoError(t, conn.WriteLine(line))
	}

	var types []string
	for i := 0; i < 3; i++ {
		line, err := conn.ReadLine()
		require.NoError(t, err)
		f, err := protocol.Decode(line)
		require.NoError(t, err)
		types = append(types, f.Type+":"+string(f.Status))
	}
	assert.Equal(t, []string{"status:server_ack", "message:", "status:delivered"}, types)
}

func TestShutdownClosesConnections(t *testing.T) {
	srv := setupTestServer(t)
	client := connect(t, srv)
	client.login(srv, "A")

	srv.Shutdown()

	client.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, err := client.reader.ReadString('\n')
	require.Error(t, err)

	// connections arriving after shutdown are refused
	late := connect(t, srv)
	late.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, err = late.reader.ReadString('\n')
	require.Error(t, err)
}
