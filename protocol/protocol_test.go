package protocol

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay/models"
)

func TestDecode_ValidFrames(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Frame
	}{
		{
			name: "login",
			line: `{"type":"login","username":"alice"}`,
			want: Frame{Type: TypeLogin, Username: "alice"},
		},
		{
			name: "fetch has no fields",
			line: `{"type":"fetch"}`,
			want: Frame{Type: TypeFetch},
		},
		{
			name: "send",
			line: `{"type":"send","id":"m1","from":"A","to":"B","content":"hi","timestamp":"10:00"}`,
			want: Frame{Type: TypeSend, ID: "m1", From: "A", To: "B", Content: "hi", Timestamp: "10:00"},
		},
		{
			name: "send with empty content",
			line: `{"type":"send","id":"m1","from":"A","to":"B","content":"","timestamp":""}`,
			want: Frame{Type: TypeSend, ID: "m1", From: "A", To: "B"},
		},
		{
			name: "status",
			line: `{"type":"status","id":"m1","status":"delivered"}`,
			want: Frame{Type: TypeStatus, ID: "m1", Status: models.StatusDelivered},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.line))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"not json", `hello`},
		{"truncated", `{"type":"login"`},
		{"login without username", `{"type":"login"}`},
		{"send without recipient", `{"type":"send","id":"m1","from":"A","content":"hi","timestamp":"10:00"}`},
		{"send without id", `{"type":"send","from":"A","to":"B","content":"hi","timestamp":"10:00"}`},
		{"send without content", `{"type":"send","id":"m1","from":"A","to":"B","timestamp":"10:00"}`},
		{"message without timestamp", `{"type":"message","id":"m1","from":"A","content":"hi"}`},
		{"status outside enum", `{"type":"status","id":"m1","status":"pending"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.line))
			require.ErrorIs(t, err, ErrInvalidFrame)
		})
	}
}

func TestDecode_UnknownType(t *testing.T) {
	f, err := Decode([]byte(`{"type":"ping"}`))
	require.ErrorIs(t, err, ErrUnknownType)
	assert.Equal(t, "ping", f.Type)
}

func TestEncode_OmitsUnusedFields(t *testing.T) {
	b, err := Encode(StatusUpdate("m1", models.StatusServerAck))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"status","id":"m1","status":"server_ack"}`, string(b))

	b, err = Encode(Fetch())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"fetch"}`, string(b))
}

func TestDeliver_DropsRecipient(t *testing.T) {
	msg := models.Message{ID: "m1", Sender: "A", Recipient: "B", Content: "hi", Timestamp: "10:00"}

	b, err := Encode(Deliver(msg))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"message","id":"m1","from":"A","content":"hi","timestamp":"10:00"}`, string(b))

	assert.Equal(t, msg, Send(msg).Message())
}

func TestEncode_EmptyContentRoundTrips(t *testing.T) {
	msg := models.Message{ID: "m1", Sender: "A", Recipient: "B", Timestamp: "10:00"}

	for _, frame := range []Frame{Send(msg), Deliver(msg)} {
		b, err := Encode(frame)
		require.NoError(t, err)
		assert.Contains(t, string(b), `"content":""`)

		got, err := Decode(b)
		require.NoError(t, err, frame.Type)
		assert.Equal(t, frame, got)
	}
}

func TestTCPConn_LineFraming(t *testing.T) {
	a, b := net.Pipe()
	left := NewTCPConn(a, 0)
	right := NewTCPConn(b, 0)
	defer left.Close()
	defer right.Close()

	go func() {
		left.WriteLine([]byte(`{"type":"fetch"}`))
		left.Close()
	}()

	line, err := right.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"fetch"}`, string(line))

	_, err = right.ReadLine()
	require.Error(t, err)
}

func TestIsClosed(t *testing.T) {
	assert.True(t, IsClosed(ErrClosed))
	assert.True(t, IsClosed(net.ErrClosed))
	assert.False(t, IsClosed(ErrInvalidFrame))
}
