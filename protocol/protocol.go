package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"relay/models"
)

var (
	ErrInvalidFrame = errors.New("invalid frame")
	ErrUnknownType  = errors.New("unknown frame type")
)

// Frame types
const (
	TypeLogin   = "login"
	TypeLogout  = "logout"
	TypeSend    = "send"
	TypeFetch   = "fetch"
	TypeStatus  = "status"
	TypeMessage = "message"
)

// Frame is one JSON object on the wire. Which fields are meaningful depends on Type.
type Frame struct {
	Type      string        `json:"type"`
	Username  string        `json:"username,omitempty" validate:"required"`
	ID        string        `json:"id,omitempty" validate:"required"`
	From      string        `json:"from,omitempty" validate:"required"`
	To        string        `json:"to,omitempty" validate:"required"`
	Content   string        `json:"content,omitempty"`
	Timestamp string        `json:"timestamp,omitempty"`
	Status    models.Status `json:"status,omitempty" validate:"required,oneof=server_ack delivered"`
}

// requiredFields lists, per frame type, the struct fields that must be present.
var requiredFields = map[string][]string{
	TypeLogin:   {"Username"},
	TypeLogout:  {"Username"},
	TypeSend:    {"ID", "From", "To"},
	TypeFetch:   nil,
	TypeStatus:  {"ID", "Status"},
	TypeMessage: {"ID", "From"},
}

// presentKeys lists, per frame type, the keys that must appear on the wire
// but may carry an empty string.
var presentKeys = map[string][]string{
	TypeSend:    {"content", "timestamp"},
	TypeMessage: {"content", "timestamp"},
}

// payloadFrame is the wire shape of send and message frames: content and
// timestamp are always written, even when empty.
type payloadFrame struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	From      string `json:"from"`
	To        string `json:"to,omitempty"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

var validate = validator.New()

// Decode parses a single line into a Frame. The returned frame is populated
// as far as parsing got, so callers can log its type on ErrUnknownType.
func Decode(line []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(line, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}

	fields, ok := requiredFields[f.Type]
	if !ok {
		return f, fmt.Errorf("%w: %q", ErrUnknownType, f.Type)
	}
	if len(fields) > 0 {
		if err := validate.StructPartial(&f, fields...); err != nil {
			return f, fmt.Errorf("%w: %s: %v", ErrInvalidFrame, f.Type, err)
		}
	}
	if keys := presentKeys[f.Type]; len(keys) > 0 {
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(line, &raw); err != nil {
			return f, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
		}
		for _, key := range keys {
			if _, ok := raw[key]; !ok {
				return f, fmt.Errorf("%w: %s: missing %q", ErrInvalidFrame, f.Type, key)
			}
		}
	}
	return f, nil
}

// Encode serializes a frame without the trailing line delimiter.
func Encode(f Frame) ([]byte, error) {
	if len(presentKeys[f.Type]) > 0 {
		return json.Marshal(payloadFrame{
			Type:      f.Type,
			ID:        f.ID,
			From:      f.From,
			To:        f.To,
			Content:   f.Content,
			Timestamp: f.Timestamp,
		})
	}
	return json.Marshal(f)
}

func Login(username string) Frame {
	return Frame{Type: TypeLogin, Username: username}
}

func Logout(username string) Frame {
	return Frame{Type: TypeLogout, Username: username}
}

func Fetch() Frame {
	return Frame{Type: TypeFetch}
}

func Send(msg models.Message) Frame {
	return Frame{
		Type:      TypeSend,
		ID:        msg.ID,
		From:      msg.Sender,
		To:        msg.Recipient,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	}
}

func StatusUpdate(id string, status models.Status) Frame {
	return Frame{Type: TypeStatus, ID: id, Status: status}
}

// Deliver builds the frame a recipient sees for msg.
func Deliver(msg models.Message) Frame {
	return Frame{
		Type:      TypeMessage,
		ID:        msg.ID,
		From:      msg.Sender,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	}
}

// Message converts a send frame into the message it carries.
func (f Frame) Message() models.Message {
	return models.Message{
		ID:        f.ID,
		Sender:    f.From,
		Recipient: f.To,
		Content:   f.Content,
		Timestamp: f.Timestamp,
	}
}
