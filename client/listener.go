package client

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"relay/protocol"
)

// LineSource yields raw frames from the server.
type LineSource interface {
	ReadLine() ([]byte, error)
}

// Listener consumes everything the server sends: status updates for the
// user's own messages and messages addressed to the user.
type Listener struct {
	table *StatusTable
	out   *Printer
	log   *slog.Logger
}

func NewListener(table *StatusTable, out *Printer, log *slog.Logger) *Listener {
	return &Listener{table: table, out: out, log: log}
}

// Run reads frames until the connection ends or ctx is cancelled. A read
// failure after cancellation is the normal shutdown path and is not
// reported. EOF prints a notice and returns nil.
func (l *Listener) Run(ctx context.Context, src LineSource) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := src.ReadLine()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) || protocol.IsClosed(err) {
				l.out.Disconnected()
				return nil
			}
			return err
		}
		if len(line) == 0 {
			continue
		}

		frame, err := protocol.Decode(line)
		if err != nil {
			l.log.Warn("Discarding malformed frame", "error", err)
			continue
		}
		l.Handle(frame)
	}
}

// Handle applies one decoded frame.
func (l *Listener) Handle(frame protocol.Frame) {
	switch frame.Type {
	case protocol.TypeStatus:
		entry, err := l.table.Apply(frame.ID, frame.Status)
		switch {
		case errors.Is(err, ErrUnknownMessage):
			l.log.Warn("Status for unknown message", "id", frame.ID, "status", frame.Status)
		case errors.Is(err, ErrStaleStatus):
			l.log.Debug("Ignoring stale status", "id", frame.ID, "status", frame.Status, "current", entry.Status)
		default:
			l.out.StatusChanged(entry)
		}
	case protocol.TypeMessage:
		l.out.Incoming(frame)
	default:
		l.log.Warn("Ignoring unexpected frame", "type", frame.Type)
	}
}
