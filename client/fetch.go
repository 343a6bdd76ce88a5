package client

import (
	"context"
	"log/slog"
	"time"

	"relay/protocol"
)

// DefaultFetchInterval replaces a non-positive fetch interval.
const DefaultFetchInterval = 2 * time.Second

// FetchLoop asks the server for queued messages, first after delay and then
// every interval. It returns when ctx is cancelled or the connection is
// closed; other send errors are logged and the loop keeps going.
func FetchLoop(ctx context.Context, sender FrameSender, delay, interval time.Duration, log *slog.Logger) {
	if interval <= 0 {
		interval = DefaultFetchInterval
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := sender.Send(protocol.Fetch()); err != nil {
			if protocol.IsClosed(err) {
				log.Debug("Connection closed, stopping fetch loop")
				return
			}
			log.Warn("Fetch request failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
