//go:generate go run go.uber.org/mock/mockgen -source=sender.go -destination=mocks/mock_sender.go -package=mocks
package client

import "relay/protocol"

// FrameSender writes frames to the server. Implementations must be safe for
// concurrent use: the listener, the fetch loop and the command processor all
// share one.
type FrameSender interface {
	Send(frame protocol.Frame) error
}
