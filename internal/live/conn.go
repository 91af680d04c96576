package live

import "errors"

var (
	// ErrConnClosed is returned by Send once a connection has closed
	ErrConnClosed = errors.New("live: connection closed")
	// ErrSendQueueFull is returned by Send when the outbound queue has no room
	ErrSendQueueFull = errors.New("live: send queue full")
)

// Conn is one client endpoint as seen by the registry.
//
// Send must not block: implementations either queue the frame or fail.
// Frames queued on one Conn are delivered in the order they were sent.
type Conn interface {
	ID() string
	Send(frame []byte) error
	IsOpen() bool
	Close() error
}
