package server

import "errors"

var (
	ErrConnClosed    = errors.New("server: connection closed")
	ErrSendQueueFull = errors.New("server: send queue full")
	ErrAlreadyBound  = errors.New("server: connection already bound")
)

// Conn is a live transport connection as seen by the hub.
//
// Send must not block on network I/O: implementations queue the frame and
// write it from their own goroutine. Close terminates the transport
// immediately and is safe to call more than once.
type Conn interface {
	ID() string
	Send(frame []byte) error
	Ping() error
	Close() error
	IsOpen() bool
	RemoteAddr() string
}
