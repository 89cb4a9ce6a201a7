package scpimux

import (
	"io"
	"time"
)

// Porter defines the minimal interface needed for an instrument port.
// This abstraction enables unit testing without real serial hardware.
type Porter interface {
	io.ReadWriter
	io.Closer
}

// TimeoutPorter extends Porter with read timeout control. Real serial ports
// implement it; mocks may not.
type TimeoutPorter interface {
	Porter
	SetReadTimeout(timeout time.Duration) error
}

// PortFactory defines an interface for creating instrument ports.
// This abstraction enables dependency injection of port creation.
type PortFactory interface {
	// Open opens a port at the specified path with the given options.
	Open(path string, opts PortOptions) (Porter, error)
}
