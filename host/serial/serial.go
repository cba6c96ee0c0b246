// Package serial opens the host's RS-485 adapter.
package serial

import (
	"errors"
	"io"
	"time"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - In-memory pipes (for testing)
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	// Baud rate of the bus
	Baud int

	// Read timeout (0 = blocking)
	ReadTimeout time.Duration
}

// DefaultBaud is the nominal bus speed
const DefaultBaud = 9600

// DefaultConfig returns the default bus configuration for device
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 50 * time.Millisecond,
	}
}

// IsIdle reports whether a read only hit the read timeout. A tty read that
// times out with nothing received comes back from os.File as (0, io.EOF).
func IsIdle(n int, err error) bool {
	return n == 0 && errors.Is(err, io.EOF)
}
