package bus

import "io"

// Line adapts a writer, typically a serial port, to protocol.Line so a node
// can run on the host. Writes are synchronous, so Flush has nothing to wait
// for.
type Line struct {
	w   io.Writer
	buf [1]byte
}

// NewLine wraps w
func NewLine(w io.Writer) *Line {
	return &Line{w: w}
}

func (l *Line) WriteByte(c byte) error {
	l.buf[0] = c
	_, err := l.w.Write(l.buf[:])
	return err
}

func (l *Line) Flush() error {
	return nil
}
