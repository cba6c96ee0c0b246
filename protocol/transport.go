package protocol

import (
	"io"
	"runtime"
	"sync/atomic"
)

// Line is the byte sink of the bus UART. WriteByte blocks until the
// hardware accepts the byte.
type Line interface {
	io.ByteWriter
}

// Flusher is implemented by lines that can wait for the last byte to leave
// the wire. Such lines release the bus without a transmit-complete interrupt.
type Flusher interface {
	Flush() error
}

// DirectionPin drives the transceiver's driver-enable signal
type DirectionPin interface {
	Set(transmit bool)
}

// NopDirection is used with adapters that switch direction on their own
type NopDirection struct{}

// Set does nothing
func (NopDirection) Set(bool) {}

// TransportState is the half-duplex state of the bus line
type TransportState uint32

const (
	TxIdle     TransportState = iota // Receiving, line released
	TxActive                         // Owner is writing bytes
	TxDraining                       // Bytes written, waiting for transmit complete
)

// TransportStats counts transmissions
type TransportStats struct {
	Transmissions uint32
	Bytes         uint32
}

// Transport enforces single-writer access to the shared bus line. The line
// is driven only inside a Send scope and released once the hardware reports
// that the last byte has been shifted out.
type Transport struct {
	line  Line
	dir   DirectionPin
	state uint32 // atomic TransportState
	done  uint32 // atomic bool, transmit complete seen since the last byte
	yield func()

	transmissions uint32
	bytes         uint32
}

// NewTransport creates a transport in receive mode
func NewTransport(line Line, dir DirectionPin) *Transport {
	if dir == nil {
		dir = NopDirection{}
	}
	t := &Transport{
		line:  line,
		dir:   dir,
		yield: runtime.Gosched,
	}
	dir.Set(false)
	return t
}

// SetYield replaces the function called while spinning for the line
func (t *Transport) SetYield(fn func()) {
	t.yield = fn
}

// State returns the current line state
func (t *Transport) State() TransportState {
	return TransportState(atomic.LoadUint32(&t.state))
}

// TxScope writes bytes while the caller owns the line
type TxScope struct {
	t   *Transport
	n   int
	err error
}

// WriteByte sends one byte. After the first error further writes are skipped.
func (s *TxScope) WriteByte(b byte) error {
	if s.err != nil {
		return s.err
	}
	// A completion reported before this byte is stale
	atomic.StoreUint32(&s.t.done, 0)
	if err := s.t.line.WriteByte(b); err != nil {
		s.err = err
		return err
	}
	s.n++
	return nil
}

// Write sends p
func (s *TxScope) Write(p []byte) (int, error) {
	for i, b := range p {
		if err := s.WriteByte(b); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

// WriteString sends str
func (s *TxScope) WriteString(str string) (int, error) {
	for i := 0; i < len(str); i++ {
		if err := s.WriteByte(str[i]); err != nil {
			return i, err
		}
	}
	return len(str), nil
}

// Send takes ownership of the line, asserts transmit-enable and runs fn.
// It spins until any other transmission has completed. The line is released
// by OnTransmitComplete, or immediately when the line is a Flusher.
func (t *Transport) Send(fn func(w *TxScope) error) error {
	for !atomic.CompareAndSwapUint32(&t.state, uint32(TxIdle), uint32(TxActive)) {
		t.yield()
	}
	t.dir.Set(true)

	scope := TxScope{t: t}
	err := fn(&scope)
	if err == nil {
		err = scope.err
	}
	atomic.AddUint32(&t.transmissions, 1)
	atomic.AddUint32(&t.bytes, uint32(scope.n))

	if scope.n == 0 {
		// Nothing on the wire, no completion will be signalled
		t.release()
		return err
	}

	atomic.StoreUint32(&t.state, uint32(TxDraining))
	if f, ok := t.line.(Flusher); ok {
		if ferr := f.Flush(); ferr != nil && err == nil {
			err = ferr
		}
		t.OnTransmitComplete()
		return err
	}
	// The last byte may have completed before the state became Draining
	t.releaseIfDone()
	return err
}

// OnTransmitComplete is called from the transmit-complete interrupt. It
// releases the line when a transmission is draining. During an active
// transmission it is only remembered: a later byte makes it stale, otherwise
// Send releases the line once it has finished writing.
func (t *Transport) OnTransmitComplete() {
	if atomic.LoadUint32(&t.state) == uint32(TxIdle) {
		return
	}
	atomic.StoreUint32(&t.done, 1)
	t.releaseIfDone()
}

// releaseIfDone releases a draining line whose completion was seen. Send and
// the interrupt may both get here; only the one that clears done releases.
func (t *Transport) releaseIfDone() {
	if atomic.LoadUint32(&t.state) != uint32(TxDraining) {
		return
	}
	if atomic.CompareAndSwapUint32(&t.done, 1, 0) {
		t.release()
	}
}

func (t *Transport) release() {
	t.dir.Set(false)
	atomic.StoreUint32(&t.state, uint32(TxIdle))
}

// SendByte sends a single byte
func (t *Transport) SendByte(b byte) error {
	return t.Send(func(w *TxScope) error {
		return w.WriteByte(b)
	})
}

// SendString sends s
func (t *Transport) SendString(s string) error {
	return t.Send(func(w *TxScope) error {
		_, err := w.WriteString(s)
		return err
	})
}

// SendLine sends s followed by CRLF
func (t *Transport) SendLine(s string) error {
	return t.Send(func(w *TxScope) error {
		w.WriteString(s)
		_, err := w.WriteString(Terminator)
		return err
	})
}

// SendUint8 sends the decimal form of n
func (t *Transport) SendUint8(n uint8) error {
	var buf [3]byte
	return t.Write(AppendUint8(buf[:0], n))
}

// SendInt8 sends the decimal form of n
func (t *Transport) SendInt8(n int8) error {
	var buf [4]byte
	return t.Write(AppendInt8(buf[:0], n))
}

// Write sends p in a single transmission
func (t *Transport) Write(p []byte) error {
	return t.Send(func(w *TxScope) error {
		_, err := w.Write(p)
		return err
	})
}

// Stats returns a snapshot of the transmit counters
func (t *Transport) Stats() TransportStats {
	return TransportStats{
		Transmissions: atomic.LoadUint32(&t.transmissions),
		Bytes:         atomic.LoadUint32(&t.bytes),
	}
}
