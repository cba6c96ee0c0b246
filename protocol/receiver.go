package protocol

import "sync/atomic"

// rawBuffer holds the bytes of one frame, start and end delimiters included
type rawBuffer struct {
	data [FrameMaxLen]byte
	n    int
}

// ReceiverStats counts what the receiver did with incoming bytes
type ReceiverStats struct {
	Frames    uint32 // Complete frames handed to the main context
	Overflows uint32 // Frames discarded for exceeding the buffer
	Busy      uint32 // Frames dropped because the previous one was not consumed
	Errors    uint32 // Frames discarded after a hardware receive error
}

// Receiver accumulates bytes from the receive interrupt into frames.
//
// OnByte and OnError run in interrupt context and are the only writers of
// the fill buffer and counter. Completed frames are handed to the main
// context through an atomic slot; the interrupt side then fills the other
// buffer, so a new frame can arrive while the previous one is parsed.
type Receiver struct {
	start byte

	// Interrupt side
	bufs      [2]rawBuffer
	fill      uint8
	count     int
	receiving bool

	// Shared: 0 = empty, i+1 = bufs[i] is ready for the main context
	ready   uint32
	discard uint32 // atomic bool, set by the main context

	frames    uint32
	overflows uint32
	busy      uint32
	rxErrors  uint32
}

// NewReceiver creates a receiver that waits for the given start delimiter
// (RequestStart on nodes, ReplyStart on masters)
func NewReceiver(start byte) *Receiver {
	return &Receiver{start: start}
}

// OnByte handles one received byte. O(1) and non-blocking.
func (r *Receiver) OnByte(c byte) {
	if atomic.CompareAndSwapUint32(&r.discard, 1, 0) {
		r.restart()
	}

	// Wait for the start of a frame
	if !r.receiving {
		if c != r.start {
			return
		}
		r.receiving = true
	}

	buf := &r.bufs[r.fill]
	buf.data[r.count] = c
	r.count++

	if c == LineEnd {
		r.complete()
		return
	}

	// Last slot is reserved; a frame this long can never be valid
	if r.count >= FrameMaxLen-1 {
		atomic.AddUint32(&r.overflows, 1)
		r.restart()
	}
}

// OnError handles a parity, framing or overrun error reported by the UART.
// The bytes gathered so far cannot be trusted and are dropped.
func (r *Receiver) OnError() {
	atomic.StoreUint32(&r.discard, 0)
	if r.receiving {
		atomic.AddUint32(&r.rxErrors, 1)
	}
	r.restart()
}

func (r *Receiver) complete() {
	buf := &r.bufs[r.fill]
	buf.n = r.count

	if atomic.CompareAndSwapUint32(&r.ready, 0, uint32(r.fill)+1) {
		atomic.AddUint32(&r.frames, 1)
		r.fill ^= 1
	} else {
		// Main context still owns the other buffer
		atomic.AddUint32(&r.busy, 1)
	}
	r.restart()
}

func (r *Receiver) restart() {
	r.count = 0
	r.receiving = false
}

// Ready reports whether a complete frame is waiting for the main context
func (r *Receiver) Ready() bool {
	return atomic.LoadUint32(&r.ready) != 0
}

// Frame returns the ready frame, or nil. The slice is only valid until
// Release or Discard is called.
func (r *Receiver) Frame() []byte {
	idx := atomic.LoadUint32(&r.ready)
	if idx == 0 {
		return nil
	}
	buf := &r.bufs[idx-1]
	return buf.data[:buf.n]
}

// Release hands the ready buffer back to the interrupt side
func (r *Receiver) Release() {
	atomic.StoreUint32(&r.ready, 0)
}

// Discard drops the ready frame and asks the interrupt side to drop any
// frame it is still accumulating. The request is applied on the next byte.
func (r *Receiver) Discard() {
	atomic.StoreUint32(&r.discard, 1)
	r.Release()
}

// Stats returns a snapshot of the receiver counters
func (r *Receiver) Stats() ReceiverStats {
	return ReceiverStats{
		Frames:    atomic.LoadUint32(&r.frames),
		Overflows: atomic.LoadUint32(&r.overflows),
		Busy:      atomic.LoadUint32(&r.busy),
		Errors:    atomic.LoadUint32(&r.rxErrors),
	}
}
