package protocol

// ScratchOutput composes an outgoing frame in a fixed-size buffer.
// Writes past the end are dropped and remembered. The zero value is empty.
type ScratchOutput struct {
	buf      [FrameMaxLen]byte
	pos      int
	overflow bool
}

// Output appends data
func (s *ScratchOutput) Output(data []byte) {
	n := copy(s.buf[s.pos:], data)
	s.pos += n
	if n < len(data) {
		s.overflow = true
	}
}

// OutputString appends str without converting it to a byte slice
func (s *ScratchOutput) OutputString(str string) {
	n := copy(s.buf[s.pos:], str)
	s.pos += n
	if n < len(str) {
		s.overflow = true
	}
}

// OutputByte appends a single byte
func (s *ScratchOutput) OutputByte(b byte) {
	if s.pos >= len(s.buf) {
		s.overflow = true
		return
	}
	s.buf[s.pos] = b
	s.pos++
}

// Result returns the accumulated output data
func (s *ScratchOutput) Result() []byte {
	return s.buf[:s.pos]
}

// Overflowed reports whether any write was truncated since the last Reset
func (s *ScratchOutput) Overflowed() bool {
	return s.overflow
}

// Reset clears the buffer
func (s *ScratchOutput) Reset() {
	s.pos = 0
	s.overflow = false
}
