package protocol

import "testing"

func TestScratchOutput(t *testing.T) {
	var scratch ScratchOutput

	scratch.Output([]byte{'1', '2', '3'})
	scratch.OutputString("ab")
	scratch.OutputByte('c')
	if got := string(scratch.Result()); got != "123abc" {
		t.Errorf("Expected 123abc, got %q", got)
	}
	if scratch.Overflowed() {
		t.Error("Unexpected overflow")
	}

	scratch.Reset()
	if len(scratch.Result()) != 0 {
		t.Errorf("After reset, expected empty buffer, got %d bytes", len(scratch.Result()))
	}
}

func TestScratchOutputOverflow(t *testing.T) {
	var scratch ScratchOutput

	big := make([]byte, FrameMaxLen+10)
	scratch.Output(big)
	if !scratch.Overflowed() {
		t.Error("Expected overflow after writing past capacity")
	}
	if len(scratch.Result()) != FrameMaxLen {
		t.Errorf("Expected %d bytes, got %d", FrameMaxLen, len(scratch.Result()))
	}

	scratch.OutputByte('x')
	scratch.OutputString("yz")
	if len(scratch.Result()) != FrameMaxLen {
		t.Error("Bytes written past capacity")
	}

	scratch.Reset()
	if scratch.Overflowed() {
		t.Error("Reset should clear the overflow flag")
	}
}
