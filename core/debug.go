package core

import "busnode/protocol"

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// BusEvent captures a main-loop bus event for post-mortem analysis
type BusEvent struct {
	EventType uint8  // Event type code
	Addr      uint8  // Frame address, when there is one
	Clock     uint32 // System clock at event
	Value     uint32 // Context-dependent value
}

// Event type codes
const (
	EvtDispatch   = 1 // Frame handed to the handler
	EvtFiltered   = 2 // Frame for another node
	EvtParseError = 3 // Malformed frame discarded
	EvtAddrChange = 4 // Own address changed
	EvtReplyError = 5 // Reply could not be sent
	EvtNotify     = 6 // Unsolicited broadcast sent
)

const (
	EventRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Event ring buffer, written from the main loop only
	eventRing     [EventRingSize]BusEvent
	eventRingHead uint8
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to a console UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// RecordEvent captures a bus event in the ring buffer
func RecordEvent(eventType, addr uint8, value uint32) {
	idx := eventRingHead
	eventRing[idx] = BusEvent{
		EventType: eventType,
		Addr:      addr,
		Clock:     GetTime(),
		Value:     value,
	}
	eventRingHead = (idx + 1) % EventRingSize
}

// Events returns the recorded events, oldest first
func Events() []BusEvent {
	out := make([]BusEvent, 0, EventRingSize)
	start := eventRingHead
	for i := uint8(0); i < EventRingSize; i++ {
		evt := eventRing[(start+i)%EventRingSize]
		if evt.EventType == 0 {
			continue // Empty slot
		}
		out = append(out, evt)
	}
	return out
}

func eventName(t uint8) string {
	switch t {
	case EvtDispatch:
		return "DISPATCH"
	case EvtFiltered:
		return "FILTERED"
	case EvtParseError:
		return "PARSE_ERR"
	case EvtAddrChange:
		return "ADDR"
	case EvtReplyError:
		return "REPLY_ERR"
	case EvtNotify:
		return "NOTIFY"
	default:
		return "UNKNOWN"
	}
}

// DumpEvents outputs the event ring buffer through the debug writer
func DumpEvents() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[BUS] === Event Ring Dump ===")
	for _, evt := range Events() {
		debugPrintln("[BUS] " + eventName(evt.EventType) +
			" addr=" + utoa(uint32(evt.Addr)) +
			" clock=" + utoa(evt.Clock) +
			" v=" + utoa(evt.Value))
	}
	debugPrintln("[BUS] === End Dump ===")
}

// ClearEvents clears the event buffer
func ClearEvents() {
	for i := range eventRing {
		eventRing[i] = BusEvent{}
	}
	eventRingHead = 0
}

// DebugPrintFrame prints a parsed frame field by field
func DebugPrintFrame(f *protocol.Frame) {
	DebugPrintln("Address: " + protocol.FormatUint8(f.Addr))
	DebugPrintln("Command: '" + f.Command + "'")
	DebugPrintln("Arguments [" + protocol.FormatUint8(f.NumArgs) + "]:")
	for i, arg := range f.Arguments() {
		DebugPrintln("  [" + utoa(uint32(i)) + "] '" + arg + "'")
	}
}
