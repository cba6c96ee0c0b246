package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busnode/protocol"
)

func captureDebug(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	SetDebugEnabled(true)
	t.Cleanup(func() {
		SetDebugWriter(func(string) {})
		SetDebugEnabled(false)
		ClearEvents()
	})
	return &lines
}

func TestEventRing(t *testing.T) {
	ClearEvents()
	t.Cleanup(ClearEvents)

	for i := 0; i < EventRingSize+5; i++ {
		RecordEvent(EvtDispatch, uint8(i), uint32(i))
	}

	events := Events()
	require.Len(t, events, EventRingSize)
	assert.Equal(t, uint32(5), events[0].Value, "oldest entries overwritten")
	assert.Equal(t, uint32(EventRingSize+4), events[EventRingSize-1].Value)

	ClearEvents()
	assert.Empty(t, Events())
}

func TestDumpEvents(t *testing.T) {
	lines := captureDebug(t)
	ClearEvents()

	RecordEvent(EvtFiltered, 9, 0)
	RecordEvent(EvtAddrChange, 3, 0)
	DumpEvents()

	out := strings.Join(*lines, "\n")
	assert.Contains(t, out, "FILTERED addr=9")
	assert.Contains(t, out, "ADDR addr=3")
}

func TestDebugDisabled(t *testing.T) {
	lines := captureDebug(t)
	SetDebugEnabled(false)

	DebugPrintln("hidden")
	assert.Empty(t, *lines)
	assert.False(t, IsDebugEnabled())
}

func TestDebugPrintFrame(t *testing.T) {
	lines := captureDebug(t)

	var f protocol.Frame
	require.NoError(t, protocol.ParseFrame([]byte(":12 SET a b\r\n"), &f))
	DebugPrintFrame(&f)

	assert.Equal(t, []string{
		"Address: 12",
		"Command: 'SET'",
		"Arguments [2]:",
		"  [0] 'a'",
		"  [1] 'b'",
	}, *lines)
}

func TestNodeLogsParseErrors(t *testing.T) {
	lines := captureDebug(t)
	n, _, _ := newTestNode(t, 1)

	receive(n, ":1PING\r\n")
	require.True(t, n.Poll())
	require.NotEmpty(t, *lines)
	assert.Contains(t, (*lines)[0], "discarded frame")

	events := Events()
	require.NotEmpty(t, events)
	assert.Equal(t, uint8(EvtParseError), events[len(events)-1].EventType)
}
