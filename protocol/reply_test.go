package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddrReply(t *testing.T) {
	tx, line, _ := newFlushTransport()
	r := NewReplier(tx)

	require.NoError(t, r.AddrReply(5, "OK"))
	assert.Equal(t, ";5 OK\r\n", string(line.Bytes()))

	// One transmission for the whole reply
	assert.Equal(t, uint32(1), tx.Stats().Transmissions)
}

func TestReplyUsesLastAddress(t *testing.T) {
	tx, line, _ := newFlushTransport()
	r := NewReplier(tx)
	r.SetLastAddr(42)

	require.NoError(t, r.Reply("PONG"))
	require.NoError(t, r.ReplyStart().Text("WBIDLCOLOR ").Uint8(255).Char(' ').Uint8(0).Char(' ').Uint8(7).End())
	require.NoError(t, r.ReplyStart().Text("CLKCAL ").Int8(-3).End())
	require.NoError(t, r.ReplyStart().Text("INVCMD ").Quote("FOO").End())

	assert.Equal(t, ";42 PONG\r\n;42 WBIDLCOLOR 255 0 7\r\n;42 CLKCAL -3\r\n;42 INVCMD \"FOO\"\r\n", string(line.Bytes()))
}

func TestNotifyIsBroadcast(t *testing.T) {
	tx, line, _ := newFlushTransport()
	r := NewReplier(tx)
	r.SetLastAddr(3)

	require.NoError(t, r.Notify("TRIGD 3"))
	assert.Equal(t, ";0 TRIGD 3\r\n", string(line.Bytes()))
}

func TestReplyTooLong(t *testing.T) {
	tx, line, _ := newFlushTransport()
	r := NewReplier(tx)

	err := r.AddrReply(1, strings.Repeat("X", FrameMaxLen))
	require.ErrorIs(t, err, ErrReplyTooLong)
	assert.Empty(t, line.Bytes())

	// The scratch buffer is usable again afterwards
	require.NoError(t, r.AddrReply(1, "OK"))
	assert.Equal(t, ";1 OK\r\n", string(line.Bytes()))
}

func TestReplyRejectsLineDelimiters(t *testing.T) {
	tx, line, _ := newFlushTransport()
	r := NewReplier(tx)

	require.ErrorIs(t, r.AddrReply(1, "OK\r\n;2 FAKE"), ErrInvalidToken)
	require.ErrorIs(t, r.Begin(1).Text("A").Char('\n').End(), ErrInvalidToken)
	require.ErrorIs(t, r.Begin(1).Quote("X\rY").End(), ErrInvalidToken)
	assert.Empty(t, line.Bytes())
	assert.Zero(t, tx.Stats().Transmissions)

	// The next reply starts clean
	require.NoError(t, r.AddrReply(1, "OK"))
	assert.Equal(t, ";1 OK\r\n", string(line.Bytes()))
}

func TestReplyRoundTrip(t *testing.T) {
	payloads := [][]string{
		{"OK"},
		{"WALLBUTTON"},
		{"WBIDLCOLOR", "1", "2", "3"},
		{"TRIGD", "17"},
		{"A", "b", "c", "d", "e", "f"},
	}

	for _, addr := range []uint8{0, 1, 5, 200, 255} {
		for _, tokens := range payloads {
			tx, line, _ := newFlushTransport()
			r := NewReplier(tx)
			require.NoError(t, r.AddrReply(addr, strings.Join(tokens, " ")))

			// A peer receiving the reply byte by byte
			rx := NewReceiver(ReplyStart)
			for _, b := range line.Bytes() {
				rx.OnByte(b)
			}
			require.True(t, rx.Ready())

			var f Frame
			require.NoError(t, ParseReply(rx.Frame(), &f))
			assert.Equal(t, addr, f.Addr)
			assert.Equal(t, tokens[0], f.Command)
			assert.Equal(t, tokens[1:], f.Arguments())
		}
	}
}
