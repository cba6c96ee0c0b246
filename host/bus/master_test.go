package bus

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busnode/core"
	"busnode/protocol"
)

// duplex joins the read end of one pipe and the write end of another
type duplex struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (d *duplex) Read(p []byte) (int, error)  { return d.r.Read(p) }
func (d *duplex) Write(p []byte) (int, error) { return d.w.Write(p) }

func (d *duplex) Close() error {
	d.w.Close()
	return d.r.Close()
}

// newBus returns the master's port and the node's end of the wire
func newBus() (host, node *duplex) {
	toNodeR, toNodeW := io.Pipe()
	toHostR, toHostW := io.Pipe()
	return &duplex{r: toHostR, w: toNodeW}, &duplex{r: toNodeR, w: toHostW}
}

// runNode serves a node on the wire until the wire is closed
func runNode(t *testing.T, wire *duplex, addr uint8, setup func(*core.Node, *core.CommandRegistry)) {
	t.Helper()
	n, err := core.NewNode(core.NodeConfig{
		Transport: protocol.NewTransport(NewLine(wire), nil),
		Store:     core.NewMemoryStore(addr, 0),
	})
	require.NoError(t, err)
	reg := core.NewCommandRegistry(n.Replier())
	n.SetHandler(reg)
	setup(n, reg)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := make([]byte, 64)
		for {
			k, err := wire.Read(buf)
			for _, c := range buf[:k] {
				n.OnByte(c)
				n.Poll()
			}
			if err != nil {
				return
			}
		}
	}()
	t.Cleanup(func() {
		wire.Close()
		wg.Wait()
	})
}

func TestMasterRequest(t *testing.T) {
	host, wire := newBus()
	runNode(t, wire, 3, func(n *core.Node, reg *core.CommandRegistry) {
		reg.Register("PING", func(f *protocol.Frame) error {
			return n.Replier().ReplyStart().Text("PONG ").Text(f.Arg(0)).End()
		})
	})

	m := NewMaster(host, WithTimeout(time.Second))
	defer m.Close()

	f, err := m.Request(context.Background(), 3, "PING", "hello")
	require.NoError(t, err)
	assert.Equal(t, uint8(3), f.Addr)
	assert.Equal(t, "PONG", f.Command)
	assert.Equal(t, []string{"hello"}, f.Arguments())

	st := m.Stats()
	assert.Equal(t, uint64(1), st.Requests)
	assert.Equal(t, uint64(1), st.Replies)
	assert.Zero(t, st.Retries)
}

func TestMasterInvalidCommand(t *testing.T) {
	host, wire := newBus()
	runNode(t, wire, 8, func(*core.Node, *core.CommandRegistry) {})

	m := NewMaster(host, WithTimeout(time.Second))
	defer m.Close()

	f, err := m.Request(context.Background(), 8, "NOPE?")
	require.ErrorIs(t, err, ErrInvalidCommand)
	require.NotNil(t, f)
	assert.Equal(t, `"NOPE?"`, f.Arg(0))
}

func TestMasterCommandFailed(t *testing.T) {
	host, wire := newBus()
	runNode(t, wire, 8, func(_ *core.Node, reg *core.CommandRegistry) {
		reg.Register("FAIL", func(*protocol.Frame) error { return errors.New("boom") })
	})

	m := NewMaster(host, WithTimeout(time.Second))
	defer m.Close()

	_, err := m.Request(context.Background(), 8, "FAIL")
	assert.ErrorIs(t, err, ErrCommandFailed)
}

func TestMasterNoReply(t *testing.T) {
	host, wire := newBus()
	// Nobody answers, but the wire keeps draining
	go io.Copy(io.Discard, wire.r)
	defer wire.Close()

	m := NewMaster(host, WithTimeout(20*time.Millisecond), WithRetries(1))
	defer m.Close()

	_, err := m.Request(context.Background(), 4, "PING")
	require.ErrorIs(t, err, ErrNoReply)

	st := m.Stats()
	assert.Equal(t, uint64(1), st.Retries)
	assert.Equal(t, uint64(2), st.Timeouts)
}

func TestMasterContextCanceled(t *testing.T) {
	host, wire := newBus()
	go io.Copy(io.Discard, wire.r)
	defer wire.Close()

	m := NewMaster(host, WithTimeout(time.Minute))
	defer m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := m.Request(ctx, 4, "PING")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMasterIgnoresOtherNodes(t *testing.T) {
	host, wire := newBus()
	go func() {
		buf := make([]byte, 64)
		if _, err := wire.Read(buf); err != nil {
			return
		}
		io.WriteString(wire, "noise;9 WRONG\r\n;4 RIGHT\r\n")
	}()
	defer wire.Close()

	m := NewMaster(host, WithTimeout(time.Second))
	defer m.Close()

	f, err := m.Request(context.Background(), 4, "PING")
	require.NoError(t, err)
	assert.Equal(t, "RIGHT", f.Command)
}

func TestMasterRequestValidation(t *testing.T) {
	host, wire := newBus()
	defer wire.Close()
	m := NewMaster(host)
	defer m.Close()

	_, err := m.Request(context.Background(), 0, "PING")
	assert.ErrorIs(t, err, ErrBroadcastRequest)

	_, err = m.Request(context.Background(), 1, "ABCDEFGHIJKLMNOPQRS")
	assert.ErrorIs(t, err, protocol.ErrTokenTooLong)

	assert.Error(t, m.Broadcast("A", "1", "2", "3", "4", "5", "6"))
}

func TestMasterBroadcastAndEvents(t *testing.T) {
	host, wire := newBus()

	received := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64)
		n, err := wire.Read(buf)
		if err != nil {
			return
		}
		received <- append([]byte(nil), buf[:n]...)
		io.WriteString(wire, ";0 TRIGD 5\r\n")
	}()
	defer wire.Close()

	m := NewMaster(host)
	defer m.Close()

	require.NoError(t, m.Broadcast("ANNCPRESS", "1"))
	assert.Equal(t, ":0 ANNCPRESS 1\r\n", string(<-received))

	select {
	case evt := <-m.Events():
		assert.Equal(t, "TRIGD", evt.Command)
		assert.Equal(t, "5", evt.Arg(0))
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
	assert.Equal(t, uint64(1), m.Stats().Events)
}

func TestMasterClose(t *testing.T) {
	host, wire := newBus()
	defer wire.Close()

	m := NewMaster(host)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, err := m.Request(context.Background(), 1, "PING")
	assert.ErrorIs(t, err, ErrClosed)
}

// ttyPort behaves like a serial port with a read timeout: a Read on a quiet
// line returns (0, io.EOF)
type ttyPort struct {
	incoming  chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	idleReads int32
}

func newTTYPort() *ttyPort {
	return &ttyPort{
		incoming: make(chan []byte, 4),
		closed:   make(chan struct{}),
	}
}

func (p *ttyPort) Read(b []byte) (int, error) {
	select {
	case <-p.closed:
		return 0, os.ErrClosed
	case data := <-p.incoming:
		return copy(b, data), nil
	case <-time.After(2 * time.Millisecond):
		atomic.AddInt32(&p.idleReads, 1)
		return 0, io.EOF
	}
}

func (p *ttyPort) Write(b []byte) (int, error) { return len(b), nil }

func (p *ttyPort) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

func TestMasterSurvivesIdleReadTimeouts(t *testing.T) {
	port := newTTYPort()
	m := NewMaster(port)
	defer m.Close()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&port.idleReads) >= 3
	}, time.Second, time.Millisecond)

	port.incoming <- []byte(";0 TRIGD 5\r\n")
	select {
	case evt := <-m.Events():
		assert.Equal(t, "TRIGD", evt.Command)
		assert.Equal(t, "5", evt.Arg(0))
	case <-time.After(time.Second):
		t.Fatal("read loop stopped on an idle timeout")
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		port.incoming <- []byte(";7 PONG\r\n")
	}()
	f, err := m.Request(context.Background(), 7, "PING")
	require.NoError(t, err)
	assert.Equal(t, "PONG", f.Command)
	assert.Zero(t, m.Stats().ParseErrors)
}
