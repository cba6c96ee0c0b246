// Package bus is the host side of the bus: a master that addresses nodes
// through a serial RS-485 adapter and collects their replies.
package bus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"busnode/host/serial"
	"busnode/protocol"
)

var (
	// ErrNoReply is returned when a node did not answer within the timeout
	// after every retry.
	ErrNoReply = errors.New("no reply")
	// ErrClosed is returned by requests on a closed master.
	ErrClosed = errors.New("master closed")
	// ErrBroadcastRequest is returned when Request is called with address 0.
	// Nodes never answer broadcasts; use Broadcast.
	ErrBroadcastRequest = errors.New("request to broadcast address")
	// ErrInvalidCommand is returned when the node replied INVCMD.
	ErrInvalidCommand = errors.New("node rejected command")
	// ErrCommandFailed is returned when the node replied GENERR.
	ErrCommandFailed = errors.New("node failed command")
)

const (
	DefaultTimeout = 200 * time.Millisecond
	DefaultRetries = 2

	replyQueueSize = 8
	eventQueueSize = 32
	idlePause      = 5 * time.Millisecond
)

// MasterStats counts bus traffic seen by the master
type MasterStats struct {
	Requests    uint64
	Broadcasts  uint64
	Retries     uint64
	Timeouts    uint64
	Replies     uint64
	Events      uint64
	ParseErrors uint64
	Dropped     uint64
}

// Option configures a Master
type Option func(*Master)

// WithTimeout sets how long to wait for each reply
func WithTimeout(d time.Duration) Option {
	return func(m *Master) { m.timeout = d }
}

// WithRetries sets how many times an unanswered request is repeated
func WithRetries(n int) Option {
	return func(m *Master) { m.retries = n }
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(m *Master) { m.log = log }
}

// Master sends requests to bus nodes and waits for their replies. Only one
// request is on the bus at a time; Request calls from several goroutines
// are serialized.
type Master struct {
	port    io.ReadWriteCloser
	rx      *protocol.Receiver
	timeout time.Duration
	retries int
	log     *zap.Logger

	reqMutex   sync.Mutex
	writeMutex sync.Mutex

	replies chan protocol.Frame
	events  chan protocol.Frame

	stopChan  chan struct{}
	doneChan  chan struct{}
	closeOnce sync.Once

	requests    uint64
	broadcasts  uint64
	retried     uint64
	timeouts    uint64
	replyCount  uint64
	eventCount  uint64
	parseErrors uint64
	dropped     uint64
}

// NewMaster starts a master on port. The master owns the port and closes
// it on Close.
func NewMaster(port io.ReadWriteCloser, opts ...Option) *Master {
	m := &Master{
		port:     port,
		rx:       protocol.NewReceiver(protocol.ReplyStart),
		timeout:  DefaultTimeout,
		retries:  DefaultRetries,
		log:      zap.NewNop(),
		replies:  make(chan protocol.Frame, replyQueueSize),
		events:   make(chan protocol.Frame, eventQueueSize),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	go m.readLoop()
	return m
}

// Request sends cmd to the node at addr and waits for its reply. INVCMD and
// GENERR replies are returned together with ErrInvalidCommand or
// ErrCommandFailed.
func (m *Master) Request(ctx context.Context, addr uint8, cmd string, args ...string) (*protocol.Frame, error) {
	if addr == protocol.BroadcastAddr {
		return nil, ErrBroadcastRequest
	}
	raw, err := protocol.AppendRequest(nil, addr, cmd, args...)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", cmd, err)
	}

	m.reqMutex.Lock()
	defer m.reqMutex.Unlock()
	atomic.AddUint64(&m.requests, 1)

	// A late reply to an earlier request must not answer this one
	m.drainReplies()

	for attempt := 0; attempt <= m.retries; attempt++ {
		if attempt > 0 {
			atomic.AddUint64(&m.retried, 1)
			m.log.Debug("retrying request", zap.Uint8("addr", addr), zap.String("cmd", cmd), zap.Int("attempt", attempt))
		}
		if err := m.write(raw); err != nil {
			return nil, err
		}

		f, err := m.awaitReply(ctx, addr)
		if errors.Is(err, ErrNoReply) {
			atomic.AddUint64(&m.timeouts, 1)
			continue
		}
		if err != nil {
			return nil, err
		}
		return f, replyError(f)
	}

	m.log.Warn("node did not reply", zap.Uint8("addr", addr), zap.String("cmd", cmd))
	return nil, fmt.Errorf("%w from node %d to %s", ErrNoReply, addr, cmd)
}

func (m *Master) awaitReply(ctx context.Context, addr uint8) (*protocol.Frame, error) {
	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	for {
		select {
		case f := <-m.replies:
			if f.Addr != addr {
				m.log.Debug("reply from unexpected node", zap.Uint8("want", addr), zap.Uint8("got", f.Addr))
				continue
			}
			return &f, nil
		case <-timer.C:
			return nil, ErrNoReply
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-m.stopChan:
			return nil, ErrClosed
		}
	}
}

func replyError(f *protocol.Frame) error {
	switch f.Command {
	case "INVCMD":
		return fmt.Errorf("%w %s", ErrInvalidCommand, f.Arg(0))
	case "GENERR":
		return fmt.Errorf("%w %s", ErrCommandFailed, f.Arg(0))
	}
	return nil
}

// Broadcast sends cmd to every node. Nodes do not reply to broadcasts.
func (m *Master) Broadcast(cmd string, args ...string) error {
	raw, err := protocol.AppendRequest(nil, protocol.BroadcastAddr, cmd, args...)
	if err != nil {
		return fmt.Errorf("encode %s: %w", cmd, err)
	}

	m.reqMutex.Lock()
	defer m.reqMutex.Unlock()
	atomic.AddUint64(&m.broadcasts, 1)
	return m.write(raw)
}

// Events delivers unsolicited notifications (replies addressed to 0), such
// as wall button presses. When nobody reads, the oldest events are dropped.
func (m *Master) Events() <-chan protocol.Frame {
	return m.events
}

func (m *Master) write(raw []byte) error {
	select {
	case <-m.stopChan:
		return ErrClosed
	default:
	}

	m.writeMutex.Lock()
	defer m.writeMutex.Unlock()

	m.log.Debug("tx", zap.ByteString("frame", raw))
	n, err := m.port.Write(raw)
	if err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	if n != len(raw) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(raw))
	}
	return nil
}

func (m *Master) drainReplies() {
	for {
		select {
		case <-m.replies:
		default:
			return
		}
	}
}

// readLoop continuously reads from the port and dispatches replies
func (m *Master) readLoop() {
	defer close(m.doneChan)

	buffer := make([]byte, 256)
	for {
		select {
		case <-m.stopChan:
			return
		default:
		}

		n, err := m.port.Read(buffer)
		for _, c := range buffer[:n] {
			m.rx.OnByte(c)
			if m.rx.Ready() {
				m.processFrame()
			}
		}
		if err == nil {
			continue
		}
		select {
		case <-m.stopChan:
			return
		default:
		}
		switch {
		case serial.IsIdle(n, err):
			// Read timeout on a quiet bus
			time.Sleep(idlePause)
		case errors.Is(err, io.ErrClosedPipe), errors.Is(err, os.ErrClosed):
			m.log.Warn("port closed", zap.Error(err))
			return
		default:
			m.log.Warn("read failed", zap.Error(err))
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (m *Master) processFrame() {
	raw := m.rx.Frame()
	var f protocol.Frame
	err := protocol.ParseReply(raw, &f)
	if err != nil {
		m.log.Debug("discarded reply", zap.ByteString("frame", raw), zap.Error(err))
	}
	m.rx.Release()
	if err != nil {
		atomic.AddUint64(&m.parseErrors, 1)
		return
	}

	if f.IsBroadcast() {
		atomic.AddUint64(&m.eventCount, 1)
		m.log.Info("event", zap.String("cmd", f.Command), zap.Strings("args", f.Arguments()))
		m.queueEvent(f)
		return
	}

	atomic.AddUint64(&m.replyCount, 1)
	m.log.Debug("rx", zap.Uint8("addr", f.Addr), zap.String("cmd", f.Command), zap.Strings("args", f.Arguments()))
	select {
	case m.replies <- f:
	default:
		// Nobody is waiting for it
		atomic.AddUint64(&m.dropped, 1)
	}
}

func (m *Master) queueEvent(f protocol.Frame) {
	for {
		select {
		case m.events <- f:
			return
		default:
		}
		// Full, drop the oldest
		select {
		case <-m.events:
			atomic.AddUint64(&m.dropped, 1)
		default:
		}
	}
}

// Stats returns a snapshot of the master counters
func (m *Master) Stats() MasterStats {
	return MasterStats{
		Requests:    atomic.LoadUint64(&m.requests),
		Broadcasts:  atomic.LoadUint64(&m.broadcasts),
		Retries:     atomic.LoadUint64(&m.retried),
		Timeouts:    atomic.LoadUint64(&m.timeouts),
		Replies:     atomic.LoadUint64(&m.replyCount),
		Events:      atomic.LoadUint64(&m.eventCount),
		ParseErrors: atomic.LoadUint64(&m.parseErrors),
		Dropped:     atomic.LoadUint64(&m.dropped),
	}
}

// Close stops the read loop and closes the port
func (m *Master) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.stopChan)
		// Closing the port unblocks a pending Read
		err = m.port.Close()
		<-m.doneChan
	})
	return err
}
