package core

import (
	"errors"
	"sync/atomic"

	"busnode/protocol"
)

// Handler processes a frame addressed to this node or broadcast.
// It runs in the main loop and must not block for long. The frame is only
// valid for the duration of the call.
type Handler interface {
	HandleFrame(f *protocol.Frame)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(f *protocol.Frame)

// HandleFrame calls fn(f)
func (fn HandlerFunc) HandleFrame(f *protocol.Frame) {
	fn(f)
}

// NodeConfig wires a Node to its collaborators
type NodeConfig struct {
	Transport *protocol.Transport
	Store     ConfigStore
	Handler   Handler
}

// NodeStats counts what the main loop did with received frames
type NodeStats struct {
	protocol.ReceiverStats
	ParseErrors uint32
	Dispatched  uint32
	Filtered    uint32
}

// Node is one addressable slave on the bus. The receive interrupt feeds
// OnByte; the main loop calls Poll.
type Node struct {
	rx      *protocol.Receiver
	tx      *protocol.Transport
	replier *protocol.Replier
	store   ConfigStore
	handler Handler

	frame       protocol.Frame
	dispatching bool // main loop only
	addr        uint32 // atomic uint8
	addrStr     string

	parseErrors uint32
	dispatched  uint32
	filtered    uint32
}

// NewNode creates a node using the address held by the config store
func NewNode(cfg NodeConfig) (*Node, error) {
	if cfg.Transport == nil {
		return nil, errors.New("node: transport is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("node: config store is required")
	}

	n := &Node{
		rx:      protocol.NewReceiver(protocol.RequestStart),
		tx:      cfg.Transport,
		replier: protocol.NewReplier(cfg.Transport),
		store:   cfg.Store,
		handler: cfg.Handler,
	}
	n.setAddr(cfg.Store.Address())
	return n, nil
}

// SetHandler replaces the frame handler. Call before the main loop starts.
func (n *Node) SetHandler(h Handler) {
	n.handler = h
}

// Receiver returns the frame receiver fed by the receive interrupt
func (n *Node) Receiver() *protocol.Receiver {
	return n.rx
}

// Transport returns the bus transport
func (n *Node) Transport() *protocol.Transport {
	return n.tx
}

// Replier returns the reply formatter
func (n *Node) Replier() *protocol.Replier {
	return n.replier
}

// Store returns the persisted configuration
func (n *Node) Store() ConfigStore {
	return n.store
}

// OnByte is called from the receive interrupt for every byte
func (n *Node) OnByte(c byte) {
	n.rx.OnByte(c)
}

// OnReceiveError is called from the receive interrupt when the UART reports
// a parity, framing or overrun error
func (n *Node) OnReceiveError() {
	n.rx.OnError()
}

// OnTransmitComplete is called from the transmit-complete interrupt
func (n *Node) OnTransmitComplete() {
	n.tx.OnTransmitComplete()
}

// OwnAddress returns the node's bus address
func (n *Node) OwnAddress() uint8 {
	return uint8(atomic.LoadUint32(&n.addr))
}

// AddrString returns the node's bus address in decimal
func (n *Node) AddrString() string {
	return n.addrStr
}

// SetOwnAddress changes the node's bus address, optionally persisting it.
// Any frame received or being received is discarded.
func (n *Node) SetOwnAddress(addr uint8, persist bool) error {
	if persist {
		if err := n.store.SetAddress(addr); err != nil {
			return err
		}
	}
	n.setAddr(addr)
	n.DiscardFrame()
	RecordEvent(EvtAddrChange, addr, 0)
	return nil
}

func (n *Node) setAddr(addr uint8) {
	n.addrStr = protocol.FormatUint8(addr)
	atomic.StoreUint32(&n.addr, uint32(addr))
}

// DiscardFrame drops the parsed frame and everything in the receiver. The
// frame being dispatched stays intact until its handler returns.
func (n *Node) DiscardFrame() {
	if !n.dispatching {
		n.frame.Reset()
	}
	n.rx.Discard()
}

// Frame returns the most recently parsed frame
func (n *Node) Frame() *protocol.Frame {
	return &n.frame
}

// Accepts reports whether a frame with this address is for us
func (n *Node) Accepts(addr uint8) bool {
	return addr == protocol.BroadcastAddr || addr == n.OwnAddress()
}

// Poll parses and dispatches a received frame, if there is one.
// Malformed frames and frames for other nodes are dropped silently.
// It returns true when a frame was consumed.
func (n *Node) Poll() bool {
	raw := n.rx.Frame()
	if raw == nil {
		return false
	}

	err := protocol.ParseFrame(raw, &n.frame)
	// The frame holds copies of every token, so the buffer can go back to
	// the receiver before dispatching
	n.rx.Release()

	if err != nil {
		atomic.AddUint32(&n.parseErrors, 1)
		RecordEvent(EvtParseError, 0, uint32(len(raw)))
		DebugPrintln("[BUS] discarded frame: " + err.Error())
		return true
	}

	if !n.Accepts(n.frame.Addr) {
		atomic.AddUint32(&n.filtered, 1)
		RecordEvent(EvtFiltered, n.frame.Addr, 0)
		return true
	}

	atomic.AddUint32(&n.dispatched, 1)
	RecordEvent(EvtDispatch, n.frame.Addr, uint32(n.frame.NumArgs))
	n.replier.SetLastAddr(n.frame.Addr)
	if n.handler != nil {
		n.dispatch()
	}
	return true
}

func (n *Node) dispatch() {
	n.dispatching = true
	// Cleared even when the handler panics and the main loop recovers
	defer func() { n.dispatching = false }()
	n.handler.HandleFrame(&n.frame)
}

// Stats returns a snapshot of the node counters
func (n *Node) Stats() NodeStats {
	return NodeStats{
		ReceiverStats: n.rx.Stats(),
		ParseErrors:   atomic.LoadUint32(&n.parseErrors),
		Dispatched:    atomic.LoadUint32(&n.dispatched),
		Filtered:      atomic.LoadUint32(&n.filtered),
	}
}
