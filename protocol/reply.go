package protocol

import "sync/atomic"

// Replier formats replies and sends each one in a single transport scope,
// so the line is held only while a complete reply is on the wire.
//
// Replies are composed in one shared scratch buffer: use a Replier from the
// main loop only. Interrupt handlers should queue state for the main loop
// instead of replying themselves.
type Replier struct {
	tx       *Transport
	lastAddr uint32 // atomic uint8
	out      ScratchOutput
	invalid  bool // payload contained a line delimiter
	reply    Reply
}

// Reply is a reply being composed. It is finished by End.
type Reply struct {
	r *Replier
}

// NewReplier creates a Replier on top of tx
func NewReplier(tx *Transport) *Replier {
	r := &Replier{tx: tx}
	r.reply.r = r
	return r
}

// SetLastAddr records the address of the most recently parsed frame
func (r *Replier) SetLastAddr(addr uint8) {
	atomic.StoreUint32(&r.lastAddr, uint32(addr))
}

// LastAddr returns the address replies go to by default
func (r *Replier) LastAddr() uint8 {
	return uint8(atomic.LoadUint32(&r.lastAddr))
}

// Begin starts a reply to addr: the reply delimiter, the address and a separator
func (r *Replier) Begin(addr uint8) *Reply {
	r.out.Reset()
	r.invalid = false
	r.out.OutputByte(ReplyStart)
	var num [3]byte
	r.out.Output(AppendUint8(num[:0], addr))
	r.out.OutputByte(Separator)
	return &r.reply
}

// ReplyStart starts a reply to the sender of the last parsed frame
func (r *Replier) ReplyStart() *Reply {
	return r.Begin(r.LastAddr())
}

// AddrReply sends a complete reply with an explicit address
func (r *Replier) AddrReply(addr uint8, text string) error {
	return r.Begin(addr).Text(text).End()
}

// Reply sends a complete reply to the sender of the last parsed frame
func (r *Replier) Reply(text string) error {
	return r.AddrReply(r.LastAddr(), text)
}

// Notify sends an unsolicited broadcast notification (address 0)
func (r *Replier) Notify(text string) error {
	return r.AddrReply(BroadcastAddr, text)
}

// Text appends s to the payload
func (p *Reply) Text(s string) *Reply {
	for i := 0; i < len(s); i++ {
		p.check(s[i])
	}
	p.r.out.OutputString(s)
	return p
}

// Char appends a single byte to the payload
func (p *Reply) Char(c byte) *Reply {
	p.check(c)
	p.r.out.OutputByte(c)
	return p
}

// check marks the reply invalid if c would end the frame early
func (p *Reply) check(c byte) {
	if c == LineCR || c == LineEnd {
		p.r.invalid = true
	}
}

// Uint8 appends the decimal form of n
func (p *Reply) Uint8(n uint8) *Reply {
	var num [3]byte
	p.r.out.Output(AppendUint8(num[:0], n))
	return p
}

// Int8 appends the decimal form of n
func (p *Reply) Int8(n int8) *Reply {
	var num [4]byte
	p.r.out.Output(AppendInt8(num[:0], n))
	return p
}

// Quote appends s surrounded by double quotes
func (p *Reply) Quote(s string) *Reply {
	return p.Char('"').Text(s).Char('"')
}

// End terminates the reply and transmits it. Nothing is sent for a reply
// that overflowed or whose payload contains a line delimiter.
func (p *Reply) End() error {
	if p.r.invalid {
		p.r.out.Reset()
		return ErrInvalidToken
	}
	p.r.out.OutputString(Terminator)
	if p.r.out.Overflowed() {
		p.r.out.Reset()
		return ErrReplyTooLong
	}
	err := p.r.tx.Write(p.r.out.Result())
	p.r.out.Reset()
	return err
}
