package protocol

import (
	"errors"
	"sync"
)

// busLine records transmitted bytes and checks that the driver is enabled
// for every one of them
type busLine struct {
	mu        sync.Mutex
	dir       *dirPin
	out       []byte
	undriven  int
	failAfter int // 0 = never fail
	flushes   int
	flusher   bool
}

var errLineBroken = errors.New("line broken")

func (l *busLine) WriteByte(b byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failAfter > 0 && len(l.out) >= l.failAfter {
		return errLineBroken
	}
	if l.dir != nil && !l.dir.High() {
		l.undriven++
	}
	l.out = append(l.out, b)
	return nil
}

func (l *busLine) Bytes() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]byte(nil), l.out...)
}

// flushLine is a busLine that drains synchronously
type flushLine struct {
	busLine
}

func (l *flushLine) Flush() error {
	l.mu.Lock()
	l.flushes++
	l.mu.Unlock()
	return nil
}

type dirPin struct {
	mu    sync.Mutex
	high  bool
	edges []bool
}

func (p *dirPin) Set(transmit bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.high = transmit
	p.edges = append(p.edges, transmit)
}

func (p *dirPin) High() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.high
}

func (p *dirPin) Edges() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bool(nil), p.edges...)
}

func newFlushTransport() (*Transport, *flushLine, *dirPin) {
	dir := &dirPin{}
	line := &flushLine{busLine: busLine{dir: dir}}
	return NewTransport(line, dir), line, dir
}

func feed(r *Receiver, s string) {
	for i := 0; i < len(s); i++ {
		r.OnByte(s[i])
	}
}
