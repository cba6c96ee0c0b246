package main

import (
	"sync"

	"go.uber.org/zap"

	"busnode/core"
)

// simGPIO keeps pin levels in memory. Inputs idle high, like pulled-up
// pins with nothing attached.
type simGPIO struct {
	mu     sync.Mutex
	log    *zap.Logger
	quiet  core.GPIOPin
	levels map[core.GPIOPin]bool
}

func newSimGPIO(log *zap.Logger, quiet core.GPIOPin) *simGPIO {
	return &simGPIO{
		log:    log,
		quiet:  quiet,
		levels: make(map[core.GPIOPin]bool),
	}
}

func (g *simGPIO) ConfigureOutput(pin core.GPIOPin) error {
	return nil
}

func (g *simGPIO) ConfigureInputPullUp(pin core.GPIOPin) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.levels[pin]; !ok {
		g.levels[pin] = true
	}
	return nil
}

func (g *simGPIO) SetPin(pin core.GPIOPin, value bool) error {
	g.Set(pin, value)
	if pin != g.quiet {
		g.log.Debug("pin", zap.Uint32("pin", uint32(pin)), zap.Bool("high", value))
	}
	return nil
}

func (g *simGPIO) ReadPin(pin core.GPIOPin) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.levels[pin]
}

// Set drives a simulated input
func (g *simGPIO) Set(pin core.GPIOPin, value bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.levels[pin] = value
}

// simPWM logs the indicator color
type simPWM struct {
	mu   sync.Mutex
	log  *zap.Logger
	duty map[core.PWMPin]core.PWMValue
}

func newSimPWM(log *zap.Logger) *simPWM {
	return &simPWM{log: log, duty: make(map[core.PWMPin]core.PWMValue)}
}

func (p *simPWM) ConfigureHardwarePWM(pin core.PWMPin, periodNS uint64) error {
	return nil
}

func (p *simPWM) SetDutyCycle(pin core.PWMPin, value core.PWMValue) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.duty[pin] == value {
		return nil
	}
	p.duty[pin] = value
	p.log.Info("channel", zap.Uint32("pin", uint32(pin)), zap.Uint32("duty", uint32(value)))
	return nil
}

func (p *simPWM) GetMaxValue() uint32 {
	return 255
}

// Duty returns the current duty value of pin
func (p *simPWM) Duty(pin core.PWMPin) core.PWMValue {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duty[pin]
}
