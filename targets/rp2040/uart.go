//go:build rp2040

package main

import (
	"device/rp"
	"machine"
	"runtime"

	"busnode/core"
)

// busLine is the RS-485 side of UART0. It implements protocol.Line and
// protocol.Flusher.
type busLine struct {
	uart *machine.UART
	tx   machine.Pin
	rx   machine.Pin
}

func newBusLine(uart *machine.UART, tx, rx machine.Pin) *busLine {
	return &busLine{uart: uart, tx: tx, rx: rx}
}

// Configure sets up the UART at the calibrated bus baud rate
func (l *busLine) Configure(cal int8) error {
	return l.uart.Configure(machine.UARTConfig{
		BaudRate: core.CalibratedBaud(core.BusBaudRate, cal),
		TX:       l.tx,
		RX:       l.rx,
	})
}

// SetBaud changes the baud rate. Only call while the line is held.
func (l *busLine) SetBaud(baud uint32) error {
	l.uart.SetBaudRate(baud)
	return nil
}

func (l *busLine) WriteByte(b byte) error {
	return l.uart.WriteByte(b)
}

// Flush waits until the last stop bit has left the shift register, so the
// transceiver can be switched back to receive.
func (l *busLine) Flush() error {
	for l.uart.Bus.UARTFR.HasBits(rp.UART0_UARTFR_BUSY) {
		runtime.Gosched()
	}
	return nil
}

// takeError reports and clears a parity, framing, break or overrun error
// latched by the UART since the last call
func (l *busLine) takeError() bool {
	if l.uart.Bus.UARTRSR.Get() == 0 {
		return false
	}
	l.uart.Bus.UARTRSR.Set(0)
	return true
}
