//go:build rp2040

package main

import (
	"machine"
	"time"

	"busnode/core"
	"busnode/protocol"
	"busnode/wallbutton"
)

// Board wiring
const (
	pinBusTX    = machine.GPIO0
	pinBusRX    = machine.GPIO1
	pinTxEnable = core.GPIOPin(2)
	pinButton   = core.GPIOPin(14)
	pinProg     = core.GPIOPin(15)
	pinEESDA    = machine.GPIO16
	pinEESCL    = machine.GPIO17
	pinLED      = core.GPIOPin(25)

	heartbeatMS = 500
)

var (
	node *core.Node
	app  *wallbutton.App
	line *busLine

	// Debug counters
	loopPanics   uint32
	readerPanics uint32
)

func main() {
	// Debug output goes to USB CDC
	core.SetDebugWriter(func(s string) {
		machine.Serial.Write([]byte(s + "\r\n"))
	})

	gpioDriver := NewRPGPIODriver()
	core.SetGPIODriver(gpioDriver)
	core.SetPWMDriver(NewRP2040PWMDriver())

	store, err := newEEPROMStore(machine.I2C0, pinEESDA, pinEESCL)
	if err != nil {
		core.DebugPrintln("[NVM] EEPROM unavailable, using defaults: " + err.Error())
		store = core.NewMemoryStore(core.DefaultAddress, 0)
	}

	line = newBusLine(machine.UART0, pinBusTX, pinBusRX)
	if err := line.Configure(store.ClockCal()); err != nil {
		core.DebugPrintln("[BUS] UART configure failed: " + err.Error())
	}

	// Transceiver starts in receive mode
	if err := gpioDriver.ConfigureOutput(pinTxEnable); err != nil {
		core.DebugPrintln("[BUS] TX enable pin failed: " + err.Error())
		return
	}
	dir := core.BusDirection{Driver: gpioDriver, Pin: pinTxEnable}
	dir.Set(false)

	transport := protocol.NewTransport(line, dir)
	node, err = core.NewNode(core.NodeConfig{
		Transport: transport,
		Store:     store,
	})
	if err != nil {
		core.DebugPrintln("[BUS] node init failed: " + err.Error())
		return
	}

	app, err = wallbutton.New(wallbutton.Config{
		Node: node,
		Pins: wallbutton.Pins{
			Red:    core.PWMPin(10),
			Green:  core.PWMPin(11),
			Blue:   core.PWMPin(12),
			Button: pinButton,
			Prog:   pinProg,
		},
		SetBaud: line.SetBaud,
	})
	if err != nil {
		core.DebugPrintln("[APP] init failed: " + err.Error())
		return
	}

	machine.Pin(pinButton).SetInterrupt(machine.PinFalling, func(machine.Pin) {
		app.ButtonPressed()
	})

	UpdateSystemTime()
	if err := core.StartHeartbeat(pinLED, heartbeatMS); err != nil {
		core.DebugPrintln("[LED] heartbeat failed: " + err.Error())
	}

	core.DebugPrintln("[BUS] node " + node.AddrString() + " up")

	go busReaderLoop()

	for {
		// Recover from panics in the main loop to prevent a firmware crash
		func() {
			defer func() {
				if r := recover(); r != nil {
					loopPanics++
					node.DiscardFrame()
				}
			}()

			UpdateSystemTime()
			node.Poll()
			app.Task()
			core.ProcessTimers()
		}()

		// Yield to the reader goroutine
		time.Sleep(10 * time.Microsecond)
	}
}

// busReaderLoop moves bytes from the UART receive buffer into the node.
// TinyGo's UART interrupt fills the ring buffer; this goroutine plays the
// role of the per-byte receive handler.
func busReaderLoop() {
	defer func() {
		if r := recover(); r != nil {
			readerPanics++
			time.Sleep(100 * time.Millisecond)
			go busReaderLoop()
		}
	}()

	uart := machine.UART0
	for {
		if line.takeError() {
			node.OnReceiveError()
		}
		for uart.Buffered() > 0 {
			c, err := uart.ReadByte()
			if err != nil {
				break
			}
			node.OnByte(c)
		}
		// Yield to avoid a busy loop
		time.Sleep(100 * time.Microsecond)
	}
}
