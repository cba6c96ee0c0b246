// Command busnode-sim runs a wall button node on a host serial port, so a
// master can be exercised without hardware. SIGUSR1 presses the button.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"busnode/core"
	"busnode/host/bus"
	"busnode/host/config"
	"busnode/host/logging"
	"busnode/host/metrics"
	"busnode/host/nvm"
	"busnode/host/serial"
	"busnode/protocol"
	"busnode/wallbutton"
)

var (
	configPath = flag.String("config", "", "Config file (default ./busnode.yaml)")
	device     = flag.String("device", "", "Serial device path (overrides config)")
	progMode   = flag.Bool("prog", false, "Fit the programming jumper (enables SETADDR)")
)

// Simulated wiring
const (
	pinRed    = core.PWMPin(0)
	pinGreen  = core.PWMPin(1)
	pinBlue   = core.PWMPin(2)
	pinButton = core.GPIOPin(3)
	pinProg   = core.GPIOPin(4)
	pinLED    = core.GPIOPin(5)

	pollInterval = 200 * time.Microsecond
	heartbeatMS  = 500
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *device != "" {
		cfg.Serial.Device = *device
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	core.SetDebugWriter(logging.NodeDebugWriter(log.Named("node")))
	core.SetDebugEnabled(cfg.Node.Debug)

	store, err := nvm.Open(cfg.Node.NVMFile)
	if err != nil {
		log.Fatal("open nvm", zap.Error(err))
	}

	port, err := serial.Open(&serial.Config{
		Device:      cfg.Serial.Device,
		Baud:        cfg.Serial.Baud,
		ReadTimeout: cfg.Serial.ReadTimeout,
	})
	if err != nil {
		log.Fatal("open bus", zap.Error(err))
	}
	defer port.Close()

	gpio := newSimGPIO(log.Named("gpio"), pinLED)
	gpio.Set(pinProg, !*progMode)
	core.SetGPIODriver(gpio)
	core.SetPWMDriver(newSimPWM(log.Named("led")))

	node, err := core.NewNode(core.NodeConfig{
		Transport: protocol.NewTransport(bus.NewLine(port), nil),
		Store:     store,
	})
	if err != nil {
		log.Fatal("create node", zap.Error(err))
	}

	app, err := wallbutton.New(wallbutton.Config{
		Node: node,
		Pins: wallbutton.Pins{
			Red:    pinRed,
			Green:  pinGreen,
			Blue:   pinBlue,
			Button: pinButton,
			Prog:   pinProg,
		},
		SetBaud: func(baud uint32) error {
			log.Info("clock calibration changed", zap.Uint32("baud", baud), zap.Int("port_baud", cfg.Serial.Baud))
			return nil
		},
	})
	if err != nil {
		log.Fatal("start wall button", zap.Error(err))
	}

	if cfg.Metrics.Enable {
		reg := metrics.NewRegistry()
		if err := metrics.RegisterNode(reg, node); err != nil {
			log.Fatal("register metrics", zap.Error(err))
		}
		go func() {
			if err := metrics.Serve(cfg.Metrics.Addr, cfg.Metrics.Path, reg); err != nil {
				log.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	presses := make(chan os.Signal, 1)
	signal.Notify(presses, syscall.SIGUSR1)
	go func() {
		for range presses {
			log.Info("button pressed")
			app.ButtonPressed()
		}
	}()

	start := time.Now()
	syncClock := func() {
		core.SetTime(uint32(time.Since(start).Microseconds()))
	}
	syncClock()
	if err := core.StartHeartbeat(pinLED, heartbeatMS); err != nil {
		log.Warn("heartbeat", zap.Error(err))
	}

	go readBus(log, port, node)

	log.Info("node up",
		zap.String("device", cfg.Serial.Device),
		zap.Uint8("addr", node.OwnAddress()),
		zap.Bool("prog", *progMode))

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for range ticker.C {
		syncClock()
		for node.Poll() {
		}
		app.Task()
		core.ProcessTimers()
	}
}

// readBus plays the role of the receive interrupt. It returns once the
// port is closed.
func readBus(log *zap.Logger, port io.Reader, node *core.Node) {
	buf := make([]byte, 256)
	for {
		n, err := port.Read(buf)
		for _, c := range buf[:n] {
			node.OnByte(c)
		}
		switch {
		case err == nil:
		case serial.IsIdle(n, err):
			// Quiet bus, not a line error
		case errors.Is(err, os.ErrClosed), errors.Is(err, io.ErrClosedPipe):
			log.Warn("bus closed", zap.Error(err))
			return
		default:
			log.Warn("bus read failed", zap.Error(err))
			node.OnReceiveError()
			time.Sleep(10 * time.Millisecond)
		}
	}
}
