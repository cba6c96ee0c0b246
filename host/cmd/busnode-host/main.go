// Command busnode-host is an interactive bus master.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/shlex"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"busnode/host/bus"
	"busnode/host/config"
	"busnode/host/logging"
	"busnode/host/metrics"
	"busnode/host/serial"
	"busnode/protocol"
)

var (
	configPath = flag.String("config", "", "Config file (default ./busnode.yaml)")
	device     = flag.String("device", "", "Serial device path (overrides config)")
	baud       = flag.Int("baud", 0, "Baud rate (overrides config)")
)

// requester is the part of bus.Master the shell drives
type requester interface {
	Request(ctx context.Context, addr uint8, cmd string, args ...string) (*protocol.Frame, error)
	Broadcast(cmd string, args ...string) error
	Stats() bus.MasterStats
}

var errQuit = errors.New("quit")

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
	if *baud != 0 {
		cfg.Serial.Baud = *baud
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	port, err := serial.Open(&serial.Config{
		Device:      cfg.Serial.Device,
		Baud:        cfg.Serial.Baud,
		ReadTimeout: cfg.Serial.ReadTimeout,
	})
	if err != nil {
		log.Fatal("open bus", zap.Error(err))
	}

	master := bus.NewMaster(port,
		bus.WithTimeout(cfg.Master.Timeout),
		bus.WithRetries(cfg.Master.Retries),
		bus.WithLogger(log.Named("bus")),
	)
	defer master.Close()

	if cfg.Metrics.Enable {
		reg := metrics.NewRegistry()
		if err := metrics.RegisterMaster(reg, master); err != nil {
			log.Fatal("register metrics", zap.Error(err))
		}
		go serveMetrics(log, cfg.Metrics, reg)
	}

	go func() {
		for evt := range master.Events() {
			fmt.Printf("\n[event] %s\n> ", formatFrame(&evt))
		}
	}()

	fmt.Printf("Bus master on %s @ %d baud\n", cfg.Serial.Device, cfg.Serial.Baud)
	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		args, err := shlex.Split(scanner.Text())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		if err := execute(context.Background(), master, args, os.Stdout); err != nil {
			if errors.Is(err, errQuit) {
				fmt.Println("Goodbye!")
				return
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		log.Error("reading input", zap.Error(err))
	}
}

func serveMetrics(log *zap.Logger, cfg config.MetricsConfig, reg *prometheus.Registry) {
	log.Info("serving metrics", zap.String("addr", cfg.Addr), zap.String("path", cfg.Path))
	if err := metrics.Serve(cfg.Addr, cfg.Path, reg); err != nil {
		log.Error("metrics server stopped", zap.Error(err))
	}
}

// execute runs one shell command
func execute(ctx context.Context, m requester, args []string, out io.Writer) error {
	if len(args) == 0 {
		return nil
	}

	switch args[0] {
	case "quit", "exit", "q":
		return errQuit

	case "help", "?":
		printHelp(out)
		return nil

	case "req", "r":
		if len(args) < 3 {
			return errors.New("usage: req <addr> <cmd> [args...]")
		}
		addr, err := strconv.ParseUint(args[1], 10, 8)
		if err != nil {
			return fmt.Errorf("bad address %q", args[1])
		}
		f, err := m.Request(ctx, uint8(addr), args[2], args[3:]...)
		if f != nil {
			fmt.Fprintln(out, formatFrame(f))
		}
		return err

	case "bcast", "b":
		if len(args) < 2 {
			return errors.New("usage: bcast <cmd> [args...]")
		}
		return m.Broadcast(args[1], args[2:]...)

	case "stats":
		st := m.Stats()
		fmt.Fprintf(out, "requests=%d broadcasts=%d retries=%d timeouts=%d replies=%d events=%d parse_errors=%d dropped=%d\n",
			st.Requests, st.Broadcasts, st.Retries, st.Timeouts, st.Replies, st.Events, st.ParseErrors, st.Dropped)
		return nil

	default:
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", args[0])
	}
}

func formatFrame(f *protocol.Frame) string {
	parts := append([]string{strconv.Itoa(int(f.Addr)), f.Command}, f.Arguments()...)
	return strings.Join(parts, " ")
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "\nAvailable commands:")
	fmt.Fprintln(out, "  req <addr> <cmd> [args]  - Send a request and print the reply")
	fmt.Fprintln(out, "  bcast <cmd> [args]       - Send a command to every node")
	fmt.Fprintln(out, "  stats                    - Show bus counters")
	fmt.Fprintln(out, "  help                     - Show this help message")
	fmt.Fprintln(out, "  quit/exit/q              - Exit the program")
	fmt.Fprintln(out)
}
