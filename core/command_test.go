package core

import (
	"errors"
	"strings"
	"testing"

	"busnode/protocol"
)

func newTestRegistry() (*CommandRegistry, *wire) {
	w := &wire{}
	return NewCommandRegistry(protocol.NewReplier(protocol.NewTransport(w, nil))), w
}

func frame(t *testing.T, raw string) *protocol.Frame {
	t.Helper()
	var f protocol.Frame
	if err := protocol.ParseFrame([]byte(raw), &f); err != nil {
		t.Fatalf("ParseFrame(%q): %v", raw, err)
	}
	return &f
}

func TestCommandRegistry(t *testing.T) {
	registry, w := newTestRegistry()

	var got []string
	registry.Register("SET", func(f *protocol.Frame) error {
		got = f.Arguments()
		return nil
	})

	cmd, ok := registry.Lookup("SET")
	if !ok {
		t.Fatal("Failed to retrieve registered command")
	}
	if cmd.Name != "SET" {
		t.Errorf("Expected command name 'SET', got '%s'", cmd.Name)
	}

	registry.HandleFrame(frame(t, ":4 SET 1 2\r\n"))
	if len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Errorf("Handler got args %v", got)
	}
	if w.String() != "" {
		t.Errorf("Registry replied on success: %q", w.String())
	}
}

func TestCommandRegistryMultiple(t *testing.T) {
	registry, _ := newTestRegistry()

	registry.Register("B", func(*protocol.Frame) error { return nil })
	registry.Register("A", func(*protocol.Frame) error { return nil })
	registry.Register("C", func(*protocol.Frame) error { return nil })
	registry.Register("A", func(*protocol.Frame) error { return nil })

	if registry.Count() != 3 {
		t.Errorf("Expected 3 commands, got %d", registry.Count())
	}
	names := registry.Names()
	if len(names) != 3 || names[0] != "B" || names[1] != "A" || names[2] != "C" {
		t.Errorf("Names not in registration order: %v", names)
	}
}

func TestCommandRegistryUnknown(t *testing.T) {
	registry, w := newTestRegistry()

	registry.HandleFrame(frame(t, ":7 FOO?\r\n"))
	if want := ";7 INVCMD \"FOO?\"\r\n"; w.String() != want {
		t.Errorf("Expected %q, got %q", want, w.String())
	}
}

func TestCommandRegistryHandlerError(t *testing.T) {
	registry, w := newTestRegistry()
	registry.Register("SETX", func(*protocol.Frame) error {
		return errors.New("out of range")
	})

	registry.HandleFrame(frame(t, ":12 SETX 999\r\n"))
	if want := ";12 GENERR \"SETX\"\r\n"; w.String() != want {
		t.Errorf("Expected %q, got %q", want, w.String())
	}
}

func TestCommandRegistryBroadcastSilent(t *testing.T) {
	registry, w := newTestRegistry()
	registry.Register("FAIL", func(*protocol.Frame) error {
		return errors.New("nope")
	})

	registry.HandleFrame(frame(t, ":0 FAIL\r\n"))
	registry.HandleFrame(frame(t, ":0 UNKNOWN\r\n"))
	if w.String() != "" {
		t.Errorf("Broadcast produced a reply: %q", w.String())
	}
}

func TestCommandRegistryGuard(t *testing.T) {
	registry, w := newTestRegistry()

	enabled := false
	calls := 0
	registry.RegisterGuarded("SETADDR", func() bool { return enabled }, func(*protocol.Frame) error {
		calls++
		return nil
	})

	registry.HandleFrame(frame(t, ":1 SETADDR 5\r\n"))
	if calls != 0 {
		t.Error("Guarded command ran while guard was off")
	}
	if want := ";1 INVCMD \"SETADDR\"\r\n"; w.String() != want {
		t.Errorf("Expected %q, got %q", want, w.String())
	}

	enabled = true
	registry.HandleFrame(frame(t, ":1 SETADDR 5\r\n"))
	if calls != 1 {
		t.Error("Guarded command did not run while guard was on")
	}
}

func TestCoreCommands(t *testing.T) {
	n, _, w := newTestNode(t, 2)
	registry := NewCommandRegistry(n.Replier())
	RegisterCoreCommands(registry, n)
	n.SetHandler(registry)

	receive(n, ":2 VERSION?\r\n")
	n.Poll()
	if want := ";2 VERSION " + protocol.Version + "\r\n"; w.String() != want {
		t.Errorf("Expected %q, got %q", want, w.String())
	}

	receive(n, ":2BAD\r\n")
	n.Poll()
	receive(n, ":2 RXSTATS?\r\n")
	n.Poll()
	if !strings.HasSuffix(w.String(), ";2 RXSTATS 3 0 0 0 1\r\n") {
		t.Errorf("Unexpected stats reply in %q", w.String())
	}
}
