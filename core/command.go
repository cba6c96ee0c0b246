package core

import (
	"sync"

	"busnode/protocol"
)

// CommandHandler handles one bus command. A returned error produces a
// GENERR reply for unicast frames.
type CommandHandler func(f *protocol.Frame) error

// Command is an entry of the command table
type Command struct {
	Name    string
	Handler CommandHandler
	Guard   func() bool // Command is only available while Guard returns true
}

// CommandRegistry maps command names to handlers and replies to commands
// it does not know. It implements Handler.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[string]*Command
	order    []string
	replier  *protocol.Replier
}

// NewCommandRegistry creates a registry that replies through replier
func NewCommandRegistry(replier *protocol.Replier) *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[string]*Command),
		replier:  replier,
	}
}

// Register adds or replaces a command
func (r *CommandRegistry) Register(name string, handler CommandHandler) {
	r.RegisterGuarded(name, nil, handler)
}

// RegisterGuarded adds a command that is only recognized while guard
// returns true (e.g. while a programming jumper is fitted)
func (r *CommandRegistry) RegisterGuarded(name string, guard func() bool, handler CommandHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[name]; !exists {
		r.order = append(r.order, name)
	}
	r.commands[name] = &Command{
		Name:    name,
		Handler: handler,
		Guard:   guard,
	}
}

// Lookup retrieves a command by name
func (r *CommandRegistry) Lookup(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Count returns the number of registered commands
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Names returns the command names in registration order
func (r *CommandRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// HandleFrame dispatches f to its command handler. Broadcast frames never
// get error replies, so a bus full of nodes stays quiet.
func (r *CommandRegistry) HandleFrame(f *protocol.Frame) {
	cmd, ok := r.Lookup(f.Command)
	if !ok || (cmd.Guard != nil && !cmd.Guard()) {
		r.replyError("INVCMD ", f)
		return
	}

	if err := cmd.Handler(f); err != nil {
		DebugPrintln("[CMD] " + f.Command + ": " + err.Error())
		r.replyError("GENERR ", f)
	}
}

func (r *CommandRegistry) replyError(kind string, f *protocol.Frame) {
	if f.IsBroadcast() {
		return
	}
	if err := r.replier.Begin(f.Addr).Text(kind).Quote(f.Command).End(); err != nil {
		RecordEvent(EvtReplyError, f.Addr, 0)
	}
}
