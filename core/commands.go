package core

import "busnode/protocol"

// RegisterCoreCommands registers the commands every node answers,
// whatever its application
func RegisterCoreCommands(r *CommandRegistry, n *Node) {
	r.Register("VERSION?", func(f *protocol.Frame) error {
		return n.Replier().ReplyStart().Text("VERSION ").Text(protocol.Version).End()
	})
	r.Register("RXSTATS?", func(f *protocol.Frame) error {
		return handleRxStats(n)
	})
	r.Register("DUMPEVT", func(f *protocol.Frame) error {
		DumpEvents()
		if f.IsBroadcast() {
			return nil
		}
		return n.Replier().Reply("OK")
	})
}

// handleRxStats replies with the receive counters:
// frames, overflows, busy drops, receive errors and parse errors
func handleRxStats(n *Node) error {
	st := n.Stats()
	return n.Replier().ReplyStart().Text("RXSTATS ").
		Text(utoa(st.Frames)).Char(' ').
		Text(utoa(st.Overflows)).Char(' ').
		Text(utoa(st.Busy)).Char(' ').
		Text(utoa(st.Errors)).Char(' ').
		Text(utoa(st.ParseErrors)).End()
}
