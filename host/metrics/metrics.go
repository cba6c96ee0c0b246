// Package metrics exposes bus counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"busnode/core"
	"busnode/host/bus"
	"busnode/protocol"
)

const namespace = "busnode"

// NewRegistry creates a registry with the Go runtime and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the HTTP handler serving reg
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

func counter(subsystem, name, help string, fn func() float64) prometheus.CounterFunc {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, fn)
}

// RegisterNode exports the counters of a node and its transport
func RegisterNode(reg prometheus.Registerer, node *core.Node) error {
	stats := func(pick func(core.NodeStats) uint32) func() float64 {
		return func() float64 { return float64(pick(node.Stats())) }
	}
	tx := func(pick func(protocol.TransportStats) uint32) func() float64 {
		return func() float64 { return float64(pick(node.Transport().Stats())) }
	}

	for _, c := range []prometheus.Collector{
		counter("node", "frames_total", "Complete frames received.",
			stats(func(s core.NodeStats) uint32 { return s.Frames })),
		counter("node", "overflows_total", "Frames discarded for exceeding the receive buffer.",
			stats(func(s core.NodeStats) uint32 { return s.Overflows })),
		counter("node", "busy_drops_total", "Frames dropped while the previous frame was pending.",
			stats(func(s core.NodeStats) uint32 { return s.Busy })),
		counter("node", "receive_errors_total", "Frames discarded after a UART error.",
			stats(func(s core.NodeStats) uint32 { return s.Errors })),
		counter("node", "parse_errors_total", "Malformed frames discarded.",
			stats(func(s core.NodeStats) uint32 { return s.ParseErrors })),
		counter("node", "dispatched_total", "Frames handed to the application.",
			stats(func(s core.NodeStats) uint32 { return s.Dispatched })),
		counter("node", "filtered_total", "Frames addressed to other nodes.",
			stats(func(s core.NodeStats) uint32 { return s.Filtered })),
		counter("node", "transmissions_total", "Replies sent.",
			tx(func(s protocol.TransportStats) uint32 { return s.Transmissions })),
		counter("node", "transmit_bytes_total", "Bytes sent.",
			tx(func(s protocol.TransportStats) uint32 { return s.Bytes })),
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RegisterMaster exports the counters of a bus master
func RegisterMaster(reg prometheus.Registerer, m *bus.Master) error {
	stats := func(pick func(bus.MasterStats) uint64) func() float64 {
		return func() float64 { return float64(pick(m.Stats())) }
	}

	for _, c := range []prometheus.Collector{
		counter("master", "requests_total", "Requests sent to nodes.",
			stats(func(s bus.MasterStats) uint64 { return s.Requests })),
		counter("master", "broadcasts_total", "Broadcasts sent.",
			stats(func(s bus.MasterStats) uint64 { return s.Broadcasts })),
		counter("master", "retries_total", "Requests repeated after a timeout.",
			stats(func(s bus.MasterStats) uint64 { return s.Retries })),
		counter("master", "timeouts_total", "Reply timeouts.",
			stats(func(s bus.MasterStats) uint64 { return s.Timeouts })),
		counter("master", "replies_total", "Replies received.",
			stats(func(s bus.MasterStats) uint64 { return s.Replies })),
		counter("master", "events_total", "Unsolicited notifications received.",
			stats(func(s bus.MasterStats) uint64 { return s.Events })),
		counter("master", "parse_errors_total", "Malformed replies discarded.",
			stats(func(s bus.MasterStats) uint64 { return s.ParseErrors })),
		counter("master", "dropped_total", "Replies and events nobody consumed.",
			stats(func(s bus.MasterStats) uint64 { return s.Dropped })),
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Serve exposes reg over HTTP at addr and path. It blocks until the server
// fails.
func Serve(addr, path string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle(path, Handler(reg))
	return http.ListenAndServe(addr, mux)
}
