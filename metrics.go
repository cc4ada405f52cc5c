package udpqueue

import "github.com/prometheus/client_golang/prometheus"

// managerMetrics is a no-op-safe bundle of Prometheus collectors. Creating
// one never requires a registerer; register only attempts registration when
// one is supplied, so a Manager used as a bare library has zero Prometheus
// dependency at runtime unless the caller opts in.
type managerMetrics struct {
	activeStreams   prometheus.Gauge
	packetsEnqueued prometheus.Counter
	packetsDropped  prometheus.Counter
	packetsSent     prometheus.Counter
	resolveFailures prometheus.Counter
}

func newManagerMetrics(namespace string) *managerMetrics {
	if namespace == "" {
		namespace = "udpqueue"
	}
	return &managerMetrics{
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Number of streams currently tracked by the manager.",
		}),
		packetsEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_enqueued_total",
			Help:      "Packets successfully appended to a stream's ring buffer.",
		}),
		packetsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_dropped_total",
			Help:      "Packets rejected by Enqueue: full ring, closed manager, or allocation failure.",
		}),
		packetsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_sent_total",
			Help:      "Packets handed to the UDP socket by the dispatch loop.",
		}),
		resolveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolve_failures_total",
			Help:      "Enqueue calls that failed because the destination did not resolve.",
		}),
	}
}

// register attempts to register every collector with reg. Errors (most
// commonly AlreadyRegisteredError from a second Manager sharing a
// registerer) are ignored, matching the "send errors are best-effort"
// philosophy applied elsewhere in the package.
func (m *managerMetrics) register(reg prometheus.Registerer) {
	if reg == nil {
		return
	}
	for _, c := range []prometheus.Collector{
		m.activeStreams,
		m.packetsEnqueued,
		m.packetsDropped,
		m.packetsSent,
		m.resolveFailures,
	} {
		_ = reg.Register(c)
	}
}
