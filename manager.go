// Package udpqueue multiplexes many logical outbound UDP streams onto a
// shared IPv4/IPv6 socket pair with strict, fair, per-stream pacing.
//
// A Manager owns a bounded ring buffer per stream, a round-robin schedule
// over all streams with pending packets, and a single background dispatch
// goroutine started by Run. Producers call Enqueue from any goroutine;
// exactly one goroutine should call Run at a time (a second concurrent Run
// simply blocks until the first returns). Close stops the dispatch loop and
// releases every queued packet.
package udpqueue

import (
	"context"
	"net"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/sagernet/udpqueue/internal/resolver"
	"github.com/sagernet/udpqueue/internal/streamlist"
)

// Manager multiplexes outbound UDP streams. See the package doc for the
// concurrency contract.
type Manager struct {
	capacity      int
	interval      time.Duration
	minSleepNanos int64

	clock    Clock
	sleeper  Sleeper
	resolver *resolver.Resolver
	logger   *logrus.Entry
	metrics  *managerMetrics

	mu      sync.Mutex
	streams map[uint64]*stream
	list    *streamlist.List[*stream]
	closed  bool

	runMu sync.Mutex
}

// Option customizes a Manager beyond what Config expresses; primarily used
// by tests to inject fakes.
type Option func(*Manager)

// WithLogger attaches a logrus logger. Without it, the logger is built from
// Config.Logging by newConfiguredLogger: an empty Level discards all output.
func WithLogger(logger *logrus.Entry) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithRegisterer registers the manager's Prometheus collectors with reg.
// Unset by default: a Manager is Prometheus-free until this is supplied.
func WithRegisterer(reg prometheus.Registerer, namespace string) Option {
	return func(m *Manager) {
		if m.metrics == nil {
			m.metrics = newManagerMetrics(namespace)
		}
		m.metrics.register(reg)
	}
}

// WithClock overrides the monotonic clock; used by tests.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithSleeper overrides the pacing sleep primitive; used by tests.
func WithSleeper(s Sleeper) Option {
	return func(m *Manager) { m.sleeper = s }
}

// New creates a Manager. It allocates no sockets and starts no goroutine;
// call Run to start dispatching.
func New(cfg Config, opts ...Option) (*Manager, error) {
	if cfg.QueueBufferCapacity <= 0 || cfg.PacketInterval <= 0 {
		return nil, errors.Wrap(ErrInvalidConfig, "queue capacity and packet interval must be positive")
	}
	minSleep := cfg.MinSleep
	if minSleep <= 0 {
		minSleep = defaultMinSleep
	}

	m := &Manager{
		capacity:      cfg.QueueBufferCapacity,
		interval:      cfg.PacketInterval,
		minSleepNanos: int64(minSleep),
		clock:         newMonotonicClock(),
		sleeper:       realSleeper{},
		resolver:      resolver.New(),
		logger:        logrus.NewEntry(newConfiguredLogger(cfg.Logging)),
		streams:       make(map[uint64]*stream),
		list:          streamlist.New[*stream](),
	}

	if cfg.Metrics.Enabled {
		m.metrics = newManagerMetrics(cfg.Metrics.Namespace)
	}

	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// newConfiguredLogger builds the Manager's default logger from
// cfg.Logging. An empty Level discards all output, so a Manager built
// from a zero-value Config never allocates a log entry nobody asked
// for; a non-empty Level writes to stderr at that level, falling back
// to info on an unrecognized name.
func newConfiguredLogger(cfg LoggingConfig) *logrus.Logger {
	l := logrus.New()
	if cfg.Level == "" {
		l.SetOutput(nopWriter{})
		return l
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetOutput(os.Stderr)
	l.SetLevel(level)
	return l
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

// Remaining returns how many more packets key's ring buffer can hold. A key
// with no stream yet reports the full configured capacity.
func (m *Manager) Remaining(key uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.streams[key]
	if !ok {
		return m.capacity
	}
	return s.capacity - s.ring.Len()
}

// Enqueue copies data into key's ring buffer, resolving and creating the
// stream on first use. It returns false if the manager is closed, the host
// fails to resolve, the payload is oversized, or the ring is full.
func (m *Manager) Enqueue(key uint64, host string, port int, data []byte) bool {
	// Copy into an owned buffer before taking the lock: the copy cost is
	// paid by the producer, not by whoever else is waiting on m.mu.
	pkt, allocated := newPacket(data)
	if !allocated {
		m.countDrop()
		return false
	}

	if !m.enqueueLocked(key, host, port, pkt) {
		pkt.Release()
		return false
	}
	m.countEnqueue()
	return true
}

func (m *Manager) enqueueLocked(key uint64, host string, port int, pkt Packet) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		m.countDrop()
		return false
	}

	s, ok := m.streams[key]
	if !ok {
		addr, err := m.resolver.Resolve(host, port)
		if err != nil {
			m.logger.WithError(err).WithField("host", host).Warn("udpqueue: resolve failed")
			m.countResolveFailure()
			return false
		}
		s = newStream(key, addr, m.capacity)
		s.node = m.list.PushFront(s)
		m.streams[key] = s
		m.setActiveStreams(len(m.streams))
	}

	if !s.ring.Push(pkt) {
		m.countDrop()
		return false
	}
	return true
}

// Run opens the manager's IPv4/IPv6 sockets and runs the dispatch loop
// until Close is called or ctx is cancelled, whichever happens first. Only
// one Run call executes at a time per Manager; a second concurrent call
// blocks on the same serialization the first holds, and proceeds (if ctx
// allows) once the first returns.
func (m *Manager) Run(ctx context.Context) error {
	socketV4, socketV6, err := openSocketsFn()
	if err != nil {
		return errors.Wrap(err, "udpqueue: open sockets")
	}

	m.runMu.Lock()
	defer m.runMu.Unlock()
	defer socketV4.Close()
	defer socketV6.Close()

	m.logger.Info("udpqueue: dispatch loop started")
	defer m.logger.Info("udpqueue: dispatch loop stopped")

	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil
		}
		select {
		case <-ctx.Done():
			m.mu.Unlock()
			return ctx.Err()
		default:
		}

		now := m.clock.Now()
		pkt, addr, ok, target := m.schedule(now)
		m.mu.Unlock()

		if ok {
			m.dispatch(socketV4, socketV6, pkt, addr)
			now = m.clock.Now()
		}

		if wait := target - now; wait >= m.minSleepNanos {
			m.sleeper.Sleep(ctx, time.Duration(wait))
		}
	}
}

func (m *Manager) dispatch(v4, v6 udpSocket, pkt Packet, addr net.Addr) {
	socket := v4
	if resolver.Network(addr) == "udp6" {
		socket = v6
	}
	if _, err := socket.WriteTo(pkt.Bytes(), addr); err != nil {
		m.logger.WithError(err).Debug("udpqueue: send failed, dropping")
	} else {
		m.countSent()
	}
	pkt.Release()
}

// Close signals the dispatch loop to stop, waits for any running Run call
// to return, and releases every queued packet. Safe to call more than
// once: a repeat call returns immediately without blocking, since the
// first call already marked the manager closed and drained the run lock.
func (m *Manager) Close() error {
	m.mu.Lock()
	alreadyClosed := m.closed
	m.closed = true
	m.mu.Unlock()

	// Acquiring runMu is the join point: it blocks until a running Run call
	// has observed m.closed and exited its loop. If Run was never called,
	// this acquires uncontended immediately.
	m.runMu.Lock()
	m.runMu.Unlock()

	if alreadyClosed {
		return nil
	}

	m.mu.Lock()
	for _, s := range m.streams {
		s.free()
	}
	m.streams = make(map[uint64]*stream)
	m.list = streamlist.New[*stream]()
	m.setActiveStreams(0)
	m.mu.Unlock()

	return nil
}

func (m *Manager) countEnqueue() {
	if m.metrics != nil {
		m.metrics.packetsEnqueued.Inc()
	}
}

func (m *Manager) countDrop() {
	if m.metrics != nil {
		m.metrics.packetsDropped.Inc()
	}
}

func (m *Manager) countSent() {
	if m.metrics != nil {
		m.metrics.packetsSent.Inc()
	}
}

func (m *Manager) countResolveFailure() {
	if m.metrics != nil {
		m.metrics.resolveFailures.Inc()
	}
}

func (m *Manager) setActiveStreams(n int) {
	if m.metrics != nil {
		m.metrics.activeStreams.Set(float64(n))
	}
}
