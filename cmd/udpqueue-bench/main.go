// Command udpqueue-bench drives a Manager against a configured number of
// synthetic streams and reports how many packets its loopback sinks received.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/sagernet/udpqueue"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional; defaults used if omitted)")
	streams := flag.Int("streams", 8, "number of synthetic streams to drive")
	rate := flag.Duration("rate", 20*time.Millisecond, "producer enqueue interval per stream")
	metricsAddr := flag.String("metrics-addr", "", "address to serve /metrics on (empty disables)")
	flag.Parse()

	cfg := udpqueue.Config{
		QueueBufferCapacity: 512,
		PacketInterval:      20 * time.Millisecond,
		Logging:             udpqueue.LoggingConfig{Level: "info"},
	}
	if *configPath != "" {
		loaded, err := udpqueue.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "udpqueue-bench: load config: %v\n", err)
			os.Exit(1)
		}
		cfg = *loaded
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	entry := logrus.NewEntry(logger)

	opts := []udpqueue.Option{udpqueue.WithLogger(entry)}
	registry := prometheus.NewRegistry()
	if *metricsAddr != "" {
		cfg.Metrics.Enabled = true
		opts = append(opts, udpqueue.WithRegisterer(registry, cfg.Metrics.Namespace))
	}

	manager, err := udpqueue.New(cfg, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "udpqueue-bench: %v\n", err)
		os.Exit(1)
	}

	listeners, sink := startSinks(*streams)
	defer func() {
		for _, l := range listeners {
			l.Close()
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				entry.WithError(err).Warn("udpqueue-bench: metrics server stopped")
			}
		}()
		go func() {
			<-ctx.Done()
			server.Close()
		}()
	}

	runDone := make(chan error, 1)
	go func() { runDone <- manager.Run(ctx) }()

	go produce(ctx, manager, listeners, *rate)

	<-ctx.Done()
	entry.Info("udpqueue-bench: shutting down")
	manager.Close()
	<-runDone

	entry.WithField("packets_received", sink.total()).Info("udpqueue-bench: done")
}

// startSinks opens n loopback listeners that each just count what they
// receive, standing in for real downstream peers.
func startSinks(n int) ([]*net.UDPConn, *counter) {
	c := &counter{}
	listeners := make([]*net.UDPConn, 0, n)
	for i := 0; i < n; i++ {
		l, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
		if err != nil {
			fmt.Fprintf(os.Stderr, "udpqueue-bench: listen: %v\n", err)
			os.Exit(1)
		}
		listeners = append(listeners, l)
		go func(conn *net.UDPConn) {
			buf := make([]byte, 2048)
			for {
				_, _, err := conn.ReadFromUDP(buf)
				if err != nil {
					return
				}
				c.inc()
			}
		}(l)
	}
	return listeners, c
}

// produce enqueues one packet per stream every rate until ctx is done,
// keying each stream to a different loopback listener.
func produce(ctx context.Context, m *udpqueue.Manager, listeners []*net.UDPConn, rate time.Duration) {
	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for i, l := range listeners {
				port := l.LocalAddr().(*net.UDPAddr).Port
				payload := make([]byte, 32+rand.Intn(200))
				m.Enqueue(uint64(i), "127.0.0.1", port, payload)
			}
		}
	}
}

type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *counter) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
