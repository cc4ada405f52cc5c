package udpqueue_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagernet/udpqueue"
)

// TestSingleStreamSteadyState exercises one stream, five packets, real
// wall-clock pacing over real loopback sockets. The listener should see
// all five packets in order within roughly 80ms.
func TestSingleStreamSteadyState(t *testing.T) {
	if testing.Short() {
		t.Skip("real-time pacing test; skipped with -short")
	}

	listener, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	defer listener.Close()
	port := listener.LocalAddr().(*net.UDPAddr).Port

	m, err := udpqueue.New(udpqueue.Config{
		QueueBufferCapacity: 10,
		PacketInterval:      20 * time.Millisecond,
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.True(t, m.Enqueue(1, "127.0.0.1", port, []byte{byte(i)}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	start := time.Now()
	buf := make([]byte, 64)
	var received []byte
	listener.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	for i := 0; i < 5; i++ {
		n, _, err := listener.ReadFromUDP(buf)
		require.NoError(t, err)
		received = append(received, buf[:n]...)
	}
	elapsed := time.Since(start)

	require.NoError(t, m.Close())

	assert.Equal(t, []byte{0, 1, 2, 3, 4}, received, "packets must arrive in FIFO order")
	assert.InDelta(t, 80*time.Millisecond, elapsed, float64(40*time.Millisecond))
}

// TestRoundRobinFairness verifies that three streams fed in round-robin
// order are serviced newest-first and stay in lockstep across rounds.
func TestRoundRobinFairness(t *testing.T) {
	if testing.Short() {
		t.Skip("real-time pacing test; skipped with -short")
	}

	var listeners [3]*net.UDPConn
	var ports [3]int
	for i := range listeners {
		l, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
		require.NoError(t, err)
		defer l.Close()
		listeners[i] = l
		ports[i] = l.LocalAddr().(*net.UDPAddr).Port
	}

	m, err := udpqueue.New(udpqueue.Config{
		QueueBufferCapacity: 10,
		PacketInterval:      10 * time.Millisecond,
	})
	require.NoError(t, err)
	defer m.Close()

	keys := []uint64{1, 2, 3}
	for round := 0; round < 3; round++ {
		for i, key := range keys {
			require.True(t, m.Enqueue(key, "127.0.0.1", ports[i], []byte{byte(round)}))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	type arrival struct {
		stream int
		round  byte
	}
	arrivals := make(chan arrival, 16)
	for i := range listeners {
		i := i
		go func() {
			buf := make([]byte, 8)
			listeners[i].SetReadDeadline(time.Now().Add(500 * time.Millisecond))
			for {
				n, _, err := listeners[i].ReadFromUDP(buf)
				if err != nil {
					return
				}
				if n > 0 {
					arrivals <- arrival{stream: i + 1, round: buf[0]}
				}
			}
		}()
	}

	var order []int
	timeout := time.After(600 * time.Millisecond)
collect:
	for len(order) < 9 {
		select {
		case a := <-arrivals:
			order = append(order, a.stream)
		case <-timeout:
			break collect
		}
	}

	require.Len(t, order, 9, "expected all 9 packets to be dispatched")
	assert.Equal(t, []int{3, 2, 1, 3, 2, 1, 3, 2, 1}, order)
}
