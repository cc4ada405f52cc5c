package udpqueue

import (
	"net"

	"github.com/sagernet/udpqueue/internal/ring"
	"github.com/sagernet/udpqueue/internal/streamlist"
)

// stream is one logical outbound flow: a resolved destination, a bounded
// FIFO of pending packets, and the deadline the scheduler advances on every
// successful dispatch.
//
// stream.capacity duplicates Manager.capacity at creation time rather than
// reading the manager directly. The two values are identical today because
// there is no per-stream capacity override, but keeping the field separate
// means Remaining stays correct the day one is added. See DESIGN.md.
type stream struct {
	key      uint64
	addr     net.Addr
	capacity int
	ring     *ring.Ring[Packet]
	nextDue  int64
	node     *streamlist.Node[*stream]
}

func newStream(key uint64, addr net.Addr, capacity int) *stream {
	return &stream{
		key:      key,
		addr:     addr,
		capacity: capacity,
		ring:     ring.New[Packet](capacity),
	}
}

// free releases every packet still queued for this stream. Called when the
// scheduler reaps an empty stream and when the manager tears down.
func (s *stream) free() {
	s.ring.Drain(func(p Packet) { p.Release() })
}
