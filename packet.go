package udpqueue

import "github.com/sagernet/sing/common/buf"

// maxPacketSize is the conventional 65507-byte UDP payload ceiling: 65535
// minus the 8-byte UDP header minus the 20-byte minimum IPv4 header.
const maxPacketSize = 65507

// Packet is an owned, pooled byte buffer. Ownership transfers to the
// Manager on Enqueue and is released back to the pool after dispatch or on
// teardown; callers must not hold onto a Packet once it is handed to a
// Manager method.
type Packet struct {
	buffer *buf.Buffer
}

// newPacket copies data into a pooled buffer no larger than maxPacketSize.
// A zero-length payload is a valid empty UDP datagram and is accepted. It
// returns (Packet{}, false) if data exceeds maxPacketSize.
func newPacket(data []byte) (Packet, bool) {
	if len(data) > maxPacketSize {
		return Packet{}, false
	}
	b := buf.NewSize(len(data))
	if _, err := b.Write(data); err != nil {
		b.Release()
		return Packet{}, false
	}
	return Packet{buffer: b}, true
}

// Bytes returns the packet's contents. Valid until Release is called.
func (p Packet) Bytes() []byte {
	if p.buffer == nil {
		return nil
	}
	return p.buffer.Bytes()
}

// Len returns the number of bytes in the packet.
func (p Packet) Len() int {
	if p.buffer == nil {
		return 0
	}
	return p.buffer.Len()
}

// Release returns the underlying buffer to the pool. Safe to call on a
// zero-value Packet.
func (p Packet) Release() {
	if p.buffer != nil {
		p.buffer.Release()
	}
}
