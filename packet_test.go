package udpqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPacketCopiesBytes(t *testing.T) {
	data := []byte("hello world")
	pkt, ok := newPacket(data)
	require.True(t, ok)
	defer pkt.Release()

	assert.Equal(t, data, pkt.Bytes())
	assert.Equal(t, len(data), pkt.Len())

	data[0] = 'X'
	assert.NotEqual(t, data[0], pkt.Bytes()[0], "packet must own a copy, not alias the caller's slice")
}

func TestNewPacketRejectsOversized(t *testing.T) {
	_, ok := newPacket(make([]byte, maxPacketSize+1))
	assert.False(t, ok)
}

func TestNewPacketAcceptsEmpty(t *testing.T) {
	pkt, ok := newPacket(nil)
	require.True(t, ok, "a zero-length datagram is a valid UDP payload")
	defer pkt.Release()
	assert.Equal(t, 0, pkt.Len())
}

func TestZeroValuePacketReleaseIsSafe(t *testing.T) {
	var pkt Packet
	assert.NotPanics(t, func() { pkt.Release() })
	assert.Nil(t, pkt.Bytes())
	assert.Equal(t, 0, pkt.Len())
}
