package udpqueue

import "net"

// udpSocket is the subset of net.PacketConn the dispatch loop needs. It
// exists so tests can substitute a recording fake instead of binding real
// sockets.
type udpSocket interface {
	WriteTo(b []byte, addr net.Addr) (int, error)
	Close() error
}

// openSocketsFn opens an unconnected, send-only IPv4 and IPv6 UDP socket
// pair. Binding to ":0" lets the OS pick an ephemeral local port for each.
// It is a package variable, not a plain function, so tests can substitute
// a fake pair without touching real sockets.
var openSocketsFn = func() (v4, v6 udpSocket, err error) {
	s4, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return nil, nil, err
	}
	s6, err := net.ListenUDP("udp6", nil)
	if err != nil {
		s4.Close()
		return nil, nil, err
	}
	return s4, s6, nil
}
