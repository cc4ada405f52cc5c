// Package resolver turns a (host, port) pair into a net.Addr, accepting only
// numeric hosts — the Go equivalent of AI_NUMERICHOST | AI_NUMERICSERV.
package resolver

import (
	"net"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// ErrNotNumeric is returned when the host cannot be parsed as a literal IP
// address. The engine never performs DNS lookups.
var ErrNotNumeric = errors.New("resolver: host is not a numeric address")

// Resolver resolves numeric (host, port) pairs to net.Addr, collapsing
// concurrent lookups of the same pair into a single call.
type Resolver struct {
	group singleflight.Group
}

// New creates a Resolver.
func New() *Resolver {
	return &Resolver{}
}

// Resolve returns the first (and only, since the host is numeric) address
// for host:port. Concurrent callers resolving the same pair share one
// lookup via singleflight.
func (r *Resolver) Resolve(host string, port int) (net.Addr, error) {
	key := host + "/" + strconv.Itoa(port)
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		return resolveNumeric(host, port)
	})
	if err != nil {
		return nil, err
	}
	return v.(net.Addr), nil
}

func resolveNumeric(host string, port int) (net.Addr, error) {
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, errors.Wrapf(ErrNotNumeric, "host %q", host)
	}
	if port < 0 || port > 65535 {
		return nil, errors.Errorf("resolver: port %d out of range", port)
	}
	return &net.UDPAddr{IP: ip, Port: port}, nil
}

// Network reports "udp4" or "udp6" for the given address, used by the
// dispatch loop to pick the matching socket.
func Network(addr net.Addr) string {
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok || udpAddr.IP.To4() != nil {
		return "udp4"
	}
	return "udp6"
}
