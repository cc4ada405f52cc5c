package udpqueue

import "net"

// schedule must be called with m.mu held. It returns the next packet to
// dispatch (ok=false if there is nothing to send right now), the address it
// should go to, and the time the driver should next wake up.
func (m *Manager) schedule(now int64) (pkt Packet, addr net.Addr, ok bool, target int64) {
	for {
		node := m.list.Front()
		if node == nil {
			return Packet{}, nil, false, now + int64(m.interval)
		}
		s := node.Value

		if s.ring.Len() == 0 {
			m.removeStream(s)
			continue
		}

		if s.nextDue == 0 {
			s.nextDue = now
		} else if s.nextDue-now >= m.minSleepNanos {
			return Packet{}, nil, false, s.nextDue
		}

		popped, _ := s.ring.Pop()
		s.node.MoveToBack()

		resync := m.clock.Now()
		if resync-s.nextDue >= 2*int64(m.interval) {
			s.nextDue = resync + int64(m.interval)
		} else {
			s.nextDue += int64(m.interval)
		}

		return popped, s.addr, true, m.nextTargetTime(resync)
	}
}

// nextTargetTime re-peeks the front of the list; must be called with m.mu
// held.
func (m *Manager) nextTargetTime(now int64) int64 {
	node := m.list.Front()
	if node == nil {
		return now + int64(m.interval)
	}
	return node.Value.nextDue
}

// removeStream deletes s from the table and list and frees its packets.
// Must be called with m.mu held.
func (m *Manager) removeStream(s *stream) {
	delete(m.streams, s.key)
	s.node.Remove()
	s.free()
	m.setActiveStreams(len(m.streams))
}
