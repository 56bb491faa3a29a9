package relay

import (
	"net"

	"github.com/ringleader-project/ringleader/internal/protocol"
)

// peerSlot is one ring position. Payloads from slot i are forwarded to slot
// (i+1) mod N. TCP slots hold a connection; UDP slots hold the peer address
// learned from its registration datagram.
type peerSlot struct {
	connected bool
	conn      net.Conn
	addr      *net.UDPAddr
	addrKey   string

	seq      protocol.SeqTracker
	seqStats protocol.SeqCounters
}

func (s *peerSlot) clear() {
	s.connected = false
	s.conn = nil
	s.addr = nil
	s.addrKey = ""
}

// lowestFreeSlot returns the first unoccupied slot index, or -1 when the
// ring is full.
func lowestFreeSlot(slots []peerSlot) int {
	for i := range slots {
		if !slots[i].connected {
			return i
		}
	}
	return -1
}

func connectedCount(slots []peerSlot) int {
	n := 0
	for i := range slots {
		if slots[i].connected {
			n++
		}
	}
	return n
}

func slotByConn(slots []peerSlot, conn net.Conn) int {
	for i := range slots {
		if slots[i].connected && slots[i].conn == conn {
			return i
		}
	}
	return -1
}

func slotByAddr(slots []peerSlot, key string) int {
	for i := range slots {
		if slots[i].connected && slots[i].addrKey == key {
			return i
		}
	}
	return -1
}
