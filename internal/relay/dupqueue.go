package relay

import (
	"net"
	"time"
)

// dupQueueCapacity bounds the number of delayed duplicate sends a relay can
// hold. Overflow drops the duplicate, never the primary send.
const dupQueueCapacity = 256

type dupEntry struct {
	due     time.Time
	addr    *net.UDPAddr
	payload []byte
}

// dupQueue is a fixed-capacity FIFO ring of delayed duplicate sends. Every
// entry uses the same delay, so due times are monotone and only the head
// needs checking. Owned by the relay loop; no locking.
type dupQueue struct {
	entries [dupQueueCapacity]dupEntry
	head    int
	size    int
}

// push appends an entry. It reports false when the ring is full.
func (q *dupQueue) push(e dupEntry) bool {
	if q.size == dupQueueCapacity {
		return false
	}
	q.entries[(q.head+q.size)%dupQueueCapacity] = e
	q.size++
	return true
}

// popDue removes and returns the head entry if its due time has passed.
func (q *dupQueue) popDue(now time.Time) (dupEntry, bool) {
	if q.size == 0 {
		return dupEntry{}, false
	}
	e := q.entries[q.head]
	if e.due.After(now) {
		return dupEntry{}, false
	}
	q.entries[q.head] = dupEntry{}
	q.head = (q.head + 1) % dupQueueCapacity
	q.size--
	return e, true
}

func (q *dupQueue) len() int {
	return q.size
}
