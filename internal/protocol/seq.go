package protocol

import "encoding/binary"

// SeqHalfWindow splits "ahead" from "behind" when comparing 16-bit sequence
// numbers: a difference in [1, SeqHalfWindow) means newer.
const SeqHalfWindow = 0x8000

// PeekSeq extracts the big-endian 16-bit sequence from the first two bytes
// of a payload. ok is false for payloads shorter than two bytes.
func PeekSeq(payload []byte) (seq uint16, ok bool) {
	if len(payload) < 2 {
		return 0, false
	}
	return binary.BigEndian.Uint16(payload[:2]), true
}

// SeqIsNewer reports whether seq is ahead of expected under modular 16-bit
// arithmetic. The comparison must stay in uint16; sign-extending to a wider
// type breaks wraparound.
func SeqIsNewer(seq, expected uint16) bool {
	diff := seq - expected
	return diff >= 1 && diff < SeqHalfWindow
}

// SeqCounters accumulates sequence diagnostics for one peer slot. The
// counters never influence forwarding.
type SeqCounters struct {
	Init     uint64 `json:"init"`
	InOrder  uint64 `json:"in_order"`
	Ahead    uint64 `json:"ahead"`
	Behind   uint64 `json:"behind"`
	Dup      uint64 `json:"dup"`
	Short    uint64 `json:"short"`
	GapTotal uint64 `json:"gap_total"`
	GapMax   uint64 `json:"gap_max"`
}

// Add folds other into c. Used to aggregate per-slot counters into the
// relay-wide diagnostics line.
func (c *SeqCounters) Add(other SeqCounters) {
	c.Init += other.Init
	c.InOrder += other.InOrder
	c.Ahead += other.Ahead
	c.Behind += other.Behind
	c.Dup += other.Dup
	c.Short += other.Short
	c.GapTotal += other.GapTotal
	if other.GapMax > c.GapMax {
		c.GapMax = other.GapMax
	}
}

// SeqTracker follows the sequence numbers observed from a single peer.
// The zero value is ready to use.
type SeqTracker struct {
	seen     bool
	expected uint16
	last     uint16
}

// Observe folds one payload's sequence number into the tracker and counters.
// Payloads shorter than two bytes only count Short. The first observation
// counts Init and primes the expected value; an exact match counts InOrder;
// a newer value counts Ahead and records the gap; anything else counts
// Behind, plus Dup when it repeats the previous sequence.
func (t *SeqTracker) Observe(payload []byte, c *SeqCounters) {
	seq, ok := PeekSeq(payload)
	if !ok {
		c.Short++
		return
	}

	switch {
	case !t.seen:
		t.seen = true
		t.expected = seq + 1
		c.Init++
	case seq == t.expected:
		c.InOrder++
		t.expected = seq + 1
	case SeqIsNewer(seq, t.expected):
		gap := uint64(seq - t.expected)
		c.Ahead++
		c.GapTotal += gap
		if gap > c.GapMax {
			c.GapMax = gap
		}
		t.expected = seq + 1
	default:
		c.Behind++
		if seq == t.last {
			c.Dup++
		}
	}

	t.last = seq
}
