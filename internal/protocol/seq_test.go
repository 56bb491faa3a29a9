package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqPayload(seq uint16) []byte {
	return []byte{byte(seq >> 8), byte(seq)}
}

func TestSeqIsNewer(t *testing.T) {
	tests := []struct {
		name     string
		seq      uint16
		expected uint16
		newer    bool
	}{
		{"equal", 100, 100, false},
		{"one ahead", 101, 100, true},
		{"max ahead", 100 + 0x7FFF, 100, true},
		{"half window is behind", 100 + 0x8000, 100, false},
		{"one behind", 99, 100, false},
		{"ahead across wrap", 2, 0xFFFE, true},
		{"behind across wrap", 0xFFFE, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.newer, SeqIsNewer(tt.seq, tt.expected))
		})
	}
}

func TestSeqTrackerWrapInOrder(t *testing.T) {
	var tr SeqTracker
	var c SeqCounters

	tr.Observe(seqPayload(0xFFFF), &c)
	tr.Observe(seqPayload(0x0000), &c)

	assert.Equal(t, uint64(1), c.Init)
	assert.Equal(t, uint64(1), c.InOrder, "0xFFFF followed by 0x0000 is in-order")
	assert.Zero(t, c.Ahead)
	assert.Zero(t, c.Behind)
}

// A gap, a late pair, and a duplicate: 100, 101, 105, 104, 104.
func TestSeqTrackerGapAndDuplicate(t *testing.T) {
	var tr SeqTracker
	var c SeqCounters

	for _, seq := range []uint16{100, 101, 105, 104, 104} {
		tr.Observe(seqPayload(seq), &c)
	}

	assert.Equal(t, uint64(1), c.Init)
	assert.GreaterOrEqual(t, c.InOrder, uint64(1))
	assert.Equal(t, uint64(1), c.Ahead)
	assert.Equal(t, uint64(3), c.GapTotal)
	assert.Equal(t, uint64(3), c.GapMax)
	assert.Equal(t, uint64(2), c.Behind)
	assert.Equal(t, uint64(1), c.Dup)
}

func TestSeqTrackerShortPayload(t *testing.T) {
	var tr SeqTracker
	var c SeqCounters

	tr.Observe(nil, &c)
	tr.Observe([]byte{0x42}, &c)

	assert.Equal(t, uint64(2), c.Short)
	assert.Zero(t, c.Init, "short payloads must not prime the tracker")

	tr.Observe(seqPayload(7), &c)
	assert.Equal(t, uint64(1), c.Init)
}

func TestPeekSeq(t *testing.T) {
	seq, ok := PeekSeq([]byte{0x01, 0x02, 0xFF})
	require.True(t, ok)
	assert.Equal(t, uint16(0x0102), seq)

	_, ok = PeekSeq([]byte{0x01})
	assert.False(t, ok)
}

func TestSeqCountersAdd(t *testing.T) {
	a := SeqCounters{Init: 1, InOrder: 5, GapMax: 2}
	b := SeqCounters{InOrder: 3, Ahead: 1, GapTotal: 4, GapMax: 7}

	a.Add(b)

	assert.Equal(t, uint64(8), a.InOrder)
	assert.Equal(t, uint64(1), a.Ahead)
	assert.Equal(t, uint64(4), a.GapTotal)
	assert.Equal(t, uint64(7), a.GapMax)
}
