package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringleader-project/ringleader/internal/events"
	"github.com/ringleader-project/ringleader/internal/protocol"
)

func newTestHistory(t *testing.T) *History {
	t.Helper()

	h, err := NewHistory(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func endedGame(gameID, reason string, rx uint64) events.GameEndedPayload {
	now := time.Now().UTC()
	return events.GameEndedPayload{
		GameID:     gameID,
		Name:       "duel",
		Port:       10001,
		Transport:  "udp",
		Reason:     reason,
		Players:    []string{"alice", "bob"},
		MaxPlayers: 2,
		CreatedAt:  now.Add(-2 * time.Minute),
		StartedAt:  now.Add(-time.Minute),
		EndedAt:    now,
		Stats: protocol.TrafficCounters{
			Rx:       rx,
			Tx:       rx,
			DupTx:    3,
			Register: 2,
			Drop:     1,
			Unknown:  4,
		},
	}
}

func TestHistoryRecordAndQuery(t *testing.T) {
	h := newTestHistory(t)

	require.NoError(t, h.Record(endedGame("GAME0001", "idle_timeout", 100)))
	require.NoError(t, h.Record(endedGame("GAME0002", "shutdown", 200)))

	n, err := h.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records, err := h.RecentGames(10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first.
	newest := records[0]
	assert.Equal(t, "GAME0002", newest.GameID)
	assert.Equal(t, "shutdown", newest.Reason)
	assert.Equal(t, "duel", newest.Name)
	assert.Equal(t, "udp", newest.Transport)
	assert.Equal(t, 10001, newest.Port)
	assert.Equal(t, 2, newest.MaxPlayers)
	assert.Equal(t, uint64(200), newest.Rx)
	assert.Equal(t, uint64(3), newest.DupTx)
	assert.Equal(t, uint64(2), newest.Register)
	assert.Equal(t, uint64(1), newest.Dropped)
	assert.Equal(t, uint64(4), newest.Unknown)
	assert.WithinDuration(t, time.Now().UTC(), newest.EndedAt, time.Minute)

	assert.Equal(t, "GAME0001", records[1].GameID)

	records, err = h.RecentGames(1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "GAME0002", records[0].GameID)
}

func TestHistoryRecordsFromBus(t *testing.T) {
	h := newTestHistory(t)

	bus := events.NewEventBus()
	defer bus.Stop()
	h.Attach(bus)

	bus.Emit(context.Background(), events.Event{
		Type:    events.EventGameEnded,
		Source:  "lobby",
		Payload: endedGame("GAME0003", "drop_timeout", 50),
	})

	require.Eventually(t, func() bool {
		n, err := h.Count()
		return err == nil && n == 1
	}, 3*time.Second, 20*time.Millisecond, "archive row never appeared")

	records, err := h.RecentGames(5)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "GAME0003", records[0].GameID)
	assert.Equal(t, "drop_timeout", records[0].Reason)
}

func TestHistorySurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	h, err := NewHistory(path)
	require.NoError(t, err)
	require.NoError(t, h.Record(endedGame("GAME0004", "socket_error", 10)))
	require.NoError(t, h.Close())

	h, err = NewHistory(path)
	require.NoError(t, err)
	defer h.Close()

	n, err := h.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
