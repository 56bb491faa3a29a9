package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringleader-project/ringleader/internal/config"
	"github.com/ringleader-project/ringleader/internal/events"
	"github.com/ringleader-project/ringleader/internal/lobby"
	"github.com/ringleader-project/ringleader/internal/protocol"
)

func TestClassifyUtilization(t *testing.T) {
	cases := []struct {
		name     string
		used     int
		capacity int
		want     string
	}{
		{"empty", 0, 10, levelOK},
		{"below threshold", 7, 10, levelOK},
		{"at threshold", 8, 10, levelWarning},
		{"above threshold", 9, 10, levelWarning},
		{"exhausted", 10, 10, levelCritical},
		{"single slot free", 0, 1, levelOK},
		{"single slot used", 1, 1, levelCritical},
		{"zero capacity", 0, 0, levelOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classifyUtilization(tc.used, tc.capacity))
		})
	}
}

func TestClassifyPercent(t *testing.T) {
	assert.Equal(t, levelOK, classifyPercent(0, 90))
	assert.Equal(t, levelOK, classifyPercent(89.9, 90))
	assert.Equal(t, levelWarning, classifyPercent(90, 90))
	assert.Equal(t, levelWarning, classifyPercent(100, 90))
}

// TestPortPoolAlertOnExhaustion drives a one-port pool to exhaustion
// and expects a critical alert, then a recovery alert once the port
// frees up.
func TestPortPoolAlertOnExhaustion(t *testing.T) {
	cfg := config.Default()
	cfg.HostName = "lobby.test"
	cfg.LobbyPort = 7000
	cfg.GamePortMin = 23000
	cfg.GamePortMax = 23000
	cfg.MaxGames = 2
	cfg.MaxPlayersDefault = 4

	ctx, cancel := context.WithCancel(context.Background())
	bus := events.NewEventBus()
	coord := lobby.NewCoordinator(ctx, cfg, bus)
	t.Cleanup(func() {
		coord.StopAll()
		cancel()
		bus.Stop()
	})

	alerts := make(chan events.HealthAlertPayload, 16)
	bus.Subscribe(events.EventHealthAlert, "test", func(_ context.Context, ev events.Event) error {
		alerts <- ev.Payload.(events.HealthAlertPayload)
		return nil
	})

	// A solo game activates immediately and reserves the only port.
	id, err := coord.Hello("alice")
	require.NoError(t, err)
	_, err = coord.CreateGame(id, "solo", 1, protocol.TransportUDP)
	require.NoError(t, err)
	require.Equal(t, 1, coord.Status().PortsReserved)

	m := NewManager(bus, coord)
	go m.runCheck(ctx, "port_pool", 20*time.Millisecond, m.checkPortPool)

	select {
	case a := <-alerts:
		assert.Equal(t, "port_pool", a.Check)
		assert.Equal(t, levelCritical, a.Level)
	case <-time.After(3 * time.Second):
		t.Fatal("no exhaustion alert")
	}

	// Ending the game releases the port; the check recovers.
	coord.StopAll()

	select {
	case a := <-alerts:
		assert.Equal(t, "port_pool", a.Check)
		assert.Equal(t, levelOK, a.Level)
	case <-time.After(3 * time.Second):
		t.Fatal("no recovery alert")
	}
}
