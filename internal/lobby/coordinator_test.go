package lobby

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringleader-project/ringleader/internal/config"
	"github.com/ringleader-project/ringleader/internal/events"
	"github.com/ringleader-project/ringleader/internal/protocol"
)

// testConfig uses a dedicated relay port range per test so concurrently
// spawned relays never fight over a bind.
func testConfig(portMin, portMax, maxGames int) *config.Config {
	cfg := config.Default()
	cfg.HostName = "lobby.test"
	cfg.LobbyPort = 7000
	cfg.GamePortMin = portMin
	cfg.GamePortMax = portMax
	cfg.MaxGames = maxGames
	cfg.MaxPlayersDefault = 4
	cfg.JoinTimeoutSec = 600
	cfg.DropTimeoutSec = 60
	cfg.IdleTimeoutSec = 120
	return cfg
}

func newTestCoordinator(t *testing.T, cfg *config.Config) (*Coordinator, *events.EventBus) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	bus := events.NewEventBus()
	c := NewCoordinator(ctx, cfg, bus)
	t.Cleanup(func() {
		c.StopAll()
		cancel()
		bus.Stop()
	})
	return c, bus
}

func register(t *testing.T, c *Coordinator, name string) string {
	t.Helper()
	id, err := c.Hello(name)
	require.NoError(t, err)
	return id
}

func TestHelloAndList(t *testing.T) {
	c, _ := newTestCoordinator(t, testConfig(21900, 21901, 4))

	id := register(t, c, "alice")
	assert.Len(t, id, clientIDLength)

	// A freshly issued id is immediately usable.
	games, err := c.ListGames(id)
	require.NoError(t, err)
	assert.Empty(t, games)

	_, err = c.ListGames("NOPE1234")
	assert.ErrorIs(t, err, ErrBadClient)
	_, err = c.ListGames("")
	assert.ErrorIs(t, err, ErrBadClient)
}

func TestHelloRejectsBadNames(t *testing.T) {
	c, _ := newTestCoordinator(t, testConfig(21905, 21906, 4))

	for _, name := range []string{"", "ninechars", "has space", "p()"} {
		_, err := c.Hello(name)
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)
	}
}

func TestHelloServerFull(t *testing.T) {
	c, _ := newTestCoordinator(t, testConfig(21910, 21911, 4))

	for i := 0; i < ClientCapacity; i++ {
		register(t, c, "p")
	}
	_, err := c.Hello("late")
	assert.ErrorIs(t, err, ErrServerFull)
}

func TestCreateGameValidationAndDefaults(t *testing.T) {
	c, _ := newTestCoordinator(t, testConfig(21915, 21916, 4))
	id := register(t, c, "alice")

	_, err := c.CreateGame(id, "", 2, protocol.TransportTCP)
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = c.CreateGame("ZZZZZZZZ", "g", 2, protocol.TransportTCP)
	assert.ErrorIs(t, err, ErrBadClient)

	// Out-of-range player counts fall back to the configured default.
	gameID, err := c.CreateGame(id, "padded", 99, protocol.TransportUDP)
	require.NoError(t, err)
	games, err := c.ListGames(id)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, gameID, games[0].ID)
	assert.Equal(t, 4, games[0].Max)
	assert.Equal(t, 1, games[0].Players, "creator is the first member")
	assert.Equal(t, protocol.TransportUDP, games[0].Transport)
	assert.False(t, games[0].Active)
}

func TestCreateGameMaxGames(t *testing.T) {
	c, _ := newTestCoordinator(t, testConfig(21920, 21921, 2))
	id := register(t, c, "alice")

	_, err := c.CreateGame(id, "one", 4, protocol.TransportTCP)
	require.NoError(t, err)
	_, err = c.CreateGame(id, "two", 4, protocol.TransportTCP)
	require.NoError(t, err)
	_, err = c.CreateGame(id, "three", 4, protocol.TransportTCP)
	assert.ErrorIs(t, err, ErrMaxGames)
}

func TestJoinActivatesWhenFull(t *testing.T) {
	cfg := testConfig(21000, 21001, 2)
	c, _ := newTestCoordinator(t, cfg)

	a := register(t, c, "alice")
	b := register(t, c, "bob")

	gameID, err := c.CreateGame(a, "duel", 2, protocol.TransportTCP)
	require.NoError(t, err)

	// Still pending: creator polls and waits.
	res, err := c.Wait(a, gameID)
	require.NoError(t, err)
	require.Nil(t, res.Start)
	assert.Equal(t, 1, res.Players)
	assert.Equal(t, 2, res.Max)

	require.NoError(t, c.JoinGame(b, gameID))

	// Both members now hold a start notice for the reserved port.
	for _, id := range []string{a, b} {
		res, err := c.Wait(id, gameID)
		require.NoError(t, err)
		require.NotNil(t, res.Start, "client %s should be told to start", id)
		assert.Equal(t, "lobby.test", res.Start.Host)
		assert.Equal(t, 21000, res.Start.Port, "lowest port goes first")
		assert.Equal(t, protocol.TransportTCP, res.Start.Transport)
	}

	// The notice is consumed by delivery.
	res, err = c.Wait(a, gameID)
	require.NoError(t, err)
	assert.Nil(t, res.Start)

	games, err := c.ListGames(a)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.True(t, games[0].Active)

	st := c.Status()
	assert.Equal(t, 1, st.GamesActive)
	assert.Equal(t, 0, st.GamesPending)
	assert.Equal(t, 1, st.PortsReserved)
}

func TestJoinErrors(t *testing.T) {
	cfg := testConfig(21005, 21006, 2)
	c, _ := newTestCoordinator(t, cfg)

	a := register(t, c, "alice")
	b := register(t, c, "bob")
	x := register(t, c, "carol")

	assert.ErrorIs(t, c.JoinGame(a, "MISSING1"), ErrNotFound)

	gameID, err := c.CreateGame(a, "duel", 2, protocol.TransportTCP)
	require.NoError(t, err)

	// Rejoining your own pending game changes nothing.
	require.NoError(t, c.JoinGame(a, gameID))
	games, _ := c.ListGames(a)
	assert.Equal(t, 1, games[0].Players)

	require.NoError(t, c.JoinGame(b, gameID))

	// The game is active now; to latecomers it no longer exists.
	assert.ErrorIs(t, c.JoinGame(x, gameID), ErrNotFound)

	assert.ErrorIs(t, c.JoinGame("", gameID), ErrBadClient)
}

func TestActiveGameUnknownToJoinAndLeave(t *testing.T) {
	cfg := testConfig(21050, 21051, 4)
	c, _ := newTestCoordinator(t, cfg)

	a := register(t, c, "alice")
	b := register(t, c, "bob")
	x := register(t, c, "carol")

	gameID, err := c.CreateGame(a, "duel", 2, protocol.TransportTCP)
	require.NoError(t, err)
	require.NoError(t, c.JoinGame(b, gameID))

	// Activation took the game out of the pending directory: join and
	// leave both report not_found, members included.
	assert.ErrorIs(t, c.JoinGame(x, gameID), ErrNotFound)
	assert.ErrorIs(t, c.JoinGame(a, gameID), ErrNotFound)
	assert.ErrorIs(t, c.LeaveGame(a, gameID), ErrNotFound)
	assert.ErrorIs(t, c.LeaveGame(x, gameID), ErrNotFound)

	// The rejected calls left the roster alone.
	detail := c.GamesDetail()
	require.Len(t, detail, 1)
	assert.True(t, detail[0].Active)
	assert.ElementsMatch(t, []string{"alice", "bob"}, detail[0].Members)
}

func TestCreateSoloGameActivatesImmediately(t *testing.T) {
	cfg := testConfig(21010, 21010, 2)
	c, _ := newTestCoordinator(t, cfg)

	a := register(t, c, "alice")
	gameID, err := c.CreateGame(a, "solo", 1, protocol.TransportUDP)
	require.NoError(t, err)

	res, err := c.Wait(a, gameID)
	require.NoError(t, err)
	require.NotNil(t, res.Start)
	assert.Equal(t, 21010, res.Start.Port)
}

func TestActivationPortExhaustion(t *testing.T) {
	// Single relay port, two game slots: the second activation must fail
	// with no_ports and the game must vanish.
	cfg := testConfig(21015, 21015, 2)
	c, _ := newTestCoordinator(t, cfg)

	a := register(t, c, "alice")
	b := register(t, c, "bob")

	_, err := c.CreateGame(a, "first", 1, protocol.TransportTCP)
	require.NoError(t, err)

	_, err = c.CreateGame(b, "second", 1, protocol.TransportTCP)
	assert.ErrorIs(t, err, ErrNoPorts)

	games, err := c.ListGames(b)
	require.NoError(t, err)
	assert.Len(t, games, 1, "the failed game is not in use")

	// The loser got no start notice.
	res, err := c.Wait(b, games[0].ID)
	require.NoError(t, err)
	assert.Nil(t, res.Start)
}

func TestActivationCrossGameCleanup(t *testing.T) {
	cfg := testConfig(21020, 21021, 4)
	c, _ := newTestCoordinator(t, cfg)

	a := register(t, c, "alice")
	b := register(t, c, "bob")
	x := register(t, c, "carol")

	big, err := c.CreateGame(a, "big", 3, protocol.TransportTCP)
	require.NoError(t, err)
	require.NoError(t, c.JoinGame(b, big))

	duel, err := c.CreateGame(a, "duel", 2, protocol.TransportTCP)
	require.NoError(t, err)

	// Carol fills the duel; alice must drop out of the big game.
	require.NoError(t, c.JoinGame(x, duel))

	detail := c.GamesDetail()
	require.Len(t, detail, 2)
	for _, d := range detail {
		switch d.ID {
		case big:
			assert.False(t, d.Active)
			assert.Equal(t, []string{"bob"}, d.Members)
		case duel:
			assert.True(t, d.Active)
			assert.ElementsMatch(t, []string{"alice", "carol"}, d.Members)
		default:
			t.Fatalf("unexpected game %s", d.ID)
		}
	}

	// Bob never joined the duel, so he keeps waiting in the big game.
	res, err := c.Wait(b, big)
	require.NoError(t, err)
	assert.Nil(t, res.Start)
}

func TestJoinTimeoutExpiresPendingGames(t *testing.T) {
	cfg := testConfig(21025, 21026, 2)
	cfg.JoinTimeoutSec = 60
	c, _ := newTestCoordinator(t, cfg)

	a := register(t, c, "alice")
	gameID, err := c.CreateGame(a, "lonely", 2, protocol.TransportTCP)
	require.NoError(t, err)

	// Not yet.
	assert.Zero(t, c.ExpireGames(time.Now().Add(30*time.Second)))

	assert.Equal(t, 1, c.ExpireGames(time.Now().Add(61*time.Second)))

	games, err := c.ListGames(a)
	require.NoError(t, err)
	assert.Empty(t, games)

	_, err = c.Wait(a, gameID)
	assert.ErrorIs(t, err, ErrNotFound)

	// The creator's client record outlives the game.
	assert.NoError(t, c.Ping(a))
}

func TestLeaveRules(t *testing.T) {
	cfg := testConfig(21030, 21031, 4)
	c, _ := newTestCoordinator(t, cfg)

	a := register(t, c, "alice")
	b := register(t, c, "bob")

	assert.ErrorIs(t, c.LeaveGame(a, "MISSING1"), ErrNotFound)

	gameID, err := c.CreateGame(a, "g", 3, protocol.TransportTCP)
	require.NoError(t, err)
	require.NoError(t, c.JoinGame(b, gameID))

	// Leaving a game you are not in is fine and changes nothing.
	x := register(t, c, "carol")
	require.NoError(t, c.LeaveGame(x, gameID))
	games, _ := c.ListGames(a)
	assert.Equal(t, 2, games[0].Players)

	require.NoError(t, c.LeaveGame(b, gameID))
	games, _ = c.ListGames(a)
	assert.Equal(t, 1, games[0].Players)

	// Last member out frees the slot.
	require.NoError(t, c.LeaveGame(a, gameID))
	games, _ = c.ListGames(a)
	assert.Empty(t, games)
}

func TestClientExpiryDropsMemberships(t *testing.T) {
	cfg := testConfig(21035, 21036, 4)
	c, _ := newTestCoordinator(t, cfg)

	a := register(t, c, "alice")
	_, err := c.CreateGame(a, "g", 2, protocol.TransportTCP)
	require.NoError(t, err)

	assert.Equal(t, 1, c.ExpireClients(time.Now().Add(clientInactivityWindow+time.Second)))

	assert.ErrorIs(t, c.Ping(a), ErrBadClient)

	// The game alice was alone in went with her.
	st := c.Status()
	assert.Zero(t, st.GamesPending)
	assert.Zero(t, st.Clients)
}

func TestEndGameReleasesPortExactlyOnce(t *testing.T) {
	cfg := testConfig(21040, 21040, 2)
	c, _ := newTestCoordinator(t, cfg)

	a := register(t, c, "alice")
	gameID, err := c.CreateGame(a, "solo", 1, protocol.TransportUDP)
	require.NoError(t, err)
	require.Equal(t, 1, c.Status().PortsReserved)

	g := c.games.find(gameID)
	require.NotNil(t, g)

	c.endGame(g, "idle_timeout", protocol.TrafficCounters{})
	assert.Equal(t, 0, c.Status().PortsReserved)

	// A second end (the relay's own shutdown path) must not double-release.
	p, ok := c.ports.acquire()
	require.True(t, ok)
	require.Equal(t, 21040, p)
	c.endGame(g, "shutdown", protocol.TrafficCounters{})
	assert.Equal(t, 1, c.Status().PortsReserved)
	c.ports.release(p)

	_, err = c.Wait(a, gameID)
	assert.ErrorIs(t, err, ErrNotFound)

	// The undelivered start notice was cleared with the game.
	res, err := c.Wait(a, mustCreate(t, c, a, "next", 2))
	require.NoError(t, err)
	assert.Nil(t, res.Start)
}

func mustCreate(t *testing.T, c *Coordinator, clientID, name string, maxPlayers int) string {
	t.Helper()
	id, err := c.CreateGame(clientID, name, maxPlayers, protocol.TransportTCP)
	require.NoError(t, err)
	return id
}

func TestLifecycleEvents(t *testing.T) {
	cfg := testConfig(21045, 21045, 2)
	c, bus := newTestCoordinator(t, cfg)

	type seen struct {
		eventType events.EventType
		payload   interface{}
	}
	got := make(chan seen, 16)
	for _, et := range []events.EventType{
		events.EventClientRegistered,
		events.EventGameCreated,
		events.EventGameActivated,
		events.EventGameEnded,
	} {
		bus.Subscribe(et, "test", func(_ context.Context, e events.Event) error {
			got <- seen{e.Type, e.Payload}
			return nil
		})
	}

	a := register(t, c, "alice")
	gameID, err := c.CreateGame(a, "solo", 1, protocol.TransportUDP)
	require.NoError(t, err)

	// Stopping the relays drives the game through its ended path.
	c.StopAll()

	want := map[events.EventType]bool{
		events.EventClientRegistered: false,
		events.EventGameCreated:      false,
		events.EventGameActivated:    false,
		events.EventGameEnded:        false,
	}
	deadline := time.After(5 * time.Second)
	for {
		done := true
		for _, ok := range want {
			if !ok {
				done = false
			}
		}
		if done {
			break
		}
		select {
		case s := <-got:
			want[s.eventType] = true
			if s.eventType == events.EventGameEnded {
				p, ok := s.payload.(events.GameEndedPayload)
				require.True(t, ok)
				assert.Equal(t, gameID, p.GameID)
				assert.Equal(t, "shutdown", p.Reason)
				assert.Equal(t, 21045, p.Port)
			}
		case <-deadline:
			t.Fatalf("missing events: %+v", want)
		}
	}
}
