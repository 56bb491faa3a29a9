package lobby

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ringleader-project/ringleader/internal/config"
	"github.com/ringleader-project/ringleader/internal/events"
	"github.com/ringleader-project/ringleader/internal/protocol"
	"github.com/ringleader-project/ringleader/internal/relay"
	"github.com/ringleader-project/ringleader/internal/util"
)

// Coordinator owns the client directory, the game directory and the port
// pool behind one mutex. Every lobby operation runs as a single critical
// section, so activation (reserve port, flip active, write start notices,
// cross-game cleanup, spawn relay) is atomic against all other requests.
// Nothing here performs network I/O while holding the mutex; relays run on
// their own goroutines and come back only through endGame.
type Coordinator struct {
	cfg     *config.Config
	bus     *events.EventBus
	logger  zerolog.Logger
	baseCtx context.Context

	mu      sync.Mutex
	clients *clientDirectory
	games   *gameDirectory
	ports   *portPool

	relayWG sync.WaitGroup
}

// NewCoordinator builds an empty directory sized from the configuration.
// Relays spawned by activations become children of ctx; a shutdown event on
// the bus stops them all.
func NewCoordinator(ctx context.Context, cfg *config.Config, bus *events.EventBus) *Coordinator {
	c := &Coordinator{
		cfg:     cfg,
		bus:     bus,
		logger:  util.ComponentLogger("lobby"),
		baseCtx: ctx,
		clients: newClientDirectory(),
		games:   newGameDirectory(cfg.MaxGames),
		ports:   newPortPool(cfg.GamePortMin, cfg.GamePortMax),
	}
	bus.Subscribe(events.EventShutdown, "lobby", c.onShutdown)
	return c
}

func (c *Coordinator) onShutdown(context.Context, events.Event) error {
	c.StopAll()
	return nil
}

// Hello registers a new client and returns its id.
func (c *Coordinator) Hello(name string) (string, error) {
	if !validClientName(name) {
		return "", ErrInvalidName
	}

	c.mu.Lock()
	cl, err := c.clients.create(name, time.Now())
	c.mu.Unlock()
	if err != nil {
		return "", err
	}

	c.logger.Info().Str("client", cl.id).Str("name", cl.name).Msg("client registered")
	c.emit(events.EventClientRegistered, events.ClientRegisteredPayload{
		ClientID: cl.id,
		Name:     cl.name,
	})
	return cl.id, nil
}

// ListGames returns every pending and active game.
func (c *Coordinator) ListGames(clientID string) ([]GameSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.resolveLocked(clientID, time.Now()); err != nil {
		return nil, err
	}

	out := make([]GameSummary, 0, len(c.games.slots))
	for _, g := range c.games.slots {
		if g == nil {
			continue
		}
		out = append(out, GameSummary{
			ID:        g.id,
			Name:      g.name,
			Players:   len(g.members),
			Max:       g.maxPlayers,
			Active:    g.active,
			Transport: g.transport,
		})
	}
	return out, nil
}

// CreateGame opens a pending game with the caller as first member. Out of
// range maxPlayers values fall back to the configured default. A game for
// one activates before returning.
func (c *Coordinator) CreateGame(clientID, name string, maxPlayers int, transport protocol.Transport) (string, error) {
	if !validGameName(name) {
		return "", ErrInvalidName
	}
	if maxPlayers < 1 || maxPlayers > config.MaxPlayersLimit {
		maxPlayers = c.cfg.MaxPlayersDefault
	}
	now := time.Now()

	c.mu.Lock()
	cl, err := c.resolveLocked(clientID, now)
	if err != nil {
		c.mu.Unlock()
		return "", err
	}
	g, err := c.games.create(cl, name, maxPlayers, transport, now)
	if err != nil {
		c.mu.Unlock()
		return "", err
	}
	if len(g.members) == g.maxPlayers {
		if err := c.activateLocked(g, now); err != nil {
			c.mu.Unlock()
			return "", err
		}
	}
	c.mu.Unlock()

	c.logger.Info().
		Str("game", g.id).
		Str("name", g.name).
		Str("client", cl.id).
		Int("max_players", g.maxPlayers).
		Str("transport", g.transport.String()).
		Msg("game created")
	c.emit(events.EventGameCreated, events.GameCreatedPayload{
		GameID:     g.id,
		Name:       g.name,
		CreatorID:  cl.id,
		MaxPlayers: g.maxPlayers,
		Transport:  g.transport.String(),
	})
	return g.id, nil
}

// JoinGame adds the caller to a pending game, activating it when the last
// seat fills. Joining a game the caller is already in succeeds unchanged.
// Once a game is active it is no longer joinable and reads as unknown, even
// to its own members.
func (c *Coordinator) JoinGame(clientID, gameID string) error {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	cl, err := c.resolveLocked(clientID, now)
	if err != nil {
		return err
	}
	g := c.games.find(gameID)
	if g == nil || g.active {
		return ErrNotFound
	}
	already, err := c.games.join(g, cl)
	if err != nil {
		return err
	}
	if already {
		return nil
	}

	c.logger.Debug().
		Str("game", g.id).
		Str("client", cl.id).
		Int("players", len(g.members)).
		Int("max", g.maxPlayers).
		Msg("client joined game")

	if len(g.members) == g.maxPlayers {
		return c.activateLocked(g, now)
	}
	return nil
}

// LeaveGame removes the caller from a pending game. Leaving a game the
// caller is not in changes nothing. Active games read as unknown, the same
// as for join. A pending game emptied by the departure is freed.
func (c *Coordinator) LeaveGame(clientID, gameID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cl, err := c.resolveLocked(clientID, time.Now())
	if err != nil {
		return err
	}
	g := c.games.find(gameID)
	if g == nil || g.active {
		return ErrNotFound
	}
	if g.removeMember(cl.id) && len(g.members) == 0 {
		c.games.free(g)
		c.logger.Debug().Str("game", g.id).Msg("empty game freed")
	}
	return nil
}

// Wait is the client's poll for a start notification. The notice lives on
// the client and is checked before the game id resolves, so a client whose
// polled game vanished during activation cleanup still learns its start.
// The notice is consumed on delivery.
func (c *Coordinator) Wait(clientID, gameID string) (WaitResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cl, err := c.resolveLocked(clientID, time.Now())
	if err != nil {
		return WaitResult{}, err
	}
	if cl.pendingStart != nil {
		n := *cl.pendingStart
		cl.pendingStart = nil
		return WaitResult{Start: &StartInfo{
			Host:      n.host,
			Port:      n.port,
			Transport: n.transport,
		}}, nil
	}
	g := c.games.find(gameID)
	if g == nil {
		return WaitResult{}, ErrNotFound
	}
	return WaitResult{Players: len(g.members), Max: g.maxPlayers}, nil
}

// Ping refreshes the caller's inactivity clock.
func (c *Coordinator) Ping(clientID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.resolveLocked(clientID, time.Now())
	return err
}

// resolveLocked maps a client_id to its live record and touches last_seen.
// Callers hold the mutex.
func (c *Coordinator) resolveLocked(clientID string, now time.Time) (*client, error) {
	cl := c.clients.find(clientID)
	if cl == nil {
		return nil, ErrBadClient
	}
	cl.lastSeen = now
	return cl, nil
}

// activateLocked is the compound activation step: reserve a port, flip the
// game active, write start notices to every member, drop the members from
// all other pending games, spawn the relay. Callers hold the mutex, which is
// what makes the whole transition atomic. On port exhaustion the game is
// freed and ErrNoPorts reported to the caller who filled it.
func (c *Coordinator) activateLocked(g *game, now time.Time) error {
	port, ok := c.ports.acquire()
	if !ok {
		c.games.free(g)
		c.logger.Warn().Str("game", g.id).Msg("port range exhausted, dropping game")
		return ErrNoPorts
	}
	g.active = true
	g.port = port
	g.startedAt = now

	for _, m := range g.members {
		if cl := c.clients.find(m.clientID); cl != nil {
			cl.pendingStart = &startNotice{
				host:      c.cfg.HostName,
				port:      port,
				transport: g.transport,
			}
		}
	}
	for _, m := range g.members {
		for _, emptied := range c.games.removeEverywhereExcept(m.clientID, g) {
			c.games.free(emptied)
		}
	}

	r := relay.New(relay.Config{
		GameID:      g.id,
		GameName:    g.name,
		Port:        port,
		Transport:   g.transport,
		Slots:       g.maxPlayers,
		DropTimeout: c.cfg.DropTimeout(),
		IdleTimeout: c.cfg.IdleTimeout(),
		DupEnabled:  c.cfg.UDPDupEnabled,
		DupDelay:    c.cfg.UDPDupDelay(),
		OnEnd: func(reason string, stats protocol.TrafficCounters) {
			c.endGame(g, reason, stats)
		},
		OnReady: func(players int) {
			c.emit(events.EventRelayReady, events.RelayReadyPayload{
				GameID:  g.id,
				Port:    port,
				Players: players,
			})
		},
		OnStats: func(stats protocol.TrafficCounters) {
			c.emit(events.EventRelayStats, events.RelayStatsPayload{
				GameID: g.id,
				Port:   port,
				Stats:  stats,
			})
		},
	})
	g.relay = r
	c.relayWG.Add(1)
	go func() {
		defer c.relayWG.Done()
		r.Run(c.baseCtx)
	}()

	c.logger.Info().
		Str("game", g.id).
		Int("port", port).
		Int("players", len(g.members)).
		Str("transport", g.transport.String()).
		Msg("game activated")
	c.emit(events.EventGameActivated, events.GameActivatedPayload{
		GameID:    g.id,
		Name:      g.name,
		Port:      port,
		Transport: g.transport.String(),
		Players:   g.memberNames(),
	})
	return nil
}

// endGame retires an active game: release its port, clear undelivered start
// notices, free the slot. This is the only path that releases a port, and
// the ended guard makes it run at most once per game. Called from relay
// goroutines through the OnEnd closure.
func (c *Coordinator) endGame(g *game, reason string, stats protocol.TrafficCounters) {
	now := time.Now()

	c.mu.Lock()
	if g.ended {
		c.mu.Unlock()
		return
	}
	g.ended = true
	g.active = false
	c.ports.release(g.port)
	for _, m := range g.members {
		cl := c.clients.find(m.clientID)
		if cl != nil && cl.pendingStart != nil && cl.pendingStart.port == g.port {
			cl.pendingStart = nil
		}
	}
	c.games.free(g)
	c.mu.Unlock()

	c.logger.Info().
		Str("game", g.id).
		Int("port", g.port).
		Str("reason", reason).
		Msg("game ended")
	c.emit(events.EventGameEnded, events.GameEndedPayload{
		GameID:     g.id,
		Name:       g.name,
		Port:       g.port,
		Transport:  g.transport.String(),
		Reason:     reason,
		Players:    g.memberNames(),
		MaxPlayers: g.maxPlayers,
		CreatedAt:  g.createdAt,
		StartedAt:  g.startedAt,
		EndedAt:    now,
		Stats:      stats,
	})
}

// ExpireGames frees pending games older than the join window. The janitor
// calls this every second; active games are never touched, their relays own
// their own deadlines.
func (c *Coordinator) ExpireGames(now time.Time) int {
	c.mu.Lock()
	expired := c.games.expirePending(now, c.cfg.JoinTimeout())
	c.mu.Unlock()

	for _, g := range expired {
		c.logger.Info().
			Str("game", g.id).
			Int("players", len(g.members)).
			Msg("pending game expired")
		c.emit(events.EventGameExpired, events.GameExpiredPayload{
			GameID:  g.id,
			Name:    g.name,
			Players: len(g.members),
		})
	}
	return len(expired)
}

// ExpireClients frees clients silent past the inactivity window and removes
// them from any pending games they were in.
func (c *Coordinator) ExpireClients(now time.Time) int {
	c.mu.Lock()
	removed := c.clients.expire(now)
	for _, cl := range removed {
		for _, emptied := range c.games.removeEverywhereExcept(cl.id, nil) {
			c.games.free(emptied)
		}
	}
	c.mu.Unlock()

	for _, cl := range removed {
		c.logger.Info().Str("client", cl.id).Str("name", cl.name).Msg("idle client expired")
		c.emit(events.EventClientExpired, events.ClientExpiredPayload{
			ClientID: cl.id,
			Name:     cl.name,
			IdleSec:  int64(now.Sub(cl.lastSeen) / time.Second),
		})
	}
	return len(removed)
}

// StopAll stops every running relay and waits for their end paths to
// complete. Idempotent; subscribed to the shutdown event.
func (c *Coordinator) StopAll() {
	c.mu.Lock()
	var relays []*relay.Relay
	for _, g := range c.games.slots {
		if g != nil && g.relay != nil {
			relays = append(relays, g.relay)
		}
	}
	c.mu.Unlock()

	for _, r := range relays {
		r.Stop()
	}
	c.relayWG.Wait()

	if len(relays) > 0 {
		c.logger.Info().Int("relays", len(relays)).Msg("all relays stopped")
	}
}

// Status snapshots directory occupancy for monitors and health checks.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending, active := c.games.counts()
	return Status{
		Clients:        c.clients.count(),
		ClientCapacity: ClientCapacity,
		GamesPending:   pending,
		GamesActive:    active,
		GameCapacity:   len(c.games.slots),
		PortsReserved:  c.ports.reservedCount(),
		PortsTotal:     c.ports.size(),
	}
}

// GamesDetail snapshots every directory slot for the /games monitor view,
// folding in live relay state for active games.
func (c *Coordinator) GamesDetail() []GameDetail {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]GameDetail, 0, len(c.games.slots))
	for _, g := range c.games.slots {
		if g == nil {
			continue
		}
		d := GameDetail{
			ID:        g.id,
			Name:      g.name,
			Players:   len(g.members),
			Max:       g.maxPlayers,
			Active:    g.active,
			Transport: g.transport,
			CreatedAt: g.createdAt,
			Members:   g.memberNames(),
		}
		if g.active && g.relay != nil {
			d.Port = g.port
			d.RelayState = g.relay.State().String()
			d.PeersConnected = g.relay.PeersConnected()
			stats := g.relay.Stats()
			d.Stats = &stats
		}
		out = append(out, d)
	}
	return out
}

func (c *Coordinator) emit(t events.EventType, payload interface{}) {
	c.bus.Emit(c.baseCtx, events.Event{Type: t, Source: "lobby", Payload: payload})
}
