// Package relay implements the per-game packet forwarder. Each active game
// owns one relay bound to its reserved port: peers claim ring slots with a
// REGISTER handshake, and once every slot is taken each payload from slot i
// is forwarded unchanged to slot (i+1) mod N.
//
// A relay is internally single-threaded: one loop owns the sockets, the slot
// ring and the duplicate queue, waking at a short tick to check deadlines.
// Counters and state are mirrored behind a mutex so monitors can snapshot
// them without touching the loop.
package relay

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ringleader-project/ringleader/internal/protocol"
	"github.com/ringleader-project/ringleader/internal/util"
)

const (
	// tickInterval bounds how long the loop sleeps between deadline checks
	// and duplicate-queue drains.
	tickInterval = 15 * time.Millisecond

	// diagInterval is how often the relay logs its traffic counters.
	diagInterval = 10 * time.Second

	// handshakeTimeout caps how long a TCP connection may sit silent before
	// sending its REGISTER payload.
	handshakeTimeout = 30 * time.Second

	// writeTimeout bounds a single TCP forward so one stalled peer cannot
	// wedge the loop.
	writeTimeout = 5 * time.Second

	// bufferSize is the read buffer for both transports. Game payloads are
	// tiny; anything larger than this is not a game packet.
	bufferSize = 2048
)

// End reasons reported through OnEnd and recorded in game history.
const (
	reasonShutdown    = "shutdown"
	reasonBindFailed  = "bind_failed"
	reasonDropTimeout = "drop_timeout"
	reasonIdleTimeout = "idle_timeout"
	reasonSocketError = "socket_error"
)

// State is a relay's lifecycle phase.
type State int

const (
	StateInitializing State = iota
	StateWaitingForPeers
	StateReady
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateWaitingForPeers:
		return "waiting_for_peers"
	case StateReady:
		return "ready"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Config carries everything a relay needs from the game that spawned it.
// The callbacks run on relay goroutines: OnEnd fires exactly once when the
// relay stops, OnReady once when every slot first fills, OnStats on each
// diagnostics tick.
type Config struct {
	GameID    string
	GameName  string
	Port      int
	Transport protocol.Transport
	Slots     int

	// DropTimeout ends the game when peers are missing for too long; it is
	// armed at startup and after a disconnect, and cleared at readiness.
	// IdleTimeout ends the game when no peer has sent anything for too long.
	DropTimeout time.Duration
	IdleTimeout time.Duration

	// DupEnabled turns on delayed duplicate emission for UDP forwards, a
	// loss-mitigation knob for hostile networks.
	DupEnabled bool
	DupDelay   time.Duration

	OnEnd   func(reason string, stats protocol.TrafficCounters)
	OnReady func(players int)
	OnStats func(stats protocol.TrafficCounters)
}

// Relay forwards packets between the registered peers of one game.
type Relay struct {
	cfg    Config
	logger zerolog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	endOnce  sync.Once

	startedAt time.Time

	mu             sync.Mutex
	state          State
	slots          []peerSlot
	counters       protocol.TrafficCounters
	dropDeadline   time.Time // zero means unarmed
	lastActivity   time.Time
	readyAnnounced bool

	// Loop-owned, no locking: delayed duplicate sends (UDP only).
	dupq dupQueue
}

// New prepares a relay. Nothing is bound until Run.
func New(cfg Config) *Relay {
	return &Relay{
		cfg: cfg,
		logger: util.ComponentLogger("relay").With().
			Str("game", cfg.GameID).
			Int("port", cfg.Port).
			Logger(),
		stopCh: make(chan struct{}),
		state:  StateInitializing,
		slots:  make([]peerSlot, cfg.Slots),
	}
}

// Run binds the game port and relays traffic until a deadline fires, the
// socket fails, ctx is cancelled or Stop is called. It blocks; callers start
// it on its own goroutine. OnEnd is always invoked exactly once, including
// on setup failure.
func (r *Relay) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-r.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	r.startedAt = time.Now()

	var reason string
	if r.cfg.Transport == protocol.TransportUDP {
		reason = r.runUDP(ctx)
	} else {
		reason = r.runTCP(ctx)
	}
	r.finish(reason)
}

// Stop asks the relay to end with reason "shutdown". Safe to call at any
// time and from any goroutine, including before Run.
func (r *Relay) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// Stats returns a snapshot of the relay's traffic counters with the
// per-slot sequence counters folded in.
func (r *Relay) Stats() protocol.TrafficCounters {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statsLocked()
}

func (r *Relay) statsLocked() protocol.TrafficCounters {
	s := r.counters
	for i := range r.slots {
		s.Seq.Add(r.slots[i].seqStats)
	}
	return s
}

// State returns the current lifecycle phase.
func (r *Relay) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// PeersConnected returns how many ring slots are occupied.
func (r *Relay) PeersConnected() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return connectedCount(r.slots)
}

// armStart moves the relay into WaitingForPeers right after a successful
// bind, priming the drop deadline and the idle clock.
func (r *Relay) armStart(now time.Time) {
	r.mu.Lock()
	r.state = StateWaitingForPeers
	r.lastActivity = now
	r.dropDeadline = now.Add(r.cfg.DropTimeout)
	r.mu.Unlock()

	r.logger.Info().
		Str("transport", r.cfg.Transport.String()).
		Int("slots", len(r.slots)).
		Msg("relay waiting for peers")
}

func (r *Relay) noteActivity() {
	r.mu.Lock()
	r.lastActivity = time.Now()
	r.mu.Unlock()
}

// reevaluateReadyLocked recomputes readiness after a slot change. Reaching
// readiness clears the drop deadline; losing it re-arms the deadline only
// when none is pending, so a flapping peer cannot push the cutoff forever.
// Callers hold mu.
func (r *Relay) reevaluateReadyLocked(now time.Time) (becameReady bool) {
	ready := connectedCount(r.slots) == len(r.slots)
	switch {
	case ready && r.state != StateReady:
		r.state = StateReady
		r.dropDeadline = time.Time{}
		becameReady = true
	case !ready && r.state == StateReady:
		r.state = StateWaitingForPeers
		if r.dropDeadline.IsZero() {
			r.dropDeadline = now.Add(r.cfg.DropTimeout)
		}
	}
	return becameReady
}

// announceReady logs every readiness attainment but fires OnReady only for
// the first one.
func (r *Relay) announceReady(players int) {
	r.logger.Info().Int("players", players).Msg("all peers registered, relaying")

	r.mu.Lock()
	first := !r.readyAnnounced
	r.readyAnnounced = true
	r.mu.Unlock()

	if first && r.cfg.OnReady != nil {
		r.cfg.OnReady(players)
	}
}

// checkDeadlines returns a non-empty end reason when the drop deadline has
// passed or the game has been idle too long.
func (r *Relay) checkDeadlines(now time.Time) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.dropDeadline.IsZero() && now.After(r.dropDeadline) {
		return reasonDropTimeout
	}
	if r.cfg.IdleTimeout > 0 && now.Sub(r.lastActivity) > r.cfg.IdleTimeout {
		return reasonIdleTimeout
	}
	return ""
}

// publishDiag logs the counter snapshot and hands it to OnStats.
func (r *Relay) publishDiag() {
	stats := r.Stats()
	r.logDiag(stats)
	if r.cfg.OnStats != nil {
		r.cfg.OnStats(stats)
	}
}

func (r *Relay) logDiag(s protocol.TrafficCounters) {
	r.logger.Info().
		Uint64("rx", s.Rx).
		Uint64("tx", s.Tx).
		Uint64("dup_tx", s.DupTx).
		Uint64("register", s.Register).
		Uint64("drop", s.Drop).
		Uint64("unknown", s.Unknown).
		Uint64("seq_in_order", s.Seq.InOrder).
		Uint64("seq_ahead", s.Seq.Ahead).
		Uint64("seq_behind", s.Seq.Behind).
		Uint64("seq_dup", s.Seq.Dup).
		Uint64("seq_short", s.Seq.Short).
		Uint64("gap_total", s.Seq.GapTotal).
		Uint64("gap_max", s.Seq.GapMax).
		Msg("relay traffic")
}

// finish runs the end-of-life path exactly once: final diagnostics, state
// flip, then the OnEnd callback with the closing stats.
func (r *Relay) finish(reason string) {
	r.endOnce.Do(func() {
		r.mu.Lock()
		r.state = StateEnded
		stats := r.statsLocked()
		r.mu.Unlock()

		r.logDiag(stats)
		r.logger.Info().
			Str("reason", reason).
			Dur("lifetime", time.Since(r.startedAt)).
			Msg("relay ended")

		if r.cfg.OnEnd != nil {
			r.cfg.OnEnd(reason, stats)
		}
	})
}
