// Package scheduler runs the lobby's background maintenance tasks: the
// once-per-second janitor that expires stale pending games and
// forgotten clients, and a periodic occupancy report.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ringleader-project/ringleader/internal/lobby"
)

const (
	// janitorInterval is the sweep cadence for both game and client expiry.
	janitorInterval = 1 * time.Second
	// occupancyInterval is how often the directory occupancy is logged.
	occupancyInterval = 1 * time.Hour
)

// Scheduler manages periodic background tasks.
type Scheduler struct {
	coord *lobby.Coordinator
}

// NewScheduler creates a new task scheduler.
func NewScheduler(coord *lobby.Coordinator) *Scheduler {
	return &Scheduler{coord: coord}
}

// Start begins running all scheduled tasks and blocks until ctx is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	log.Info().Msg("scheduler started")

	go s.runJanitorLoop(ctx)
	go s.runOccupancyLoop(ctx)

	<-ctx.Done()
	log.Info().Msg("scheduler stopped")
}

// runJanitorLoop expires pending games past their join window and
// clients past the inactivity window.
func (s *Scheduler) runJanitorLoop(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			expiredGames := s.coord.ExpireGames(now)
			expiredClients := s.coord.ExpireClients(now)

			if expiredGames > 0 || expiredClients > 0 {
				log.Debug().
					Int("games", expiredGames).
					Int("clients", expiredClients).
					Msg("janitor sweep")
			}
		}
	}
}

// runOccupancyLoop logs a directory snapshot for capacity planning.
func (s *Scheduler) runOccupancyLoop(ctx context.Context) {
	ticker := time.NewTicker(occupancyInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := s.coord.Status()
			log.Info().
				Int("clients", st.Clients).
				Int("games_pending", st.GamesPending).
				Int("games_active", st.GamesActive).
				Int("ports_reserved", st.PortsReserved).
				Int("ports_total", st.PortsTotal).
				Msg("directory occupancy")
		}
	}
}
