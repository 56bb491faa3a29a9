package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ringleader-project/ringleader/internal/events"
)

// History archives every ended game. The archive is write-only from
// the lobby's point of view: rows feed the /history endpoint and the
// history CLI command, never lobby state.
type History struct {
	db *sql.DB
}

// GameRecord is one archived game as served by /history.
type GameRecord struct {
	ID         int64     `json:"id"`
	GameID     string    `json:"game_id"`
	Name       string    `json:"name"`
	Transport  string    `json:"transport"`
	Port       int       `json:"port"`
	MaxPlayers int       `json:"max_players"`
	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	Reason     string    `json:"reason"`
	Rx         uint64    `json:"rx"`
	Tx         uint64    `json:"tx"`
	DupTx      uint64    `json:"dup_tx"`
	Register   uint64    `json:"register"`
	Dropped    uint64    `json:"drop"`
	Unknown    uint64    `json:"unknown"`
}

// NewHistory opens or creates the archive at dbPath.
func NewHistory(dbPath string) (*History, error) {
	sqlDB, err := openArchive(dbPath)
	if err != nil {
		return nil, err
	}

	h := &History{db: sqlDB}
	if err := h.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}

	return h, nil
}

// migrate creates the archive schema. The drop counter is stored in a
// column named dropped because DROP is an SQL keyword.
func (h *History) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS games_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			game_id TEXT NOT NULL,
			name TEXT NOT NULL,
			transport TEXT NOT NULL,
			port INTEGER NOT NULL,
			max_players INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL,
			started_at TIMESTAMP NOT NULL,
			ended_at TIMESTAMP NOT NULL,
			reason TEXT NOT NULL,
			rx INTEGER NOT NULL DEFAULT 0,
			tx INTEGER NOT NULL DEFAULT 0,
			dup_tx INTEGER NOT NULL DEFAULT 0,
			register INTEGER NOT NULL DEFAULT 0,
			dropped INTEGER NOT NULL DEFAULT 0,
			unknown INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_games_history_ended_at ON games_history(ended_at);
	`

	if _, err := h.db.Exec(schema); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	log.Debug().Msg("history schema migrated")
	return nil
}

// Attach subscribes the recorder to game.ended events on the bus.
func (h *History) Attach(bus *events.EventBus) {
	bus.Subscribe(events.EventGameEnded, "history", h.onGameEnded)
}

func (h *History) onGameEnded(_ context.Context, ev events.Event) error {
	p, ok := ev.Payload.(events.GameEndedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", ev.Payload)
	}
	return h.Record(p)
}

// Record inserts one archive row.
func (h *History) Record(p events.GameEndedPayload) error {
	_, err := h.db.Exec(`
		INSERT INTO games_history (
			game_id, name, transport, port, max_players,
			created_at, started_at, ended_at, reason,
			rx, tx, dup_tx, register, dropped, unknown
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.GameID, p.Name, p.Transport, p.Port, p.MaxPlayers,
		p.CreatedAt, p.StartedAt, p.EndedAt, p.Reason,
		p.Stats.Rx, p.Stats.Tx, p.Stats.DupTx,
		p.Stats.Register, p.Stats.Drop, p.Stats.Unknown)
	if err != nil {
		return fmt.Errorf("failed to archive game %s: %w", p.GameID, err)
	}

	log.Debug().
		Str("game", p.GameID).
		Str("reason", p.Reason).
		Msg("game archived")
	return nil
}

// RecentGames returns up to n archived games, newest first.
func (h *History) RecentGames(n int) ([]GameRecord, error) {
	rows, err := h.db.Query(`
		SELECT id, game_id, name, transport, port, max_players,
		       created_at, started_at, ended_at, reason,
		       rx, tx, dup_tx, register, dropped, unknown
		FROM games_history
		ORDER BY id DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []GameRecord
	for rows.Next() {
		var r GameRecord
		if err := rows.Scan(
			&r.ID, &r.GameID, &r.Name, &r.Transport, &r.Port, &r.MaxPlayers,
			&r.CreatedAt, &r.StartedAt, &r.EndedAt, &r.Reason,
			&r.Rx, &r.Tx, &r.DupTx, &r.Register, &r.Dropped, &r.Unknown,
		); err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// Count returns the number of archived games.
func (h *History) Count() (int, error) {
	var n int
	err := h.db.QueryRow("SELECT COUNT(*) FROM games_history").Scan(&n)
	return n, err
}

// Close closes the archive.
func (h *History) Close() error {
	return h.db.Close()
}
