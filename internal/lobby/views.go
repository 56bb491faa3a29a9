package lobby

import (
	"time"

	"github.com/ringleader-project/ringleader/internal/protocol"
)

// GameSummary is one element of a /list response.
type GameSummary struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Players   int                `json:"players"`
	Max       int                `json:"max"`
	Active    bool               `json:"active"`
	Transport protocol.Transport `json:"transport"`
}

// Status is the directory-wide snapshot behind /status and the health checks.
type Status struct {
	Clients        int `json:"clients"`
	ClientCapacity int `json:"client_capacity"`
	GamesPending   int `json:"games_pending"`
	GamesActive    int `json:"games_active"`
	GameCapacity   int `json:"game_capacity"`
	PortsReserved  int `json:"ports_reserved"`
	PortsTotal     int `json:"ports_total"`
}

// GameDetail is the operator view of one directory slot, served by /games.
// Relay fields are only present on active games.
type GameDetail struct {
	ID             string                    `json:"id"`
	Name           string                    `json:"name"`
	Players        int                       `json:"players"`
	Max            int                       `json:"max"`
	Active         bool                      `json:"active"`
	Transport      protocol.Transport        `json:"transport"`
	CreatedAt      time.Time                 `json:"created_at"`
	Members        []string                  `json:"members"`
	Port           int                       `json:"port,omitempty"`
	RelayState     string                    `json:"relay_state,omitempty"`
	PeersConnected int                       `json:"peers_connected,omitempty"`
	Stats          *protocol.TrafficCounters `json:"stats,omitempty"`
}

// StartInfo tells a waiting client where its game relay listens.
type StartInfo struct {
	Host      string
	Port      int
	Transport protocol.Transport
}

// WaitResult is the outcome of one /wait poll. A non-nil Start means the
// game began and the client should connect; otherwise the game is still
// filling and Players/Max describe its occupancy.
type WaitResult struct {
	Start   *StartInfo
	Players int
	Max     int
}
