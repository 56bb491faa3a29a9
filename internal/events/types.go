// Package events defines the event types flowing through the lobby's bus.
package events

import (
	"time"

	"github.com/ringleader-project/ringleader/internal/protocol"
)

// EventType identifies a class of event on the bus.
type EventType string

const (
	// EventClientRegistered fires when a client claims a directory slot.
	EventClientRegistered EventType = "client_registered"
	// EventClientExpired fires when the janitor reclaims an idle client.
	EventClientExpired EventType = "client_expired"
	// EventGameCreated fires when a pending game is opened.
	EventGameCreated EventType = "game_created"
	// EventGameActivated fires when a game fills and its relay is spawned.
	EventGameActivated EventType = "game_activated"
	// EventGameExpired fires when a pending game outlives its join window.
	EventGameExpired EventType = "game_expired"
	// EventGameEnded fires exactly once when an active game's relay stops.
	EventGameEnded EventType = "game_ended"
	// EventRelayReady fires when every expected peer has registered.
	EventRelayReady EventType = "relay_ready"
	// EventRelayStats carries a relay's periodic traffic snapshot.
	EventRelayStats EventType = "relay_stats"
	// EventHealthAlert fires when a health check leaves the OK state.
	EventHealthAlert EventType = "health_alert"
	// EventShutdown fires once when the server begins an orderly stop.
	EventShutdown EventType = "shutdown"
)

// Event is the envelope delivered to subscribers.
type Event struct {
	Type    EventType
	Source  string
	Payload interface{}
}

// ClientRegisteredPayload accompanies EventClientRegistered.
type ClientRegisteredPayload struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
}

// ClientExpiredPayload accompanies EventClientExpired.
type ClientExpiredPayload struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	IdleSec  int64  `json:"idle_sec"`
}

// GameCreatedPayload accompanies EventGameCreated.
type GameCreatedPayload struct {
	GameID     string `json:"game_id"`
	Name       string `json:"name"`
	CreatorID  string `json:"creator_id"`
	MaxPlayers int    `json:"max_players"`
	Transport  string `json:"transport"`
}

// GameActivatedPayload accompanies EventGameActivated.
type GameActivatedPayload struct {
	GameID    string   `json:"game_id"`
	Name      string   `json:"name"`
	Port      int      `json:"port"`
	Transport string   `json:"transport"`
	Players   []string `json:"players"`
}

// GameExpiredPayload accompanies EventGameExpired.
type GameExpiredPayload struct {
	GameID  string `json:"game_id"`
	Name    string `json:"name"`
	Players int    `json:"players"`
}

// GameEndedPayload accompanies EventGameEnded. Stats holds the relay's
// final counters; the history recorder persists the whole payload.
type GameEndedPayload struct {
	GameID     string                   `json:"game_id"`
	Name       string                   `json:"name"`
	Port       int                      `json:"port"`
	Transport  string                   `json:"transport"`
	Reason     string                   `json:"reason"`
	Players    []string                 `json:"players"`
	MaxPlayers int                      `json:"max_players"`
	CreatedAt  time.Time                `json:"created_at"`
	StartedAt  time.Time                `json:"started_at"`
	EndedAt    time.Time                `json:"ended_at"`
	Stats      protocol.TrafficCounters `json:"stats"`
}

// RelayReadyPayload accompanies EventRelayReady.
type RelayReadyPayload struct {
	GameID  string `json:"game_id"`
	Port    int    `json:"port"`
	Players int    `json:"players"`
}

// RelayStatsPayload accompanies EventRelayStats.
type RelayStatsPayload struct {
	GameID string                   `json:"game_id"`
	Port   int                      `json:"port"`
	Stats  protocol.TrafficCounters `json:"stats"`
}

// HealthAlertPayload accompanies EventHealthAlert.
type HealthAlertPayload struct {
	Check   string `json:"check"`
	Level   string `json:"level"`
	Message string `json:"message"`
}
