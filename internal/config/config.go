// Package config handles configuration loading and validation for the
// ringleader lobby server.
//
// The configuration file is plain UTF-8 text with one "key = value" pair per
// line; a '#' anywhere starts a comment that runs to the end of the line.
// Configuration is read once at startup and is immutable afterwards, so
// reads need no locking.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Hard limits and defaults. Keys absent from the file keep their default;
// host_name, lobby_port and the game port range have no usable default and
// must be present.
const (
	MaxGamesLimit   = 32
	MaxPlayersLimit = 16

	DefaultMaxGames       = 5
	DefaultMaxPlayers     = 10
	DefaultJoinTimeoutSec = 600
	DefaultDropTimeoutSec = 15
	DefaultIdleTimeoutSec = 120
	DefaultUDPDupDelayMS  = 30

	DefaultLogLevel        = "info"
	DefaultMQTTTopicPrefix = "ringleader"
)

// Config is the root configuration for the lobby server.
type Config struct {
	path string

	// Lobby and relay settings.
	HostName          string // advertised to clients in start notifications
	LobbyPort         int
	GamePortMin       int
	GamePortMax       int
	MaxGames          int
	MaxPlayersDefault int
	JoinTimeoutSec    int
	DropTimeoutSec    int
	IdleTimeoutSec    int
	UDPDupEnabled     bool
	UDPDupDelayMS     int

	// Operations settings, all optional. Empty broker/history paths leave
	// telemetry and the game history archive disabled.
	LogLevel        string
	LogFile         string
	MQTTBroker      string
	MQTTTopicPrefix string
	HistoryDB       string

	// Collected while parsing; surfaced by Validate as warnings.
	parseWarnings []ValidationError
}

// Default returns a configuration with defaults applied. The returned value
// is not valid by itself: host_name, lobby_port, and the game port range
// must come from the file.
func Default() *Config {
	return &Config{
		MaxGames:          DefaultMaxGames,
		MaxPlayersDefault: DefaultMaxPlayers,
		JoinTimeoutSec:    DefaultJoinTimeoutSec,
		DropTimeoutSec:    DefaultDropTimeoutSec,
		IdleTimeoutSec:    DefaultIdleTimeoutSec,
		UDPDupDelayMS:     DefaultUDPDupDelayMS,
		LogLevel:          DefaultLogLevel,
		MQTTTopicPrefix:   DefaultMQTTTopicPrefix,
	}
}

// Load reads the configuration file at path, overlaying it onto defaults.
// A missing or unreadable file is an error; the caller exits with status 1.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Default()
	cfg.path = path

	for lineNo, raw := range strings.Split(string(data), "\n") {
		line := raw
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			cfg.warn(fmt.Sprintf("line %d", lineNo+1), "not a key = value pair, ignored")
			continue
		}

		cfg.apply(strings.TrimSpace(key), strings.TrimSpace(value), lineNo+1)
	}

	return cfg, nil
}

// apply assigns one key/value pair. Unknown keys and unparsable values keep
// the previous value and are reported as warnings, never fatal.
func (c *Config) apply(key, value string, lineNo int) {
	switch key {
	case "host_name":
		c.HostName = value
	case "lobby_port":
		c.setInt(&c.LobbyPort, key, value)
	case "game_port_min":
		c.setInt(&c.GamePortMin, key, value)
	case "game_port_max":
		c.setInt(&c.GamePortMax, key, value)
	case "max_games":
		c.setInt(&c.MaxGames, key, value)
	case "max_players_default":
		c.setInt(&c.MaxPlayersDefault, key, value)
	case "join_timeout_sec":
		c.setInt(&c.JoinTimeoutSec, key, value)
	case "drop_timeout_sec":
		c.setInt(&c.DropTimeoutSec, key, value)
	case "idle_timeout_sec":
		c.setInt(&c.IdleTimeoutSec, key, value)
	case "udp_dup_enabled":
		switch value {
		case "0":
			c.UDPDupEnabled = false
		case "1":
			c.UDPDupEnabled = true
		default:
			c.warn(key, fmt.Sprintf("expected 0 or 1, got %q", value))
		}
	case "udp_dup_delay_ms":
		c.setInt(&c.UDPDupDelayMS, key, value)
	case "log_level":
		c.LogLevel = value
	case "log_file":
		c.LogFile = value
	case "mqtt_broker":
		c.MQTTBroker = value
	case "mqtt_topic_prefix":
		c.MQTTTopicPrefix = value
	case "history_db":
		c.HistoryDB = value
	default:
		c.warn(key, fmt.Sprintf("unknown key on line %d, ignored", lineNo))
	}
}

func (c *Config) setInt(dst *int, key, value string) {
	n, err := strconv.Atoi(value)
	if err != nil {
		c.warn(key, fmt.Sprintf("not an integer: %q", value))
		return
	}
	*dst = n
}

func (c *Config) warn(field, message string) {
	c.parseWarnings = append(c.parseWarnings, ValidationError{Field: field, Message: message})
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}

// PortRangeSize returns the number of relay ports in the configured range.
func (c *Config) PortRangeSize() int {
	return c.GamePortMax - c.GamePortMin + 1
}

// JoinTimeout returns join_timeout_sec as a duration.
func (c *Config) JoinTimeout() time.Duration {
	return time.Duration(c.JoinTimeoutSec) * time.Second
}

// DropTimeout returns drop_timeout_sec as a duration.
func (c *Config) DropTimeout() time.Duration {
	return time.Duration(c.DropTimeoutSec) * time.Second
}

// IdleTimeout returns idle_timeout_sec as a duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSec) * time.Second
}

// UDPDupDelay returns udp_dup_delay_ms as a duration.
func (c *Config) UDPDupDelay() time.Duration {
	return time.Duration(c.UDPDupDelayMS) * time.Millisecond
}
