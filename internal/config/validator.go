package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationResult holds the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Validate checks the loaded configuration against the documented ranges.
// Parse-time warnings (unknown keys, bad integers) are carried over.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}
	result.Warnings = append(result.Warnings, cfg.parseWarnings...)

	if strings.TrimSpace(cfg.HostName) == "" {
		result.AddError("host_name", "host name is required")
	} else if len(cfg.HostName) > 255 {
		result.AddError("host_name", "host name longer than 255 characters")
	}

	validatePort(cfg.LobbyPort, "lobby_port", result)
	validatePort(cfg.GamePortMin, "game_port_min", result)
	validatePort(cfg.GamePortMax, "game_port_max", result)

	if cfg.GamePortMin > cfg.GamePortMax {
		result.AddError("game_port_min", "game_port_min must not exceed game_port_max")
	} else if cfg.LobbyPort >= cfg.GamePortMin && cfg.LobbyPort <= cfg.GamePortMax {
		result.AddWarning("lobby_port",
			fmt.Sprintf("lobby port %d lies inside the relay port range %d-%d",
				cfg.LobbyPort, cfg.GamePortMin, cfg.GamePortMax))
	}

	if cfg.MaxGames < 1 || cfg.MaxGames > MaxGamesLimit {
		result.AddError("max_games",
			fmt.Sprintf("must be between 1 and %d, got %d", MaxGamesLimit, cfg.MaxGames))
	} else if cfg.GamePortMin <= cfg.GamePortMax && cfg.PortRangeSize() < cfg.MaxGames {
		result.AddWarning("max_games",
			fmt.Sprintf("only %d relay ports for up to %d games; activations beyond the range will fail",
				cfg.PortRangeSize(), cfg.MaxGames))
	}

	if cfg.MaxPlayersDefault < 1 || cfg.MaxPlayersDefault > MaxPlayersLimit {
		result.AddError("max_players_default",
			fmt.Sprintf("must be between 1 and %d, got %d", MaxPlayersLimit, cfg.MaxPlayersDefault))
	}

	if cfg.JoinTimeoutSec <= 0 {
		result.AddError("join_timeout_sec", "must be positive")
	}
	if cfg.DropTimeoutSec <= 0 {
		result.AddError("drop_timeout_sec", "must be positive")
	}
	if cfg.IdleTimeoutSec <= 0 {
		result.AddError("idle_timeout_sec", "must be positive")
	}

	if cfg.UDPDupDelayMS < 0 || cfg.UDPDupDelayMS > 1000 {
		result.AddError("udp_dup_delay_ms",
			fmt.Sprintf("must be between 0 and 1000, got %d", cfg.UDPDupDelayMS))
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		result.AddWarning("log_level",
			fmt.Sprintf("unrecognized level %q, falling back to info", cfg.LogLevel))
	}

	return result
}

func validatePort(port int, field string, result *ValidationResult) {
	if port < 1 || port > 65535 {
		result.AddError(field, fmt.Sprintf("invalid port number: %d (must be 1-65535)", port))
		return
	}
	if port < 1024 {
		result.AddWarning(field,
			fmt.Sprintf("port %d is a privileged port, may require elevated permissions", port))
	}
}
