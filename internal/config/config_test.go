package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lobby.conf")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

const validConfig = `# lobby server configuration
host_name = lobby.example.net
lobby_port = 7000

game_port_min = 9000
game_port_max = 9015
max_games = 8
max_players_default = 4
join_timeout_sec = 120
drop_timeout_sec = 15
idle_timeout_sec = 300
udp_dup_enabled = 1
udp_dup_delay_ms = 25
`

func TestLoadValidFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "lobby.example.net", cfg.HostName)
	assert.Equal(t, 7000, cfg.LobbyPort)
	assert.Equal(t, 9000, cfg.GamePortMin)
	assert.Equal(t, 9015, cfg.GamePortMax)
	assert.Equal(t, 16, cfg.PortRangeSize())
	assert.Equal(t, 8, cfg.MaxGames)
	assert.Equal(t, 4, cfg.MaxPlayersDefault)
	assert.True(t, cfg.UDPDupEnabled)
	assert.Equal(t, 25*time.Millisecond, cfg.UDPDupDelay())
	assert.Equal(t, 120*time.Second, cfg.JoinTimeout())

	result := Validate(cfg)
	assert.True(t, result.IsValid())
	assert.Empty(t, result.Warnings)
}

func TestLoadInlineComments(t *testing.T) {
	cfg, err := Load(writeConfig(t, `host_name = lobby.example.net # advertised name
lobby_port = 7000 # keep in sync with the firewall
game_port_min = 9000# no space before the marker
game_port_max = 9015
# max_games = 31
   # indented comment
`))
	require.NoError(t, err)

	// The value ends at the '#', wherever it sits on the line.
	assert.Equal(t, "lobby.example.net", cfg.HostName)
	assert.Equal(t, 7000, cfg.LobbyPort)
	assert.Equal(t, 9000, cfg.GamePortMin)
	assert.Equal(t, 9015, cfg.GamePortMax)

	// A commented-out pair does not apply.
	assert.Equal(t, DefaultMaxGames, cfg.MaxGames)

	result := Validate(cfg)
	assert.True(t, result.IsValid())
	assert.Empty(t, result.Warnings)
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "host_name = h\nlobby_port = 7000\ngame_port_min = 9000\ngame_port_max = 9100\n"))
	require.NoError(t, err)

	assert.Equal(t, DefaultMaxGames, cfg.MaxGames)
	assert.Equal(t, DefaultMaxPlayers, cfg.MaxPlayersDefault)
	assert.Equal(t, DefaultJoinTimeoutSec, cfg.JoinTimeoutSec)
	assert.Equal(t, DefaultDropTimeoutSec, cfg.DropTimeoutSec)
	assert.False(t, cfg.UDPDupEnabled)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)

	assert.True(t, Validate(cfg).IsValid())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.conf"))
	assert.Error(t, err)
}

func TestLoadWarnsOnUnknownOrMalformed(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig+"mystery_key = 3\nmax_games 9\nmax_players_default = lots\n"))
	require.NoError(t, err)

	// Bad lines never clobber earlier values.
	assert.Equal(t, 8, cfg.MaxGames)
	assert.Equal(t, 4, cfg.MaxPlayersDefault)

	result := Validate(cfg)
	assert.True(t, result.IsValid())
	assert.Len(t, result.Warnings, 3)
}

func TestValidateRanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty host", func(c *Config) { c.HostName = " " }, "host_name"},
		{"lobby port zero", func(c *Config) { c.LobbyPort = 0 }, "lobby_port"},
		{"port min above max", func(c *Config) { c.GamePortMin = 9100; c.GamePortMax = 9000 }, "game_port_min"},
		{"max_games above limit", func(c *Config) { c.MaxGames = MaxGamesLimit + 1 }, "max_games"},
		{"max_players above limit", func(c *Config) { c.MaxPlayersDefault = MaxPlayersLimit + 1 }, "max_players_default"},
		{"join timeout zero", func(c *Config) { c.JoinTimeoutSec = 0 }, "join_timeout_sec"},
		{"drop timeout negative", func(c *Config) { c.DropTimeoutSec = -1 }, "drop_timeout_sec"},
		{"idle timeout zero", func(c *Config) { c.IdleTimeoutSec = 0 }, "idle_timeout_sec"},
		{"dup delay above limit", func(c *Config) { c.UDPDupDelayMS = 1001 }, "udp_dup_delay_ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, validConfig))
			require.NoError(t, err)
			tt.mutate(cfg)

			result := Validate(cfg)
			require.False(t, result.IsValid())
			assert.Equal(t, tt.field, result.Errors[0].Field)
		})
	}
}

func TestValidateBoundaryValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	cfg.MaxGames = MaxGamesLimit
	cfg.MaxPlayersDefault = MaxPlayersLimit
	cfg.UDPDupDelayMS = 1000
	cfg.GamePortMin = 9000
	cfg.GamePortMax = 9100

	assert.True(t, Validate(cfg).IsValid())
}

func TestValidateWarnsOnSmallPortRange(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)
	cfg.GamePortMax = cfg.GamePortMin // one port, eight games

	result := Validate(cfg)
	assert.True(t, result.IsValid())
	require.NotEmpty(t, result.Warnings)
	assert.Equal(t, "max_games", result.Warnings[0].Field)
}
