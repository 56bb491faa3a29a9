// Package lobby implements the game directory: client registration, pending
// game management, port reservation and game activation. All state lives
// behind a single coordinator mutex; request handlers and the janitor call
// into the coordinator and never touch the directories directly.
package lobby

import "errors"

// Sentinel errors for every failure a lobby endpoint can report. The error
// text doubles as the machine-readable kind in JSON responses, so these
// strings are part of the wire contract.
var (
	ErrInvalidName = errors.New("invalid_name")
	ErrServerFull  = errors.New("server_full")
	ErrBadClient   = errors.New("bad_client")
	ErrMaxGames    = errors.New("max_games")
	ErrNotFound    = errors.New("not_found")
	ErrFull        = errors.New("full")
	ErrNoPorts     = errors.New("no_ports")
)
