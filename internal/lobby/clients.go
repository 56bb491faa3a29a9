package lobby

import (
	"time"

	"github.com/ringleader-project/ringleader/internal/protocol"
)

const (
	// ClientCapacity is the fixed number of client slots. Registration past
	// this point fails with server_full until the janitor reclaims idle slots.
	ClientCapacity = 64

	// clientInactivityWindow is how long a client may stay silent before the
	// janitor frees its slot. Any authenticated request counts as activity.
	clientInactivityWindow = 3600 * time.Second

	clientNameMaxLen = 8
	gameNameMaxLen   = 32
)

// startNotice is the pending-start slot on a client: written once at game
// activation and consumed by the next /wait poll.
type startNotice struct {
	host      string
	port      int
	transport protocol.Transport
}

// client is one registered lobby session.
type client struct {
	id           string
	name         string
	lastSeen     time.Time
	pendingStart *startNotice
}

// clientDirectory is a slotted table of registered clients. A nil entry is a
// free slot; lookups scan, which is fine at this capacity.
type clientDirectory struct {
	slots []*client
}

func newClientDirectory() *clientDirectory {
	return &clientDirectory{slots: make([]*client, ClientCapacity)}
}

// create registers a new client in the lowest free slot.
func (d *clientDirectory) create(name string, now time.Time) (*client, error) {
	for i, c := range d.slots {
		if c != nil {
			continue
		}
		nc := &client{id: d.freshID(), name: name, lastSeen: now}
		d.slots[i] = nc
		return nc, nil
	}
	return nil, ErrServerFull
}

func (d *clientDirectory) find(id string) *client {
	if id == "" {
		return nil
	}
	for _, c := range d.slots {
		if c != nil && c.id == id {
			return c
		}
	}
	return nil
}

// expire frees every slot whose client has been silent longer than the
// inactivity window and returns the removed clients.
func (d *clientDirectory) expire(now time.Time) []*client {
	var removed []*client
	for i, c := range d.slots {
		if c != nil && now.Sub(c.lastSeen) > clientInactivityWindow {
			removed = append(removed, c)
			d.slots[i] = nil
		}
	}
	return removed
}

func (d *clientDirectory) count() int {
	n := 0
	for _, c := range d.slots {
		if c != nil {
			n++
		}
	}
	return n
}

// freshID draws ids until one misses the directory. Collisions over a 36^8
// space are near impossible but cheap to rule out.
func (d *clientDirectory) freshID() string {
	for {
		id := randomID(clientIDLength)
		if d.find(id) == nil {
			return id
		}
	}
}

// validClientName reports whether a player name is 1 to 8 alphanumeric
// characters.
func validClientName(name string) bool {
	if len(name) == 0 || len(name) > clientNameMaxLen {
		return false
	}
	for i := 0; i < len(name); i++ {
		b := name[i]
		switch {
		case b >= '0' && b <= '9':
		case b >= 'A' && b <= 'Z':
		case b >= 'a' && b <= 'z':
		default:
			return false
		}
	}
	return true
}

// validGameName reports whether a game name is 1 to 32 characters.
func validGameName(name string) bool {
	return len(name) > 0 && len(name) <= gameNameMaxLen
}
