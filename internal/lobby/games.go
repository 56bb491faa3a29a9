package lobby

import (
	"time"

	"github.com/ringleader-project/ringleader/internal/protocol"
	"github.com/ringleader-project/ringleader/internal/relay"
)

// member is one entry in a game's membership list. The token travels back to
// the client in start notifications; relays accept any peer on the game port,
// so tokens are carried but never checked.
type member struct {
	clientID string
	name     string
	token    string
}

// game is one slot in the game directory. A game is pending until activation
// reserves a port and spawns its relay; from then on the relay owns the
// traffic and the directory entry only mirrors its state for listings.
type game struct {
	id         string
	name       string
	maxPlayers int
	transport  protocol.Transport
	createdAt  time.Time
	startedAt  time.Time
	members    []member
	active     bool
	ended      bool
	port       int
	relay      *relay.Relay
}

func (g *game) isMember(clientID string) bool {
	for _, m := range g.members {
		if m.clientID == clientID {
			return true
		}
	}
	return false
}

func (g *game) memberNames() []string {
	names := make([]string, len(g.members))
	for i, m := range g.members {
		names[i] = m.name
	}
	return names
}

func (g *game) removeMember(clientID string) bool {
	for i, m := range g.members {
		if m.clientID == clientID {
			g.members = append(g.members[:i], g.members[i+1:]...)
			return true
		}
	}
	return false
}

// gameDirectory is a slotted table of pending and active games. A nil entry
// is a free slot. Ended games are cleared immediately, so a slot is either
// free or holds a live game.
type gameDirectory struct {
	slots []*game
}

func newGameDirectory(capacity int) *gameDirectory {
	return &gameDirectory{slots: make([]*game, capacity)}
}

// create places a new pending game in the lowest free slot with the creator
// as its first member.
func (d *gameDirectory) create(creator *client, name string, maxPlayers int, transport protocol.Transport, now time.Time) (*game, error) {
	for i, g := range d.slots {
		if g != nil {
			continue
		}
		ng := &game{
			id:         d.freshID(),
			name:       name,
			maxPlayers: maxPlayers,
			transport:  transport,
			createdAt:  now,
			members: []member{{
				clientID: creator.id,
				name:     creator.name,
				token:    randomID(tokenLength),
			}},
		}
		d.slots[i] = ng
		return ng, nil
	}
	return nil, ErrMaxGames
}

func (d *gameDirectory) find(id string) *game {
	if id == "" {
		return nil
	}
	for _, g := range d.slots {
		if g != nil && g.id == id {
			return g
		}
	}
	return nil
}

// join appends the client to a pending game's membership. Joining a game the
// client is already in succeeds without change. Callers screen out active
// games, so join only ever sees pending ones.
func (d *gameDirectory) join(g *game, c *client) (already bool, err error) {
	if g.isMember(c.id) {
		return true, nil
	}
	if len(g.members) >= g.maxPlayers {
		return false, ErrFull
	}
	g.members = append(g.members, member{
		clientID: c.id,
		name:     c.name,
		token:    randomID(tokenLength),
	})
	return false, nil
}

// removeEverywhereExcept drops a client from the membership of every pending
// game other than keep, returning the games emptied by the removal.
func (d *gameDirectory) removeEverywhereExcept(clientID string, keep *game) []*game {
	var emptied []*game
	for _, g := range d.slots {
		if g == nil || g == keep || g.active {
			continue
		}
		if g.removeMember(clientID) && len(g.members) == 0 {
			emptied = append(emptied, g)
		}
	}
	return emptied
}

// free clears the slot holding g. The pointer stays valid for callers that
// captured it, but lookups no longer see the game.
func (d *gameDirectory) free(g *game) {
	for i, cur := range d.slots {
		if cur == g {
			d.slots[i] = nil
			return
		}
	}
}

// expirePending returns every pending game older than the join window,
// clearing their slots. Active games never join-expire; the relay's own
// deadlines end those.
func (d *gameDirectory) expirePending(now time.Time, window time.Duration) []*game {
	var expired []*game
	for i, g := range d.slots {
		if g != nil && !g.active && now.Sub(g.createdAt) > window {
			expired = append(expired, g)
			d.slots[i] = nil
		}
	}
	return expired
}

func (d *gameDirectory) counts() (pending, active int) {
	for _, g := range d.slots {
		switch {
		case g == nil:
		case g.active:
			active++
		default:
			pending++
		}
	}
	return pending, active
}

func (d *gameDirectory) freshID() string {
	for {
		id := randomID(gameIDLength)
		if d.find(id) == nil {
			return id
		}
	}
}
