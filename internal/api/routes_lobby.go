package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ringleader-project/ringleader/internal/lobby"
	"github.com/ringleader-project/ringleader/internal/protocol"
)

// lobbyErrors are the failure kinds a game client can receive. The
// sentinel's text is the wire value.
var lobbyErrors = []error{
	lobby.ErrInvalidName,
	lobby.ErrServerFull,
	lobby.ErrBadClient,
	lobby.ErrMaxGames,
	lobby.ErrNotFound,
	lobby.ErrFull,
	lobby.ErrNoPorts,
}

// errorKind maps an error to its wire-protocol kind. Anything the
// protocol does not name collapses to "unknown".
func errorKind(err error) string {
	for _, known := range lobbyErrors {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "unknown"
}

// respondOK writes a success body. Protocol responses are always HTTP
// 200; the outcome lives in the "ok" field.
func respondOK(c *gin.Context, body gin.H) {
	out := gin.H{"ok": true}
	for k, v := range body {
		out[k] = v
	}
	c.JSON(http.StatusOK, out)
}

func respondError(c *gin.Context, err error) {
	c.JSON(http.StatusOK, gin.H{"ok": false, "error": errorKind(err)})
}

// handleHello registers a client and hands out its id.
func (s *Server) handleHello(c *gin.Context) {
	name := c.Query("name")

	id, err := s.coord.Hello(name)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, gin.H{"client_id": id, "name": name})
}

// handleList returns every directory slot currently holding a game.
func (s *Server) handleList(c *gin.Context) {
	games, err := s.coord.ListGames(c.Query("client_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, gin.H{"games": games})
}

// handleCreate opens a new pending game with the caller as its first
// member. An unparsable max_players falls back to the configured
// default inside the coordinator.
func (s *Server) handleCreate(c *gin.Context) {
	maxPlayers, err := strconv.Atoi(c.Query("max_players"))
	if err != nil {
		maxPlayers = 0
	}
	transport := protocol.ParseTransport(c.Query("transport"))

	gameID, err := s.coord.CreateGame(c.Query("client_id"), c.Query("name"), maxPlayers, transport)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, gin.H{
		"game_id":   gameID,
		"status":    "waiting",
		"transport": transport,
	})
}

func (s *Server) handleJoin(c *gin.Context) {
	if err := s.coord.JoinGame(c.Query("client_id"), c.Query("game_id")); err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, gin.H{"status": "waiting"})
}

func (s *Server) handleLeave(c *gin.Context) {
	if err := s.coord.LeaveGame(c.Query("client_id"), c.Query("game_id")); err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, gin.H{})
}

// handleWait is the poll loop of a joined client. Once its game
// activates, the response carries the relay endpoint; the token field
// is reserved and always empty.
func (s *Server) handleWait(c *gin.Context) {
	res, err := s.coord.Wait(c.Query("client_id"), c.Query("game_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if res.Start != nil {
		respondOK(c, gin.H{
			"cmd":       "start",
			"host":      res.Start.Host,
			"port":      res.Start.Port,
			"transport": res.Start.Transport,
			"token":     "",
		})
		return
	}

	respondOK(c, gin.H{
		"status":  "waiting",
		"players": res.Players,
		"max":     res.Max,
	})
}

// handlePing refreshes the client's inactivity clock.
func (s *Server) handlePing(c *gin.Context) {
	if err := s.coord.Ping(c.Query("client_id")); err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, gin.H{})
}
