package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ringleader-project/ringleader/internal/util"
)

// handleStatus returns the directory-wide occupancy snapshot.
func (s *Server) handleStatus(c *gin.Context) {
	st := s.coord.Status()

	respondOK(c, gin.H{
		"host_name":       s.cfg.HostName,
		"uptime_sec":      int64(time.Since(s.startedAt).Seconds()),
		"clients":         st.Clients,
		"client_capacity": st.ClientCapacity,
		"games_pending":   st.GamesPending,
		"games_active":    st.GamesActive,
		"game_capacity":   st.GameCapacity,
		"ports_reserved":  st.PortsReserved,
		"ports_total":     st.PortsTotal,
	})
}

// handleGames returns every game slot with relay state and traffic
// counters folded in for active games.
func (s *Server) handleGames(c *gin.Context) {
	games := s.coord.GamesDetail()

	respondOK(c, gin.H{
		"games": games,
		"total": len(games),
	})
}

// handleSystem returns host resource usage.
func (s *Server) handleSystem(c *gin.Context) {
	body := gin.H{"info": util.GetSystemInfo()}

	if ip, err := util.GetLocalIP(); err == nil {
		body["local_ip"] = ip
	}
	if cpuPct, err := util.GetCPUUsage(); err == nil {
		body["cpu_percent"] = cpuPct
	}
	if mem, err := util.GetMemoryUsage(); err == nil {
		body["memory"] = mem
	}
	if disk, err := util.GetDiskUsage("."); err == nil {
		body["disk"] = disk
	}

	respondOK(c, body)
}

// handleConfig returns the active configuration. Read-only: the server
// never mutates config after startup.
func (s *Server) handleConfig(c *gin.Context) {
	respondOK(c, gin.H{
		"host_name":           s.cfg.HostName,
		"lobby_port":          s.cfg.LobbyPort,
		"game_port_min":       s.cfg.GamePortMin,
		"game_port_max":       s.cfg.GamePortMax,
		"max_games":           s.cfg.MaxGames,
		"max_players_default": s.cfg.MaxPlayersDefault,
		"join_timeout_sec":    s.cfg.JoinTimeoutSec,
		"drop_timeout_sec":    s.cfg.DropTimeoutSec,
		"idle_timeout_sec":    s.cfg.IdleTimeoutSec,
		"udp_dup_enabled":     s.cfg.UDPDupEnabled,
		"udp_dup_delay_ms":    s.cfg.UDPDupDelayMS,
		"log_level":           s.cfg.LogLevel,
		"mqtt_enabled":        s.cfg.MQTTBroker != "",
		"history_enabled":     s.cfg.HistoryDB != "",
	})
}

// handleHistory returns the most recently ended games from the archive.
func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		respondOK(c, gin.H{"enabled": false, "games": []gin.H{}})
		return
	}

	count, err := strconv.Atoi(c.DefaultQuery("count", "20"))
	if err != nil || count < 1 {
		count = 20
	}
	if count > 200 {
		count = 200
	}

	games, err := s.history.RecentGames(count)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	respondOK(c, gin.H{
		"enabled": true,
		"games":   games,
		"count":   len(games),
	})
}
