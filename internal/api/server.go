package api

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ringleader-project/ringleader/dashboard"
	"github.com/ringleader-project/ringleader/internal/config"
	"github.com/ringleader-project/ringleader/internal/db"
	"github.com/ringleader-project/ringleader/internal/events"
	"github.com/ringleader-project/ringleader/internal/lobby"
	"github.com/ringleader-project/ringleader/internal/network"
)

// Server is the HTTP front of the lobby. One port carries both the
// game-client wire protocol and the operator endpoints.
type Server struct {
	cfg   *config.Config
	bus   *events.EventBus
	coord *lobby.Coordinator

	// Optional: nil when history_db is not configured.
	history *db.History

	hub *EventHub

	httpServer *http.Server
	router     *gin.Engine
	startedAt  time.Time
}

// NewServer creates the API server. history may be nil.
func NewServer(cfg *config.Config, bus *events.EventBus, coord *lobby.Coordinator, history *db.History) *Server {
	// Set Gin mode based on log level
	if cfg.LogLevel == "debug" || cfg.LogLevel == "trace" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:       cfg,
		bus:       bus,
		coord:     coord,
		history:   history,
		hub:       NewEventHub(),
		startedAt: time.Now(),
	}
	s.hub.Attach(bus)

	return s
}

// Start binds the lobby port and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.router = s.buildRouter()

	addr := fmt.Sprintf(":%d", s.cfg.LobbyPort)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// SO_REUSEADDR so a restart can rebind immediately.
	ln, err := network.ListenTCP(ctx, s.cfg.LobbyPort)
	if err != nil {
		return fmt.Errorf("lobby server error: %w", err)
	}

	log.Info().Str("addr", addr).Msg("lobby server starting")

	// Graceful shutdown. Hijacked websocket connections outlive
	// Shutdown, so the hub closes them explicitly.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
		s.hub.CloseAll()
	}()

	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("lobby server error: %w", err)
	}

	return nil
}

// buildRouter creates the Gin router with all routes and middleware.
func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(EnforceGET())
	router.Use(SecurityHeaders())

	// CORS so the dashboard can be served from elsewhere during
	// development. The protocol is GET-only, so nothing beyond GET is
	// ever allowed.
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// ---- Game client protocol ----
	router.GET("/hello", s.handleHello)
	router.GET("/list", s.handleList)
	router.GET("/create", s.handleCreate)
	router.GET("/join", s.handleJoin)
	router.GET("/leave", s.handleLeave)
	router.GET("/wait", s.handleWait)
	router.GET("/ping", s.handlePing)

	// ---- Operator endpoints ----
	router.GET("/status", s.handleStatus)
	router.GET("/games", s.handleGames)
	router.GET("/system", s.handleSystem)
	router.GET("/config", s.handleConfig)
	router.GET("/history", s.handleHistory)
	router.GET("/events", s.hub.Handle)

	// ---- Dashboard (embedded static page) ----
	if sub, err := fs.Sub(dashboard.StaticFS, "static"); err == nil {
		router.StaticFS("/dashboard", http.FS(sub))
	} else {
		log.Warn().Err(err).Msg("dashboard assets unavailable")
	}

	// Unknown paths are protocol errors, not HTTP errors: clients only
	// understand 200 + JSON.
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": false, "error": "unknown"})
	})

	return router
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
