// Package api serves the lobby wire protocol and the operator surface
// on a single HTTP port. Game clients speak plain GET requests with
// query parameters and always receive HTTP 200 with a JSON body whose
// "ok" field carries the real outcome. Anything that is not a GET is
// not part of the protocol and the connection is closed without a
// response. Operator endpoints (status, games, history, events,
// dashboard) share the same router and the same GET-only rule.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// EnforceGET closes the connection on any non-GET request. Lobby
// clients only ever issue GETs, so anything else is a scanner or a
// misconfigured tool; neither gets a response.
func EnforceGET() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet {
			c.Next()
			return
		}
		if conn, _, err := c.Writer.Hijack(); err == nil {
			conn.Close()
		}
		c.Abort()
	}
}

// SecurityHeaders adds security-related HTTP headers.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Server", "Ringleader")

		// The dashboard needs inline styles and scripts; everything
		// else is JSON and can be locked down.
		if !strings.HasPrefix(c.Request.URL.Path, "/dashboard") {
			c.Header("X-Frame-Options", "DENY")
		}

		c.Next()
	}
}

// RequestLogger logs incoming HTTP requests.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("api request")
	}
}
