package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mrlokans/bookie/internal/audit"
	"github.com/mrlokans/bookie/internal/auth"
	"github.com/mrlokans/bookie/internal/logging"
)

const (
	requestIDKey    = audit.RequestIDKey
	requestIDHeader = "X-Request-ID"
)

// GetUserID extracts the authenticated user's ID from the Gin context.
// Returns 0 when no user is attached.
func GetUserID(c *gin.Context) uint {
	return auth.GetUserID(c)
}

// RequestIDMiddleware reuses an upstream X-Request-ID or generates one, and
// exposes it to handlers, audit events and the response.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header(requestIDHeader, requestID)
		c.Next()
	}
}

// RequestLoggerMiddleware logs one line per request once it completes.
// Server errors log at error level, client errors at warn.
func RequestLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		var event *zerolog.Event
		switch {
		case status >= 500:
			event = logging.Error()
		case status >= 400:
			event = logging.Warn()
		default:
			event = logging.Info()
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}

		event.
			Str("request_id", c.GetString(requestIDKey)).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Uint("user_id", GetUserID(c)).
			Msg("http request")
	}
}
