package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"url-shortener/internal/auth"
)

const (
	ctxUserID    = "userID"
	ctxUserEmail = "userEmail"
)

// RequestLogger logs one line per request, with the level chosen by the
// response status.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		if log.GetLevel() <= zerolog.DebugLevel {
			log.Debug().
				Str("method", c.Request.Method).
				Str("path", path).
				Str("ip", c.ClientIP()).
				Msg("request started")
		}

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		var entry *zerolog.Event
		var msg string
		switch {
		case status >= 500:
			entry, msg = log.Error(), "server error"
		case status >= 400:
			entry, msg = log.Warn(), "client error"
		default:
			entry, msg = log.Info(), "request completed"
		}

		entry = entry.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration_ms", duration).
			Int("bytes", c.Writer.Size()).
			Str("ip", c.ClientIP())

		if duration > 100*time.Millisecond {
			entry = entry.Bool("slow", true)
		}
		if len(c.Errors) > 0 {
			entry = entry.Str("errors", c.Errors.String())
		}

		entry.Msg(msg)
	}
}

// RequireAuth accepts requests carrying a valid Bearer access token and
// stores the caller's id in the context.
func RequireAuth(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abort(c, http.StatusUnauthorized, "You are not authorized!")
			return
		}

		claims, err := tokens.ParseAccess(strings.TrimSpace(token))
		if err != nil {
			abort(c, http.StatusUnauthorized, "Invalid token!")
			return
		}

		c.Set(ctxUserID, claims.ID)
		c.Set(ctxUserEmail, claims.Email)
		c.Next()
	}
}

func currentUserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}
