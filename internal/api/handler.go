package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"url-shortener/internal/auth"
	"url-shortener/internal/renderer"
	"url-shortener/internal/shortener"
)

// previewWait bounds how long a crawler hit waits for an in-flight render.
const previewWait = 5 * time.Second

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the HTTP layer serves. Queue is nil when previews
// are disabled.
type Deps struct {
	Links        *shortener.LinkService
	Resolver     *shortener.Resolver
	Auth         *auth.Service
	Queue        *renderer.Queue
	DB           Pinger
	CookieSecure bool
	Log          zerolog.Logger
}

type Handler struct {
	links        *shortener.LinkService
	resolver     *shortener.Resolver
	auth         *auth.Service
	queue        *renderer.Queue
	db           Pinger
	cookieSecure bool
	log          zerolog.Logger
}

func NewHandler(deps Deps) *Handler {
	return &Handler{
		links:        deps.Links,
		resolver:     deps.Resolver,
		auth:         deps.Auth,
		queue:        deps.Queue,
		db:           deps.DB,
		cookieSecure: deps.CookieSecure,
		log:          deps.Log,
	}
}

func (h *Handler) Root(c *gin.Context) {
	respond(c, http.StatusOK, "Server Running Smoothly.", nil)
}

// Health reports UP when the database answers a ping.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.log.Warn().Err(err).Msg("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

// Status adds render queue details to the health report.
func (h *Handler) Status(c *gin.Context) {
	body := gin.H{
		"status":            "UP",
		"prerender_enabled": h.queue != nil,
	}
	if h.queue != nil {
		body["render_queue"] = h.queue.Status()
	}
	c.JSON(http.StatusOK, body)
}

// NotFound answers unknown routes.
func (h *Handler) NotFound(c *gin.Context) {
	abort(c, http.StatusNotFound, "The API endpoint '"+c.Request.URL.Path+"' was not found.")
}
