package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"url-shortener/internal/db"
	"url-shortener/internal/renderer"
	"url-shortener/internal/shortener"
)

// Redirect resolves a public code. Browsers get a 302 to the target;
// crawlers get the rendered snapshot when one is available.
func (h *Handler) Redirect(c *gin.Context) {
	code := c.Param("code")

	link, err := h.resolver.Resolve(c.Request.Context(), code)
	if err != nil {
		h.writeError(c, err)
		return
	}

	userAgent := c.GetHeader("User-Agent")
	if renderer.IsCrawler(userAgent) {
		if html, ok := h.snapshot(c, link); ok {
			h.log.Debug().Str("code", code).Str("user_agent", userAgent).Msg("serving snapshot to crawler")
			c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
			return
		}
	}

	c.Redirect(http.StatusFound, link.OriginalURL)
}

func (h *Handler) snapshot(c *gin.Context, link *db.Link) (string, bool) {
	switch link.PreviewStatus {
	case db.PreviewCompleted:
	case db.PreviewPending, db.PreviewRendering:
		// The render may finish before we start waiting, so the snapshot
		// is looked up either way.
		if h.queue != nil {
			h.queue.WaitForRender(link.OriginalURL, previewWait)
		}
	default:
		return "", false
	}

	html, err := h.links.Preview(c.Request.Context(), link.ID)
	if err != nil {
		if !errors.Is(err, shortener.ErrNotFound) {
			h.log.Warn().Err(err).Str("link_id", link.ID).Msg("failed to load snapshot")
		}
		return "", false
	}
	return html, true
}
