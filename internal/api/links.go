package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type CreateLinkRequest struct {
	OriginalLink string `json:"original_link" binding:"required,url"`
}

type LinkCountResponse struct {
	Total int64 `json:"total"`
	Limit int   `json:"limit"`
}

func (h *Handler) CreateLink(c *gin.Context) {
	var req CreateLinkRequest
	if !h.bindJSON(c, &req) {
		return
	}

	link, err := h.links.Create(c.Request.Context(), currentUserID(c), req.OriginalLink)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Link created successfully", toLinkResponse(link))
}

func (h *Handler) ListLinks(c *gin.Context) {
	links, err := h.links.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	out := make([]LinkResponse, 0, len(links))
	for i := range links {
		out = append(out, toLinkResponse(&links[i]))
	}
	respond(c, http.StatusOK, "Links fetched successfully", out)
}

func (h *Handler) CountLinks(c *gin.Context) {
	total, limit, err := h.links.Usage(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "Link count fetched successfully", LinkCountResponse{Total: total, Limit: limit})
}

func (h *Handler) GetLinkByKey(c *gin.Context) {
	link, err := h.links.GetByCode(c.Request.Context(), currentUserID(c), c.Param("key"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "Link fetched successfully", toLinkResponse(link))
}

func (h *Handler) DeleteLink(c *gin.Context) {
	if err := h.links.Retire(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "Link deleted successfully.", nil)
}
