package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"url-shortener/internal/auth"
	"url-shortener/internal/shortener"
)

const (
	msgValidation = "Validation failed, check the input data for errors."
	msgInternal   = "Something went wrong."
	msgNotFound   = "Link not found."
)

// statusFor maps service errors onto HTTP status codes. Unknown errors are
// server faults.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shortener.ErrInvalidInput),
		errors.Is(err, shortener.ErrQuotaExceeded),
		errors.Is(err, auth.ErrInvalidOTP),
		errors.Is(err, auth.ErrOTPExpired),
		errors.Is(err, auth.ErrOTPNotVerified):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, shortener.ErrDomainNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, shortener.ErrNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrEmailTaken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()

	switch {
	case status >= http.StatusInternalServerError:
		h.log.Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("request failed")
		message = msgInternal
	case errors.Is(err, shortener.ErrNotFound):
		message = msgNotFound
	case errors.Is(err, auth.ErrUnauthorized):
		message = "You are not authorized!"
	}

	abort(c, status, message)
}

func (h *Handler) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.log.Debug().Err(err).Str("path", c.FullPath()).Msg("invalid request body")
		abort(c, http.StatusBadRequest, msgValidation)
		return false
	}
	return true
}
