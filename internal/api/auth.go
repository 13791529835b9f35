package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"url-shortener/internal/auth"
)

const refreshCookie = "refreshToken"

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=128"`
	Mobile   string `json:"mobile"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required,len=6,numeric"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	NewPassword string `json:"new_password" binding:"required,min=6,max=128"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=6,max=128"`
}

func (h *Handler) setRefreshCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookie, token, maxAge, "/", "", h.cookieSecure, true)
}

func (h *Handler) signedIn(c *gin.Context, status int, message string, pair *auth.TokenPair) {
	h.setRefreshCookie(c, pair.RefreshToken, int(h.auth.Tokens().RefreshTTL().Seconds()))
	respond(c, status, message, TokenResponse{AccessToken: pair.AccessToken})
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if !h.bindJSON(c, &req) {
		return
	}

	pair, err := h.auth.Register(c.Request.Context(), auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Mobile:   req.Mobile,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.signedIn(c, http.StatusCreated, "User registered successfully", pair)
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !h.bindJSON(c, &req) {
		return
	}

	pair, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.signedIn(c, http.StatusOK, "User logged in successfully", pair)
}

func (h *Handler) RefreshToken(c *gin.Context) {
	token, err := c.Cookie(refreshCookie)
	if err != nil {
		token = ""
	}

	access, err := h.auth.Refresh(c.Request.Context(), token)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "Access token refreshed successfully", TokenResponse{AccessToken: access})
}

func (h *Handler) Logout(c *gin.Context) {
	h.setRefreshCookie(c, "", -1)
	respond(c, http.StatusOK, "Logged out successfully", nil)
}

func (h *Handler) Me(c *gin.Context) {
	user, err := h.auth.Me(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "User details fetched successfully.", toUserResponse(user))
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if !h.bindJSON(c, &req) {
		return
	}

	err := h.auth.ChangePassword(c.Request.Context(), currentUserID(c), req.CurrentPassword, req.NewPassword)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "Password changed successfully", nil)
}

func (h *Handler) ForgotPassword(c *gin.Context) {
	var req EmailRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if err := h.auth.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "OTP sent to your email", nil)
}

func (h *Handler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if err := h.auth.VerifyOTP(c.Request.Context(), req.Email, req.OTP); err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "OTP verified successfully", nil)
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if err := h.auth.ResetPassword(c.Request.Context(), req.Email, req.NewPassword); err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "Password reset successfully", nil)
}
