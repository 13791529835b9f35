package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"url-shortener/internal/db"
)

// Response is the envelope every JSON endpoint answers with.
type Response struct {
	Success    bool        `json:"success"`
	StatusCode int         `json:"statusCode"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data"`
}

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{
		Success:    status < 400,
		StatusCode: status,
		Message:    message,
		Data:       data,
	})
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Response{
		Success:    false,
		StatusCode: status,
		Message:    message,
	})
}

// LinkResponse is the public shape of a link.
type LinkResponse struct {
	ID          string    `json:"id"`
	OriginalURL string    `json:"original_url"`
	Keyword     string    `json:"keyword"`
	Clicks      int64     `json:"clicks"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toLinkResponse(l *db.Link) LinkResponse {
	return LinkResponse{
		ID:          l.ID,
		OriginalURL: l.OriginalURL,
		Keyword:     l.Keyword,
		Clicks:      l.Clicks,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Mobile    string    `json:"mobile,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toUserResponse(u *db.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Mobile:    u.Mobile,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type TokenResponse struct {
	AccessToken string `json:"accessToken"`
}
