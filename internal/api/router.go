package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupRouter initializes and configures the Gin router.
func SetupRouter(deps Deps) *gin.Engine {
	h := NewHandler(deps)

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(deps.Log))

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowHeaders = append(config.AllowHeaders, "Authorization")
	r.Use(cors.New(config))

	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/status", h.Status)
	r.GET("/:code", h.Redirect)

	v1 := r.Group("/api/v1")

	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh-token", h.RefreshToken)
		authGroup.POST("/forgot-password", h.ForgotPassword)
		authGroup.POST("/verify-otp", h.VerifyOTP)
		authGroup.POST("/reset-password", h.ResetPassword)
		authGroup.POST("/logout", h.Logout)
	}

	requireAuth := RequireAuth(deps.Auth.Tokens())

	me := authGroup.Group("", requireAuth)
	{
		me.GET("/me", h.Me)
		me.POST("/change-password", h.ChangePassword)
	}

	links := v1.Group("/links", requireAuth)
	{
		links.POST("", h.CreateLink)
		links.GET("", h.ListLinks)
		links.GET("/count", h.CountLinks)
		links.GET("/key/:key", h.GetLinkByKey)
		links.DELETE("/:id", h.DeleteLink)
	}

	r.NoRoute(h.NotFound)

	return r
}
