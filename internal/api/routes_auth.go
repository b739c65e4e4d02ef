package api

import (
	"github.com/gin-gonic/gin"

	"github.com/taskhive/taskhive/internal/handlers"
)

func registerAuthRoutes(r *gin.Engine, handler *handlers.AuthHandler) {
	auth := r.Group("/api/auth")
	{
		auth.POST("/google", handler.Google)
	}
}
