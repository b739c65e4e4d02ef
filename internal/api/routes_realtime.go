package api

import (
	"github.com/gin-gonic/gin"

	"github.com/taskhive/taskhive/internal/handlers"
)

func registerRealtimeRoutes(api *gin.RouterGroup, svc *Services) {
	handler := handlers.NewRealtimeHandler(svc.Hub)

	api.GET("/realtime", handler.Stream)
}
