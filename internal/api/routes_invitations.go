package api

import (
	"github.com/gin-gonic/gin"

	"github.com/taskhive/taskhive/internal/handlers"
)

func registerInvitationRoutes(api *gin.RouterGroup, svc *Services) {
	handler := handlers.NewInvitationHandler(svc.Invitations)

	api.POST("/lists/:id/invitations", handler.Invite)
	api.GET("/lists/:id/invitations", handler.ListForList)

	invitations := api.Group("/invitations")
	{
		invitations.GET("", handler.ListMine)
		invitations.POST("/:id/accept", handler.Accept)
		invitations.POST("/:id/decline", handler.Decline)
	}
}
