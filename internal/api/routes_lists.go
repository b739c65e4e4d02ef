package api

import (
	"github.com/gin-gonic/gin"

	"github.com/taskhive/taskhive/internal/handlers"
)

func registerListRoutes(api *gin.RouterGroup, svc *Services) {
	listHandler := handlers.NewListHandler(svc.Lists)
	taskHandler := handlers.NewTaskHandler(svc.Tasks)
	activityHandler := handlers.NewActivityHandler(svc.Lists, svc.Activities)

	lists := api.Group("/lists")
	{
		lists.GET("", listHandler.List)
		lists.POST("", listHandler.Create)
		lists.GET("/:id", listHandler.Get)
		lists.PATCH("/:id", listHandler.Update)
		lists.DELETE("/:id", listHandler.Delete)
		lists.DELETE("/:id/members/:userID", listHandler.RemoveMember)

		lists.GET("/:id/tasks", taskHandler.List)
		lists.POST("/:id/tasks", taskHandler.Create)
		lists.GET("/:id/tasks/:taskID", taskHandler.Get)
		lists.PATCH("/:id/tasks/:taskID", taskHandler.Update)
		lists.DELETE("/:id/tasks/:taskID", taskHandler.Delete)

		lists.GET("/:id/activities", activityHandler.List)
	}
}
