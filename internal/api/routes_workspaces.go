package api

import (
	"github.com/gin-gonic/gin"

	"github.com/camdenwatts/teamspace/internal/handlers"
)

func registerWorkspaceRoutes(r *gin.Engine, requireAuth gin.HandlerFunc, svcs Services) {
	handler := handlers.NewWorkspaceHandler(svcs.Workspaces)

	workspaces := r.Group("/api/workspaces")
	workspaces.Use(requireAuth)
	{
		workspaces.POST("", handler.Create)
		workspaces.GET("/:id", handler.Get)
		workspaces.PATCH("/:id", handler.Update)
		workspaces.DELETE("/:id", handler.Delete)
		workspaces.GET("/:id/members", handler.ListMembers)
		workspaces.DELETE("/:id/members/:userID", handler.RemoveMember)
	}
}
