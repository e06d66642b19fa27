package api

import (
	"github.com/gin-gonic/gin"

	"github.com/camdenwatts/teamspace/internal/handlers"
)

func registerInvitationRoutes(r *gin.Engine, requireAuth gin.HandlerFunc, svcs Services) {
	handler := handlers.NewInvitationHandler(svcs.Invitations)

	// Workspace-scoped management routes
	workspaces := r.Group("/api/workspaces/:id/invitations")
	workspaces.Use(requireAuth)
	{
		workspaces.POST("", handler.Create)
		workspaces.GET("", handler.List)
		workspaces.POST("/bulk", handler.CreateBulk)
		workspaces.POST("/import", handler.ImportCSV)
		workspaces.GET("/analytics", handler.Analytics)
		workspaces.POST("/:invitationID/resend", handler.Resend)
		workspaces.DELETE("/:invitationID", handler.Cancel)
	}

	// Token routes. Lookup and decline are public so invitees can act from
	// the emailed link without an account; accept requires authentication.
	invitations := r.Group("/api/invitations")
	{
		invitations.GET("/:token", handler.GetByToken)
		invitations.POST("/:token/accept", requireAuth, handler.Accept)
		invitations.POST("/:token/decline", handler.Decline)
	}
}
