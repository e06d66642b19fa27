package api

import (
	"github.com/gin-gonic/gin"

	iauth "github.com/camdenwatts/teamspace/internal/auth"
	"github.com/camdenwatts/teamspace/internal/handlers"
)

func registerAuthRoutes(r *gin.Engine, requireAuth gin.HandlerFunc, svcs Services, jwt *iauth.JWTService) {
	handler := handlers.NewAuthHandler(svcs.Users, jwt)

	auth := r.Group("/api/auth")
	{
		auth.POST("/register", handler.Register)
		auth.POST("/login", handler.Login)
		auth.GET("/me", requireAuth, handler.Me)
	}
}
