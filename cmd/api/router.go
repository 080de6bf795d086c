package api

import (
	"net/http"

	authDelivery "finsight-backend/internal/auth/delivery"
	authUsecase "finsight-backend/internal/auth/usecase"
	txDelivery "finsight-backend/internal/transaction/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, authUc authUsecase.AuthUsecase, mailSyncHandler *txDelivery.MailSyncHandler) {
	authHandler := authDelivery.NewAuthHandler(authUc)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/register", authHandler.Register)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", authDelivery.AuthMiddleware(authUc), authHandler.Me)
		}

		// Mail sync routes (protected)
		mail := api.Group("/mail")
		mail.Use(authDelivery.AuthMiddleware(authUc))
		{
			mail.POST("/sync", mailSyncHandler.Sync)
			mail.GET("/transactions", mailSyncHandler.ListTransactions)
			mail.POST("/connection", mailSyncHandler.Connect)
			mail.DELETE("/connection", mailSyncHandler.Disconnect)
		}
	}
}
