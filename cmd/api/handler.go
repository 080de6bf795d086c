package api

import (
	authUsecase "finsight-backend/internal/auth/usecase"
	txDelivery "finsight-backend/internal/transaction/delivery"
	"finsight-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	engine *gin.Engine
}

func NewHandler(authUc authUsecase.AuthUsecase, mailSyncHandler *txDelivery.MailSyncHandler, cfg *config.Config) *Handler {
	r := gin.Default()
	SetupRoutes(r, authUc, mailSyncHandler)
	return &Handler{engine: r}
}

func (h *Handler) Start(addr string) error {
	return h.engine.Run(addr)
}
