package delivery

import (
	"context"
	"net/http"

	txdomain "finsight-backend/internal/transaction/domain"
	"finsight-backend/internal/transaction/repository"
	"finsight-backend/internal/transaction/usecase"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// TokenRevoker invalidates a refresh token at the mail provider.
type TokenRevoker interface {
	RevokeToken(ctx context.Context, refreshToken string) error
}

type MailSyncHandler struct {
	orchestrator *usecase.Orchestrator
	credRepo     repository.CredentialRepository
	txRepo       repository.TransactionRepository
	revoker      TokenRevoker
}

func NewMailSyncHandler(orchestrator *usecase.Orchestrator, credRepo repository.CredentialRepository, txRepo repository.TransactionRepository, revoker TokenRevoker) *MailSyncHandler {
	return &MailSyncHandler{
		orchestrator: orchestrator,
		credRepo:     credRepo,
		txRepo:       txRepo,
		revoker:      revoker,
	}
}

// Sync runs an on-demand sync for the authenticated user and returns the run
// summary.
func (h *MailSyncHandler) Sync(c *gin.Context) {
	userID := c.GetString("userID")

	result := h.orchestrator.SyncOne(c.Request.Context(), userID)
	c.JSON(http.StatusOK, result)
}

// ListTransactions returns the user's extracted transactions.
func (h *MailSyncHandler) ListTransactions(c *gin.Context) {
	userID := c.GetString("userID")

	txs, err := h.txRepo.FindByUserID(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

type connectRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Connect stores or replaces the user's mail refresh credential. The consent
// flow that obtains the token happens outside this service.
func (h *MailSyncHandler) Connect(c *gin.Context) {
	userID := c.GetString("userID")

	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cred, err := h.credRepo.FindByUserID(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if cred == nil {
		cred = &txdomain.MailCredential{UserID: userID}
	}
	cred.RefreshToken = req.RefreshToken

	if err := h.credRepo.Save(cred); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "mail account connected"})
}

// Disconnect removes the stored credential and best-effort revokes the token
// at the provider. The watermark goes with it; a reconnect starts over with
// the bounded initial window.
func (h *MailSyncHandler) Disconnect(c *gin.Context) {
	userID := c.GetString("userID")

	cred, err := h.credRepo.FindByUserID(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if cred != nil && cred.RefreshToken != "" && h.revoker != nil {
		if err := h.revoker.RevokeToken(c.Request.Context(), cred.RefreshToken); err != nil {
			log.WithField("user_id", userID).WithError(err).Warn("Provider token revocation failed")
		}
	}

	if err := h.credRepo.DeleteByUserID(userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "mail account disconnected"})
}
