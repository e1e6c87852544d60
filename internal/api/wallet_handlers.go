package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront/internal/models"
)

func (h *Handler) getWallet(c *gin.Context) {
	user := currentUser(c)
	ctx := c.Request.Context()

	balance, err := h.wallets.GetBalance(ctx, user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	history, err := h.wallets.History(ctx, user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"balance":      balance,
		"transactions": history,
	})
}

func (h *Handler) getWalletInvoice(c *gin.Context) {
	txID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid transaction ID"})
		return
	}

	user := currentUser(c)
	tx, err := h.wallets.Invoice(c.Request.Context(), user.ID, txID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

type stageTopupRequest struct {
	Amount string `json:"amount" binding:"required"`
	Method string `json:"method" binding:"required"`
}

func (h *Handler) stageTopup(c *gin.Context) {
	var req stageTopupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	cents, err := models.ParseAmount(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.wallets.StageTopup(c.Request.Context(), sessionID(c), cents, req.Method); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "amount": cents, "method": req.Method})
}

func (h *Handler) createTopupIntent(c *gin.Context) {
	intent, err := h.wallets.CreateTopupIntent(c.Request.Context(), sessionID(c), h.cfg.Business.Currency)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"intent": intent})
}

type confirmTopupRequest struct {
	ProviderRef string `json:"provider_ref"`
}

func (h *Handler) confirmTopup(c *gin.Context) {
	var req confirmTopupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	user := currentUser(c)
	credited, balance, err := h.wallets.ConfirmTopup(c.Request.Context(), sessionID(c), user, req.ProviderRef)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"credited": credited,
		"balance":  balance,
	})
}
