package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/models"
	"storefront/internal/redisclient"
	"storefront/internal/util"
)

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Address  string `json:"address"`
	Contact  string `json:"contact"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Username, req.Email, req.Password, req.Address, req.Contact)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

type guestCartLine struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

type loginRequest struct {
	Email    string          `json:"email" binding:"required"`
	Password string          `json:"password" binding:"required"`
	Cart     []guestCartLine `json:"cart"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	user, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	sid := util.NewSessionID()
	ttl := time.Duration(h.cfg.Business.SessionTTLHours) * time.Hour
	sess := &redisclient.Session{UserID: user.ID}
	if err := h.redis.SetSession(c.Request.Context(), sid, sess, ttl); err != nil {
		h.respondError(c, err)
		return
	}

	// A cart built before login is folded into the persisted one.
	if len(req.Cart) > 0 {
		guest := make([]models.CartItem, 0, len(req.Cart))
		for _, line := range req.Cart {
			guest = append(guest, models.CartItem{ProductID: line.ProductID, Quantity: line.Quantity})
		}
		if err := h.carts.MergeOnLogin(c.Request.Context(), user.ID, guest); err != nil {
			h.logger.Warn("Failed to merge guest cart", zap.Int64("user_id", user.ID), zap.Error(err))
		}
	}

	c.SetCookie(sessionCookie, sid, int(ttl.Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) logout(c *gin.Context) {
	if sid := sessionID(c); sid != "" {
		if err := h.redis.DeleteSession(c.Request.Context(), sid); err != nil {
			h.logger.Warn("Failed to delete session")
		}
	}
	c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) listNotifications(c *gin.Context) {
	user := currentUser(c)
	notifications, err := h.store.GetNotificationsByUser(c.Request.Context(), user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

func (h *Handler) markNotificationRead(c *gin.Context) {
	user := currentUser(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification ID"})
		return
	}

	if err := h.store.MarkNotificationRead(c.Request.Context(), id, user.ID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
