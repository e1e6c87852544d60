package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/service"
	"storefront/internal/util"
)

type beginCheckoutRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Notes   string `json:"notes"`
}

func (h *Handler) beginCheckout(c *gin.Context) {
	var req beginCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	user := currentUser(c)
	pc, err := h.checkouts.Begin(c.Request.Context(), sessionID(c), user, models.ShippingInfo{
		Name:    req.Name,
		Address: req.Address,
		Phone:   req.Phone,
		Notes:   req.Notes,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkout": pc})
}

func (h *Handler) getCheckout(c *gin.Context) {
	pc, err := h.checkouts.Get(c.Request.Context(), sessionID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkout": pc})
}

type selectMethodRequest struct {
	Method string `json:"method" binding:"required"`
}

func (h *Handler) selectMethod(c *gin.Context) {
	var req selectMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	pc, err := h.checkouts.SelectMethod(c.Request.Context(), sessionID(c), req.Method)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "method": pc.PaymentMethod})
}

func (h *Handler) abandonCheckout(c *gin.Context) {
	if err := h.checkouts.Abandon(c.Request.Context(), sessionID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ---- hosted checkout (card / paynow / grabpay) ----

func (h *Handler) createStripeSession(c *gin.Context) {
	pc, err := h.checkouts.Get(c.Request.Context(), sessionID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	method := pc.PaymentMethod
	switch method {
	case models.MethodCard, models.MethodPayNow, models.MethodGrabPay:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please select a card, PayNow or GrabPay payment first"})
		return
	}

	adapter, err := h.registry.ForMethod(method)
	if err != nil {
		h.respondError(c, err)
		return
	}

	intent, err := adapter.CreateIntent(c.Request.Context(), payment.IntentRequest{
		Amount:      pc.Remaining,
		Currency:    h.cfg.Business.Currency,
		Description: "Storefront order",
	})
	if err != nil {
		util.PaymentIntentsFailedTotal.WithLabelValues(method).Inc()
		h.respondError(c, err)
		return
	}

	if _, err := h.checkouts.StageProviderRef(c.Request.Context(), sessionID(c), method, intent.ProviderRef); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": intent.ProviderRef, "redirect_url": intent.RedirectURL})
}

func (h *Handler) stripeSuccess(c *gin.Context) {
	sessionRef := c.Query("session_id")
	if sessionRef == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing session_id"})
		return
	}

	user := currentUser(c)
	pc, err := h.checkouts.Get(c.Request.Context(), sessionID(c))
	if err != nil {
		// The checkout may already have settled via this reference.
		if order, settled := h.settledByRef(c, sessionRef, user); settled {
			c.JSON(http.StatusOK, gin.H{"success": true, "order_id": order.ID})
			return
		}
		h.respondError(c, err)
		return
	}
	if pc.StripeSessionID != "" && pc.StripeSessionID != sessionRef {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session reference mismatch"})
		return
	}

	adapter, err := h.registry.ForMethod(pc.PaymentMethod)
	if err != nil {
		h.respondError(c, err)
		return
	}
	status, err := adapter.CheckStatus(c.Request.Context(), sessionRef)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if status != payment.StatusCompleted {
		h.respondError(c, payment.ErrNotCompleted)
		return
	}

	h.captureAndSettle(c, pc, pc.PaymentMethod, pc.Remaining, sessionRef, "", "")
}

// ---- paypal ----

func (h *Handler) createPayPalOrder(c *gin.Context) {
	pc, err := h.checkouts.Get(c.Request.Context(), sessionID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if pc.PaymentMethod != models.MethodPayPal {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please select PayPal first"})
		return
	}

	intent, err := h.paypal.CreateIntent(c.Request.Context(), payment.IntentRequest{
		Amount:   pc.Remaining,
		Currency: h.cfg.Business.Currency,
	})
	if err != nil {
		util.PaymentIntentsFailedTotal.WithLabelValues(models.MethodPayPal).Inc()
		h.respondError(c, err)
		return
	}

	if _, err := h.checkouts.StageProviderRef(c.Request.Context(), sessionID(c), models.MethodPayPal, intent.ProviderRef); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": intent.ProviderRef, "approve_url": intent.RedirectURL})
}

type capturePayPalRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

func (h *Handler) capturePayPalOrder(c *gin.Context) {
	var req capturePayPalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	user := currentUser(c)
	pc, err := h.checkouts.Get(c.Request.Context(), sessionID(c))
	if err != nil {
		if order, settled := h.settledByRef(c, req.OrderID, user); settled {
			c.JSON(http.StatusOK, gin.H{"success": true, "order_id": order.ID})
			return
		}
		h.respondError(c, err)
		return
	}
	if pc.PaymentMethod != models.MethodPayPal {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please select PayPal first"})
		return
	}
	if pc.PayPalOrderID != "" && pc.PayPalOrderID != req.OrderID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Order reference mismatch"})
		return
	}

	captureID, err := h.paypal.Capture(c.Request.Context(), req.OrderID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.captureAndSettle(c, pc, models.MethodPayPal, pc.Remaining, captureID, "", "")
}

// ---- nets qr ----

func (h *Handler) createNetsQR(c *gin.Context) {
	pc, err := h.checkouts.Get(c.Request.Context(), sessionID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if pc.PaymentMethod != models.MethodNets {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please select NETS first"})
		return
	}

	intent, err := h.nets.CreateIntent(c.Request.Context(), payment.IntentRequest{
		Amount:   pc.Remaining,
		Currency: h.cfg.Business.Currency,
	})
	if err != nil {
		util.PaymentIntentsFailedTotal.WithLabelValues(models.MethodNets).Inc()
		h.respondError(c, err)
		return
	}

	if _, err := h.checkouts.StageProviderRef(c.Request.Context(), sessionID(c), models.MethodNets, intent.ProviderRef); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"retrieval_ref": intent.ProviderRef,
		"qr_code":       intent.QRPayload,
		"timer":         h.cfg.Business.QRPollIntervalSeconds * h.cfg.Business.QRPollMaxAttempts,
	})
}

type netsStatusEvent struct {
	Status  string `json:"status"`
	Attempt int    `json:"attempt"`
	OrderID int64  `json:"order_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// streamNetsStatus is the server-push status channel for the QR rail:
// poll the gateway on a fixed cadence, forward every status, and stop
// on success, terminal failure, client disconnect or attempt
// exhaustion. Exhaustion issues one final timeout-flagged poll so the
// gateway voids the QR code.
func (h *Handler) streamNetsStatus(c *gin.Context) {
	user := currentUser(c)
	pc, err := h.checkouts.Get(c.Request.Context(), sessionID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ref := pc.NetsRetrievalRef
	if ref == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No QR payment in flight"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Flush()

	ctx := c.Request.Context()
	interval := time.Duration(h.cfg.Business.QRPollIntervalSeconds) * time.Second
	maxAttempts := h.cfg.Business.QRPollMaxAttempts

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			util.QRPollsTotal.WithLabelValues("disconnect").Inc()
			return
		case <-ticker.C:
		}

		status, err := h.nets.Query(ctx, ref, false)
		if err != nil {
			util.QRPollsTotal.WithLabelValues("error").Inc()
			h.sendSSE(c, netsStatusEvent{Status: "error", Attempt: attempt, Error: "status check failed"})
			continue
		}

		switch status {
		case payment.StatusCompleted:
			util.QRPollsTotal.WithLabelValues("success").Inc()
			orderID, err := h.settleNets(c, pc, ref, user)
			if err != nil {
				h.sendSSE(c, netsStatusEvent{Status: "error", Attempt: attempt, Error: "settlement failed"})
				return
			}
			h.sendSSE(c, netsStatusEvent{Status: "completed", Attempt: attempt, OrderID: orderID})
			return
		case payment.StatusFailed:
			util.QRPollsTotal.WithLabelValues("failed").Inc()
			h.sendSSE(c, netsStatusEvent{Status: "failed", Attempt: attempt})
			return
		default:
			util.QRPollsTotal.WithLabelValues("pending").Inc()
			h.sendSSE(c, netsStatusEvent{Status: "pending", Attempt: attempt})
		}
	}

	// Attempts exhausted: one last poll with the timeout flag set.
	if _, err := h.nets.Query(ctx, ref, true); err != nil {
		h.logger.Warn("Final timeout-flagged poll failed", zap.Error(err))
	}
	util.QRPollsTotal.WithLabelValues("timeout").Inc()
	h.sendSSE(c, netsStatusEvent{Status: "timeout", Attempt: maxAttempts})
}

func (h *Handler) sendSSE(c *gin.Context, event netsStatusEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", data)
	c.Writer.Flush()
}

// settleNets applies the QR capture and finalizes, returning the order
// id for the final SSE frame.
func (h *Handler) settleNets(c *gin.Context, pc *models.PendingCheckout, ref string, user *models.User) (int64, error) {
	sid := sessionID(c)
	updated, _, err := h.checkouts.ApplyPartialPayment(c.Request.Context(), sid, models.MethodNets, pc.Remaining, ref)
	if err != nil {
		return 0, err
	}
	if !updated.Paid() {
		return 0, fmt.Errorf("qr capture left remaining balance %d", updated.Remaining)
	}

	order, err := h.settlements.Finalize(c.Request.Context(), &service.FinalizeRequest{
		SessionID:   sid,
		User:        user,
		Pending:     updated,
		ProviderRef: ref,
	})
	if err != nil {
		return 0, err
	}
	return order.ID, nil
}

// ---- store credit ----

type storeCreditRequest struct {
	Password string `json:"password" binding:"required"`
}

func (h *Handler) payWithStoreCredit(c *gin.Context) {
	var req storeCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	user := currentUser(c)
	pc, err := h.checkouts.Get(c.Request.Context(), sessionID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	applied, ref, err := h.wallets.PayWithStoreCredit(c.Request.Context(), user, pc.Remaining, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.captureAndSettle(c, pc, models.MethodStoreCredit, applied, ref, "", "")
}

// ---- shared settlement plumbing ----

// captureAndSettle applies a captured amount to the pending checkout
// and finalizes the order if it is now fully paid. A partial tender
// responds with the remaining balance instead.
func (h *Handler) captureAndSettle(c *gin.Context, pc *models.PendingCheckout, method string, amount int64, providerRef, payerID, payerEmail string) {
	sid := sessionID(c)
	user := currentUser(c)

	updated, applied, err := h.checkouts.ApplyPartialPayment(c.Request.Context(), sid, method, amount, providerRef)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if !updated.Paid() {
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"applied":   applied,
			"remaining": updated.Remaining,
			"paid":      false,
		})
		return
	}

	order, err := h.settlements.Finalize(c.Request.Context(), &service.FinalizeRequest{
		SessionID:   sid,
		User:        user,
		Pending:     updated,
		ProviderRef: providerRef,
		PayerID:     payerID,
		PayerEmail:  payerEmail,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"paid":     true,
		"order_id": order.ID,
	})
}

// settledByRef checks whether a provider reference already settled,
// for return-redirects that arrive after the pending checkout is gone.
func (h *Handler) settledByRef(c *gin.Context, providerRef string, user *models.User) (*models.Order, bool) {
	order, err := h.settlements.Finalize(c.Request.Context(), &service.FinalizeRequest{
		User:        user,
		ProviderRef: providerRef,
	})
	if err != nil {
		return nil, false
	}
	return order, true
}
