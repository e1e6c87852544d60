package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront/internal/models"
)

func (h *Handler) adminDashboard(c *gin.Context) {
	ctx := c.Request.Context()

	products, err := h.store.GetProducts(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}
	orders, err := h.orders.ListAll(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}
	pendingRefunds, err := h.store.CountPendingRefunds(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var revenue int64
	for _, o := range orders {
		if o.Status != models.OrderStatusCancelled {
			revenue += o.Total
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"products":        len(products),
		"orders":          len(orders),
		"revenue":         revenue,
		"pending_refunds": pendingRefunds,
	})
}

// ---- products ----

type productRequest struct {
	Name     string `json:"name" binding:"required"`
	Price    string `json:"price" binding:"required"`
	Quantity int    `json:"quantity"`
	Category string `json:"category"`
	Image    string `json:"image"`
}

func (h *Handler) createProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	price, err := models.ParseAmount(req.Price)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product := &models.Product{
		Name:     req.Name,
		Price:    price,
		Quantity: req.Quantity,
		Category: req.Category,
		Image:    req.Image,
	}
	if err := h.store.CreateProduct(c.Request.Context(), product); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"product": product})
}

func (h *Handler) updateProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	price, err := models.ParseAmount(req.Price)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product := &models.Product{
		ID:       id,
		Name:     req.Name,
		Price:    price,
		Quantity: req.Quantity,
		Category: req.Category,
		Image:    req.Image,
	}
	if err := h.store.UpdateProduct(c.Request.Context(), product); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}

func (h *Handler) deleteProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	if err := h.store.DeleteProduct(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ---- orders ----

func (h *Handler) adminListOrders(c *gin.Context) {
	orders, err := h.orders.ListAll(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) adminGetOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	detail, err := h.orders.Detail(c.Request.Context(), orderID, 0)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

type statusUpdateRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) updateShippingStatus(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req statusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.orders.UpdateShippingStatus(c.Request.Context(), orderID, req.Status); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req statusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.orders.UpdateStatus(c.Request.Context(), orderID, req.Status); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ---- refunds ----

func (h *Handler) adminListRefunds(c *gin.Context) {
	refunds, err := h.store.GetAllRefunds(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refunds": refunds})
}

type adminRefundRequest struct {
	OrderID     int64  `json:"order_id" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	Destination string `json:"destination" binding:"required"`
	Reason      string `json:"reason"`
}

func (h *Handler) adminCreateRefund(c *gin.Context) {
	var req adminRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	cents, err := models.ParseAmount(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.refunds.CreateAndApprove(c.Request.Context(), req.OrderID, cents, req.Destination, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"refund":          result.Refund,
		"amount":          result.FinalAmount,
		"partial_restock": result.PartialRestock,
	})
}

type approveRefundRequest struct {
	Amount string `json:"amount"`
}

func (h *Handler) approveRefund(c *gin.Context) {
	refundID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid refund ID"})
		return
	}

	var req approveRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	var override *int64
	if req.Amount != "" {
		cents, err := models.ParseAmount(req.Amount)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		override = &cents
	}

	result, err := h.refunds.Approve(c.Request.Context(), refundID, override)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"refund":          result.Refund,
		"amount":          result.FinalAmount,
		"partial_restock": result.PartialRestock,
	})
}

func (h *Handler) rejectRefund(c *gin.Context) {
	refundID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid refund ID"})
		return
	}

	if err := h.refunds.Reject(c.Request.Context(), refundID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ---- wallets & reconciliation ----

func (h *Handler) adminListWallets(c *gin.Context) {
	balances, err := h.wallets.AllBalances(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallets": balances})
}

func (h *Handler) adminListTransactions(c *gin.Context) {
	transactions, err := h.store.GetAllTransactions(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}

// ---- fraud analysis ----

type flaggedOrder struct {
	OrderID  int64    `json:"order_id"`
	UserID   int64    `json:"user_id"`
	Total    int64    `json:"total"`
	Method   string   `json:"method"`
	Score    int      `json:"score"`
	Severity string   `json:"severity"`
	Reasons  []string `json:"reasons,omitempty"`
}

type reasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// fraudAnalysis aggregates the risk results recorded in each order's
// payment summary.
func (h *Handler) fraudAnalysis(c *gin.Context) {
	orders, err := h.orders.ListAll(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	severityCounts := map[string]int{"high": 0, "medium": 0, "low": 0}
	reasonCounts := make(map[string]int)
	flagged := make([]flaggedOrder, 0)
	var totalScore int

	for _, order := range orders {
		if order.PaymentSummary == "" {
			continue
		}
		var summary models.PaymentSummary
		if err := json.Unmarshal([]byte(order.PaymentSummary), &summary); err != nil || summary.Fraud == nil {
			continue
		}

		fraud := summary.Fraud
		severityCounts[fraud.Severity]++
		totalScore += fraud.Score
		for _, reason := range fraud.Reasons {
			reasonCounts[reason]++
		}

		flagged = append(flagged, flaggedOrder{
			OrderID:  order.ID,
			UserID:   order.UserID,
			Total:    order.Total,
			Method:   order.PaymentMethod,
			Score:    fraud.Score,
			Severity: fraud.Severity,
			Reasons:  fraud.Reasons,
		})
	}

	topReasons := make([]reasonCount, 0, len(reasonCounts))
	for reason, count := range reasonCounts {
		topReasons = append(topReasons, reasonCount{Reason: reason, Count: count})
	}
	sort.Slice(topReasons, func(i, j int) bool { return topReasons[i].Count > topReasons[j].Count })
	if len(topReasons) > 5 {
		topReasons = topReasons[:5]
	}

	var average float64
	if len(flagged) > 0 {
		average = float64(totalScore) / float64(len(flagged))
	}

	c.JSON(http.StatusOK, gin.H{
		"total":           len(flagged),
		"average_score":   average,
		"severity_counts": severityCounts,
		"top_reasons":     topReasons,
		"flagged_orders":  flagged,
	})
}
