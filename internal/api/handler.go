package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"storefront/config"
	"storefront/internal/payment"
	"storefront/internal/redisclient"
	"storefront/internal/service"
	"storefront/internal/store"
	"storefront/internal/util"
)

// Handler contains HTTP handlers
type Handler struct {
	cfg         *config.Config
	store       *store.Store
	redis       *redisclient.Client
	users       *service.UserService
	carts       *service.CartService
	checkouts   *service.CheckoutService
	settlements *service.SettlementService
	refunds     *service.RefundService
	wallets     *service.WalletService
	orders      *service.OrderService
	registry    *payment.Registry
	paypal      *payment.PayPalAdapter
	nets        *payment.NetsQRAdapter
	logger      *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	cfg *config.Config,
	st *store.Store,
	redis *redisclient.Client,
	users *service.UserService,
	carts *service.CartService,
	checkouts *service.CheckoutService,
	settlements *service.SettlementService,
	refunds *service.RefundService,
	wallets *service.WalletService,
	orders *service.OrderService,
	registry *payment.Registry,
	paypal *payment.PayPalAdapter,
	nets *payment.NetsQRAdapter,
) *Handler {
	return &Handler{
		cfg:         cfg,
		store:       st,
		redis:       redis,
		users:       users,
		carts:       carts,
		checkouts:   checkouts,
		settlements: settlements,
		refunds:     refunds,
		wallets:     wallets,
		orders:      orders,
		registry:    registry,
		paypal:      paypal,
		nets:        nets,
		logger:      util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())
	router.Use(sessionMiddleware(h.redis, h.store))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/register", h.register)
		v1.POST("/login", h.login)
		v1.POST("/logout", h.logout)

		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)

		auth := v1.Group("", requireAuth())
		{
			auth.GET("/cart", h.getCart)
			auth.POST("/cart/items", h.addCartItem)
			auth.PUT("/cart/items/:productId", h.updateCartItem)
			auth.DELETE("/cart/items/:productId", h.removeCartItem)
			auth.DELETE("/cart", h.clearCart)

			auth.POST("/checkout", h.beginCheckout)
			auth.GET("/checkout", h.getCheckout)
			auth.POST("/checkout/method", h.selectMethod)
			auth.DELETE("/checkout", h.abandonCheckout)

			auth.POST("/payment/stripe/session", h.createStripeSession)
			auth.GET("/payment/stripe/success", h.stripeSuccess)
			auth.POST("/payment/paypal/order", h.createPayPalOrder)
			auth.POST("/payment/paypal/capture", h.capturePayPalOrder)
			auth.POST("/payment/nets/qr", h.createNetsQR)
			auth.GET("/payment/nets/status", h.streamNetsStatus)
			auth.POST("/payment/store-credit", h.payWithStoreCredit)

			auth.GET("/orders", h.listOrders)
			auth.GET("/orders/:id", h.getOrder)
			auth.POST("/orders/:id/reorder", h.reorder)
			auth.POST("/orders/:id/refund", h.requestRefund)

			auth.GET("/wallet", h.getWallet)
			auth.GET("/wallet/invoice/:id", h.getWalletInvoice)
			auth.POST("/wallet/topup", h.stageTopup)
			auth.POST("/wallet/topup/intent", h.createTopupIntent)
			auth.POST("/wallet/topup/confirm", h.confirmTopup)

			auth.GET("/notifications", h.listNotifications)
			auth.POST("/notifications/:id/read", h.markNotificationRead)
		}

		admin := v1.Group("/admin", requireAuth(), requireAdmin())
		{
			admin.GET("/dashboard", h.adminDashboard)

			admin.POST("/products", h.createProduct)
			admin.PUT("/products/:id", h.updateProduct)
			admin.DELETE("/products/:id", h.deleteProduct)

			admin.GET("/orders", h.adminListOrders)
			admin.GET("/orders/:id", h.adminGetOrder)
			admin.PUT("/orders/:id/shipping", h.updateShippingStatus)
			admin.PUT("/orders/:id/status", h.updateOrderStatus)

			admin.GET("/refunds", h.adminListRefunds)
			admin.POST("/refunds", h.adminCreateRefund)
			admin.POST("/refunds/:id/approve", h.approveRefund)
			admin.POST("/refunds/:id/reject", h.rejectRefund)

			admin.GET("/wallets", h.adminListWallets)
			admin.GET("/transactions", h.adminListTransactions)
			admin.GET("/fraud", h.fraudAnalysis)
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// respondError maps sentinel errors onto HTTP statuses. Everything
// unrecognized is a 500 with a generic message.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrProductNotFound),
		errors.Is(err, store.ErrOrderNotFound),
		errors.Is(err, store.ErrRefundNotFound),
		errors.Is(err, store.ErrUserNotFound),
		errors.Is(err, store.ErrWalletTxNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrMissingShippingDetails),
		errors.Is(err, service.ErrNoPendingCheckout),
		errors.Is(err, service.ErrNoPendingTopup),
		errors.Is(err, service.ErrInvalidMethod),
		errors.Is(err, service.ErrInvalidRefundAmount),
		errors.Is(err, service.ErrTopupRefMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, service.ErrRefundAlreadyPending),
		errors.Is(err, service.ErrRefundAlreadyFinalized),
		errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, store.ErrInsufficientStock),
		errors.Is(err, service.ErrItemRemoved),
		errors.Is(err, service.ErrOutOfStock):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.Is(err, store.ErrInsufficientFunds):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})

	case errors.Is(err, payment.ErrPasswordRequired),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrAccountDeleted):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})

	case errors.Is(err, service.ErrOrderOwnerDeleted),
		errors.Is(err, service.ErrDestinationNotAllowed):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})

	case errors.Is(err, payment.ErrNotCompleted):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Payment not completed"})

	case errors.Is(err, payment.ErrProviderUnavailable),
		errors.Is(err, payment.ErrOriginalPaymentMissing),
		errors.Is(err, payment.ErrRefundUnsupported):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})

	default:
		h.logger.Error("Request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
	}
}
