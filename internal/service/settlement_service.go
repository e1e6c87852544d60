package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/redisclient"
	"storefront/internal/store"
	"storefront/internal/util"
)

var (
	// ErrItemRemoved means a cart line's product no longer exists. The
	// cart has been corrected; the user can retry.
	ErrItemRemoved = errors.New("item removed from catalog")

	// ErrOutOfStock means a cart line's product has zero stock. The
	// cart has been corrected; the user can retry.
	ErrOutOfStock = errors.New("item out of stock")
)

const settledRefTTL = 24 * time.Hour

// SettlementService turns a fully paid pending checkout into a
// committed order, decrementing stock in the same transaction.
type SettlementService struct {
	store          *store.Store
	redis          *redisclient.Client
	eventPublisher *broker.EventPublisher
	currency       string
	logger         *zap.Logger
}

// NewSettlementService creates a new settlement service
func NewSettlementService(st *store.Store, redis *redisclient.Client, eventPublisher *broker.EventPublisher, currency string) *SettlementService {
	return &SettlementService{
		store:          st,
		redis:          redis,
		eventPublisher: eventPublisher,
		currency:       currency,
		logger:         util.GetLogger(),
	}
}

// FinalizeRequest carries the settlement inputs. ProviderRef is the
// external correlation id of the completing payment; PayerID and
// PayerEmail come from the provider's capture response when available.
type FinalizeRequest struct {
	SessionID   string
	User        *models.User
	Pending     *models.PendingCheckout
	ProviderRef string
	PayerID     string
	PayerEmail  string
}

// Finalize commits a paid checkout to an order. A repeated provider
// callback with a reference that already settled returns the existing
// order id instead of creating a second order.
func (s *SettlementService) Finalize(ctx context.Context, req *FinalizeRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "SettlementService.Finalize")
	defer span.End()
	start := time.Now()

	// Serialize concurrent callbacks for the same reference. The
	// provider_ref unique constraint still backstops this if the lock
	// cannot be taken.
	if req.ProviderRef != "" {
		lockKey := "settle-lock:" + req.ProviderRef
		if ok, err := s.redis.AcquireLock(ctx, lockKey, 30*time.Second); err != nil {
			s.logger.Warn("Settlement lock unavailable", zap.Error(err))
		} else if ok {
			defer func() {
				if err := s.redis.ReleaseLock(context.Background(), lockKey); err != nil {
					s.logger.Warn("Failed to release settlement lock", zap.Error(err))
				}
			}()
		}
	}

	if existing, err := s.alreadySettled(ctx, req.ProviderRef, req.User.ID); err != nil {
		return nil, err
	} else if existing != nil {
		s.logger.Info("Duplicate settlement callback",
			zap.String("provider_ref", req.ProviderRef),
			zap.Int64("order_id", existing.ID))
		return existing, nil
	}

	pc := req.Pending
	if pc == nil || len(pc.Lines) == 0 {
		return nil, ErrNoPendingCheckout
	}

	items, total, err := s.verifyLines(ctx, req.User.ID, pc.Lines)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("stock_conflict").Inc()
		return nil, err
	}

	summary, err := s.buildPaymentSummary(pc, req.User)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		UserID:         req.User.ID,
		Total:          total,
		Notes:          shippingNotes(pc.Shipping),
		Status:         models.OrderStatusPending,
		ShippingStatus: models.ShippingStatusProcessing,
		PaymentMethod:  pc.PaymentMethod,
		PaymentSummary: summary,
		ProviderRef:    req.ProviderRef,
	}

	if err := s.store.CreateOrderSettled(ctx, order, items); err != nil {
		if errors.Is(err, store.ErrInsufficientStock) {
			util.OrdersFailedTotal.WithLabelValues("stock_race").Inc()
		} else {
			util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		}
		return nil, err
	}

	s.afterSettle(ctx, req, order, items)

	util.OrdersSettledTotal.Inc()
	util.SettlementLatency.Observe(time.Since(start).Seconds())
	s.logger.Info("Order settled",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", req.User.ID),
		zap.Int64("total", total),
		zap.String("method", pc.PaymentMethod))
	return order, nil
}

// alreadySettled checks the Redis fast path, then the durable
// provider_ref column.
func (s *SettlementService) alreadySettled(ctx context.Context, providerRef string, userID int64) (*models.Order, error) {
	if providerRef == "" {
		return nil, nil
	}

	if orderID, err := s.redis.GetSettledRef(ctx, providerRef); err != nil {
		s.logger.Warn("Settled-ref cache read failed", zap.Error(err))
	} else if orderID != 0 {
		order, err := s.store.GetOrderByID(ctx, orderID, userID)
		if err == nil {
			return order, nil
		}
		s.logger.Warn("Settled-ref cache pointed at missing order",
			zap.Int64("order_id", orderID), zap.Error(err))
	}

	order, err := s.store.GetOrderByProviderRef(ctx, providerRef)
	if err != nil {
		return nil, fmt.Errorf("failed to check settlement idempotency: %w", err)
	}
	return order, nil
}

// verifyLines re-reads products and rejects the settle on any stock
// conflict, correcting the cart so the user can retry. Totals are
// recomputed from authoritative prices; the staged snapshot total is
// not trusted.
func (s *SettlementService) verifyLines(ctx context.Context, userID int64, lines []models.CheckoutLine) ([]models.OrderItem, int64, error) {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}

	products, err := s.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to verify inventory: %w", err)
	}
	catalog := make(map[int64]models.Product, len(products))
	for _, p := range products {
		catalog[p.ID] = p
	}

	items := make([]models.OrderItem, 0, len(lines))
	var total int64
	for _, line := range lines {
		product, ok := catalog[line.ProductID]
		if !ok {
			if rmErr := s.store.RemoveCartItem(ctx, userID, line.ProductID); rmErr != nil {
				s.logger.Warn("Cart correction failed", zap.Error(rmErr))
			}
			return nil, 0, fmt.Errorf("%w: %s", ErrItemRemoved, line.Name)
		}
		if product.Quantity == 0 {
			if rmErr := s.store.RemoveCartItem(ctx, userID, line.ProductID); rmErr != nil {
				s.logger.Warn("Cart correction failed", zap.Error(rmErr))
			}
			return nil, 0, fmt.Errorf("%w: %s", ErrOutOfStock, product.Name)
		}
		if line.Quantity > product.Quantity {
			if capErr := s.store.SetCartItemQuantity(ctx, userID, line.ProductID, product.Quantity); capErr != nil {
				s.logger.Warn("Cart correction failed", zap.Error(capErr))
			}
			return nil, 0, fmt.Errorf("%w: %s only has %d left", store.ErrInsufficientStock, product.Name, product.Quantity)
		}

		items = append(items, models.OrderItem{
			ProductID: product.ID,
			Price:     product.Price,
			Quantity:  line.Quantity,
		})
		total += product.Price * int64(line.Quantity)
	}

	return items, total, nil
}

func (s *SettlementService) buildPaymentSummary(pc *models.PendingCheckout, user *models.User) (string, error) {
	provider := make(map[string]string)
	if pc.StripeSessionID != "" {
		provider["stripe_session_id"] = pc.StripeSessionID
	}
	if pc.PayPalOrderID != "" {
		provider["paypal_order_id"] = pc.PayPalOrderID
	}
	if pc.NetsRetrievalRef != "" {
		provider["nets_retrieval_ref"] = pc.NetsRetrievalRef
	}
	if len(provider) == 0 {
		provider = nil
	}

	summary := models.PaymentSummary{
		Partials: pc.PartialPayments,
		Fraud:    evaluateFraud(pc, user),
		Provider: provider,
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return "", fmt.Errorf("failed to encode payment summary: %w", err)
	}
	return string(data), nil
}

// afterSettle performs the post-commit side effects. The order exists
// either way; failures here are logged, not surfaced.
func (s *SettlementService) afterSettle(ctx context.Context, req *FinalizeRequest, order *models.Order, items []models.OrderItem) {
	if err := s.store.ClearCart(ctx, req.User.ID); err != nil {
		s.logger.Error("Failed to clear cart after settlement", zap.Error(err))
	}
	if req.SessionID != "" {
		if err := s.redis.DeletePendingCheckout(ctx, req.SessionID); err != nil {
			s.logger.Error("Failed to drop pending checkout", zap.Error(err))
		}
	}
	if req.ProviderRef != "" {
		if err := s.redis.CacheSettledRef(ctx, req.ProviderRef, order.ID, settledRefTTL); err != nil {
			s.logger.Warn("Failed to cache settled ref", zap.Error(err))
		}
	}

	payerID := req.PayerID
	if payerID == "" {
		payerID = fmt.Sprintf("user-%d", req.User.ID)
	}
	payerEmail := req.PayerEmail
	if payerEmail == "" {
		payerEmail = req.User.Email
	}
	tx := &models.Transaction{
		OrderID:    order.ID,
		PayerID:    payerID,
		PayerEmail: payerEmail,
		Amount:     order.Total,
		Currency:   s.currency,
		Status:     "COMPLETED",
		Method:     order.PaymentMethod,
	}
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		s.logger.Error("Failed to record transaction", zap.Int64("order_id", order.ID), zap.Error(err))
	}

	event := &models.OrderSettledEvent{
		OrderID:       order.ID,
		UserID:        req.User.ID,
		Total:         order.Total,
		PaymentMethod: order.PaymentMethod,
		Items:         toEventItems(items),
	}
	if err := s.eventPublisher.PublishOrderSettled(ctx, event); err != nil {
		s.logger.Error("Failed to publish order settled event", zap.Int64("order_id", order.ID), zap.Error(err))
	}
}

func toEventItems(items []models.OrderItem) []models.OrderItemData {
	out := make([]models.OrderItemData, 0, len(items))
	for _, item := range items {
		out = append(out, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
		})
	}
	return out
}

func shippingNotes(sh models.ShippingInfo) string {
	parts := []string{
		"Name: " + sh.Name,
		"Address: " + sh.Address,
		"Phone: " + sh.Phone,
	}
	if sh.Notes != "" {
		parts = append(parts, "Notes: "+sh.Notes)
	}
	return strings.Join(parts, "\n")
}
