package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storefront/config"
	"storefront/internal/models"
	"storefront/internal/redisclient"
	"storefront/internal/store"
	"storefront/internal/util"
)

var (
	ErrEmptyCart              = errors.New("cart is empty")
	ErrMissingShippingDetails = errors.New("missing delivery details")
	ErrNoPendingCheckout      = errors.New("no pending checkout found")
	ErrInvalidMethod          = errors.New("invalid payment method")
)

// CheckoutService manages the transient pending checkout between
// checkout-begin and settlement. The staged blob lives in the keyed
// Redis store; nothing here touches the orders table.
type CheckoutService struct {
	store  *store.Store
	redis  *redisclient.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(st *store.Store, redis *redisclient.Client, cfg config.BusinessConfig) *CheckoutService {
	return &CheckoutService{
		store:  st,
		redis:  redis,
		ttl:    time.Duration(cfg.CheckoutTTLMinutes) * time.Minute,
		logger: util.GetLogger(),
	}
}

// Begin stages a pending checkout from the user's cart. If one is
// already in flight for the session it is returned unchanged, so a
// double-submit of the checkout form is harmless.
func (s *CheckoutService) Begin(ctx context.Context, sid string, user *models.User, shipping models.ShippingInfo) (*models.PendingCheckout, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Begin")
	defer span.End()

	existing, err := s.redis.GetPendingCheckout(ctx, sid)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending checkout: %w", err)
	}
	if existing != nil && len(existing.Lines) > 0 {
		return existing, nil
	}

	if shipping.Name == "" {
		shipping.Name = user.Username
	}
	if shipping.Address == "" {
		shipping.Address = user.Address
	}
	if shipping.Phone == "" {
		shipping.Phone = user.Contact
	}
	if shipping.Name == "" || shipping.Address == "" {
		return nil, ErrMissingShippingDetails
	}

	items, err := s.store.GetCartForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	lines := make([]models.CheckoutLine, 0, len(items))
	var total int64
	for _, item := range items {
		lines = append(lines, models.CheckoutLine{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
		})
		total += item.Price * int64(item.Quantity)
	}

	pc := &models.PendingCheckout{
		UserID:    user.ID,
		Lines:     lines,
		Total:     total,
		Remaining: total,
		Shipping:  shipping,
		CreatedAt: time.Now(),
	}
	if err := s.redis.SetPendingCheckout(ctx, sid, pc, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to stage checkout: %w", err)
	}

	util.CheckoutsStartedTotal.Inc()
	s.logger.Info("Checkout staged",
		zap.Int64("user_id", user.ID),
		zap.Int64("total", total),
		zap.Int("lines", len(lines)))
	return pc, nil
}

// Get returns the in-flight pending checkout for the session
func (s *CheckoutService) Get(ctx context.Context, sid string) (*models.PendingCheckout, error) {
	pc, err := s.redis.GetPendingCheckout(ctx, sid)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending checkout: %w", err)
	}
	if pc == nil || len(pc.Lines) == 0 {
		return nil, ErrNoPendingCheckout
	}
	return pc, nil
}

// SelectMethod records the chosen payment rail on the pending checkout
func (s *CheckoutService) SelectMethod(ctx context.Context, sid, method string) (*models.PendingCheckout, error) {
	if !models.AllowedMethods[method] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}
	return s.update(ctx, sid, func(pc *models.PendingCheckout) error {
		pc.PaymentMethod = method
		return nil
	})
}

// ApplyPartialPayment appends a captured charge and decrements the
// remaining balance, clamping so remaining never goes negative. It
// returns the updated checkout and the amount actually applied.
func (s *CheckoutService) ApplyPartialPayment(ctx context.Context, sid, method string, amount int64, providerRef string) (*models.PendingCheckout, int64, error) {
	var applied int64
	pc, err := s.update(ctx, sid, func(pc *models.PendingCheckout) error {
		applied = pc.ApplyPayment(method, amount, providerRef)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	util.PaymentsCapturedTotal.WithLabelValues(method).Inc()
	s.logger.Info("Partial payment applied",
		zap.String("method", method),
		zap.Int64("applied", applied),
		zap.Int64("remaining", pc.Remaining))
	return pc, applied, nil
}

// StageProviderRef records an in-flight intent's correlation id so a
// return-redirect can be matched back to this checkout.
func (s *CheckoutService) StageProviderRef(ctx context.Context, sid, method, ref string) (*models.PendingCheckout, error) {
	return s.update(ctx, sid, func(pc *models.PendingCheckout) error {
		switch method {
		case models.MethodCard, models.MethodPayNow, models.MethodGrabPay:
			pc.StripeSessionID = ref
		case models.MethodPayPal:
			pc.PayPalOrderID = ref
		case models.MethodNets:
			pc.NetsRetrievalRef = ref
		default:
			return fmt.Errorf("%w: %q", ErrInvalidMethod, method)
		}
		return nil
	})
}

// Abandon drops the pending checkout. Captured partial payments are
// intentionally left stranded; there is no automatic voiding.
func (s *CheckoutService) Abandon(ctx context.Context, sid string) error {
	pc, err := s.redis.GetPendingCheckout(ctx, sid)
	if err != nil {
		return fmt.Errorf("failed to read pending checkout: %w", err)
	}
	if pc == nil {
		return nil
	}

	if err := s.redis.DeletePendingCheckout(ctx, sid); err != nil {
		return fmt.Errorf("failed to drop pending checkout: %w", err)
	}

	util.CheckoutsAbandonedTotal.Inc()
	if len(pc.PartialPayments) > 0 {
		s.logger.Warn("Checkout abandoned with captured partials",
			zap.Int64("user_id", pc.UserID),
			zap.Int("partials", len(pc.PartialPayments)),
			zap.Int64("captured", pc.Total-pc.Remaining))
	}
	return nil
}

// update applies a mutation to the pending checkout and writes it back
// with a refreshed TTL.
func (s *CheckoutService) update(ctx context.Context, sid string, mutate func(*models.PendingCheckout) error) (*models.PendingCheckout, error) {
	pc, err := s.Get(ctx, sid)
	if err != nil {
		return nil, err
	}
	if err := mutate(pc); err != nil {
		return nil, err
	}
	if err := s.redis.SetPendingCheckout(ctx, sid, pc, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to save pending checkout: %w", err)
	}
	return pc, nil
}
