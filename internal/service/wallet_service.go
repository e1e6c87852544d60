package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storefront/config"
	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/redisclient"
	"storefront/internal/store"
	"storefront/internal/util"
)

var (
	ErrNoPendingTopup   = errors.New("no pending top-up found")
	ErrTopupRefMismatch = errors.New("top-up reference does not match the staged payment")
)

// WalletService owns the store-credit balance and its top-up flows.
// Every balance mutation is paired with an append-only ledger row.
type WalletService struct {
	store          *store.Store
	redis          *redisclient.Client
	registry       *payment.Registry
	paypal         *payment.PayPalAdapter
	storeCredit    *payment.StoreCreditAdapter
	eventPublisher *broker.EventPublisher
	ttl            time.Duration
	logger         *zap.Logger
}

// NewWalletService creates a new wallet service
func NewWalletService(
	st *store.Store,
	redis *redisclient.Client,
	registry *payment.Registry,
	paypal *payment.PayPalAdapter,
	storeCredit *payment.StoreCreditAdapter,
	eventPublisher *broker.EventPublisher,
	cfg config.BusinessConfig,
) *WalletService {
	return &WalletService{
		store:          st,
		redis:          redis,
		registry:       registry,
		paypal:         paypal,
		storeCredit:    storeCredit,
		eventPublisher: eventPublisher,
		ttl:            time.Duration(cfg.CheckoutTTLMinutes) * time.Minute,
		logger:         util.GetLogger(),
	}
}

// GetBalance returns the user's store-credit balance, creating a zero
// row on first touch.
func (s *WalletService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	return s.store.GetWalletBalance(ctx, userID)
}

// History returns the user's wallet ledger, newest first
func (s *WalletService) History(ctx context.Context, userID int64) ([]models.WalletTransaction, error) {
	return s.store.GetWalletTransactionsByUser(ctx, userID)
}

// Invoice returns a single ledger entry owned by the user
func (s *WalletService) Invoice(ctx context.Context, userID, txID int64) (*models.WalletTransaction, error) {
	return s.store.GetWalletTransactionByID(ctx, txID, userID)
}

// AllBalances lists every wallet for the admin view
func (s *WalletService) AllBalances(ctx context.Context) ([]store.WalletBalanceRow, error) {
	return s.store.GetAllWalletBalances(ctx)
}

// StageTopup records the intended top-up amount and rail in the keyed
// transient store before any provider round trip.
func (s *WalletService) StageTopup(ctx context.Context, sid string, amount int64, method string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: top-up amount must be positive", ErrInvalidMethod)
	}
	if !models.AllowedMethods[method] || method == models.MethodStoreCredit {
		return fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}

	pt := &redisclient.PendingTopup{Amount: amount, PaymentMethod: method}
	if err := s.redis.SetPendingTopup(ctx, sid, pt, s.ttl); err != nil {
		return fmt.Errorf("failed to stage top-up: %w", err)
	}
	return nil
}

// CreateTopupIntent stages the charge with the staged rail's provider
// and records the correlation id on the pending top-up.
func (s *WalletService) CreateTopupIntent(ctx context.Context, sid, currency string) (*payment.Intent, error) {
	pt, err := s.redis.GetPendingTopup(ctx, sid)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending top-up: %w", err)
	}
	if pt == nil {
		return nil, ErrNoPendingTopup
	}

	adapter, err := s.registry.ForMethod(pt.PaymentMethod)
	if err != nil {
		return nil, err
	}

	intent, err := adapter.CreateIntent(ctx, payment.IntentRequest{
		Amount:      pt.Amount,
		Currency:    currency,
		Description: "Wallet top-up",
	})
	if err != nil {
		util.PaymentIntentsFailedTotal.WithLabelValues(pt.PaymentMethod).Inc()
		return nil, err
	}

	switch pt.PaymentMethod {
	case models.MethodCard, models.MethodPayNow, models.MethodGrabPay:
		pt.StripeSessionID = intent.ProviderRef
	case models.MethodPayPal:
		pt.PayPalOrderID = intent.ProviderRef
	case models.MethodNets:
		pt.NetsRetrievalRef = intent.ProviderRef
	}
	if err := s.redis.SetPendingTopup(ctx, sid, pt, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to save pending top-up: %w", err)
	}
	return intent, nil
}

// ConfirmTopup verifies the provider reports the staged charge as
// captured, then credits the wallet. A repeat confirm with the same
// reference finds the existing ledger row and credits nothing.
func (s *WalletService) ConfirmTopup(ctx context.Context, sid string, user *models.User, providerRef string) (credited, balance int64, err error) {
	ctx, span := util.StartSpan(ctx, "WalletService.ConfirmTopup")
	defer span.End()

	pt, err := s.redis.GetPendingTopup(ctx, sid)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read pending top-up: %w", err)
	}
	if pt == nil {
		return 0, 0, ErrNoPendingTopup
	}

	ledgerRef, err := s.verifyTopup(ctx, pt, providerRef)
	if err != nil {
		return 0, 0, err
	}

	// Durable idempotency on the provider reference.
	if existing, err := s.store.GetWalletTransactionByProviderRef(ctx, ledgerRef); err != nil {
		return 0, 0, fmt.Errorf("failed to check top-up idempotency: %w", err)
	} else if existing != nil {
		bal, err := s.store.GetWalletBalance(ctx, user.ID)
		if err != nil {
			return 0, 0, err
		}
		s.logger.Info("Duplicate top-up confirm",
			zap.String("provider_ref", ledgerRef),
			zap.Int64("user_id", user.ID))
		return existing.Amount, bal, nil
	}

	balance, err = s.store.AddWalletFunds(ctx, user.ID, pt.Amount)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to credit wallet: %w", err)
	}
	wtx := &models.WalletTransaction{
		UserID:      user.ID,
		Amount:      pt.Amount,
		Method:      pt.PaymentMethod,
		Status:      models.WalletTxCompleted,
		ProviderRef: ledgerRef,
	}
	if err := s.store.CreateWalletTransaction(ctx, wtx); err != nil {
		return 0, 0, fmt.Errorf("failed to record top-up: %w", err)
	}

	if err := s.redis.DeletePendingTopup(ctx, sid); err != nil {
		s.logger.Warn("Failed to drop pending top-up", zap.Error(err))
	}

	util.WalletCreditsTotal.Inc()
	event := &models.WalletCreditedEvent{
		UserID:  user.ID,
		Amount:  pt.Amount,
		Method:  pt.PaymentMethod,
		Balance: balance,
	}
	if err := s.eventPublisher.PublishWalletCredited(ctx, event); err != nil {
		s.logger.Error("Failed to publish wallet credited event", zap.Error(err))
	}

	s.logger.Info("Wallet topped up",
		zap.Int64("user_id", user.ID),
		zap.Int64("amount", pt.Amount),
		zap.String("method", pt.PaymentMethod),
		zap.Int64("balance", balance))
	return pt.Amount, balance, nil
}

// verifyTopup checks the provider reference against the staged intent
// and confirms capture with the provider. It returns the reference to
// record in the ledger, which for PayPal is the capture id.
func (s *WalletService) verifyTopup(ctx context.Context, pt *redisclient.PendingTopup, providerRef string) (string, error) {
	switch pt.PaymentMethod {
	case models.MethodCard, models.MethodPayNow, models.MethodGrabPay:
		if providerRef == "" || (pt.StripeSessionID != "" && providerRef != pt.StripeSessionID) {
			return "", ErrTopupRefMismatch
		}
		adapter, err := s.registry.ForMethod(pt.PaymentMethod)
		if err != nil {
			return "", err
		}
		status, err := adapter.CheckStatus(ctx, providerRef)
		if err != nil {
			return "", err
		}
		if status != payment.StatusCompleted {
			return "", payment.ErrNotCompleted
		}
		return providerRef, nil

	case models.MethodPayPal:
		if providerRef == "" || (pt.PayPalOrderID != "" && providerRef != pt.PayPalOrderID) {
			return "", ErrTopupRefMismatch
		}
		captureID, err := s.paypal.Capture(ctx, providerRef)
		if err != nil {
			return "", err
		}
		return captureID, nil

	case models.MethodNets:
		ref := providerRef
		if ref == "" {
			ref = pt.NetsRetrievalRef
		}
		if ref == "" || (pt.NetsRetrievalRef != "" && ref != pt.NetsRetrievalRef) {
			return "", ErrTopupRefMismatch
		}
		adapter, err := s.registry.ForMethod(models.MethodNets)
		if err != nil {
			return "", err
		}
		status, err := adapter.CheckStatus(ctx, ref)
		if err != nil {
			return "", err
		}
		if status != payment.StatusCompleted {
			return "", payment.ErrNotCompleted
		}
		return ref, nil

	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMethod, pt.PaymentMethod)
	}
}

// PayWithStoreCredit captures up to amount from the user's wallet as a
// partial tender after the password step-up.
func (s *WalletService) PayWithStoreCredit(ctx context.Context, user *models.User, amount int64, password string) (applied int64, providerRef string, err error) {
	applied, providerRef, err = s.storeCredit.Pay(ctx, user, amount, password)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			util.WalletDeductionsFailedTotal.Inc()
		}
		return 0, "", err
	}
	return applied, providerRef, nil
}
