package payment

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"
)

// ErrPasswordRequired means the store-credit step-up check failed.
var ErrPasswordRequired = fmt.Errorf("password confirmation failed")

// StoreCreditAdapter settles charges against the wallet ledger instead
// of an external provider. Unlike the hosted rails it captures
// synchronously, so the usual CreateIntent round trip does not apply;
// callers use Pay, which needs the authenticated user for the step-up
// password check.
type StoreCreditAdapter struct {
	store  *store.Store
	logger *zap.Logger
}

func NewStoreCreditAdapter(st *store.Store, logger *zap.Logger) *StoreCreditAdapter {
	return &StoreCreditAdapter{store: st, logger: logger}
}

// Pay deducts up to amount from the user's wallet after re-verifying
// the password. When the balance is below amount the whole balance is
// taken as a partial tender; applied reports how much was captured.
func (a *StoreCreditAdapter) Pay(ctx context.Context, user *models.User, amount int64, password string) (applied int64, providerRef string, err error) {
	if !util.CheckPassword(password, user.Password) {
		return 0, "", ErrPasswordRequired
	}

	balance, err := a.store.GetWalletBalance(ctx, user.ID)
	if err != nil {
		return 0, "", fmt.Errorf("read wallet balance: %w", err)
	}
	if balance <= 0 {
		return 0, "", store.ErrInsufficientFunds
	}

	applied = amount
	if applied > balance {
		applied = balance
	}

	if _, err := a.store.DeductWalletFunds(ctx, user.ID, applied); err != nil {
		return 0, "", err
	}

	providerRef = walletRef(user.ID)
	wtx := &models.WalletTransaction{
		UserID:      user.ID,
		Amount:      -applied,
		Method:      models.MethodStoreCredit,
		Status:      models.WalletTxCompleted,
		ProviderRef: providerRef,
	}
	if err := a.store.CreateWalletTransaction(ctx, wtx); err != nil {
		a.logger.Error("Wallet deducted but ledger write failed",
			zap.Int64("user_id", user.ID),
			zap.Int64("amount", applied),
			zap.Error(err))
		return 0, "", fmt.Errorf("record wallet deduction: %w", err)
	}

	a.logger.Info("Store credit captured",
		zap.Int64("user_id", user.ID),
		zap.Int64("applied", applied),
		zap.String("provider_ref", providerRef))
	return applied, providerRef, nil
}

// CreateIntent is not used on this rail; the capture is synchronous via
// Pay.
func (a *StoreCreditAdapter) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	return nil, fmt.Errorf("%w: store credit captures synchronously", ErrProviderUnavailable)
}

// CheckStatus reports completed for any ledger ref we wrote; the
// deduction and the ledger row commit together.
func (a *StoreCreditAdapter) CheckStatus(ctx context.Context, providerRef string) (Status, error) {
	wtx, err := a.store.GetWalletTransactionByProviderRef(ctx, providerRef)
	if err != nil {
		return StatusFailed, err
	}
	if wtx == nil {
		return StatusPending, nil
	}
	return StatusCompleted, nil
}

// Refund credits the wallet identified by the ledger ref.
func (a *StoreCreditAdapter) Refund(ctx context.Context, providerRef string, amount int64) error {
	userID, err := userIDFromWalletRef(providerRef)
	if err != nil {
		return err
	}

	if _, err := a.store.AddWalletFunds(ctx, userID, amount); err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}
	wtx := &models.WalletTransaction{
		UserID:      userID,
		Amount:      amount,
		Method:      models.MethodStoreCredit,
		Status:      models.WalletTxCompleted,
		ProviderRef: walletRef(userID),
	}
	if err := a.store.CreateWalletTransaction(ctx, wtx); err != nil {
		return fmt.Errorf("record wallet credit: %w", err)
	}

	a.logger.Info("Store credit refunded",
		zap.Int64("user_id", userID),
		zap.Int64("amount", amount))
	return nil
}

// walletRef encodes the owning user into the ledger ref so refunds can
// route back without a provider lookup.
func walletRef(userID int64) string {
	return fmt.Sprintf("wallet:%d:%s", userID, uuid.NewString())
}

func userIDFromWalletRef(ref string) (int64, error) {
	parts := strings.Split(ref, ":")
	if len(parts) != 3 || parts[0] != "wallet" {
		return 0, fmt.Errorf("%w: malformed wallet ref %q", ErrOriginalPaymentMissing, ref)
	}
	userID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed wallet ref %q", ErrOriginalPaymentMissing, ref)
	}
	return userID, nil
}
