package store

import (
	"context"
	"database/sql"
	"fmt"

	"storefront/internal/models"
)

// GetWalletBalance lazily creates a zero-balance row on first access
// and returns the current balance.
func (s *Store) GetWalletBalance(ctx context.Context, userID int64) (int64, error) {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO wallets (user_id, balance)
		VALUES ($1, 0)
		ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return 0, err
	}

	var balance int64
	err := s.db.GetContext(ctx, &balance,
		"SELECT balance FROM wallets WHERE user_id = $1", userID)
	return balance, err
}

// AddWalletFunds atomically upsert-increments the balance and returns
// the new balance. No upper bound.
func (s *Store) AddWalletFunds(ctx context.Context, userID, amount int64) (int64, error) {
	var balance int64
	err := s.db.GetContext(ctx, &balance, `
		INSERT INTO wallets (user_id, balance)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET balance = wallets.balance + EXCLUDED.balance, updated_at = NOW()
		RETURNING balance`, userID, amount)
	if err != nil {
		return 0, fmt.Errorf("failed to credit wallet: %w", err)
	}
	return balance, nil
}

// DeductWalletFunds atomically decrements the balance only when it
// covers the amount. Returns ErrInsufficientFunds, with no mutation,
// when it does not.
func (s *Store) DeductWalletFunds(ctx context.Context, userID, amount int64) (int64, error) {
	if _, err := s.GetWalletBalance(ctx, userID); err != nil {
		return 0, err
	}

	var balance int64
	err := s.db.GetContext(ctx, &balance, `
		UPDATE wallets
		SET balance = balance - $1, updated_at = NOW()
		WHERE user_id = $2 AND balance >= $1
		RETURNING balance`, amount, userID)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: user %d", ErrInsufficientFunds, userID)
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// CreateWalletTransaction appends one ledger row. The ledger is
// append-only; rows are never updated or deleted.
func (s *Store) CreateWalletTransaction(ctx context.Context, tx *models.WalletTransaction) error {
	query := `
		INSERT INTO wallet_transactions (user_id, amount, method, status, provider_ref)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		RETURNING id, created_at`

	return s.db.GetContext(ctx, tx, query,
		tx.UserID, tx.Amount, tx.Method, tx.Status, tx.ProviderRef)
}

// GetWalletTransactionsByUser retrieves a user's ledger, newest first
func (s *Store) GetWalletTransactionsByUser(ctx context.Context, userID int64) ([]models.WalletTransaction, error) {
	var txs []models.WalletTransaction
	err := s.db.SelectContext(ctx, &txs, `
		SELECT id, user_id, amount, method, status, COALESCE(provider_ref, '') AS provider_ref, created_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	return txs, err
}

// GetWalletTransactionByID retrieves one ledger row scoped to its owner
func (s *Store) GetWalletTransactionByID(ctx context.Context, id, userID int64) (*models.WalletTransaction, error) {
	var tx models.WalletTransaction
	err := s.db.GetContext(ctx, &tx, `
		SELECT id, user_id, amount, method, status, COALESCE(provider_ref, '') AS provider_ref, created_at
		FROM wallet_transactions
		WHERE id = $1 AND user_id = $2`, id, userID)
	if err == sql.ErrNoRows {
		return nil, ErrWalletTxNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// GetWalletTransactionByProviderRef checks whether a provider reference
// was already credited; the idempotency guard for duplicate top-up
// confirmations.
func (s *Store) GetWalletTransactionByProviderRef(ctx context.Context, ref string) (*models.WalletTransaction, error) {
	var tx models.WalletTransaction
	err := s.db.GetContext(ctx, &tx, `
		SELECT id, user_id, amount, method, status, COALESCE(provider_ref, '') AS provider_ref, created_at
		FROM wallet_transactions
		WHERE provider_ref = $1
		ORDER BY created_at DESC LIMIT 1`, ref)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// WalletBalanceRow is one line of the admin all-balances view
type WalletBalanceRow struct {
	UserID   int64  `db:"user_id" json:"user_id"`
	Username string `db:"username" json:"username"`
	Email    string `db:"email" json:"email"`
	Balance  int64  `db:"balance" json:"balance"`
}

// GetAllWalletBalances lists every user with their balance (admin)
func (s *Store) GetAllWalletBalances(ctx context.Context) ([]WalletBalanceRow, error) {
	var rows []WalletBalanceRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT u.id AS user_id, u.username, u.email, COALESCE(w.balance, 0) AS balance
		FROM users u
		LEFT JOIN wallets w ON u.id = w.user_id
		ORDER BY u.id`)
	return rows, err
}
