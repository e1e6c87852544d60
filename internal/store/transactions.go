package store

import (
	"context"

	"storefront/internal/models"
)

// CreateTransaction appends one audit-log row. The log is append-only
// and independent of order or refund status.
func (s *Store) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	query := `
		INSERT INTO transactions (order_id, payer_id, payer_email, amount, currency, status, method)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, tx, query,
		tx.OrderID, tx.PayerID, tx.PayerEmail, tx.Amount, tx.Currency, tx.Status, tx.Method)
}

// GetTransactionsByOrder retrieves audit rows for one order
func (s *Store) GetTransactionsByOrder(ctx context.Context, orderID int64) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := s.db.SelectContext(ctx, &txs,
		"SELECT * FROM transactions WHERE order_id = $1 ORDER BY created_at", orderID)
	return txs, err
}

// GetAllTransactions lists the full audit log, newest first (admin
// reconciliation)
func (s *Store) GetAllTransactions(ctx context.Context) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := s.db.SelectContext(ctx, &txs, "SELECT * FROM transactions ORDER BY created_at DESC")
	return txs, err
}

// CreateNotification inserts a user notification
func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (user_id, title, message)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, n, query, n.UserID, n.Title, n.Message)
}

// GetNotificationsByUser retrieves a user's notifications, newest first
func (s *Store) GetNotificationsByUser(ctx context.Context, userID int64) ([]models.Notification, error) {
	var ns []models.Notification
	err := s.db.SelectContext(ctx, &ns,
		"SELECT * FROM notifications WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return ns, err
}

// MarkNotificationRead flags one notification as read
func (s *Store) MarkNotificationRead(ctx context.Context, id, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2", id, userID)
	return err
}
