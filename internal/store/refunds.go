package store

import (
	"context"
	"database/sql"
	"fmt"

	"storefront/internal/models"
)

// CreateRefund inserts a refund request in status pending
func (s *Store) CreateRefund(ctx context.Context, r *models.Refund) error {
	query := `
		INSERT INTO refunds (order_id, amount, reason, destination, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, r, query,
		r.OrderID, r.Amount, r.Reason, r.Destination, r.Status)
}

// GetRefundByID retrieves one refund
func (s *Store) GetRefundByID(ctx context.Context, id int64) (*models.Refund, error) {
	var r models.Refund
	err := s.db.GetContext(ctx, &r, "SELECT * FROM refunds WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrRefundNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRefundsByOrder retrieves refunds for an order, newest first
func (s *Store) GetRefundsByOrder(ctx context.Context, orderID int64) ([]models.Refund, error) {
	var refunds []models.Refund
	err := s.db.SelectContext(ctx, &refunds,
		"SELECT * FROM refunds WHERE order_id = $1 ORDER BY created_at DESC", orderID)
	return refunds, err
}

// HasPendingRefund reports whether the order already has an outstanding
// refund request.
func (s *Store) HasPendingRefund(ctx context.Context, orderID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM refunds WHERE order_id = $1 AND status = $2)",
		orderID, models.RefundStatusPending)
	return exists, err
}

// UpdateRefundStatus updates a refund's status
func (s *Store) UpdateRefundStatus(ctx context.Context, refundID int64, status string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE refunds SET status = $1 WHERE id = $2", status, refundID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrRefundNotFound, refundID)
	}
	return nil
}

// SetApprovedAmount records the final refund amount before settlement
// is attempted, so a failed provider call can be retried with the same
// amount.
func (s *Store) SetApprovedAmount(ctx context.Context, refundID, amount int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE refunds SET approved_amount = $1 WHERE id = $2", amount, refundID)
	return err
}

// GetAllRefunds lists every refund, newest first (admin)
func (s *Store) GetAllRefunds(ctx context.Context) ([]models.Refund, error) {
	var refunds []models.Refund
	err := s.db.SelectContext(ctx, &refunds, "SELECT * FROM refunds ORDER BY created_at DESC")
	return refunds, err
}

// CountPendingRefunds returns the number of outstanding requests (admin
// dashboard)
func (s *Store) CountPendingRefunds(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM refunds WHERE status = $1", models.RefundStatusPending)
	return count, err
}
