package store

import (
	"context"
	"database/sql"
	"fmt"

	"storefront/internal/models"
)

// CreateOrderSettled inserts the order row, its line items, and the
// per-line conditional stock decrement in a single transaction. If any
// decrement matches zero rows the whole transaction rolls back and
// ErrInsufficientStock is returned: no order exists and stock is
// untouched.
func (s *Store) CreateOrderSettled(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (user_id, total, notes, status, shipping_status, payment_method, payment_summary, provider_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
		RETURNING id, created_at`

	if err := tx.GetContext(ctx, order, query,
		order.UserID, order.Total, order.Notes, order.Status,
		order.ShippingStatus, order.PaymentMethod, order.PaymentSummary, order.ProviderRef); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range items {
		items[i].OrderID = order.ID
		if err := tx.GetContext(ctx, &items[i].ID,
			"INSERT INTO order_items (order_id, product_id, price, quantity) VALUES ($1, $2, $3, $4) RETURNING id",
			items[i].OrderID, items[i].ProductID, items[i].Price, items[i].Quantity); err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			"UPDATE products SET quantity = quantity - $1 WHERE id = $2 AND quantity >= $1",
			items[i].Quantity, items[i].ProductID)
		if err != nil {
			return fmt.Errorf("failed to decrement stock: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: product %d", ErrInsufficientStock, items[i].ProductID)
		}
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order. If userID is non-zero the order must
// belong to that user; admins pass zero to read any order.
func (s *Store) GetOrderByID(ctx context.Context, orderID, userID int64) (*models.Order, error) {
	var order models.Order
	var err error
	if userID != 0 {
		err = s.db.GetContext(ctx, &order,
			"SELECT * FROM orders WHERE id = $1 AND user_id = $2", orderID, userID)
	} else {
		err = s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", orderID)
	}
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByProviderRef looks up an order by its provider correlation
// id. Returns nil without error when no order has claimed the ref; this
// is the durable idempotency check for duplicate provider callbacks.
func (s *Store) GetOrderByProviderRef(ctx context.Context, ref string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE provider_ref = $1", ref)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderItemsByOrderID retrieves all items for an order, joined with
// the product name for display.
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.price, oi.quantity,
		       COALESCE(p.name, '') AS name
		FROM order_items oi
		LEFT JOIN products p ON oi.product_id = p.id
		WHERE oi.order_id = $1
		ORDER BY oi.id`, orderID)
	return items, err
}

// GetOrdersByUserID retrieves orders for a user, newest first
func (s *Store) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return orders, err
}

// GetAllOrders retrieves every order, newest first (admin)
func (s *Store) GetAllOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders, "SELECT * FROM orders ORDER BY created_at DESC")
	return orders, err
}

// UpdateOrderStatus updates order status (admin)
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1 WHERE id = $2", status, orderID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
	}
	return nil
}

// UpdateShippingStatus updates shipping status (admin)
func (s *Store) UpdateShippingStatus(ctx context.Context, orderID int64, shippingStatus string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET shipping_status = $1 WHERE id = $2", shippingStatus, orderID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
	}
	return nil
}
