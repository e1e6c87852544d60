package store

import (
	"context"

	"storefront/internal/models"
)

// GetCartForUser retrieves the persisted cart joined with live product
// data for display. Prices here are not authoritative.
func (s *Store) GetCartForUser(ctx context.Context, userID int64) ([]models.CartItem, error) {
	var items []models.CartItem
	err := s.db.SelectContext(ctx, &items, `
		SELECT c.user_id, c.product_id, c.quantity,
		       p.name, p.price, p.image
		FROM user_cart_items c
		JOIN products p ON c.product_id = p.id
		WHERE c.user_id = $1
		ORDER BY c.product_id`, userID)
	return items, err
}

// SetCartItemQuantity upserts a cart line; quantity <= 0 deletes it.
func (s *Store) SetCartItemQuantity(ctx context.Context, userID, productID int64, quantity int) error {
	if quantity <= 0 {
		_, err := s.db.ExecContext(ctx,
			"DELETE FROM user_cart_items WHERE user_id = $1 AND product_id = $2",
			userID, productID)
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity`,
		userID, productID, quantity)
	return err
}

// RemoveCartItem deletes one cart line
func (s *Store) RemoveCartItem(ctx context.Context, userID, productID int64) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM user_cart_items WHERE user_id = $1 AND product_id = $2",
		userID, productID)
	return err
}

// ClearCart deletes every cart line for a user
func (s *Store) ClearCart(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM user_cart_items WHERE user_id = $1", userID)
	return err
}

// ReplaceCart swaps the persisted cart for the given lines in one
// transaction; used when merging an anonymous session cart on login.
func (s *Store) ReplaceCart(ctx context.Context, userID int64, items []models.CartItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM user_cart_items WHERE user_id = $1", userID); err != nil {
		return err
	}

	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO user_cart_items (user_id, product_id, quantity) VALUES ($1, $2, $3)",
			userID, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}

	return tx.Commit()
}
