package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"
)

// CartService handles cart business logic
type CartService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(st *store.Store) *CartService {
	return &CartService{
		store:  st,
		logger: util.GetLogger(),
	}
}

// CartView is a cart with its display total.
type CartView struct {
	Items []models.CartItem `json:"items"`
	Total int64             `json:"total"`
}

// GetCart returns the user's cart joined with live product data
func (s *CartService) GetCart(ctx context.Context, userID int64) (*CartView, error) {
	items, err := s.store.GetCartForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	var total int64
	for _, item := range items {
		total += item.Price * int64(item.Quantity)
	}
	return &CartView{Items: items, Total: total}, nil
}

// AddItem adds quantity of a product to the cart, capping the resulting
// line at available stock. capped reports whether the cap applied.
func (s *CartService) AddItem(ctx context.Context, userID, productID int64, quantity int) (capped bool, err error) {
	if quantity <= 0 {
		quantity = 1
	}

	product, err := s.store.GetProductByID(ctx, productID)
	if err != nil {
		return false, err
	}
	if product.Quantity <= 0 {
		return false, fmt.Errorf("%w: %s is out of stock", store.ErrInsufficientStock, product.Name)
	}

	existing := 0
	items, err := s.store.GetCartForUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to load cart: %w", err)
	}
	for _, item := range items {
		if item.ProductID == productID {
			existing = item.Quantity
		}
	}

	want := existing + quantity
	if want > product.Quantity {
		want = product.Quantity
		capped = true
	}

	if err := s.store.SetCartItemQuantity(ctx, userID, productID, want); err != nil {
		return false, fmt.Errorf("failed to update cart: %w", err)
	}

	s.logger.Debug("Cart item added",
		zap.Int64("user_id", userID),
		zap.Int64("product_id", productID),
		zap.Int("quantity", want),
		zap.Bool("capped", capped))
	return capped, nil
}

// UpdateItem sets a cart line to an absolute quantity, capping at
// available stock. Zero or negative removes the line.
func (s *CartService) UpdateItem(ctx context.Context, userID, productID int64, quantity int) (capped bool, err error) {
	if quantity <= 0 {
		return false, s.store.RemoveCartItem(ctx, userID, productID)
	}

	product, err := s.store.GetProductByID(ctx, productID)
	if err != nil {
		return false, err
	}
	if quantity > product.Quantity {
		quantity = product.Quantity
		capped = true
	}
	if quantity <= 0 {
		return true, s.store.RemoveCartItem(ctx, userID, productID)
	}

	return capped, s.store.SetCartItemQuantity(ctx, userID, productID, quantity)
}

// RemoveItem deletes a cart line
func (s *CartService) RemoveItem(ctx context.Context, userID, productID int64) error {
	return s.store.RemoveCartItem(ctx, userID, productID)
}

// Clear empties the user's cart
func (s *CartService) Clear(ctx context.Context, userID int64) error {
	return s.store.ClearCart(ctx, userID)
}

// MergeOnLogin folds an anonymous session cart into the user's
// persisted cart, capping each line at available stock. The merged cart
// replaces what was persisted.
func (s *CartService) MergeOnLogin(ctx context.Context, userID int64, sessionItems []models.CartItem) error {
	if len(sessionItems) == 0 {
		return nil
	}

	persisted, err := s.store.GetCartForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load cart: %w", err)
	}

	merged := make(map[int64]int, len(persisted)+len(sessionItems))
	for _, item := range persisted {
		merged[item.ProductID] = item.Quantity
	}
	for _, item := range sessionItems {
		merged[item.ProductID] += item.Quantity
	}

	ids := make([]int64, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	products, err := s.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to verify products: %w", err)
	}
	available := make(map[int64]int, len(products))
	for _, p := range products {
		available[p.ID] = p.Quantity
	}

	final := make([]models.CartItem, 0, len(merged))
	for id, qty := range merged {
		max, ok := available[id]
		if !ok || max <= 0 {
			continue
		}
		if qty > max {
			qty = max
		}
		final = append(final, models.CartItem{ProductID: id, Quantity: qty})
	}

	if err := s.store.ReplaceCart(ctx, userID, final); err != nil {
		return fmt.Errorf("failed to merge cart: %w", err)
	}

	s.logger.Info("Session cart merged",
		zap.Int64("user_id", userID),
		zap.Int("lines", len(final)))
	return nil
}

// Reorder copies a past order's items back into the cart, capping at
// available stock. Lines whose product is gone or out of stock are
// skipped and reported by name.
func (s *CartService) Reorder(ctx context.Context, userID, orderID int64) (skipped []string, err error) {
	order, err := s.store.GetOrderByID(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}

	items, err := s.store.GetOrderItemsByOrderID(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}

	for _, item := range items {
		product, err := s.store.GetProductByID(ctx, item.ProductID)
		if errors.Is(err, store.ErrProductNotFound) {
			skipped = append(skipped, item.Name)
			continue
		}
		if err != nil {
			return skipped, err
		}
		if product.Quantity <= 0 {
			skipped = append(skipped, product.Name)
			continue
		}

		qty := item.Quantity
		if qty > product.Quantity {
			qty = product.Quantity
		}
		if _, err := s.AddItem(ctx, userID, product.ID, qty); err != nil {
			return skipped, err
		}
	}

	s.logger.Info("Order copied back to cart",
		zap.Int64("user_id", userID),
		zap.Int64("order_id", orderID),
		zap.Int("skipped", len(skipped)))
	return skipped, nil
}
