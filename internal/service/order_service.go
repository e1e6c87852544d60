package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"
)

// OrderService serves order reads and the admin shipping updates.
// Order creation lives in SettlementService; rows here are immutable
// apart from status fields.
type OrderService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(st *store.Store) *OrderService {
	return &OrderService{
		store:  st,
		logger: util.GetLogger(),
	}
}

// OrderDetail bundles an order with its lines, refunds and audit log.
type OrderDetail struct {
	Order        *models.Order        `json:"order"`
	Items        []models.OrderItem   `json:"items"`
	Refunds      []models.Refund      `json:"refunds"`
	Transactions []models.Transaction `json:"transactions"`
}

// ListForUser returns the user's orders, newest first
func (s *OrderService) ListForUser(ctx context.Context, userID int64) ([]models.Order, error) {
	return s.store.GetOrdersByUserID(ctx, userID)
}

// Detail returns one order with lines, refunds and transactions.
// userID 0 skips the ownership check (admin).
func (s *OrderService) Detail(ctx context.Context, orderID, userID int64) (*OrderDetail, error) {
	order, err := s.store.GetOrderByID(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}

	items, err := s.store.GetOrderItemsByOrderID(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	refunds, err := s.store.GetRefundsByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load refunds: %w", err)
	}
	transactions, err := s.store.GetTransactionsByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	return &OrderDetail{
		Order:        order,
		Items:        items,
		Refunds:      refunds,
		Transactions: transactions,
	}, nil
}

// ListAll returns every order for the admin view
func (s *OrderService) ListAll(ctx context.Context) ([]models.Order, error) {
	return s.store.GetAllOrders(ctx)
}

// UpdateShippingStatus advances an order's shipping state
func (s *OrderService) UpdateShippingStatus(ctx context.Context, orderID int64, status string) error {
	switch status {
	case models.ShippingStatusProcessing, models.ShippingStatusShipped, models.ShippingStatusDelivered:
	default:
		return fmt.Errorf("invalid shipping status %q", status)
	}

	if err := s.store.UpdateShippingStatus(ctx, orderID, status); err != nil {
		return err
	}
	s.logger.Info("Shipping status updated",
		zap.Int64("order_id", orderID),
		zap.String("status", status))
	return nil
}

// UpdateStatus sets the order status (admin)
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int64, status string) error {
	switch status {
	case models.OrderStatusPending, models.OrderStatusCompleted, models.OrderStatusCancelled:
	default:
		return fmt.Errorf("invalid order status %q", status)
	}
	return s.store.UpdateOrderStatus(ctx, orderID, status)
}
