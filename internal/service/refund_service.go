package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/store"
	"storefront/internal/util"
)

var (
	ErrRefundAlreadyPending   = errors.New("a refund is already pending for this order")
	ErrOrderOwnerDeleted      = errors.New("order owner account was deleted")
	ErrInvalidRefundAmount    = errors.New("invalid refund amount")
	ErrDestinationNotAllowed  = errors.New("original-rail refunds are not supported for this payment method")
	ErrRefundAlreadyFinalized = errors.New("refund was already finalized")
)

// RefundService moves refunds through pending -> approved|rejected and
// performs restock and settlement on first approval.
type RefundService struct {
	store           *store.Store
	registry        *payment.Registry
	eventPublisher  *broker.EventPublisher
	originalMethods map[string]bool
	currency        string
	logger          *zap.Logger
}

// NewRefundService creates a new refund service
func NewRefundService(st *store.Store, registry *payment.Registry, eventPublisher *broker.EventPublisher, originalMethods []string, currency string) *RefundService {
	allowed := make(map[string]bool, len(originalMethods))
	for _, m := range originalMethods {
		allowed[m] = true
	}
	return &RefundService{
		store:           st,
		registry:        registry,
		eventPublisher:  eventPublisher,
		originalMethods: allowed,
		currency:        currency,
		logger:          util.GetLogger(),
	}
}

// Request files a user refund request for the full order total. Only
// one refund may be pending per order at a time.
func (s *RefundService) Request(ctx context.Context, user *models.User, orderID int64, destination, reason string) (*models.Refund, error) {
	ctx, span := util.StartSpan(ctx, "RefundService.Request")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID, user.ID)
	if err != nil {
		return nil, err
	}

	if destination != models.RefundDestStoreCredit && destination != models.RefundDestOriginal {
		destination = models.RefundDestStoreCredit
	}
	if err := s.checkDestination(destination, order.PaymentMethod); err != nil {
		return nil, err
	}

	pending, err := s.store.HasPendingRefund(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing refunds: %w", err)
	}
	if pending {
		return nil, ErrRefundAlreadyPending
	}

	refund := &models.Refund{
		OrderID:     orderID,
		Amount:      order.Total,
		Reason:      reason,
		Destination: destination,
		Status:      models.RefundStatusPending,
	}
	if err := s.store.CreateRefund(ctx, refund); err != nil {
		return nil, fmt.Errorf("failed to create refund: %w", err)
	}

	util.RefundsRequestedTotal.Inc()
	s.logger.Info("Refund requested",
		zap.Int64("refund_id", refund.ID),
		zap.Int64("order_id", orderID),
		zap.Int64("amount", refund.Amount),
		zap.String("destination", destination))
	return refund, nil
}

// CreateAndApprove is the admin shortcut: file a refund for an order
// and approve it in one step.
func (s *RefundService) CreateAndApprove(ctx context.Context, orderID, amount int64, destination, reason string) (*ApprovalResult, error) {
	order, err := s.store.GetOrderByID(ctx, orderID, 0)
	if err != nil {
		return nil, err
	}
	if amount <= 0 || amount > order.Total {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRefundAmount, amount)
	}
	if err := s.checkDestination(destination, order.PaymentMethod); err != nil {
		return nil, err
	}

	refund := &models.Refund{
		OrderID:     orderID,
		Amount:      amount,
		Reason:      reason,
		Destination: destination,
		Status:      models.RefundStatusPending,
	}
	if err := s.store.CreateRefund(ctx, refund); err != nil {
		return nil, fmt.Errorf("failed to create refund: %w", err)
	}

	return s.Approve(ctx, refund.ID, nil)
}

// ApprovalResult reports how an approval went. PartialRestock means
// some line items failed to restock; the refund stays approved but
// settlement was skipped and must be retried.
type ApprovalResult struct {
	Refund         *models.Refund
	FinalAmount    int64
	PartialRestock bool
}

// Approve finalizes a pending refund. The approved amount is persisted
// before the provider call so a crash between the two leaves a record
// of intent. Restock happens only on the first approval; repeat calls
// cannot double-restock.
func (s *RefundService) Approve(ctx context.Context, refundID int64, overrideAmount *int64) (*ApprovalResult, error) {
	ctx, span := util.StartSpan(ctx, "RefundService.Approve")
	defer span.End()

	refund, err := s.store.GetRefundByID(ctx, refundID)
	if err != nil {
		return nil, err
	}
	order, err := s.store.GetOrderByID(ctx, refund.OrderID, 0)
	if err != nil {
		return nil, err
	}
	owner, err := s.store.GetUserByID(ctx, order.UserID)
	if err != nil {
		return nil, err
	}
	if owner.Role == models.RoleDeleted {
		return nil, ErrOrderOwnerDeleted
	}

	finalAmount := refund.Amount
	if overrideAmount != nil {
		finalAmount = *overrideAmount
	}
	if finalAmount > order.Total {
		finalAmount = order.Total
	}
	if finalAmount <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRefundAmount, finalAmount)
	}

	var providerRef string
	if refund.Destination == models.RefundDestOriginal {
		captured, ref, err := s.capturedOnRail(order)
		if err != nil {
			return nil, err
		}
		if finalAmount > captured {
			finalAmount = captured
		}
		if finalAmount <= 0 {
			return nil, fmt.Errorf("%w: nothing captured on %s", ErrInvalidRefundAmount, order.PaymentMethod)
		}
		providerRef = ref
	}

	// Record intent before touching the provider.
	if err := s.store.SetApprovedAmount(ctx, refund.ID, finalAmount); err != nil {
		return nil, fmt.Errorf("failed to record approved amount: %w", err)
	}

	if refund.Destination == models.RefundDestOriginal {
		adapter, err := s.registry.ForMethod(order.PaymentMethod)
		if err != nil {
			return nil, err
		}
		if err := adapter.Refund(ctx, providerRef, finalAmount); err != nil {
			// Status untouched so the approval can be retried.
			return nil, fmt.Errorf("provider refund failed: %w", err)
		}
	}

	previousStatus := refund.Status
	if err := s.store.UpdateRefundStatus(ctx, refund.ID, models.RefundStatusApproved); err != nil {
		return nil, fmt.Errorf("failed to update refund status: %w", err)
	}
	refund.Status = models.RefundStatusApproved
	refund.ApprovedAmount = &finalAmount

	result := &ApprovalResult{Refund: refund, FinalAmount: finalAmount}

	if firstApproval(previousStatus) {
		if !s.restockOrder(ctx, order.ID) {
			result.PartialRestock = true
			s.logger.Error("Refund approved but restock incomplete",
				zap.Int64("refund_id", refund.ID),
				zap.Int64("order_id", order.ID))
			return result, nil
		}

		if err := s.settle(ctx, refund, order, finalAmount); err != nil {
			s.logger.Error("Refund approved but settlement failed",
				zap.Int64("refund_id", refund.ID),
				zap.Error(err))
			return result, nil
		}
	}

	util.RefundsApprovedTotal.WithLabelValues(refund.Destination).Inc()
	event := &models.RefundApprovedEvent{
		RefundID:    refund.ID,
		OrderID:     order.ID,
		UserID:      order.UserID,
		Amount:      finalAmount,
		Destination: refund.Destination,
	}
	if err := s.eventPublisher.PublishRefundApproved(ctx, event); err != nil {
		s.logger.Error("Failed to publish refund approved event", zap.Error(err))
	}

	s.logger.Info("Refund approved",
		zap.Int64("refund_id", refund.ID),
		zap.Int64("order_id", order.ID),
		zap.Int64("amount", finalAmount),
		zap.String("destination", refund.Destination))
	return result, nil
}

// Reject is a pure status update; no restock, no settlement.
func (s *RefundService) Reject(ctx context.Context, refundID int64) error {
	refund, err := s.store.GetRefundByID(ctx, refundID)
	if err != nil {
		return err
	}
	if refund.Status != models.RefundStatusPending {
		return fmt.Errorf("%w: %s", ErrRefundAlreadyFinalized, refund.Status)
	}

	order, err := s.store.GetOrderByID(ctx, refund.OrderID, 0)
	if err != nil {
		return err
	}

	if err := s.store.UpdateRefundStatus(ctx, refundID, models.RefundStatusRejected); err != nil {
		return fmt.Errorf("failed to update refund status: %w", err)
	}

	util.RefundsRejectedTotal.Inc()
	event := &models.RefundRejectedEvent{
		RefundID: refundID,
		OrderID:  refund.OrderID,
		UserID:   order.UserID,
	}
	if err := s.eventPublisher.PublishRefundRejected(ctx, event); err != nil {
		s.logger.Error("Failed to publish refund rejected event", zap.Error(err))
	}

	s.logger.Info("Refund rejected", zap.Int64("refund_id", refundID))
	return nil
}

// capturedOnRail sums what the order actually charged on its recorded
// payment method and returns the capture ref for the provider call.
// checkDestination rejects unknown destinations and original-rail
// refunds on rails without a refund API.
func (s *RefundService) checkDestination(destination, paymentMethod string) error {
	switch destination {
	case models.RefundDestStoreCredit:
		return nil
	case models.RefundDestOriginal:
		if !s.originalMethods[paymentMethod] {
			return fmt.Errorf("%w: %s", ErrDestinationNotAllowed, paymentMethod)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrDestinationNotAllowed, destination)
	}
}

// firstApproval reports whether approving from this status may restock
// and settle. Repeat approvals of an already-approved refund must not.
func firstApproval(previousStatus string) bool {
	return previousStatus != models.RefundStatusApproved && previousStatus != models.RefundStatusProcessed
}

func (s *RefundService) capturedOnRail(order *models.Order) (int64, string, error) {
	if order.PaymentSummary == "" {
		return 0, "", fmt.Errorf("%w: order %d has no payment summary", payment.ErrOriginalPaymentMissing, order.ID)
	}

	var summary models.PaymentSummary
	if err := json.Unmarshal([]byte(order.PaymentSummary), &summary); err != nil {
		return 0, "", fmt.Errorf("corrupt payment summary on order %d: %w", order.ID, err)
	}

	var captured int64
	var ref string
	for _, p := range summary.Partials {
		if p.Method != order.PaymentMethod {
			continue
		}
		captured += p.Amount
		if ref == "" && p.ProviderRef != "" {
			ref = p.ProviderRef
		}
	}
	if ref == "" {
		return 0, "", fmt.Errorf("%w: order %d", payment.ErrOriginalPaymentMissing, order.ID)
	}
	return captured, ref, nil
}

// restockOrder increments stock back for every line item. The
// increments are unconditional since they mirror the settle-time
// decrements. Returns false if any line failed.
func (s *RefundService) restockOrder(ctx context.Context, orderID int64) bool {
	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		s.logger.Error("Failed to load items for restock", zap.Int64("order_id", orderID), zap.Error(err))
		return false
	}

	ok := true
	for _, item := range items {
		if err := s.store.RestockProduct(ctx, item.ProductID, item.Quantity); err != nil {
			ok = false
			s.logger.Error("Restock failed for line",
				zap.Int64("order_id", orderID),
				zap.Int64("product_id", item.ProductID),
				zap.Error(err))
		}
	}
	return ok
}

// settle moves the money: wallet credit for store_credit, audit log
// only for original-rail (the provider already moved it).
func (s *RefundService) settle(ctx context.Context, refund *models.Refund, order *models.Order, amount int64) error {
	if refund.Destination == models.RefundDestStoreCredit {
		balance, err := s.store.AddWalletFunds(ctx, order.UserID, amount)
		if err != nil {
			return fmt.Errorf("failed to credit wallet: %w", err)
		}
		wtx := &models.WalletTransaction{
			UserID:      order.UserID,
			Amount:      amount,
			Method:      "refund",
			Status:      models.WalletTxCompleted,
			ProviderRef: fmt.Sprintf("refund-%d", refund.ID),
		}
		if err := s.store.CreateWalletTransaction(ctx, wtx); err != nil {
			return fmt.Errorf("failed to record wallet credit: %w", err)
		}

		util.WalletCreditsTotal.Inc()
		event := &models.WalletCreditedEvent{
			UserID:  order.UserID,
			Amount:  amount,
			Method:  "refund",
			Balance: balance,
		}
		if err := s.eventPublisher.PublishWalletCredited(ctx, event); err != nil {
			s.logger.Error("Failed to publish wallet credited event", zap.Error(err))
		}
		return nil
	}

	tx := &models.Transaction{
		OrderID:    order.ID,
		PayerID:    fmt.Sprintf("user-%d", order.UserID),
		PayerEmail: "",
		Amount:     -amount,
		Currency:   s.currency,
		Status:     "REFUNDED",
		Method:     order.PaymentMethod,
	}
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return fmt.Errorf("failed to record refund transaction: %w", err)
	}
	return nil
}
