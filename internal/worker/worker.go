package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"
)

// NotificationWorker consumes domain events and writes user-facing
// notification rows. Handler errors skip the commit so the event is
// redelivered.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        *store.Store
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, st *store.Store) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		store:    st,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderSettled(w.handleOrderSettled)
	eventHandler.OnRefundApproved(w.handleRefundApproved)
	eventHandler.OnRefundRejected(w.handleRefundRejected)
	eventHandler.OnWalletCredited(w.handleWalletCredited)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}

func (w *NotificationWorker) handleOrderSettled(ctx context.Context, event *models.OrderSettledEvent) error {
	return w.notify(ctx, event.UserID,
		"Order confirmed",
		fmt.Sprintf("Order #%d for $%s was placed successfully.", event.OrderID, models.FormatAmount(event.Total)))
}

func (w *NotificationWorker) handleRefundApproved(ctx context.Context, event *models.RefundApprovedEvent) error {
	dest := "store credit"
	if event.Destination == models.RefundDestOriginal {
		dest = "your original payment method"
	}
	return w.notify(ctx, event.UserID,
		"Refund approved",
		fmt.Sprintf("Your refund of $%s for order #%d was approved and sent to %s.",
			models.FormatAmount(event.Amount), event.OrderID, dest))
}

func (w *NotificationWorker) handleRefundRejected(ctx context.Context, event *models.RefundRejectedEvent) error {
	return w.notify(ctx, event.UserID,
		"Refund rejected",
		fmt.Sprintf("Your refund request for order #%d was rejected.", event.OrderID))
}

func (w *NotificationWorker) handleWalletCredited(ctx context.Context, event *models.WalletCreditedEvent) error {
	return w.notify(ctx, event.UserID,
		"Wallet credited",
		fmt.Sprintf("$%s was added to your wallet. New balance: $%s.",
			models.FormatAmount(event.Amount), models.FormatAmount(event.Balance)))
}

func (w *NotificationWorker) notify(ctx context.Context, userID int64, title, message string) error {
	n := &models.Notification{
		UserID:  userID,
		Title:   title,
		Message: message,
	}
	if err := w.store.CreateNotification(ctx, n); err != nil {
		w.logger.Error("Failed to create notification",
			zap.Int64("user_id", userID),
			zap.String("title", title),
			zap.Error(err))
		return err
	}
	return nil
}
