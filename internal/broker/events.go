package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"storefront/internal/models"
	"storefront/internal/util"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

// PublishOrderSettled publishes ORDER_SETTLED after the order commits
func (ep *EventPublisher) PublishOrderSettled(ctx context.Context, event *models.OrderSettledEvent) error {
	event.BaseEvent = newBaseEvent(models.EventTypeOrderSettled)
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishRefundApproved publishes REFUND_APPROVED after restock and settlement
func (ep *EventPublisher) PublishRefundApproved(ctx context.Context, event *models.RefundApprovedEvent) error {
	event.BaseEvent = newBaseEvent(models.EventTypeRefundApproved)
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishRefundRejected publishes REFUND_REJECTED
func (ep *EventPublisher) PublishRefundRejected(ctx context.Context, event *models.RefundRejectedEvent) error {
	event.BaseEvent = newBaseEvent(models.EventTypeRefundRejected)
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishWalletCredited publishes WALLET_CREDITED on top-ups and
// store-credit refunds
func (ep *EventPublisher) PublishWalletCredited(ctx context.Context, event *models.WalletCreditedEvent) error {
	event.BaseEvent = newBaseEvent(models.EventTypeWalletCredited)
	key := fmt.Sprintf("wallet-%d", event.UserID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes consumed events to registered callbacks
type EventHandler struct {
	onOrderSettled   func(context.Context, *models.OrderSettledEvent) error
	onRefundApproved func(context.Context, *models.RefundApprovedEvent) error
	onRefundRejected func(context.Context, *models.RefundRejectedEvent) error
	onWalletCredited func(context.Context, *models.WalletCreditedEvent) error
	logger           *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnOrderSettled registers a handler for ORDER_SETTLED events
func (eh *EventHandler) OnOrderSettled(handler func(context.Context, *models.OrderSettledEvent) error) {
	eh.onOrderSettled = handler
}

// OnRefundApproved registers a handler for REFUND_APPROVED events
func (eh *EventHandler) OnRefundApproved(handler func(context.Context, *models.RefundApprovedEvent) error) {
	eh.onRefundApproved = handler
}

// OnRefundRejected registers a handler for REFUND_REJECTED events
func (eh *EventHandler) OnRefundRejected(handler func(context.Context, *models.RefundRejectedEvent) error) {
	eh.onRefundRejected = handler
}

// OnWalletCredited registers a handler for WALLET_CREDITED events
func (eh *EventHandler) OnWalletCredited(handler func(context.Context, *models.WalletCreditedEvent) error) {
	eh.onWalletCredited = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeOrderSettled:
		if eh.onOrderSettled != nil {
			var event models.OrderSettledEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderSettled event: %w", err)
			}
			return eh.onOrderSettled(ctx, &event)
		}

	case models.EventTypeRefundApproved:
		if eh.onRefundApproved != nil {
			var event models.RefundApprovedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal RefundApproved event: %w", err)
			}
			return eh.onRefundApproved(ctx, &event)
		}

	case models.EventTypeRefundRejected:
		if eh.onRefundRejected != nil {
			var event models.RefundRejectedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal RefundRejected event: %w", err)
			}
			return eh.onRefundRejected(ctx, &event)
		}

	case models.EventTypeWalletCredited:
		if eh.onWalletCredited != nil {
			var event models.WalletCreditedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal WalletCredited event: %w", err)
			}
			return eh.onWalletCredited(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
