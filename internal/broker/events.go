package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"pos-service/internal/apperr"
	"pos-service/internal/models"
	"pos-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher relays order lifecycle events to the order-events topic
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishNewOrder publishes a new_order event
func (ep *EventPublisher) PublishNewOrder(ctx context.Context, event *models.NewOrderEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishStatusUpdate publishes an order_status_update event
func (ep *EventPublisher) PublishStatusUpdate(ctx context.Context, event *models.OrderStatusUpdateEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// Publish routes any order event to the matching publish method
func (ep *EventPublisher) Publish(ctx context.Context, event interface{}) error {
	switch e := event.(type) {
	case *models.NewOrderEvent:
		return ep.PublishNewOrder(ctx, e)
	case *models.OrderStatusUpdateEvent:
		return ep.PublishStatusUpdate(ctx, e)
	default:
		return fmt.Errorf("unsupported event %T", event)
	}
}

func orderKey(orderID int64) string {
	return fmt.Sprintf("order-%d", orderID)
}

// EventHandler routes incoming messages by event type
type EventHandler struct {
	onPaymentCallback func(context.Context, *models.PaymentCallbackEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnPaymentCallback registers a handler for payment_callback events
func (eh *EventHandler) OnPaymentCallback(handler func(context.Context, *models.PaymentCallbackEvent) error) {
	eh.onPaymentCallback = handler
}

// HandleMessage routes messages to appropriate handlers. Malformed messages
// and events the handler rejects as invalid are logged and acknowledged.
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	logger := util.Logger("events")

	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		logger.Error("Dropping malformed event", zap.ByteString("key", msg.Key), zap.Error(err))
		return nil
	}

	logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypePaymentCallback:
		if eh.onPaymentCallback != nil {
			var event models.PaymentCallbackEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				logger.Error("Dropping malformed payment callback", zap.Error(err))
				return nil
			}
			err := eh.onPaymentCallback(ctx, &event)
			if apperr.IsValidation(err) {
				logger.Error("Dropping invalid payment callback",
					zap.String("event_id", baseEvent.EventID),
					zap.Error(err))
				return nil
			}
			return err
		}

	default:
		logger.Warn("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}
