package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"pos-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewMessageSetsEventHeaders(t *testing.T) {
	event := &models.OrderStatusUpdateEvent{
		BaseEvent: models.BaseEvent{EventID: "evt-9", EventType: models.EventTypeOrderStatusUpdate},
		OrderID:   9,
		Status:    models.OrderStatusCooking,
	}

	msg, err := newMessage(orderKey(9), event)
	require.NoError(t, err)

	assert.Equal(t, "order-9", string(msg.Key))
	assert.Equal(t, models.EventTypeOrderStatusUpdate, eventType(msg))
	assert.Contains(t, msg.Headers, kafka.Header{Key: HeaderEventID, Value: []byte("evt-9")})

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, models.OrderStatusCooking, body["status"])
}

func TestNewMessageWithoutHeader(t *testing.T) {
	msg, err := newMessage("k", map[string]string{"a": "b"})
	require.NoError(t, err)
	assert.Empty(t, msg.Headers)
	assert.Equal(t, "unknown", eventType(msg))
}

func TestRetryBackoffIsCapped(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, retryBackoff(1))
	assert.Equal(t, time.Second, retryBackoff(2))
	assert.Equal(t, 4*time.Second, retryBackoff(4))
	assert.Equal(t, retryBackoffMax, retryBackoff(20))
}

func TestHandleWithRetryRetriesUntilSuccess(t *testing.T) {
	calls := 0
	handler := func(ctx context.Context, msg kafka.Message) error {
		calls++
		if calls == 1 {
			return errors.New("db down")
		}
		return nil
	}

	require.NoError(t, handleWithRetry(context.Background(), zap.NewNop(), handler, kafka.Message{}))
	assert.Equal(t, 2, calls)
}

func TestHandleWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	handler := func(ctx context.Context, msg kafka.Message) error {
		cancel()
		return errors.New("db down")
	}

	err := handleWithRetry(ctx, zap.NewNop(), handler, kafka.Message{})
	assert.ErrorIs(t, err, context.Canceled)
}
