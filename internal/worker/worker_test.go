package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"pos-service/internal/apperr"
	"pos-service/internal/broker"
	"pos-service/internal/models"
	"pos-service/internal/service"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceSource hands a fixed batch of messages to the handler and records
// which ones would have been committed.
type sliceSource struct {
	messages  []kafka.Message
	committed []int64
	closed    bool
}

func (s *sliceSource) StartConsuming(ctx context.Context, handler broker.MessageHandler) error {
	for _, msg := range s.messages {
		if err := handler(ctx, msg); err == nil {
			s.committed = append(s.committed, msg.Offset)
		}
	}
	return nil
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

type recordingPayments struct {
	seen []string
	fail map[string]bool
}

func (p *recordingPayments) HandleCallback(ctx context.Context, cb *models.PaymentCallbackEvent) error {
	p.seen = append(p.seen, cb.CallbackID)
	if p.fail[cb.CallbackID] {
		return errors.New("transient")
	}
	return nil
}

func TestPaymentWorkerAppliesCallbacks(t *testing.T) {
	src := &sliceSource{messages: []kafka.Message{
		{Offset: 1, Value: []byte(`{"event_type":"payment_callback","callback_id":"a","reference_id":"r1","status":"PAID"}`)},
		{Offset: 2, Value: []byte(`{"event_type":"payment_callback","callback_id":"b","reference_id":"r2","status":"PAID"}`)},
		{Offset: 3, Value: []byte(`garbage`)},
	}}
	payments := &recordingPayments{fail: map[string]bool{"b": true}}

	w := NewPaymentWorker(src, payments)
	require.NoError(t, w.Start(context.Background()))

	assert.Equal(t, []string{"a", "b"}, payments.seen)
	assert.Equal(t, []int64{1, 3}, src.committed)

	require.NoError(t, w.Stop())
	assert.True(t, src.closed)
}

// callbackStore holds one pending payment per order
type callbackStore struct {
	mu        sync.Mutex
	orders    map[int64]*models.Order
	payments  map[string]*models.Payment
	processed map[string]bool
}

func newCallbackStore() *callbackStore {
	s := &callbackStore{
		orders:    map[int64]*models.Order{},
		payments:  map[string]*models.Payment{},
		processed: map[string]bool{},
	}
	for id, ref := range map[int64]string{1: "qris_ORD-1_1", 2: "qris_ORD-2_1"} {
		s.orders[id] = &models.Order{ID: id, Status: models.OrderStatusPending, TotalAmount: decimal.NewFromInt(50000)}
		s.payments[ref] = &models.Payment{OrderID: id, ReferenceID: ref, Amount: decimal.NewFromInt(50000), Status: models.PaymentStatusPending}
	}
	return s
}

func (s *callbackStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, apperr.NotFoundf("order not found")
	}
	cp := *o
	return &cp, nil
}

func (s *callbackStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	return errors.New("not used")
}

func (s *callbackStore) GetPayment(ctx context.Context, ref string) (*models.Payment, error) {
	return nil, apperr.NotFoundf("payment not found")
}

func (s *callbackStore) ApplyPaymentCallback(ctx context.Context, referenceID, providerID, status string, paidAmount decimal.Decimal, paid bool) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[referenceID]
	if !ok {
		return nil, apperr.NotFoundf("payment not found")
	}
	p.Status = status
	cp := *p
	return &cp, nil
}

func (s *callbackStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed[eventID], nil
}

func (s *callbackStore) MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processed[eventID] {
		return false, nil
	}
	s.processed[eventID] = true
	return true, nil
}

// SetStatus stands in for the order service
func (s *callbackStore) SetStatus(ctx context.Context, orderID int64, status string, paymentVerified *bool) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.orders[orderID]
	o.Status = status
	if paymentVerified != nil {
		o.PaymentVerified = *paymentVerified
	}
	cp := *o
	return &cp, nil
}

func TestPaymentWorkerConfirmsOrdersFromCallbacksWithoutIDs(t *testing.T) {
	src := &sliceSource{messages: []kafka.Message{
		{Offset: 1, Value: []byte(`{"event_type":"payment_callback","reference_id":"qris_ORD-1_1","status":"PAID"}`)},
		{Offset: 2, Value: []byte(`{"event_type":"payment_callback","reference_id":"qris_ORD-2_1","status":"paid"}`)},
		{Offset: 3, Value: []byte(`{"event_type":"payment_callback","status":"PAID"}`)},
	}}
	store := newCallbackStore()
	payments := service.NewPaymentService(store, nil, store)

	w := NewPaymentWorker(src, payments)
	require.NoError(t, w.Start(context.Background()))

	for _, id := range []int64{1, 2} {
		assert.Equal(t, models.OrderStatusConfirmed, store.orders[id].Status, "order %d", id)
		assert.True(t, store.orders[id].PaymentVerified, "order %d", id)
	}
	assert.Equal(t, map[string]bool{"qris_ORD-1_1:PAID": true, "qris_ORD-2_1:PAID": true}, store.processed)
	assert.Equal(t, []int64{1, 2, 3}, src.committed)
}
