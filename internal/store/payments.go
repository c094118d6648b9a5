package store

import (
	"context"

	"pos-service/internal/models"

	"github.com/shopspring/decimal"
)

const paymentColumns = `id, order_id, reference_id, provider_id, method, channel_code, amount, paid_amount,
	status, metadata, paid_at, created_at, updated_at`

// CreatePayment creates a new payment record
func (s *Store) CreatePayment(ctx context.Context, p *models.Payment) error {
	query := `
		INSERT INTO payments (order_id, reference_id, provider_id, method, channel_code, amount, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		p.OrderID, p.ReferenceID, p.ProviderID, p.Method, p.ChannelCode, p.Amount, p.Status, p.Metadata,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return mapError(err, "payment")
}

// GetPayment retrieves a payment by gateway id or by our reference id
func (s *Store) GetPayment(ctx context.Context, ref string) (*models.Payment, error) {
	var p models.Payment
	err := s.db.GetContext(ctx, &p,
		"SELECT "+paymentColumns+" FROM payments WHERE reference_id = $1 OR provider_id = $1 LIMIT 1", ref)
	if err != nil {
		return nil, mapError(err, "payment")
	}
	return &p, nil
}

// ApplyPaymentCallback records a gateway status report and returns the
// updated payment. paid_at is stamped on the first paid report only.
func (s *Store) ApplyPaymentCallback(ctx context.Context, referenceID, providerID, status string, paidAmount decimal.Decimal, paid bool) (*models.Payment, error) {
	query := `
		UPDATE payments
		SET status = $1, paid_amount = $2,
		    paid_at = CASE WHEN $3 THEN COALESCE(paid_at, NOW()) ELSE paid_at END,
		    updated_at = NOW()
		WHERE reference_id = $4 OR (provider_id <> '' AND provider_id = $5)
		RETURNING ` + paymentColumns

	var p models.Payment
	if err := s.db.GetContext(ctx, &p, query, status, paidAmount, paid, referenceID, providerID); err != nil {
		return nil, mapError(err, "payment")
	}
	return &p, nil
}
