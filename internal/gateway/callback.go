package gateway

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"pos-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CallbackTokenHeader carries the shared secret on every Xendit webhook
const CallbackTokenHeader = "x-callback-token"

// VerifyCallbackToken compares the webhook token in constant time. An
// unconfigured token rejects every callback.
func VerifyCallbackToken(expected, got string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

type rawCallback struct {
	// invoices
	ID         string           `json:"id"`
	ExternalID string           `json:"external_id"`
	Status     string           `json:"status"`
	PaidAmount *decimal.Decimal `json:"paid_amount"`
	Amount     *decimal.Decimal `json:"amount"`

	// virtual account payments
	PaymentID                string `json:"payment_id"`
	CallbackVirtualAccountID string `json:"callback_virtual_account_id"`

	// e-wallet charges
	Event string `json:"event"`
	Data  *struct {
		ID            string           `json:"id"`
		ReferenceID   string           `json:"reference_id"`
		Status        string           `json:"status"`
		CaptureAmount *decimal.Decimal `json:"capture_amount"`
		ChargeAmount  *decimal.Decimal `json:"charge_amount"`
	} `json:"data"`
}

// ParseCallback decodes an invoice, virtual account or e-wallet webhook body
// into a payment callback event.
func ParseCallback(body []byte) (*models.PaymentCallbackEvent, error) {
	var raw rawCallback
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("invalid callback payload: %w", err)
	}

	var cb models.PaymentCallbackEvent
	switch {
	case raw.Data != nil && raw.Data.ReferenceID != "":
		cb = models.PaymentCallbackEvent{
			ReferenceID: raw.Data.ReferenceID,
			ProviderID:  raw.Data.ID,
			Status:      ewalletStatus(raw.Data.Status),
			PaidAmount:  firstAmount(raw.Data.CaptureAmount, raw.Data.ChargeAmount),
		}
		cb.CallbackID = raw.Data.ID + ":" + cb.Status

	case raw.CallbackVirtualAccountID != "":
		// Xendit only calls back for a virtual account once money arrives.
		cb = models.PaymentCallbackEvent{
			CallbackID:  raw.PaymentID,
			ReferenceID: raw.ExternalID,
			ProviderID:  raw.CallbackVirtualAccountID,
			Status:      "PAID",
			PaidAmount:  firstAmount(raw.Amount),
		}

	default:
		cb = models.PaymentCallbackEvent{
			ReferenceID: raw.ExternalID,
			ProviderID:  raw.ID,
			Status:      strings.ToUpper(raw.Status),
			PaidAmount:  firstAmount(raw.PaidAmount, raw.Amount),
		}
		cb.CallbackID = raw.ID + ":" + cb.Status
	}

	if cb.ReferenceID == "" || cb.Status == "" {
		return nil, fmt.Errorf("callback is missing reference or status")
	}
	if cb.CallbackID == "" || strings.HasPrefix(cb.CallbackID, ":") {
		cb.CallbackID = cb.ReferenceID + ":" + cb.Status
	}
	cb.BaseEvent = models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: models.EventTypePaymentCallback,
		Timestamp: time.Now(),
	}
	cb.Raw = string(body)
	return &cb, nil
}

func ewalletStatus(s string) string {
	switch strings.ToUpper(s) {
	case "SUCCEEDED":
		return "PAID"
	case "VOIDED":
		return "EXPIRED"
	default:
		return strings.ToUpper(s)
	}
}

func firstAmount(amounts ...*decimal.Decimal) decimal.Decimal {
	for _, a := range amounts {
		if a != nil {
			return *a
		}
	}
	return decimal.Zero
}
