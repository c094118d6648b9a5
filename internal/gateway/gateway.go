// Package gateway talks to the third-party payment gateway.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Charge is a payment handle returned by the gateway
type Charge struct {
	ID            string          `json:"id"`
	ReferenceID   string          `json:"reference_id"`
	Status        string          `json:"status"`
	ChannelCode   string          `json:"channel_code"`
	AccountNumber string          `json:"account_number,omitempty"`
	QRString      string          `json:"qr_string,omitempty"`
	RedirectURL   string          `json:"redirect_url,omitempty"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
	Raw           json.RawMessage `json:"-"`
}

type QRISRequest struct {
	ReferenceID string
	Amount      decimal.Decimal
	Description string
}

type VirtualAccountRequest struct {
	ReferenceID  string
	Amount       decimal.Decimal
	BankCode     string
	CustomerName string
}

type EWalletRequest struct {
	ReferenceID string
	Amount      decimal.Decimal
	WalletType  string
	Phone       string
	SuccessURL  string
	FailureURL  string
}

// Client creates payments with the gateway
type Client interface {
	CreateQRIS(ctx context.Context, req QRISRequest) (*Charge, error)
	CreateVirtualAccount(ctx context.Context, req VirtualAccountRequest) (*Charge, error)
	CreateEWallet(ctx context.Context, req EWalletRequest) (*Charge, error)
}

// APIError is a non-2xx gateway response
type APIError struct {
	StatusCode int
	Code       string `json:"error_code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway returned %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Temporary reports whether retrying the same request may succeed
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
