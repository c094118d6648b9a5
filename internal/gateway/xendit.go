package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pos-service/internal/apperr"
)

const invoiceDuration = 24 * time.Hour

// XenditClient implements Client against the Xendit REST API
type XenditClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewXenditClient creates a client; the API key is sent as the basic auth user
func NewXenditClient(baseURL, apiKey string, timeout time.Duration) *XenditClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &XenditClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type invoiceResponse struct {
	ID         string     `json:"id"`
	ExternalID string     `json:"external_id"`
	Status     string     `json:"status"`
	InvoiceURL string     `json:"invoice_url"`
	ExpiryDate *time.Time `json:"expiry_date"`
}

// CreateQRIS opens a QRIS-only invoice
func (c *XenditClient) CreateQRIS(ctx context.Context, req QRISRequest) (*Charge, error) {
	body := map[string]interface{}{
		"external_id":      req.ReferenceID,
		"amount":           req.Amount.IntPart(),
		"description":      req.Description,
		"invoice_duration": int(invoiceDuration.Seconds()),
		"currency":         "IDR",
		"payment_methods":  []string{"QRIS"},
	}

	var resp invoiceResponse
	raw, err := c.post(ctx, "/v2/invoices", body, &resp)
	if err != nil {
		return nil, err
	}
	return &Charge{
		ID:          resp.ID,
		ReferenceID: resp.ExternalID,
		Status:      strings.ToUpper(resp.Status),
		ChannelCode: "QRIS",
		QRString:    resp.InvoiceURL,
		ExpiresAt:   resp.ExpiryDate,
		Raw:         raw,
	}, nil
}

type virtualAccountResponse struct {
	ID             string     `json:"id"`
	ExternalID     string     `json:"external_id"`
	BankCode       string     `json:"bank_code"`
	AccountNumber  string     `json:"account_number"`
	Status         string     `json:"status"`
	ExpirationDate *time.Time `json:"expiration_date"`
}

// CreateVirtualAccount opens a closed, single-use virtual account for the exact amount
func (c *XenditClient) CreateVirtualAccount(ctx context.Context, req VirtualAccountRequest) (*Charge, error) {
	name := req.CustomerName
	if name == "" {
		name = "Customer"
	}
	body := map[string]interface{}{
		"external_id":     req.ReferenceID,
		"bank_code":       strings.ToUpper(req.BankCode),
		"name":            name,
		"expected_amount": req.Amount.IntPart(),
		"is_closed":       true,
		"is_single_use":   true,
	}

	var resp virtualAccountResponse
	raw, err := c.post(ctx, "/callback_virtual_accounts", body, &resp)
	if err != nil {
		return nil, err
	}
	return &Charge{
		ID:            resp.ID,
		ReferenceID:   resp.ExternalID,
		Status:        strings.ToUpper(resp.Status),
		ChannelCode:   resp.BankCode,
		AccountNumber: resp.AccountNumber,
		ExpiresAt:     resp.ExpirationDate,
		Raw:           raw,
	}, nil
}

type ewalletResponse struct {
	ID          string `json:"id"`
	ReferenceID string `json:"reference_id"`
	Status      string `json:"status"`
	ChannelCode string `json:"channel_code"`
	Actions     struct {
		DesktopWebCheckoutURL string `json:"desktop_web_checkout_url"`
		MobileWebCheckoutURL  string `json:"mobile_web_checkout_url"`
	} `json:"actions"`
}

// CreateEWallet starts a one-time e-wallet checkout
func (c *XenditClient) CreateEWallet(ctx context.Context, req EWalletRequest) (*Charge, error) {
	props := map[string]string{
		"success_redirect_url": req.SuccessURL,
		"failure_redirect_url": req.FailureURL,
	}
	if req.Phone != "" {
		props["mobile_number"] = req.Phone
	}
	body := map[string]interface{}{
		"reference_id":       req.ReferenceID,
		"currency":           "IDR",
		"amount":             req.Amount.IntPart(),
		"checkout_method":    "ONE_TIME_PAYMENT",
		"channel_code":       "ID_" + strings.ToUpper(req.WalletType),
		"channel_properties": props,
	}

	var resp ewalletResponse
	raw, err := c.post(ctx, "/ewallets/charges", body, &resp)
	if err != nil {
		return nil, err
	}
	redirect := resp.Actions.DesktopWebCheckoutURL
	if redirect == "" {
		redirect = resp.Actions.MobileWebCheckoutURL
	}
	return &Charge{
		ID:          resp.ID,
		ReferenceID: resp.ReferenceID,
		Status:      strings.ToUpper(resp.Status),
		ChannelCode: resp.ChannelCode,
		RedirectURL: redirect,
		Raw:         raw,
	}, nil
}

// post sends body as JSON and decodes a 2xx response into out. Transport
// failures and 5xx responses are transient; other rejections are validation
// errors carrying the gateway's message.
func (c *XenditClient) post(ctx context.Context, path string, body, out interface{}) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.apiKey, "")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Transient("payment gateway unreachable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperr.Transient("failed to read gateway response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(raw, apiErr)
		if apiErr.Temporary() {
			return nil, apperr.Transient("payment gateway error", apiErr)
		}
		return nil, apperr.Wrapf(apperr.KindValidation, apiErr, "payment rejected")
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return nil, apperr.Transient("invalid gateway response", err)
	}
	return raw, nil
}

// IsAPIError extracts the gateway error from err, if any
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
