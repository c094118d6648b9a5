package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pos-service/internal/apperr"
	"pos-service/internal/gateway"
	"pos-service/internal/models"
	"pos-service/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PaymentStore is the persistence PaymentService needs
type PaymentStore interface {
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, ref string) (*models.Payment, error)
	ApplyPaymentCallback(ctx context.Context, referenceID, providerID, status string, paidAmount decimal.Decimal, paid bool) (*models.Payment, error)
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error)
}

// StatusSetter moves an order through its status machine
type StatusSetter interface {
	SetStatus(ctx context.Context, orderID int64, status string, paymentVerified *bool) (*models.Order, error)
}

// PaymentService creates gateway charges and applies their callbacks
type PaymentService struct {
	store   PaymentStore
	gateway gateway.Client
	orders  StatusSetter
	now     func() time.Time
	logger  *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(store PaymentStore, gw gateway.Client, orders StatusSetter) *PaymentService {
	return &PaymentService{
		store:   store,
		gateway: gw,
		orders:  orders,
		now:     time.Now,
		logger:  util.Logger("payments"),
	}
}

// CreatePaymentRequest starts a payment for an order
type CreatePaymentRequest struct {
	OrderID      int64  `json:"order_id" binding:"required"`
	Method       string `json:"method" binding:"required"`
	BankCode     string `json:"bank_code"`
	WalletType   string `json:"wallet_type"`
	Phone        string `json:"phone"`
	CustomerName string `json:"customer_name"`
	SuccessURL   string `json:"success_url"`
	FailureURL   string `json:"failure_url"`
}

// PaymentResult is the stored payment plus what the customer needs to pay it
type PaymentResult struct {
	Payment *models.Payment `json:"payment"`
	Charge  *gateway.Charge `json:"charge"`
}

// CreatePayment charges the order's total through the gateway and records
// the attempt.
func (ps *PaymentService) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*PaymentResult, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.CreatePayment")
	defer span.End()

	if err := validatePaymentRequest(req); err != nil {
		return nil, err
	}

	order, err := ps.store.GetOrderByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if models.IsTerminalStatus(order.Status) {
		return nil, apperr.Conflictf("order %s is %s", order.OrderNumber, order.Status)
	}
	if order.PaymentVerified {
		return nil, apperr.Conflictf("order %s is already paid", order.OrderNumber)
	}
	if !order.TotalAmount.IsPositive() {
		return nil, apperr.Validationf("order %s has nothing to pay", order.OrderNumber)
	}

	util.PaymentAttemptsTotal.WithLabelValues(req.Method).Inc()
	start := ps.now()

	reference := fmt.Sprintf("%s_%s_%d", req.Method, order.OrderNumber, start.UnixNano())

	ps.logger.Info("Creating payment",
		zap.Int64("order_id", order.ID),
		zap.String("method", req.Method),
		zap.String("reference_id", reference),
		zap.String("amount", order.TotalAmount.StringFixed(2)))

	charge, err := ps.charge(ctx, req, order, reference)
	util.PaymentProcessingLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		util.PaymentFailedTotal.WithLabelValues(gatewayFailureReason(err)).Inc()
		ps.logger.Error("Gateway charge failed",
			zap.Int64("order_id", order.ID),
			zap.String("reference_id", reference),
			zap.Error(err))
		return nil, util.SpanError(span, err)
	}

	status := strings.ToUpper(charge.Status)
	if status == "" {
		status = models.PaymentStatusPending
	}
	payment := &models.Payment{
		OrderID:     order.ID,
		ReferenceID: reference,
		ProviderID:  charge.ID,
		Method:      req.Method,
		ChannelCode: charge.ChannelCode,
		Amount:      order.TotalAmount,
		Status:      status,
		Metadata:    string(charge.Raw),
	}
	if err := ps.store.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}

	return &PaymentResult{Payment: payment, Charge: charge}, nil
}

func (ps *PaymentService) charge(ctx context.Context, req *CreatePaymentRequest, order *models.Order, reference string) (*gateway.Charge, error) {
	switch req.Method {
	case models.PaymentMethodQRIS:
		return ps.gateway.CreateQRIS(ctx, gateway.QRISRequest{
			ReferenceID: reference,
			Amount:      order.TotalAmount,
			Description: "Order " + order.OrderNumber,
		})
	case models.PaymentMethodVirtualAccount:
		name := req.CustomerName
		if name == "" {
			name = order.CustomerName
		}
		return ps.gateway.CreateVirtualAccount(ctx, gateway.VirtualAccountRequest{
			ReferenceID:  reference,
			Amount:       order.TotalAmount,
			BankCode:     req.BankCode,
			CustomerName: name,
		})
	default:
		return ps.gateway.CreateEWallet(ctx, gateway.EWalletRequest{
			ReferenceID: reference,
			Amount:      order.TotalAmount,
			WalletType:  req.WalletType,
			Phone:       req.Phone,
			SuccessURL:  req.SuccessURL,
			FailureURL:  req.FailureURL,
		})
	}
}

// HandleCallback applies a gateway status report. A callback id is applied
// once; a paid report confirms a pending order and marks it verified.
func (ps *PaymentService) HandleCallback(ctx context.Context, cb *models.PaymentCallbackEvent) error {
	if err := normalizeCallback(cb); err != nil {
		return err
	}

	ctx, span := util.StartSpan(ctx, "PaymentService.HandleCallback",
		attribute.String("payment.reference_id", cb.ReferenceID),
		attribute.String("payment.status", cb.Status))
	defer span.End()

	processed, err := ps.store.IsEventProcessed(ctx, cb.CallbackID)
	if err != nil {
		return fmt.Errorf("failed to check callback processed: %w", err)
	}
	if processed {
		ps.logger.Info("Callback already processed", zap.String("callback_id", cb.CallbackID))
		return nil
	}

	status := strings.ToUpper(cb.Status)
	paid := models.IsPaidStatus(status)

	payment, err := ps.store.ApplyPaymentCallback(ctx, cb.ReferenceID, cb.ProviderID, status, cb.PaidAmount, paid)
	if err != nil {
		if apperr.IsNotFound(err) {
			// Nothing to retry for a reference we never issued.
			ps.logger.Warn("Callback for unknown payment",
				zap.String("reference_id", cb.ReferenceID),
				zap.String("provider_id", cb.ProviderID))
			return nil
		}
		return err
	}

	ps.logger.Info("Payment callback applied",
		zap.Int64("order_id", payment.OrderID),
		zap.String("reference_id", payment.ReferenceID),
		zap.String("status", status))

	switch {
	case paid && cb.PaidAmount.IsPositive() && cb.PaidAmount.LessThan(payment.Amount):
		util.PaymentFailedTotal.WithLabelValues("underpaid").Inc()
		ps.logger.Warn("Payment is short of the order total",
			zap.Int64("order_id", payment.OrderID),
			zap.String("paid_amount", cb.PaidAmount.StringFixed(2)),
			zap.String("amount", payment.Amount.StringFixed(2)))
	case paid:
		util.PaymentSuccessTotal.Inc()
		if err := ps.verifyOrder(ctx, payment.OrderID); err != nil {
			return util.SpanError(span, err)
		}
	case status == models.PaymentStatusFailed || status == models.PaymentStatusExpired:
		util.PaymentFailedTotal.WithLabelValues(strings.ToLower(status)).Inc()
	}

	if _, err := ps.store.MarkEventProcessed(ctx, cb.CallbackID, models.EventTypePaymentCallback); err != nil {
		ps.logger.Error("Failed to mark callback processed", zap.Error(err))
	}
	return nil
}

func (ps *PaymentService) verifyOrder(ctx context.Context, orderID int64) error {
	order, err := ps.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}

	verified := true
	switch {
	case order.Status == models.OrderStatusPending:
		_, err = ps.orders.SetStatus(ctx, orderID, models.OrderStatusConfirmed, &verified)
	case models.IsTerminalStatus(order.Status):
		ps.logger.Warn("Payment received for closed order",
			zap.Int64("order_id", orderID),
			zap.String("status", order.Status))
		return nil
	case !order.PaymentVerified:
		_, err = ps.orders.SetStatus(ctx, orderID, order.Status, &verified)
	default:
		return nil
	}

	if apperr.IsConflict(err) {
		// The order moved on between the read and the write.
		ps.logger.Warn("Could not verify order payment",
			zap.Int64("order_id", orderID),
			zap.Error(err))
		return nil
	}
	return err
}

// GetPayment retrieves a payment by our reference id or the gateway id
func (ps *PaymentService) GetPayment(ctx context.Context, ref string) (*models.Payment, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, apperr.Validationf("payment reference is required")
	}
	return ps.store.GetPayment(ctx, ref)
}

// normalizeCallback requires a reference and a status. A missing callback id
// becomes <reference>:<status>, so one id never stands for unrelated
// callbacks.
func normalizeCallback(cb *models.PaymentCallbackEvent) error {
	if cb == nil {
		return apperr.Validationf("payment callback is empty")
	}
	cb.ReferenceID = strings.TrimSpace(cb.ReferenceID)
	cb.Status = strings.ToUpper(strings.TrimSpace(cb.Status))
	if cb.ReferenceID == "" {
		return apperr.Validationf("payment callback has no reference_id")
	}
	if cb.Status == "" {
		return apperr.Validationf("payment callback %s has no status", cb.ReferenceID)
	}
	if strings.TrimSpace(cb.CallbackID) == "" {
		cb.CallbackID = cb.ReferenceID + ":" + cb.Status
	}
	return nil
}

func validatePaymentRequest(req *CreatePaymentRequest) error {
	switch req.Method {
	case models.PaymentMethodQRIS:
	case models.PaymentMethodVirtualAccount:
		if req.BankCode == "" {
			return apperr.Validationf("bank_code is required for virtual account payments")
		}
	case models.PaymentMethodEWallet:
		if req.WalletType == "" {
			return apperr.Validationf("wallet_type is required for e-wallet payments")
		}
	default:
		return apperr.Validationf("unsupported payment method %q", req.Method)
	}
	return nil
}

func gatewayFailureReason(err error) string {
	if apiErr, ok := gateway.IsAPIError(err); ok && apiErr.Code != "" {
		return strings.ToLower(apiErr.Code)
	}
	if apperr.KindOf(err) == apperr.KindTransient {
		return "gateway_unavailable"
	}
	return "gateway_error"
}
