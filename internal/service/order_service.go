package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
	"unicode/utf8"

	"pos-service/internal/apperr"
	"pos-service/internal/models"
	"pos-service/internal/store"
	"pos-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OrderTx is the set of statements that run inside one order transaction
type OrderTx interface {
	GetTableByID(ctx context.Context, id int64) (*models.Table, error)
	GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error)
	GetProductsForUpdate(ctx context.Context, ids []int64) ([]models.Product, error)
	DecrementStock(ctx context.Context, productID int64, quantity int) (bool, error)
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	RedeemCoupon(ctx context.Context, couponID int64) (bool, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error
	GetOrderForUpdate(ctx context.Context, id int64) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status string, paymentVerified *bool) (*models.Order, error)
}

// OrderRepository is the persistence OrderService needs
type OrderRepository interface {
	RunInTx(ctx context.Context, fn func(tx OrderTx) error) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	DeleteOrder(ctx context.Context, id int64) error
}

// IdempotencyStore remembers which order an idempotency key produced and
// serialises concurrent requests carrying the same key.
type IdempotencyStore interface {
	LookupOrder(ctx context.Context, key string) (int64, error)
	RememberOrder(ctx context.Context, key string, orderID int64, ttl time.Duration) error
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// Notifier accepts events for delivery after commit
type Notifier interface {
	Dispatch(event interface{})
}

// OrderOptions carries the business switches of the order service
type OrderOptions struct {
	RejectInvalidCoupon      bool
	EnforceStatusTransitions bool
	IdempotencyTTL           time.Duration
}

// OrderService handles order business logic
type OrderService struct {
	repo     OrderRepository
	idem     IdempotencyStore
	notifier Notifier
	opts     OrderOptions
	now      func() time.Time
	logger   *zap.Logger
}

// NewOrderService creates a new order service. idem may be nil, in which
// case the unique idempotency_key column is the only duplicate guard.
func NewOrderService(repo OrderRepository, idem IdempotencyStore, notifier Notifier, opts OrderOptions) *OrderService {
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}
	return &OrderService{
		repo:     repo,
		idem:     idem,
		notifier: notifier,
		opts:     opts,
		now:      time.Now,
		logger:   util.Logger("orders"),
	}
}

// NewStoreRepository adapts *store.Store to OrderRepository
func NewStoreRepository(s *store.Store) OrderRepository {
	return storeRepository{s}
}

type storeRepository struct {
	*store.Store
}

func (r storeRepository) RunInTx(ctx context.Context, fn func(tx OrderTx) error) error {
	return r.Store.RunInTx(ctx, func(tx *store.Tx) error {
		return fn(tx)
	})
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	OrderType      string             `json:"order_type" binding:"required"`
	CustomerID     *int64             `json:"customer_id"`
	TableID        *int64             `json:"table_id"`
	CustomerName   string             `json:"customer_name"`
	Items          []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	TotalAmount    decimal.Decimal    `json:"total_amount"`
	CouponCode     string             `json:"coupon_code"`
	PaymentMethod  string             `json:"payment_method"`
	Notes          string             `json:"notes"`
	IdempotencyKey string             `json:"idempotency_key,omitempty"`
}

// OrderItemRequest represents an item in an order. Price is the unit price
// the customer saw; it must still match the catalog.
type OrderItemRequest struct {
	ProductID   int64            `json:"product_id" binding:"required"`
	ProductName string           `json:"product_name"`
	Quantity    int              `json:"quantity" binding:"required"`
	Price       *decimal.Decimal `json:"price"`
}

// OrderDetail is an order with its lines and display progress
type OrderDetail struct {
	*models.Order
	Items    []models.OrderItem `json:"items"`
	Progress int                `json:"progress"`
}

// CreateOrder validates the request and persists the order, its items, the
// stock decrements and any coupon redemption in one transaction. The
// new_order event goes out only after commit.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.OrderCreateLatency.Observe(time.Since(start).Seconds())
	}()

	if err := validateOrderRequest(req); err != nil {
		util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	if req.IdempotencyKey != "" {
		existing, err := s.findByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}

		if s.idem != nil {
			lockKey := "order:" + req.IdempotencyKey
			acquired, err := s.idem.AcquireLock(ctx, lockKey, 30*time.Second)
			if err != nil {
				s.logger.Warn("Idempotency lock unavailable, relying on database guard", zap.Error(err))
			} else if !acquired {
				return nil, apperr.Conflictf("an order with this idempotency key is already being processed")
			} else {
				defer func() {
					if err := s.idem.ReleaseLock(context.Background(), lockKey); err != nil {
						s.logger.Warn("Failed to release idempotency lock", zap.Error(err))
					}
				}()
			}
		}
	}

	order, items, redeemed, err := s.createOrderTx(ctx, req)
	if err != nil {
		if req.IdempotencyKey != "" && apperr.IsConflict(err) {
			// Lost a race against a request with the same key.
			if existing, findErr := s.findByIdempotencyKey(ctx, req.IdempotencyKey); findErr == nil && existing != nil {
				return existing, nil
			}
		}
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		s.logger.Info("Order rejected", zap.Error(err))
		return nil, util.SpanError(span, err)
	}
	span.SetAttributes(attribute.Int64("order.id", order.ID))

	util.OrdersCreatedTotal.Inc()
	if redeemed {
		util.CouponRedemptionsTotal.Inc()
	}
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("total", order.TotalAmount.String()))

	if req.IdempotencyKey != "" && s.idem != nil {
		if err := s.idem.RememberOrder(ctx, req.IdempotencyKey, order.ID, s.opts.IdempotencyTTL); err != nil {
			s.logger.Warn("Failed to cache idempotency key", zap.Error(err))
		}
	}

	s.notifier.Dispatch(&models.NewOrderEvent{
		BaseEvent:      newBaseEvent(models.EventTypeNewOrder),
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		OrderType:      order.OrderType,
		TableID:        order.TableID,
		TotalAmount:    order.TotalAmount,
		DiscountAmount: order.DiscountAmount,
	})

	return &OrderDetail{Order: order, Items: items, Progress: models.Progress(order.Status)}, nil
}

func (s *OrderService) createOrderTx(ctx context.Context, req *CreateOrderRequest) (*models.Order, []models.OrderItem, bool, error) {
	var (
		order    *models.Order
		items    []models.OrderItem
		redeemed bool
	)

	err := s.repo.RunInTx(ctx, func(tx OrderTx) error {
		if req.OrderType == models.OrderTypeDineIn {
			table, err := tx.GetTableByID(ctx, *req.TableID)
			if err != nil {
				return err
			}
			if table.DeletedAt != nil {
				return apperr.NotFoundf("table not found")
			}
		}

		customerName := req.CustomerName
		if req.CustomerID != nil {
			customer, err := tx.GetCustomerByID(ctx, *req.CustomerID)
			if err != nil {
				return err
			}
			if customerName == "" {
				customerName = customer.Name
			}
		}

		products, err := s.lockProducts(ctx, tx, req.Items)
		if err != nil {
			return err
		}

		original := decimal.Zero
		items = make([]models.OrderItem, 0, len(req.Items))
		for _, it := range req.Items {
			p := products[it.ProductID]
			subtotal := p.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
			original = original.Add(subtotal)
			items = append(items, models.OrderItem{
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    it.Quantity,
				Price:       p.Price,
				Subtotal:    subtotal,
			})
		}
		if !original.Equal(req.TotalAmount) {
			return apperr.Validationf("total_amount %s does not match item subtotals %s",
				req.TotalAmount.StringFixed(2), original.StringFixed(2))
		}

		discount := decimal.Zero
		var coupon *models.Coupon
		if req.CouponCode != "" {
			coupon, discount, err = s.applyCoupon(ctx, tx, req.CouponCode, original)
			if err != nil {
				return err
			}
			redeemed = coupon != nil
		}

		order = &models.Order{
			OrderNumber:    newOrderNumber(s.now()),
			CustomerID:     req.CustomerID,
			TableID:        req.TableID,
			OrderType:      req.OrderType,
			CustomerName:   customerName,
			Status:         models.OrderStatusPending,
			OriginalAmount: original,
			DiscountAmount: discount,
			TotalAmount:    original.Sub(discount),
			PaymentMethod:  req.PaymentMethod,
			Notes:          req.Notes,
		}
		if coupon != nil {
			order.CouponID = &coupon.ID
			order.CouponCode = &coupon.Code
		}
		if req.IdempotencyKey != "" {
			key := req.IdempotencyKey
			order.IdempotencyKey = &key
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}

		for i := range items {
			items[i].OrderID = order.ID
			if err := tx.CreateOrderItem(ctx, &items[i]); err != nil {
				return err
			}
			ok, err := tx.DecrementStock(ctx, items[i].ProductID, items[i].Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.Wrapf(apperr.KindConflict, apperr.ErrInsufficientStock, "%s", items[i].ProductName)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, false, err
	}
	return order, items, redeemed, nil
}

// lockProducts loads every requested product under a row lock and checks
// that each is orderable at the price the customer saw.
func (s *OrderService) lockProducts(ctx context.Context, tx OrderTx, reqItems []OrderItemRequest) (map[int64]*models.Product, error) {
	ids := make([]int64, 0, len(reqItems))
	seen := make(map[int64]bool, len(reqItems))
	for _, it := range reqItems {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}

	list, err := tx.GetProductsForUpdate(ctx, ids)
	if err != nil {
		return nil, err
	}
	products := make(map[int64]*models.Product, len(list))
	for i := range list {
		products[list[i].ID] = &list[i]
	}

	for _, it := range reqItems {
		p, ok := products[it.ProductID]
		if !ok {
			return nil, apperr.NotFoundf("product %d not found", it.ProductID)
		}
		if p.Status != models.ProductStatusActive {
			return nil, apperr.Wrapf(apperr.KindConflict, apperr.ErrProductInactive, "%s", p.Name)
		}
		if it.Price != nil && !it.Price.Equal(p.Price) {
			return nil, apperr.Conflictf("price of %s changed to %s", p.Name, p.Price.StringFixed(2))
		}
	}
	return products, nil
}

// applyCoupon resolves code against the cart and redeems it. An ineligible
// code yields no coupon and a zero discount unless the service is set to
// reject such orders. Losing the race for the last use always rejects.
func (s *OrderService) applyCoupon(ctx context.Context, tx OrderTx, code string, cartTotal decimal.Decimal) (*models.Coupon, decimal.Decimal, error) {
	coupon, err := tx.GetCouponByCode(ctx, code)
	var evalErr error
	switch {
	case apperr.IsNotFound(err):
		evalErr = apperr.ErrCouponNotFound
	case err != nil:
		return nil, decimal.Zero, err
	default:
		var discount decimal.Decimal
		discount, evalErr = EvaluateCoupon(coupon, cartTotal, s.now())
		if evalErr == nil {
			ok, err := tx.RedeemCoupon(ctx, coupon.ID)
			if err != nil {
				return nil, decimal.Zero, err
			}
			if !ok {
				return nil, decimal.Zero, apperr.Wrapf(apperr.KindConflict, apperr.ErrCouponExhausted, "coupon %s", coupon.Code)
			}
			return coupon, discount, nil
		}
	}

	if s.opts.RejectInvalidCoupon {
		return nil, decimal.Zero, apperr.Wrapf(apperr.KindConflict, evalErr, "coupon %s", normalizeCode(code))
	}
	s.logger.Info("Ignoring ineligible coupon",
		zap.String("code", normalizeCode(code)),
		zap.String("reason", evalErr.Error()))
	return nil, decimal.Zero, nil
}

func (s *OrderService) findByIdempotencyKey(ctx context.Context, key string) (*OrderDetail, error) {
	if s.idem != nil {
		id, err := s.idem.LookupOrder(ctx, key)
		if err != nil {
			s.logger.Warn("Idempotency cache lookup failed", zap.Error(err))
		} else if id > 0 {
			if detail, err := s.GetOrder(ctx, id); err == nil {
				s.logger.Info("Duplicate order request detected",
					zap.String("idempotency_key", key),
					zap.Int64("order_id", id))
				return detail, nil
			}
		}
	}

	order, err := s.repo.GetOrderByIdempotencyKey(ctx, key)
	if err != nil || order == nil {
		return nil, err
	}
	s.logger.Info("Duplicate order request detected",
		zap.String("idempotency_key", key),
		zap.Int64("order_id", order.ID))
	return s.withItems(ctx, order)
}

// SetStatus moves an order to status and optionally sets payment_verified in
// the same write. Every successful write emits order_status_update.
func (s *OrderService) SetStatus(ctx context.Context, orderID int64, status string, paymentVerified *bool) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.SetStatus",
		attribute.Int64("order.id", orderID),
		attribute.String("order.status", status))
	defer span.End()

	if !models.ValidOrderStatus(status) {
		return nil, apperr.Validationf("unknown order status %q", status)
	}

	var updated *models.Order
	err := s.repo.RunInTx(ctx, func(tx OrderTx) error {
		current, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if s.opts.EnforceStatusTransitions && !models.CanTransition(current.Status, status) {
			return apperr.Wrapf(apperr.KindConflict, apperr.ErrInvalidTransition, "%s to %s", current.Status, status)
		}
		updated, err = tx.UpdateOrderStatus(ctx, orderID, status, paymentVerified)
		return err
	})
	if err != nil {
		return nil, util.SpanError(span, err)
	}

	util.OrderStatusTransitionsTotal.WithLabelValues(status).Inc()
	s.logger.Info("Order status updated",
		zap.Int64("order_id", orderID),
		zap.String("status", status),
		zap.Bool("payment_verified", updated.PaymentVerified))

	s.notifier.Dispatch(&models.OrderStatusUpdateEvent{
		BaseEvent:       newBaseEvent(models.EventTypeOrderStatusUpdate),
		OrderID:         updated.ID,
		OrderNumber:     updated.OrderNumber,
		Status:          updated.Status,
		Progress:        models.Progress(updated.Status),
		PaymentVerified: updated.PaymentVerified,
	})

	return updated, nil
}

// GetOrder retrieves an order with its items
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*OrderDetail, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.withItems(ctx, order)
}

func (s *OrderService) withItems(ctx context.Context, order *models.Order) (*OrderDetail, error) {
	items, err := s.repo.GetOrderItemsByOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return &OrderDetail{Order: order, Items: items, Progress: models.Progress(order.Status)}, nil
}

// ListOrders retrieves orders matching f
func (s *OrderService) ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, error) {
	if f.Status != "" && !models.ValidOrderStatus(f.Status) {
		return nil, apperr.Validationf("unknown order status %q", f.Status)
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	return s.repo.ListOrders(ctx, f)
}

// DeleteOrder removes an order and its items
func (s *OrderService) DeleteOrder(ctx context.Context, orderID int64) error {
	if err := s.repo.DeleteOrder(ctx, orderID); err != nil {
		return err
	}
	s.logger.Info("Order deleted", zap.Int64("order_id", orderID))
	return nil
}

// Request bounds; they match the column sizes in schema.sql.
const (
	maxOrderLines        = 100
	maxItemQuantity      = 10000
	maxIdempotencyKeyLen = 64
	maxCustomerNameLen   = 100
	maxCouponCodeLen     = 32
	maxPaymentMethodLen  = 32
)

func validateOrderRequest(req *CreateOrderRequest) error {
	switch req.OrderType {
	case models.OrderTypeTakeaway:
		if req.CustomerID == nil {
			return apperr.Validationf("customer_id is required for takeaway orders")
		}
	case models.OrderTypeDineIn:
		if req.TableID == nil {
			return apperr.Validationf("table_id is required for dine-in orders")
		}
	default:
		return apperr.Validationf("order_type must be %s or %s", models.OrderTypeTakeaway, models.OrderTypeDineIn)
	}

	if len(req.Items) == 0 {
		return apperr.Validationf("items must not be empty")
	}
	if len(req.Items) > maxOrderLines {
		return apperr.Validationf("an order may have at most %d items", maxOrderLines)
	}
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return apperr.Validationf("quantity for product %d must be greater than 0", it.ProductID)
		}
		if it.Quantity > maxItemQuantity {
			return apperr.Validationf("quantity for product %d must be at most %d", it.ProductID, maxItemQuantity)
		}
	}
	for _, f := range []struct {
		name  string
		value string
		max   int
	}{
		{"idempotency key", req.IdempotencyKey, maxIdempotencyKeyLen},
		{"customer_name", req.CustomerName, maxCustomerNameLen},
		{"coupon_code", req.CouponCode, maxCouponCodeLen},
		{"payment_method", req.PaymentMethod, maxPaymentMethodLen},
	} {
		if utf8.RuneCountInString(f.value) > f.max {
			return apperr.Validationf("%s must be at most %d characters", f.name, f.max)
		}
	}
	if req.TotalAmount.IsNegative() {
		return apperr.Validationf("total_amount cannot be negative")
	}
	return nil
}

func failureReason(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return "validation"
	case apperr.KindNotFound:
		return "not_found"
	case apperr.KindConflict:
		return "conflict"
	case apperr.KindTransient:
		return "db_error"
	default:
		return "unknown"
	}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

// newOrderNumber builds ORD-<yyyymmddhhmmss>-<4 random digits>
func newOrderNumber(now time.Time) string {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		n = big.NewInt(now.UnixNano() % 10000)
	}
	return fmt.Sprintf("ORD-%s-%04d", now.Format("20060102150405"), n.Int64())
}
