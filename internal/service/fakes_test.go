package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"pos-service/internal/apperr"
	"pos-service/internal/models"
	"pos-service/internal/store"
)

// memState is an in-memory stand-in for the order tables
type memState struct {
	products    map[int64]models.Product
	coupons     map[string]models.Coupon
	tables      map[int64]models.Table
	customers   map[int64]models.Customer
	orders      map[int64]models.Order
	items       map[int64][]models.OrderItem
	nextOrderID int64
	nextItemID  int64
}

func newMemState() memState {
	return memState{
		products:  map[int64]models.Product{},
		coupons:   map[string]models.Coupon{},
		tables:    map[int64]models.Table{},
		customers: map[int64]models.Customer{},
		orders:    map[int64]models.Order{},
		items:     map[int64][]models.OrderItem{},
	}
}

func (s memState) clone() memState {
	c := newMemState()
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.coupons {
		c.coupons[k] = v
	}
	for k, v := range s.tables {
		c.tables[k] = v
	}
	for k, v := range s.customers {
		c.customers[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.items {
		c.items[k] = append([]models.OrderItem(nil), v...)
	}
	c.nextOrderID = s.nextOrderID
	c.nextItemID = s.nextItemID
	return c
}

// memRepo serialises transactions on one mutex and applies a transaction's
// writes only when its function returns nil.
type memRepo struct {
	mu    sync.Mutex
	state memState

	// staleCouponReads makes coupon reads report zero uses, so the
	// conditional redemption is the only thing standing in the way.
	staleCouponReads bool
}

func newMemRepo() *memRepo {
	return &memRepo{state: newMemState()}
}

func (r *memRepo) RunInTx(ctx context.Context, fn func(tx OrderTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &memTx{repo: r, state: r.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	r.state = tx.state
	return nil
}

func (r *memRepo) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.state.orders[id]
	if !ok {
		return nil, apperr.NotFoundf("order not found")
	}
	return &o, nil
}

func (r *memRepo) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.state.orders {
		if o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			o := o
			return &o, nil
		}
	}
	return nil, nil
}

func (r *memRepo) ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Order{}
	for _, o := range r.state.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.OrderType != "" && o.OrderType != f.OrderType {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *memRepo) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.OrderItem{}, r.state.items[orderID]...), nil
}

func (r *memRepo) DeleteOrder(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.state.orders[id]; !ok {
		return apperr.NotFoundf("order not found")
	}
	delete(r.state.orders, id)
	delete(r.state.items, id)
	return nil
}

func (r *memRepo) product(id int64) models.Product {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.products[id]
}

func (r *memRepo) coupon(code string) models.Coupon {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.coupons[code]
}

func (r *memRepo) orderCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.state.orders)
}

func (r *memRepo) itemCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, items := range r.state.items {
		n += len(items)
	}
	return n
}

type memTx struct {
	repo  *memRepo
	state memState
}

func (t *memTx) GetTableByID(ctx context.Context, id int64) (*models.Table, error) {
	tb, ok := t.state.tables[id]
	if !ok {
		return nil, apperr.NotFoundf("table not found")
	}
	return &tb, nil
}

func (t *memTx) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	c, ok := t.state.customers[id]
	if !ok {
		return nil, apperr.NotFoundf("customer not found")
	}
	return &c, nil
}

func (t *memTx) GetProductsForUpdate(ctx context.Context, ids []int64) ([]models.Product, error) {
	out := []models.Product{}
	for _, id := range ids {
		if p, ok := t.state.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (t *memTx) DecrementStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	p, ok := t.state.products[productID]
	if !ok || p.Stock < quantity {
		return false, nil
	}
	p.Stock -= quantity
	t.state.products[productID] = p
	return true, nil
}

func (t *memTx) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	c, ok := t.state.coupons[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, apperr.NotFoundf("coupon not found")
	}
	if t.repo.staleCouponReads {
		c.UsedCount = 0
	}
	return &c, nil
}

func (t *memTx) RedeemCoupon(ctx context.Context, couponID int64) (bool, error) {
	for code, c := range t.state.coupons {
		if c.ID != couponID {
			continue
		}
		if !c.IsActive || (c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit) {
			return false, nil
		}
		c.UsedCount++
		t.state.coupons[code] = c
		return true, nil
	}
	return false, nil
}

func (t *memTx) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.IdempotencyKey != nil {
		for _, o := range t.state.orders {
			if o.IdempotencyKey != nil && *o.IdempotencyKey == *order.IdempotencyKey {
				return apperr.Conflictf("order already exists (orders_idempotency_key_key)")
			}
		}
	}
	t.state.nextOrderID++
	order.ID = t.state.nextOrderID
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	t.state.orders[order.ID] = *order
	return nil
}

func (t *memTx) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	t.state.nextItemID++
	item.ID = t.state.nextItemID
	t.state.items[item.OrderID] = append(t.state.items[item.OrderID], *item)
	return nil
}

func (t *memTx) GetOrderForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	o, ok := t.state.orders[id]
	if !ok {
		return nil, apperr.NotFoundf("order not found")
	}
	return &o, nil
}

func (t *memTx) UpdateOrderStatus(ctx context.Context, id int64, status string, paymentVerified *bool) (*models.Order, error) {
	o, ok := t.state.orders[id]
	if !ok {
		return nil, apperr.NotFoundf("order not found")
	}
	o.Status = status
	if paymentVerified != nil {
		o.PaymentVerified = *paymentVerified
	}
	if status == models.OrderStatusCompleted && o.CompletedAt == nil {
		now := time.Now()
		o.CompletedAt = &now
	}
	t.state.orders[id] = o
	return &o, nil
}

// recordingNotifier keeps dispatched events in order
type recordingNotifier struct {
	mu     sync.Mutex
	events []interface{}
}

func (n *recordingNotifier) Dispatch(event interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) all() []interface{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]interface{}(nil), n.events...)
}
