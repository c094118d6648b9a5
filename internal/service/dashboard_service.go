package service

import (
	"context"
	"time"

	"pos-service/internal/models"
	"pos-service/internal/store"
	"pos-service/internal/util"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	recentOrdersLimit = 10
	newCustomerWindow = 30 * 24 * time.Hour
)

// DashboardStore is the persistence DashboardService reads from
type DashboardStore interface {
	Revenue(ctx context.Context, since *time.Time) (models.RevenueSummary, error)
	GetCustomerActivity(ctx context.Context, newSince time.Time) (store.CustomerActivity, error)
	ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, error)
}

// DashboardService computes back-office sales figures
type DashboardService struct {
	store DashboardStore
	loc   *time.Location
	now   func() time.Time
}

// NewDashboardService creates a dashboard service; day and month boundaries
// are taken in loc, or local time when loc is nil.
func NewDashboardService(store DashboardStore, loc *time.Location) *DashboardService {
	if loc == nil {
		loc = time.Local
	}
	return &DashboardService{store: store, loc: loc, now: time.Now}
}

// Stats returns revenue for today, this month and all time, plus the most
// recent orders.
func (s *DashboardService) Stats(ctx context.Context) (*models.DashboardStats, error) {
	ctx, span := util.StartSpan(ctx, "DashboardService.Stats")
	defer span.End()

	now := s.now().In(s.loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)

	stats := &models.DashboardStats{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.Today, err = s.store.Revenue(gctx, &dayStart)
		return err
	})
	g.Go(func() (err error) {
		stats.Month, err = s.store.Revenue(gctx, &monthStart)
		return err
	})
	g.Go(func() (err error) {
		stats.Total, err = s.store.Revenue(gctx, nil)
		return err
	})
	g.Go(func() (err error) {
		stats.RecentOrders, err = s.store.ListOrders(gctx, store.OrderFilter{Limit: recentOrdersLimit})
		return err
	})
	if err := g.Wait(); err != nil {
		util.SpanError(span, err)
		return nil, err
	}
	if stats.RecentOrders == nil {
		stats.RecentOrders = []models.Order{}
	}
	return stats, nil
}

// Analytics returns lifetime sales with customer activity; new customers are
// those registered in the last 30 days.
func (s *DashboardService) Analytics(ctx context.Context) (*models.Analytics, error) {
	ctx, span := util.StartSpan(ctx, "DashboardService.Analytics")
	defer span.End()

	var (
		total    models.RevenueSummary
		activity store.CustomerActivity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		total, err = s.store.Revenue(gctx, nil)
		return err
	})
	g.Go(func() (err error) {
		activity, err = s.store.GetCustomerActivity(gctx, s.now().Add(-newCustomerWindow))
		return err
	})
	if err := g.Wait(); err != nil {
		util.SpanError(span, err)
		return nil, err
	}

	avg := decimal.Zero
	if total.Orders > 0 {
		avg = total.Revenue.Div(decimal.NewFromInt(int64(total.Orders))).Round(2)
	}
	return &models.Analytics{
		Revenue:            total.Revenue,
		Orders:             total.Orders,
		AverageOrderValue:  avg,
		NewCustomers:       activity.NewCustomers,
		ReturningCustomers: activity.ReturningCustomers,
		ProductsSold:       activity.ProductsSold,
	}, nil
}
