package service

import (
	"context"
	"strings"
	"time"

	"pos-service/internal/apperr"
	"pos-service/internal/models"
	"pos-service/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TableStore is the persistence TableService needs
type TableStore interface {
	CreateTable(ctx context.Context, t *models.Table) error
	GetTableByID(ctx context.Context, id int64) (*models.Table, error)
	GetTableByToken(ctx context.Context, token string) (*models.Table, error)
	ListTables(ctx context.Context) ([]models.Table, error)
	UpdateTable(ctx context.Context, t *models.Table) error
	UpdateTableQR(ctx context.Context, id int64, url, image string) error
	DeleteTable(ctx context.Context, id int64) error
}

// TableCache caches token lookups made by scanning customers
type TableCache interface {
	GetTable(ctx context.Context, token string) (*models.Table, error)
	SetTable(ctx context.Context, t *models.Table, ttl time.Duration) error
	DeleteTable(ctx context.Context, tokens ...string) error
}

// TableService manages tables and their QR codes
type TableService struct {
	store    TableStore
	cache    TableCache
	qr       QRGenerator
	baseURL  string
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewTableService creates a new table service; cache may be nil
func NewTableService(store TableStore, cache TableCache, qr QRGenerator, baseURL string, cacheTTL time.Duration) *TableService {
	return &TableService{
		store:    store,
		cache:    cache,
		qr:       qr,
		baseURL:  strings.TrimRight(baseURL, "/"),
		cacheTTL: cacheTTL,
		logger:   util.Logger("tables"),
	}
}

// CreateTableRequest carries the admin-editable fields of a table
type CreateTableRequest struct {
	TableNumber string `json:"table_number" binding:"required"`
	Capacity    int    `json:"capacity"`
	Status      string `json:"status"`
}

// CreateTable issues a fresh token for a new table and renders its QR code
func (s *TableService) CreateTable(ctx context.Context, req *CreateTableRequest) (*models.Table, error) {
	ctx, span := util.StartSpan(ctx, "TableService.CreateTable")
	defer span.End()

	t := &models.Table{
		TableNumber: strings.TrimSpace(req.TableNumber),
		Capacity:    req.Capacity,
		Status:      req.Status,
	}
	if t.Capacity == 0 {
		t.Capacity = 4
	}
	if t.Status == "" {
		t.Status = models.TableStatusAvailable
	}
	if err := validateTable(t); err != nil {
		return nil, err
	}

	token, err := newTableToken()
	if err != nil {
		return nil, apperr.Transient("failed to generate table token", err)
	}
	t.QRToken = token
	t.QRURL = tableURL(s.baseURL, token)
	if t.QRImage, err = s.qr.Generate(t.QRURL); err != nil {
		return nil, err
	}

	if err := s.store.CreateTable(ctx, t); err != nil {
		return nil, err
	}
	s.logger.Info("Table created", zap.Int64("table_id", t.ID), zap.String("table_number", t.TableNumber))
	return t, nil
}

// GetTable retrieves a table by ID
func (s *TableService) GetTable(ctx context.Context, id int64) (*models.Table, error) {
	return s.store.GetTableByID(ctx, id)
}

// GetTableByToken resolves a scanned QR token, going to the database on a
// cache miss. Cache errors only cost the shortcut.
func (s *TableService) GetTableByToken(ctx context.Context, token string) (*models.Table, error) {
	ctx, span := util.StartSpan(ctx, "TableService.GetTableByToken")
	defer span.End()

	if s.cache != nil {
		cached, err := s.cache.GetTable(ctx, token)
		if err != nil {
			s.logger.Warn("Table cache read failed", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	t, err := s.store.GetTableByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetTable(ctx, t, s.cacheTTL); err != nil {
			s.logger.Warn("Table cache write failed", zap.Error(err))
		}
	}
	return t, nil
}

// ListTables retrieves all live tables
func (s *TableService) ListTables(ctx context.Context) ([]models.Table, error) {
	return s.store.ListTables(ctx)
}

// UpdateTable changes number, capacity or status; the token stays
func (s *TableService) UpdateTable(ctx context.Context, id int64, req *CreateTableRequest) (*models.Table, error) {
	t := &models.Table{
		ID:          id,
		TableNumber: strings.TrimSpace(req.TableNumber),
		Capacity:    req.Capacity,
		Status:      req.Status,
	}
	if t.Status == "" {
		t.Status = models.TableStatusAvailable
	}
	if err := validateTable(t); err != nil {
		return nil, err
	}
	if err := s.store.UpdateTable(ctx, t); err != nil {
		return nil, err
	}
	s.invalidate(ctx, t.QRToken)
	return t, nil
}

// DeleteTable retires a table; its token is never issued again
func (s *TableService) DeleteTable(ctx context.Context, id int64) error {
	t, err := s.store.GetTableByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTable(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, t.QRToken)
	s.logger.Info("Table deleted", zap.Int64("table_id", id))
	return nil
}

// RegenerateAllQRImages re-renders every live table's QR code against the
// current base URL. Tokens do not change. It returns the number of tables
// updated.
func (s *TableService) RegenerateAllQRImages(ctx context.Context) (int, error) {
	ctx, span := util.StartSpan(ctx, "TableService.RegenerateAllQRImages")
	defer span.End()

	tables, err := s.store.ListTables(ctx)
	if err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range tables {
		t := tables[i]
		g.Go(func() error {
			u := tableURL(s.baseURL, t.QRToken)
			img, err := s.qr.Generate(u)
			if err != nil {
				return err
			}
			return s.store.UpdateTableQR(gctx, t.ID, u, img)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	tokens := make([]string, len(tables))
	for i, t := range tables {
		tokens[i] = t.QRToken
	}
	s.invalidate(ctx, tokens...)

	s.logger.Info("QR codes regenerated", zap.Int("tables", len(tables)), zap.String("base_url", s.baseURL))
	return len(tables), nil
}

func (s *TableService) invalidate(ctx context.Context, tokens ...string) {
	if s.cache == nil || len(tokens) == 0 {
		return
	}
	if err := s.cache.DeleteTable(ctx, tokens...); err != nil {
		s.logger.Warn("Table cache invalidation failed", zap.Error(err))
	}
}

func validateTable(t *models.Table) error {
	if t.TableNumber == "" {
		return apperr.Validationf("table_number is required")
	}
	if t.Capacity < 0 {
		return apperr.Validationf("capacity cannot be negative")
	}
	switch t.Status {
	case models.TableStatusAvailable, models.TableStatusOccupied, models.TableStatusReserved:
		return nil
	}
	return apperr.Validationf("unknown table status %q", t.Status)
}
