package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"pos-service/internal/apperr"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	checkViolation      = "23514"

	// dataException covers values the column cannot hold: too long,
	// out of range, malformed.
	dataException pq.ErrorClass = "22"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string, maxOpenConns int) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// New wraps an existing connection pool
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded schema; every statement is idempotent
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Ping checks database reachability
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RunInTx runs fn inside a read-committed transaction. The transaction is
// committed only if fn returns nil; any error or panic rolls it back.
func (s *Store) RunInTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return apperr.Transient("failed to begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return apperr.Transient("failed to commit transaction", err)
	}
	return nil
}

// Tx exposes the statements that must share a transaction
type Tx struct {
	tx *sqlx.Tx
}

// mapError classifies driver errors; what names the entity for messages.
func mapError(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFoundf("%s not found", what)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == uniqueViolation:
			return apperr.Conflictf("%s already exists (%s)", what, pqErr.Constraint)
		case pqErr.Code == foreignKeyViolation:
			return apperr.NotFoundf("%s references a missing record (%s)", what, pqErr.Constraint)
		case pqErr.Code == checkViolation:
			return apperr.Validationf("invalid %s (%s)", what, pqErr.Constraint)
		case pqErr.Code.Class() == dataException:
			return apperr.Validationf("invalid %s: %s", what, pqErr.Message)
		}
	}
	if apperr.KindOf(err) != apperr.KindUnknown {
		return err
	}
	return apperr.Transient(fmt.Sprintf("%s query failed", what), err)
}
