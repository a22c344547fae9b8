package repository

import (
	"context"
	"errors"
	"fmt"

	benome_errors "benome-realtime/pkg/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

type txKey struct{}

// GormTransactor carries the open *gorm.DB transaction in the context.
type GormTransactor struct {
	db *gorm.DB
}

func NewTransactor(db *gorm.DB) *GormTransactor {
	return &GormTransactor{db: db}
}

// WithinTransaction executes fn inside a transaction. If ctx already carries
// one, fn joins it instead of opening a nested transaction.
func (t *GormTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
	return classify("transaction", err)
}

// conn returns the transaction in ctx, or db bound to ctx.
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// classify maps driver errors onto the error kinds. Already classified errors pass through.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if benome_errors.IsKnown(err) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return benome_errors.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s: %w", op, benome_errors.ErrConflict)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w", op, benome_errors.ErrConflict)
		case pgForeignKeyViolation, pgCheckViolation:
			return benome_errors.Wrap(benome_errors.ErrPersistence, op+": constraint "+pgErr.ConstraintName, err)
		}
	}
	return benome_errors.Persistence(op, err)
}

func offset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}
