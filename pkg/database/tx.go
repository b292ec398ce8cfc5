package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type txKey struct{}

// Transactor runs read-then-decide-then-write sequences inside a single
// serializable transaction so two concurrent writers for overlapping slots
// cannot both succeed. The transaction travels on the context; repositories
// pick it up through Ext.
type Transactor struct {
	db         *sqlx.DB
	maxRetries int
}

// NewTransactor wraps the database handle. maxRetries bounds how often a
// serialization failure is retried before it is surfaced to the caller.
func NewTransactor(db *sqlx.DB, maxRetries int) *Transactor {
	if maxRetries < 1 {
		maxRetries = 3
	}
	return &Transactor{db: db, maxRetries: maxRetries}
}

// Within executes fn inside a serializable transaction, retrying fn from
// scratch on Postgres serialization or deadlock failures (SQLSTATE 40001,
// 40P01). Any other error rolls back and is returned as-is.
func (t *Transactor) Within(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx := txFromContext(ctx); tx != nil {
		// already inside a transaction, join it
		return fn(ctx)
	}

	var lastErr error
	for attempt := 0; attempt < t.maxRetries; attempt++ {
		tx, err := t.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err != nil {
			return fmt.Errorf("begin serializable tx: %w", err)
		}

		err = fn(context.WithValue(ctx, txKey{}, tx))
		if err != nil {
			_ = tx.Rollback()
			if isSerializationFailure(err) {
				lastErr = err
				continue
			}
			return err
		}

		if err = tx.Commit(); err != nil {
			if isSerializationFailure(err) {
				lastErr = err
				continue
			}
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	}
	return fmt.Errorf("transaction retries exhausted: %w", lastErr)
}

// Ext returns the transaction bound to ctx when present, otherwise the
// plain database handle. Repository queries always go through this.
func Ext(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return db
}

func txFromContext(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}
