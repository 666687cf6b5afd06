// Package db provides the database access layer.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver
)

// DB is the server database handle.
type DB struct {
	*sqlx.DB
}

// Open opens a database connection.
func Open(ctx context.Context, driverName string, dsn string) (*DB, error) {
	db, err := sqlx.ConnectContext(ctx, driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driverName, err)
	}

	return &DB{DB: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.DB.Close()
}

// Tx is a database transaction.
type Tx struct {
	*sqlx.Tx
}

// Handler is the common interface between *sqlx.DB and *sqlx.Tx.
type Handler interface {
	sqlx.ExtContext
	Rebind(query string) string
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

var (
	_ Handler = (*sqlx.DB)(nil)
	_ Handler = (*sqlx.Tx)(nil)
)

// TransactionContext runs the given function in a transaction, committing on
// success and rolling back on error.
func (d *DB) TransactionContext(ctx context.Context, fn func(tx *Tx) error) error {
	txx, err := d.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	tx := &Tx{txx}
	if err := fn(tx); err != nil {
		return rollback(tx, err)
	}

	if err := tx.Commit(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			// Whoever finished the tx already wrote the error.
			return nil
		}
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func rollback(tx *Tx, err error) error {
	if rerr := tx.Rollback(); rerr != nil {
		if errors.Is(rerr, sql.ErrTxDone) {
			return err
		}
		return fmt.Errorf("rollback: %s: %w", err.Error(), rerr)
	}

	return err
}
