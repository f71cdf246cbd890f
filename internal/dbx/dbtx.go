// Package dbx holds the storage seams repositories share: DBTX, satisfied by
// both *sql.DB and *sql.Tx, and InTx, which runs a unit of work against a
// repository bound to a single transaction.
package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DBTX is the subset of database/sql the repositories use.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// InTx begins a transaction, binds a repository to it and runs fn with that
// repository. The transaction commits when fn returns nil and rolls back when
// fn fails or panics; panics are rethrown.
//
// fn's error comes back unwrapped so callers can match their sentinels.
// Begin and commit failures are wrapped, and a failed rollback is joined to
// fn's error.
//
//	err := dbx.InTx(ctx, db, nil, rm.Users, func(ctx context.Context, repo users.Repository) error {
//	    _, err := repo.Insert(ctx, u)
//	    return err
//	})
func InTx[R any](ctx context.Context, db *sql.DB, opts *sql.TxOptions, bind func(DBTX) R, fn func(ctx context.Context, repo R) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	done := false
	defer func() {
		if done {
			return
		}
		rbErr := tx.Rollback()
		if p := recover(); p != nil {
			panic(p)
		}
		if rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback tx: %w", rbErr))
		}
	}()

	if err = fn(ctx, bind(tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	done = true
	return nil
}
