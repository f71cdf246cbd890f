package dbx

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

var errTaken = errors.New("taken")

// accounts is a minimal repository bound to whatever handle InTx hands out.
type accounts struct {
	db DBTX
}

func bindAccounts(db DBTX) *accounts { return &accounts{db: db} }

func (a *accounts) Exists(ctx context.Context, email string) (bool, error) {
	var n int
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE email = ?`, email).Scan(&n)
	return n > 0, err
}

func (a *accounts) Add(ctx context.Context, email string) error {
	_, err := a.db.ExecContext(ctx, `INSERT INTO accounts(email) VALUES (?)`, email)
	return err
}

// addUnique is the check-then-insert unit of work registration runs.
func addUnique(email string) func(context.Context, *accounts) error {
	return func(ctx context.Context, repo *accounts) error {
		exists, err := repo.Exists(ctx, email)
		if err != nil {
			return err
		}
		if exists {
			return errTaken
		}
		return repo.Add(ctx, email)
	}
}

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "dbx.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE accounts (id INTEGER PRIMARY KEY, email TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

func countAccounts(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM accounts`).Scan(&n))
	return n
}

func TestInTx_CommitsUnitOfWork(t *testing.T) {
	db := setupDB(t)

	require.NoError(t, InTx(context.Background(), db, nil, bindAccounts, addUnique("ann@example.com")))
	assert.Equal(t, 1, countAccounts(t, db))
}

func TestInTx_ReturnsSentinelUnwrappedAndRollsBack(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	require.NoError(t, InTx(ctx, db, nil, bindAccounts, addUnique("ann@example.com")))

	err := InTx(ctx, db, nil, bindAccounts, func(ctx context.Context, repo *accounts) error {
		require.NoError(t, repo.Add(ctx, "bob@example.com"))
		return addUnique("ann@example.com")(ctx, repo)
	})
	assert.Same(t, errTaken, err)
	assert.Equal(t, 1, countAccounts(t, db), "bob must be rolled back")
}

func TestInTx_BindsTransaction(t *testing.T) {
	db := setupDB(t)

	var bound DBTX
	err := InTx(context.Background(), db, nil, func(h DBTX) DBTX { bound = h; return h },
		func(context.Context, DBTX) error { return nil })
	require.NoError(t, err)
	_, isTx := bound.(*sql.Tx)
	assert.True(t, isTx, "repository must be bound to the transaction, got %T", bound)
}

func TestInTx_RollsBackAndRethrowsPanic(t *testing.T) {
	db := setupDB(t)

	defer func() {
		require.Equal(t, "kaput", recover())
		assert.Equal(t, 0, countAccounts(t, db))
	}()

	_ = InTx(context.Background(), db, nil, bindAccounts, func(ctx context.Context, repo *accounts) error {
		require.NoError(t, repo.Add(ctx, "ann@example.com"))
		panic("kaput")
	})
}

func TestInTx_CanceledContextSkipsBegin(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err = InTx(ctx, db, nil, bindAccounts, func(context.Context, *accounts) error { called = true; return nil })
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_BeginAndCommitFailuresAreWrapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	errBegin := errors.New("no connection")
	mock.ExpectBegin().WillReturnError(errBegin)
	err = InTx(context.Background(), db, nil, bindAccounts, func(context.Context, *accounts) error { return nil })
	require.ErrorIs(t, err, errBegin)
	assert.Contains(t, err.Error(), "begin tx")

	errCommit := errors.New("serialization failure")
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errCommit)
	err = InTx(context.Background(), db, nil, bindAccounts, func(context.Context, *accounts) error { return nil })
	require.ErrorIs(t, err, errCommit)
	assert.Contains(t, err.Error(), "commit tx")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_RollbackFailureIsJoined(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	errRollback := errors.New("connection reset")
	mock.ExpectBegin()
	mock.ExpectRollback().WillReturnError(errRollback)

	err = InTx(context.Background(), db, nil, bindAccounts, func(context.Context, *accounts) error { return errTaken })
	require.ErrorIs(t, err, errTaken)
	require.ErrorIs(t, err, errRollback)
	require.NoError(t, mock.ExpectationsWereMet())
}
