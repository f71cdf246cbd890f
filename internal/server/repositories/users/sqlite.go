package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteRepository keeps users in an embedded database. IDs are generated
// here and timestamps are stored as RFC 3339 text in UTC.
type SQLiteRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

func (r *SQLiteRepository) Insert(ctx context.Context, user *models.User) (*models.User, error) {
	id := uuid.NewString()
	ts := r.now().UTC()

	query :=
		`INSERT INTO users (id, first_name, last_name, email, password_hash, is_admin, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		id, user.FirstName, user.LastName, user.Email, user.PasswordHash, user.IsAdmin,
		ts.Format(time.RFC3339Nano), ts.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	user.ID = id
	user.CreatedAt = ts
	user.UpdatedAt = ts
	return user, nil
}

func (r *SQLiteRepository) FindOneByEncryptedField(ctx context.Context, field Field, ciphertext string) (*models.User, error) {
	column, err := field.column()
	if err != nil {
		return nil, err
	}

	query :=
		`SELECT id, first_name, last_name, email, password_hash, is_admin, created_at, updated_at
		 FROM users
		 WHERE ` + column + ` = ?
		 LIMIT 1`

	return r.scanOne(r.db.QueryRowContext(ctx, query, ciphertext))
}

func (r *SQLiteRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query :=
		`SELECT id, first_name, last_name, email, password_hash, is_admin, created_at, updated_at
		 FROM users
		 WHERE id = ?`

	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteRepository) scanOne(row *sql.Row) (*models.User, error) {
	var (
		u                models.User
		created, updated string
	)
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.IsAdmin, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if u.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("db error: created_at: %w", err)
	}
	if u.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("db error: updated_at: %w", err)
	}
	return &u, nil
}

func isSQLiteUnique(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}
