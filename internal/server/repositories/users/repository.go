// Package users stores user records. Every PII column holds field-cipher
// ciphertext, so lookups compare ciphertext with ciphertext.
package users

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Field names an encrypted column that may be searched.
type Field string

const (
	FieldEmail     Field = "email"
	FieldFirstName Field = "first_name"
	FieldLastName  Field = "last_name"
)

// column maps f to its SQL column; only the listed fields are searchable.
func (f Field) column() (string, error) {
	switch f {
	case FieldEmail, FieldFirstName, FieldLastName:
		return string(f), nil
	}
	return "", fmt.Errorf("field %q is not searchable", string(f))
}

// Repository is the persistence boundary for user records.
//
// Insert assigns ID and timestamps and returns common.ErrorAlreadyExists when
// the unique email index rejects the row. Finders return common.ErrorNotFound
// when nothing matches.
type Repository interface {
	Insert(ctx context.Context, user *models.User) (*models.User, error)
	FindOneByEncryptedField(ctx context.Context, field Field, ciphertext string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
}
