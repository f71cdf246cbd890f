// Package users maps plaintext user attributes to their stored form and back.
//
// PII attributes (first name, last name, email) pass through the field cipher
// on the way in and out; the password passes through the credential hasher
// exactly once, when the record is built, and is never read back.
package users

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// FieldCipher is the reversible, deterministic transform applied to PII.
type FieldCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Hasher is the one-way transform applied to the password.
type Hasher interface {
	Hash(secret string) (string, error)
}

// PublicUser is the only external form of a user record.
type PublicUser struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstname"`
	LastName  string    `json:"lastname"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Records builds and reads user records.
type Records struct {
	cipher FieldCipher
	hasher Hasher
}

func NewRecords(c FieldCipher, h Hasher) *Records {
	return &Records{cipher: c, hasher: h}
}

// Create validates reg, then returns a record whose PII is encrypted and
// whose password is hashed. It does not persist anything; duplicate emails
// are the store's concern.
func (r *Records) Create(reg Registration) (*models.User, error) {
	reg = reg.Normalize()

	if err := reg.Validate(); err != nil {
		return nil, err
	}

	firstName, err := r.cipher.Encrypt(reg.FirstName)
	if err != nil {
		return nil, fmt.Errorf("encrypt first name: %w", err)
	}
	lastName, err := r.cipher.Encrypt(reg.LastName)
	if err != nil {
		return nil, fmt.Errorf("encrypt last name: %w", err)
	}
	email, err := r.cipher.Encrypt(reg.Email)
	if err != nil {
		return nil, fmt.Errorf("encrypt email: %w", err)
	}

	hash, err := r.hasher.Hash(reg.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	return &models.User{
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      reg.IsAdmin,
	}, nil
}

// LookupKey turns a login identifier into the ciphertext stored in the email
// column, applying the same normalization as Create.
func (r *Records) LookupKey(identifier string) (string, error) {
	key, err := r.cipher.Encrypt(NormalizeEmail(identifier))
	if err != nil {
		return "", fmt.Errorf("encrypt identifier: %w", err)
	}
	return key, nil
}

// PublicView decrypts the PII of u. The password hash is never copied.
func (r *Records) PublicView(u *models.User) (*PublicUser, error) {
	firstName, err := r.cipher.Decrypt(u.FirstName)
	if err != nil {
		return nil, fmt.Errorf("decrypt first name: %w", err)
	}
	lastName, err := r.cipher.Decrypt(u.LastName)
	if err != nil {
		return nil, fmt.Errorf("decrypt last name: %w", err)
	}
	email, err := r.cipher.Decrypt(u.Email)
	if err != nil {
		return nil, fmt.Errorf("decrypt email: %w", err)
	}

	return &PublicUser{
		ID:        u.ID,
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}, nil
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
