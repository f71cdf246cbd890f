// Package models holds the storage shapes of server-side records.
package models

import "time"

// User is a user record as persisted. FirstName, LastName and Email hold
// field-cipher ciphertext, PasswordHash a one-way digest. Nothing in here is
// meant to leave the process as-is; see users.PublicUser for the external form.
type User struct {
	ID           string    `db:"id"`
	FirstName    string    `db:"first_name"`
	LastName     string    `db:"last_name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	IsAdmin      bool      `db:"is_admin"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}
