package users

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newRecords(t *testing.T) (*Records, *cryptox.FieldCipher, *cryptox.BcryptHasher) {
	t.Helper()
	c, err := cryptox.NewFieldCipher("aes-256-cbc", []byte("0123456789abcdef0123456789abcdef"), []byte("abcdef9876543210"))
	require.NoError(t, err)
	h, err := cryptox.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	return NewRecords(c, h), c, h
}

func validRegistration() Registration {
	return Registration{FirstName: "Ann", LastName: "Lee", Email: "ann@example.com", Password: "longenough1"}
}

func TestCreate_EncryptsAndHashes(t *testing.T) {
	r, c, h := newRecords(t)

	u, err := r.Create(validRegistration())
	require.NoError(t, err)

	for _, stored := range []string{u.FirstName, u.LastName, u.Email, u.PasswordHash} {
		assert.NotContains(t, []string{"Ann", "Lee", "ann@example.com", "longenough1"}, stored)
	}

	email, err := c.Decrypt(u.Email)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", email)

	ok, err := h.Verify("longenough1", u.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, u.IsAdmin)
	assert.Empty(t, u.ID, "id is assigned by the store")
}

func TestCreate_NormalizesEmailAndNames(t *testing.T) {
	r, c, _ := newRecords(t)

	reg := validRegistration()
	reg.Email = "  Ann@Example.COM "
	reg.FirstName = "  Ann "

	u, err := r.Create(reg)
	require.NoError(t, err)

	email, _ := c.Decrypt(u.Email)
	first, _ := c.Decrypt(u.FirstName)
	assert.Equal(t, "ann@example.com", email)
	assert.Equal(t, "Ann", first)

	key, err := r.LookupKey("ANN@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.Email, key)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Registration)
		field  string
	}{
		{"password length 9", func(r *Registration) { r.Password = "123456789" }, "password"},
		{"password too long", func(r *Registration) { r.Password = strings.Repeat("p", 257) }, "password"},
		{"missing password", func(r *Registration) { r.Password = "" }, "password"},
		{"bad email", func(r *Registration) { r.Email = "not-an-email" }, "email"},
		{"email too long", func(r *Registration) { r.Email = strings.Repeat("a", 250) + "@example.com" }, "email"},
		{"blank first name", func(r *Registration) { r.FirstName = "   " }, "firstname"},
		{"first name too long", func(r *Registration) { r.FirstName = strings.Repeat("n", 257) }, "firstname"},
		{"missing last name", func(r *Registration) { r.LastName = "" }, "lastname"},
	}

	r, _, _ := newRecords(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := validRegistration()
			tt.mutate(&reg)

			u, err := r.Create(reg)
			require.Error(t, err)
			assert.Nil(t, u)
			assert.True(t, errors.Is(err, common.ErrorValidation))

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, tt.field)
			assert.Contains(t, err.Error(), tt.field+": ")
		})
	}
}

func TestCreate_PasswordBoundaries(t *testing.T) {
	r, _, _ := newRecords(t)

	for _, n := range []int{PasswordMinLength, PasswordMaxLength} {
		reg := validRegistration()
		reg.Password = strings.Repeat("p", n)
		_, err := r.Create(reg)
		assert.NoError(t, err, "length %d", n)
	}

	reg := validRegistration()
	reg.FirstName = strings.Repeat("n", NameMaxLength)
	_, err := r.Create(reg)
	assert.NoError(t, err)
}

type failingCipher struct{}

func (failingCipher) Encrypt(string) (string, error) { return "", common.ErrorCrypto }
func (failingCipher) Decrypt(string) (string, error) { return "", common.ErrorCrypto }

func TestCreate_CipherFailurePropagates(t *testing.T) {
	_, _, h := newRecords(t)
	r := NewRecords(failingCipher{}, h)

	_, err := r.Create(validRegistration())
	assert.ErrorIs(t, err, common.ErrorCrypto)
	assert.False(t, errors.Is(err, common.ErrorValidation))

	_, err = r.LookupKey("ann@example.com")
	assert.ErrorIs(t, err, common.ErrorCrypto)
}

func TestPublicView_DecryptsAndOmitsSecret(t *testing.T) {
	r, _, _ := newRecords(t)

	u, err := r.Create(validRegistration())
	require.NoError(t, err)
	u.ID = "u-1"
	u.IsAdmin = true
	u.CreatedAt = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	u.UpdatedAt = u.CreatedAt

	view, err := r.PublicView(u)
	require.NoError(t, err)
	assert.Equal(t, &PublicUser{
		ID: "u-1", FirstName: "Ann", LastName: "Lee", Email: "ann@example.com",
		IsAdmin: true, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt,
	}, view)

	b, err := json.Marshal(view)
	require.NoError(t, err)
	body := string(b)
	assert.NotContains(t, strings.ToLower(body), "password")
	assert.NotContains(t, body, u.PasswordHash)
	assert.NotContains(t, body, "_id")

	var keys map[string]any
	require.NoError(t, json.Unmarshal(b, &keys))
	assert.ElementsMatch(t, []string{"id", "firstname", "lastname", "email", "isAdmin", "createdAt", "updatedAt"}, mapKeys(keys))
}

func TestPublicView_CorruptCiphertext(t *testing.T) {
	r, _, _ := newRecords(t)

	_, err := r.PublicView(&models.User{FirstName: "zz"})
	assert.ErrorIs(t, err, common.ErrorCrypto)
}

func mapKeys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
