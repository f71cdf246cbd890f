package cryptox

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost matches the cost the service has always used.
const DefaultBcryptCost = 12

// BcryptHasher hashes secrets with bcrypt at a fixed cost.
//
// bcrypt only reads the first 72 bytes of its input and passwords may be up
// to 256 characters, so every secret is first reduced to the base64 of its
// SHA-256 digest (44 bytes) and that is what bcrypt sees. Digests written by
// the previous service hashed the raw secret; Verify still accepts those.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher validates cost against bcrypt's accepted range.
func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("%w: bcrypt cost %d outside [%d,%d]", common.ErrorCrypto, cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &BcryptHasher{cost: cost}, nil
}

func prehash(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}

func (h *BcryptHasher) Hash(secret string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword(prehash(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrorCrypto, err)
	}
	return string(digest), nil
}

// Verify relies on bcrypt's constant-time comparison of the derived key.
// A pre-hashed mismatch is retried against the raw secret when it fits in
// bcrypt's input. The retry depends only on the secret, so a known and an
// unknown user still cost the same.
func (h *BcryptHasher) Verify(secret, digest string) (bool, error) {
	ok, err := compareBcrypt(digest, prehash(secret))
	if ok || err != nil || len(secret) > bcryptMaxInput {
		return ok, err
	}
	return compareBcrypt(digest, []byte(secret))
}

// bcryptMaxInput is the number of input bytes bcrypt reads.
const bcryptMaxInput = 72

func compareBcrypt(digest string, secret []byte) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), secret)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %v", common.ErrorCrypto, err)
}
