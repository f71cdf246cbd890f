package cryptox

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/common"
)

// NewHasher picks the credential hasher by name. cost is the bcrypt work
// factor, or the Argon2id iteration count; zero selects the default.
func NewHasher(name string, cost int) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", HashBcrypt:
		if cost == 0 {
			cost = DefaultBcryptCost
		}
		return NewBcryptHasher(cost)
	case HashArgon2id:
		p := DefaultArgon2Params
		if cost > 0 {
			p.Iterations = uint32(cost) // #nosec G115 -- cost is a small positive int
		}
		return NewArgon2Hasher(p)
	}
	return nil, fmt.Errorf("%w: unknown hasher %q", common.ErrorCrypto, name)
}
