package cryptox

// Hasher is a one-way, salted credential hash. There is no way back from a
// digest to the secret; Verify is the only consumer of stored digests.
type Hasher interface {
	// Hash returns a self-describing digest with a fresh random salt.
	Hash(secret string) (string, error)
	// Verify reports whether secret matches digest. A malformed digest is
	// an error, a mismatch is (false, nil).
	Verify(secret, digest string) (bool, error)
}

const (
	HashBcrypt   = "bcrypt"
	HashArgon2id = "argon2id"
)
