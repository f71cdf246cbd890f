// Package cryptox holds the cryptographic primitives of the service: the
// deterministic field cipher used for PII attributes and the one-way
// credential hashers used for passwords.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/authkeeper/internal/common"
)

const (
	modeCBC = "cbc"
	modeCTR = "ctr"
)

// FieldCipher encrypts single attribute values with a process-wide key and a
// fixed IV. The same plaintext always yields the same ciphertext, which is
// what lets the store enforce uniqueness and look records up by an encrypted
// column. The price is that equal values are visible as equal ciphertexts.
//
// Ciphertext is lowercase hex. A FieldCipher is safe for concurrent use.
type FieldCipher struct {
	algorithm string
	mode      string
	block     cipher.Block
	iv        []byte
}

// NewFieldCipher validates the algorithm identifier ("aes-<128|192|256>-<cbc|ctr>")
// together with the key and IV lengths. Any rejection wraps common.ErrorCrypto.
func NewFieldCipher(algorithm string, key, iv []byte) (*FieldCipher, error) {
	bits, mode, err := parseAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}

	if len(key) != bits/8 {
		return nil, fmt.Errorf("%w: %s needs a %d-byte key, got %d", common.ErrorCrypto, algorithm, bits/8, len(key))
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("%w: %s needs a %d-byte IV, got %d", common.ErrorCrypto, algorithm, aes.BlockSize, len(iv))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorCrypto, err)
	}

	return &FieldCipher{
		algorithm: strings.ToLower(algorithm),
		mode:      mode,
		block:     block,
		iv:        bytes.Clone(iv),
	}, nil
}

func parseAlgorithm(algorithm string) (int, string, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(algorithm)), "-")
	if len(parts) != 3 || parts[0] != "aes" {
		return 0, "", fmt.Errorf("%w: unsupported algorithm %q", common.ErrorCrypto, algorithm)
	}

	bits, err := strconv.Atoi(parts[1])
	if err != nil || (bits != 128 && bits != 192 && bits != 256) {
		return 0, "", fmt.Errorf("%w: unsupported key size in %q", common.ErrorCrypto, algorithm)
	}

	switch parts[2] {
	case modeCBC, modeCTR:
	default:
		return 0, "", fmt.Errorf("%w: unsupported mode in %q", common.ErrorCrypto, algorithm)
	}

	return bits, parts[2], nil
}

// Algorithm returns the normalized algorithm identifier.
func (c *FieldCipher) Algorithm() string { return c.algorithm }

// Encrypt returns the hex ciphertext of plaintext.
func (c *FieldCipher) Encrypt(plaintext string) (string, error) {
	src := []byte(plaintext)

	switch c.mode {
	case modeCBC:
		src = pkcs7Pad(src, aes.BlockSize)
		dst := make([]byte, len(src))
		cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(dst, src)
		return hex.EncodeToString(dst), nil
	case modeCTR:
		dst := make([]byte, len(src))
		cipher.NewCTR(c.block, c.iv).XORKeyStream(dst, src)
		return hex.EncodeToString(dst), nil
	}

	return "", fmt.Errorf("%w: unknown mode %q", common.ErrorCrypto, c.mode)
}

// Decrypt reverses Encrypt. Malformed hex, bad padding or a result that is
// not valid UTF-8 wrap common.ErrorCrypto.
func (c *FieldCipher) Decrypt(ciphertext string) (string, error) {
	src, err := hex.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext is not hex: %v", common.ErrorCrypto, err)
	}

	var dst []byte

	switch c.mode {
	case modeCBC:
		if len(src) == 0 || len(src)%aes.BlockSize != 0 {
			return "", fmt.Errorf("%w: ciphertext is not a whole number of blocks", common.ErrorCrypto)
		}
		dst = make([]byte, len(src))
		cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(dst, src)
		if dst, err = pkcs7Unpad(dst, aes.BlockSize); err != nil {
			return "", err
		}
	case modeCTR:
		dst = make([]byte, len(src))
		cipher.NewCTR(c.block, c.iv).XORKeyStream(dst, src)
	default:
		return "", fmt.Errorf("%w: unknown mode %q", common.ErrorCrypto, c.mode)
	}

	if !utf8.Valid(dst) {
		return "", fmt.Errorf("%w: plaintext is not valid UTF-8", common.ErrorCrypto)
	}

	return string(dst), nil
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, fmt.Errorf("%w: bad padding", common.ErrorCrypto)
	}
	for _, v := range b[len(b)-n:] {
		if int(v) != n {
			return nil, fmt.Errorf("%w: bad padding", common.ErrorCrypto)
		}
	}
	return b[:len(b)-n], nil
}
