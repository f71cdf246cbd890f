// Package auth mints and verifies the signed bearer tokens handed out on login.
package auth

import (
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the claim set of an access token: registered sub/iat/exp plus
// the privilege flag.
type Claims struct {
	jwt.RegisteredClaims
	IsAdmin bool `json:"x_is_admin"`
}

// TokenIssuer signs access tokens with an RSA private key held for the
// process lifetime. It is safe for concurrent use.
type TokenIssuer struct {
	method   jwt.SigningMethod
	key      *rsa.PrivateKey
	lifetime time.Duration
	now      func() time.Time
}

// NewTokenIssuer parses the base64-encoded PEM private key and checks that
// algorithm belongs to the RSA or RSA-PSS family. Failures wrap
// common.ErrorCrypto and are meant to stop the process at startup.
func NewTokenIssuer(keyB64, algorithm string, lifetime time.Duration) (*TokenIssuer, error) {
	method := jwt.GetSigningMethod(strings.ToUpper(strings.TrimSpace(algorithm)))
	switch method.(type) {
	case *jwt.SigningMethodRSA, *jwt.SigningMethodRSAPSS:
	default:
		return nil, fmt.Errorf("%w: unsupported signing algorithm %q", common.ErrorCrypto, algorithm)
	}

	if lifetime <= 0 {
		return nil, fmt.Errorf("%w: token lifetime must be positive, got %s", common.ErrorCrypto, lifetime)
	}

	pemBytes, err := base64.StdEncoding.DecodeString(strings.TrimSpace(keyB64))
	if err != nil {
		return nil, fmt.Errorf("%w: signing key is not base64: %v", common.ErrorCrypto, err)
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: signing key: %v", common.ErrorCrypto, err)
	}

	return &TokenIssuer{method: method, key: key, lifetime: lifetime, now: time.Now}, nil
}

// Issue mints a token for u: sub is the public id, x_is_admin the privilege
// flag, exp is iat plus the configured lifetime.
func (i *TokenIssuer) Issue(u *models.User) (string, error) {
	if u == nil || u.ID == "" {
		return "", errors.New("cannot issue a token without a subject")
	}

	now := i.now()
	token := jwt.NewWithClaims(i.method, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.lifetime)),
		},
		IsAdmin: u.IsAdmin,
	})

	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("%w: sign token: %v", common.ErrorCrypto, err)
	}
	return signed, nil
}

// Verify checks signature, algorithm and expiry of tokenString and returns
// its claims. Expired tokens yield common.ErrTokenExpired, anything else
// common.ErrInvalidToken.
func (i *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return &i.key.PublicKey, nil },
		jwt.WithValidMethods([]string{i.method.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// Lifetime returns the configured token validity.
func (i *TokenIssuer) Lifetime() time.Duration { return i.lifetime }
