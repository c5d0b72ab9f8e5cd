package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrSecretTooLong is returned when a secret exceeds bcrypt's 72 byte input limit.
var ErrSecretTooLong = errors.New("secret exceeds 72 bytes")

// HashSecret returns a salted bcrypt hash using the given cost.  It is used
// for account passwords and channel bearer tokens alike.  A cost outside
// bcrypt's accepted range falls back to bcrypt.DefaultCost.
func HashSecret(plain string, cost int) (string, error) {
	if len(plain) > 72 {
		return "", ErrSecretTooLong
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifySecret compares a bcrypt hash with a plaintext secret in constant time.
func VerifySecret(hash, plain string) bool {
	if hash == "" || plain == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
