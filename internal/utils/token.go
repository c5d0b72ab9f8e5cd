package utils

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// AccessTokenPrefix marks channel bearer tokens so they are recognisable
// when pasted into configuration files or headers.
const AccessTokenPrefix = "r-"

// ErrInvalidChannelID is returned when an external channel id is not a
// base64url encoded UUID.
var ErrInvalidChannelID = errors.New("invalid channel id")

// NewAccessToken returns a fresh channel bearer token: the prefix followed
// by 16 random bytes in hex (32 characters).
func NewAccessToken() (string, error) {
	raw, err := randomHex(16)
	if err != nil {
		return "", err
	}
	return AccessTokenPrefix + raw, nil
}

// NewChannelID returns a new random UUID in its canonical string form.
func NewChannelID() string { return uuid.NewString() }

// EncodeChannelID converts a canonical UUID string into the URL safe form
// handed to clients.  Padding is stripped.
func EncodeChannelID(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

// DecodeChannelID reverses EncodeChannelID.  Padded input is accepted.  The
// decoded value must parse as a UUID; it is returned in canonical form.
func DecodeChannelID(external string) (string, error) {
	s := strings.TrimRight(strings.TrimSpace(external), "=")
	if s == "" {
		return "", ErrInvalidChannelID
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return "", ErrInvalidChannelID
	}
	id, err := uuid.Parse(string(b))
	if err != nil {
		return "", ErrInvalidChannelID
	}
	return id.String(), nil
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
