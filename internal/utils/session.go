package utils // package utils holds the credential primitives shared by handlers and middleware

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidSession is returned for any session token that cannot be
// trusted: bad signature, wrong algorithm, expired, or missing subject.
var ErrInvalidSession = errors.New("invalid session token")

// SessionToken is a signed HS256 JWT together with its expiry.
type SessionToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // UTC expiration time
}

// IssueSessionToken signs a token whose subject is the account username.
// The claims carry sub, exp and iat; nothing else about the account is
// embedded so that tier or credit changes are always read from the store.
func IssueSessionToken(secret, username string, ttl time.Duration) (SessionToken, error) {
	if secret == "" {
		return SessionToken{}, errors.New("empty signing secret")
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   username,
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: signed, Exp: exp}, nil
}

// VerifySessionToken checks signature and expiry and returns the embedded
// account username.
func VerifySessionToken(secret, raw string) (string, error) {
	if raw == "" {
		return "", ErrInvalidSession
	}
	var claims jwt.RegisteredClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSession
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return "", ErrInvalidSession
	}
	if claims.Subject == "" {
		return "", ErrInvalidSession
	}
	return claims.Subject, nil
}
