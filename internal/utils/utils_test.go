package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashSecret_RoundTrip(t *testing.T) {
	hash, err := HashSecret("correct horse", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)
	assert.True(t, VerifySecret(hash, "correct horse"))
	assert.False(t, VerifySecret(hash, "battery staple"))
}

func TestHashSecret_Salted(t *testing.T) {
	a, err := HashSecret("same", bcrypt.MinCost)
	require.NoError(t, err)
	b, err := HashSecret("same", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashSecret_TooLong(t *testing.T) {
	_, err := HashSecret(strings.Repeat("x", 73), bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrSecretTooLong)
}

func TestVerifySecret_EmptyInputs(t *testing.T) {
	assert.False(t, VerifySecret("", "x"))
	assert.False(t, VerifySecret("$2a$04$abc", ""))
}

func TestSessionToken_RoundTrip(t *testing.T) {
	tok, err := IssueSessionToken("secret", "alice", 24*time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), tok.Exp, time.Minute)

	username, err := VerifySessionToken("secret", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
}

func TestSessionToken_WrongSecret(t *testing.T) {
	tok, err := IssueSessionToken("secret", "alice", time.Hour)
	require.NoError(t, err)
	_, err = VerifySessionToken("other", tok.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessionToken_Expired(t *testing.T) {
	tok, err := IssueSessionToken("secret", "alice", -time.Minute)
	require.NoError(t, err)
	_, err = VerifySessionToken("secret", tok.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessionToken_RejectsNoneAlgorithm(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = VerifySessionToken("secret", raw)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessionToken_MissingSubject(t *testing.T) {
	tok, err := IssueSessionToken("secret", "", time.Hour)
	require.NoError(t, err)
	_, err = VerifySessionToken("secret", tok.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestNewAccessToken_Format(t *testing.T) {
	tok, err := NewAccessToken()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tok, AccessTokenPrefix))
	assert.Len(t, tok, len(AccessTokenPrefix)+32)

	other, err := NewAccessToken()
	require.NoError(t, err)
	assert.NotEqual(t, tok, other)
}

func TestChannelID_RoundTrip(t *testing.T) {
	id := NewChannelID()
	ext := EncodeChannelID(id)
	assert.NotContains(t, ext, "=")

	got, err := DecodeChannelID(ext)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	got, err = DecodeChannelID(ext + "==")
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestDecodeChannelID_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "!!!", EncodeChannelID("not-a-uuid")} {
		_, err := DecodeChannelID(in)
		assert.ErrorIs(t, err, ErrInvalidChannelID, in)
	}
}
