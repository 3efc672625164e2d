package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linanqiu/acquire-game-sub002/service/internal/models"
)

func TestIssueAndParse(t *testing.T) {
	s := NewSigner("secret", time.Hour)
	user := models.User{ID: uuid.New(), Username: "alice"}

	tok, err := s.IssueToken(user)
	require.NoError(t, err)

	got, err := s.ParseToken(tok)
	require.NoError(t, err)
	assert.Equal(t, user, got)
}

func TestParseRejects(t *testing.T) {
	s := NewSigner("secret", time.Hour)
	user := models.User{ID: uuid.New(), Username: "bob"}

	other, err := NewSigner("other", time.Hour).IssueToken(user)
	require.NoError(t, err)
	_, err = s.ParseToken(other)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong secret")

	// Expiry has second granularity, so sign one that lapsed a minute ago.
	claims := Claims{Username: "bob", RegisteredClaims: jwt.RegisteredClaims{
		Subject:   user.ID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = s.ParseToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken, "expired")

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: user.ID.String()}}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = s.ParseToken(noExp)
	assert.ErrorIs(t, err, ErrInvalidToken, "missing exp")

	badSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "not-a-uuid",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = s.ParseToken(badSub)
	assert.ErrorIs(t, err, ErrInvalidToken, "bad subject")

	_, err = s.ParseToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRoomPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NoError(t, CheckPassword(hash, "hunter2"))
	assert.ErrorIs(t, CheckPassword(hash, "hunter3"), ErrWrongPassword)
	assert.NoError(t, CheckPassword("", "anything"))
}
