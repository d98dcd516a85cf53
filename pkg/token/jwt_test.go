package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerify(t *testing.T) {
	m := NewJWTManager("secret", 2)
	assert.Equal(t, 2*time.Hour, m.TTL())

	raw, err := m.GenerateToken(Subject{ID: "u-1", Email: "a@b.c", CPF: "123", IsAdmin: true})
	require.NoError(t, err)

	for _, header := range []string{raw, "Bearer " + raw, "bearer " + raw, "  BEARER " + raw + " "} {
		claims, err := m.VerifyToken(header)
		require.NoError(t, err, header)
		assert.Equal(t, "u-1", claims.ID)
		assert.Equal(t, "a@b.c", claims.Email)
		assert.True(t, claims.IsAdmin)
		assert.WithinDuration(t, time.Now().Add(2*time.Hour), claims.ExpiresAt.Time, time.Minute)
	}
}

func TestVerifyRejects(t *testing.T) {
	m := NewJWTManager("secret", 0)
	assert.Equal(t, 24*time.Hour, m.TTL())

	other, err := NewJWTManager("other", 1).GenerateToken(Subject{ID: "u-1"})
	require.NoError(t, err)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, UserClaims{
		ID: "u-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, UserClaims{ID: "u-1"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"empty":          "",
		"bearer only":    "Bearer ",
		"garbage":        "not.a.token",
		"wrong secret":   other,
		"expired":        expired,
		"missing expiry": noExpiry,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := m.VerifyToken(raw)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestStripBearer(t *testing.T) {
	assert.Equal(t, "abc", StripBearer("Bearer abc"))
	assert.Equal(t, "abc", StripBearer("bEaReR abc"))
	assert.Equal(t, "abc", StripBearer("abc"))
	assert.Equal(t, "", StripBearer("Bearer"))
}
