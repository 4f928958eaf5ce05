package auth

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/portal-auth/internal/domain"
)

func segment(raw string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func rawToken(payload string) string {
	return segment(`{"alg":"HS256","typ":"JWT"}`) + "." + segment(payload) + ".c2ln"
}

func TestDecodeTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("round-trip-secret", 30)
	issuedAt := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	for _, role := range []domain.Role{domain.RoleAdmin, domain.RoleStaff} {
		token, expiresAt, err := tm.GenerateTokenAt("subject-42", role, issuedAt)
		require.NoError(t, err)

		claims, err := DecodeToken(token)
		require.NoError(t, err)
		assert.Equal(t, "subject-42", claims.SubjectID)
		assert.Equal(t, role, claims.Role)
		assert.True(t, expiresAt.Equal(claims.ExpiresAt), "expiry %s != %s", claims.ExpiresAt, expiresAt)
		assert.True(t, issuedAt.Equal(claims.IssuedAt))
	}
}

func TestDecodeTokenIgnoresSignature(t *testing.T) {
	claims, err := DecodeToken(rawToken(`{"sub":"7","role":"staff","exp":1900000000}`))
	require.NoError(t, err)
	assert.Equal(t, "7", claims.SubjectID)
	assert.Equal(t, domain.RoleStaff, claims.Role)
	assert.Equal(t, int64(1900000000), claims.ExpiresAt.Unix())
	assert.True(t, claims.IssuedAt.IsZero())
}

func TestDecodeTokenAcceptsUnknownAlgorithm(t *testing.T) {
	token := segment(`{"alg":"XX512"}`) + "." + segment(`{"sub":"7","role":"admin","exp":1900000000}`) + ".sig"

	claims, err := DecodeToken(token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
}

func TestDecodeTokenMalformed(t *testing.T) {
	cases := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "one segment", token: "abc"},
		{name: "two segments", token: "abc.def"},
		{name: "four segments", token: "a.b.c.d"},
		{name: "payload not base64", token: segment(`{"alg":"HS256"}`) + ".***." + "sig"},
		{name: "payload not json", token: segment(`{"alg":"HS256"}`) + "." + segment("not-json") + ".sig"},
		{name: "payload is array", token: rawToken(`[1,2,3]`)},
		{name: "missing sub", token: rawToken(`{"role":"admin","exp":1900000000}`)},
		{name: "missing role", token: rawToken(`{"sub":"1","exp":1900000000}`)},
		{name: "missing exp", token: rawToken(`{"sub":"1","role":"admin"}`)},
		{name: "exp as string", token: rawToken(`{"sub":"1","role":"admin","exp":"1900000000"}`)},
		{name: "iat as string", token: rawToken(`{"sub":"1","role":"admin","exp":1900000000,"iat":"x"}`)},
		{name: "sub as number", token: rawToken(`{"sub":1,"role":"admin","exp":1900000000}`)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			claims, err := DecodeToken(tc.token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedToken))

			var decodeErr *DecodeError
			assert.True(t, errors.As(err, &decodeErr))
			assert.Equal(t, Claims{}, claims)
		})
	}
}

func TestClaimsRemaining(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	claims := Claims{ExpiresAt: now.Add(4 * time.Minute)}

	assert.Equal(t, 4*time.Minute, claims.Remaining(now))
	assert.False(t, claims.Expired(now))
	assert.Equal(t, time.Duration(0), claims.Remaining(now.Add(time.Hour)))
	assert.True(t, claims.Expired(now.Add(4*time.Minute)))
}

func TestTokenManagerParseToken(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, _, err := tm.GenerateToken("s-1", domain.RoleAdmin)
	require.NoError(t, err)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "s-1", claims.Subject)
	assert.Equal(t, "admin", claims.Role)
	assert.NotEmpty(t, claims.ID)

	_, err = NewTokenManager("other", 5).ParseToken(token)
	assert.Error(t, err)

	expired, _, err := tm.GenerateTokenAt("s-1", domain.RoleAdmin, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = tm.ParseToken(expired)
	assert.Error(t, err)
}
