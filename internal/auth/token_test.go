package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/mercato/internal/domain"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager("secret", time.Minute)

	token, err := m.Issue("u1")
	require.NoError(t, err)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
}

func TestTokenManager_Verify(t *testing.T) {
	issued := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)

	issuer := NewTokenManager("secret", 30*time.Minute)
	issuer.now = func() time.Time { return issued }
	valid, err := issuer.Issue("u1")
	require.NoError(t, err)

	forged, err := NewTokenManager("other-secret", 30*time.Minute).Issue("u1")
	require.NoError(t, err)

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": issued.Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name     string
		token    string
		at       time.Time
		wantErr  error
		wantCode string
	}{
		{"valid", valid, issued.Add(time.Minute), nil, ""},
		{"expired", valid, issued.Add(31 * time.Minute), ErrTokenExpired, domain.EEXPIRED},
		{"wrong secret", forged, issued, ErrTokenInvalid, domain.EUNAUTHORIZED},
		{"garbage", "not.a.jwt", issued, ErrTokenInvalid, domain.EUNAUTHORIZED},
		{"missing user", noUser, issued, ErrTokenInvalid, domain.EUNAUTHORIZED},
		{"empty", "", issued, ErrTokenMissing, domain.EUNAUTHORIZED},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewTokenManager("secret", 30*time.Minute)
			m.now = func() time.Time { return tt.at }

			claims, err := m.Verify(tt.token)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, "u1", claims.UserID)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantCode, domain.ErrorCode(err))
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi"},
		{"bearer abc", "abc"},
		{"Basic dXNlcjpwYXNz", ""},
		{"Bearer", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, BearerToken(tt.header))
		})
	}
}
