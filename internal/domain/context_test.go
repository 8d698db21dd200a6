package domain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrincipalContext(t *testing.T) {
	t.Run("PrincipalFromContext returns nil when unauthenticated", func(t *testing.T) {
		assert.Nil(t, PrincipalFromContext(context.Background()))
		assert.Empty(t, UserIDFromContext(context.Background()))
	})

	t.Run("PrincipalFromContext returns caller when set", func(t *testing.T) {
		ctx := NewContextWithPrincipal(context.Background(), &Principal{
			UserID: "u-1",
			Email:  "lan@example.com",
		})

		p := PrincipalFromContext(ctx)
		require.NotNil(t, p)
		assert.Equal(t, "u-1", p.UserID)
		assert.Equal(t, "u-1", UserIDFromContext(ctx))
		assert.False(t, p.IsAdmin)
	})

	t.Run("RequireUserID panics when unauthenticated", func(t *testing.T) {
		assert.Panics(t, func() { RequireUserID(context.Background()) })
	})

	t.Run("RequireUserID returns id", func(t *testing.T) {
		ctx := NewContextWithPrincipal(context.Background(), &Principal{UserID: "u-2"})
		assert.Equal(t, "u-2", RequireUserID(ctx))
	})
}

func TestRequestIDContext(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))

	ctx := NewContextWithRequestID(context.Background(), "req-123")
	assert.Equal(t, "req-123", RequestIDFromContext(ctx))
}
