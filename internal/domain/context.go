// Package domain provides core business types, store contracts and context
// helpers for the mercato checkout service.
package domain

import (
	"context"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey int

const (
	// principalContextKey stores the authenticated caller.
	principalContextKey contextKey = iota

	// requestIDContextKey stores the request ID for tracing.
	requestIDContextKey
)

// Principal is the authenticated caller attached to a request context.
// IsAdmin is only set after the admin middleware has checked the user store.
type Principal struct {
	UserID  string
	Email   string
	IsAdmin bool
}

// NewContextWithPrincipal returns a new context with the caller attached.
func NewContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext retrieves the caller from context.
// Returns nil if the request is unauthenticated.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey).(*Principal)
	return p
}

// UserIDFromContext retrieves the caller's user ID from context.
// Returns an empty string if no caller is present.
func UserIDFromContext(ctx context.Context) string {
	if p := PrincipalFromContext(ctx); p != nil {
		return p.UserID
	}
	return ""
}

// RequireUserID retrieves the caller's user ID, panicking if not present.
// Handlers behind RequireAuth may use it; the recovery middleware turns the
// panic into a 500.
func RequireUserID(ctx context.Context) string {
	id := UserIDFromContext(ctx)
	if id == "" {
		panic("user_id required in context but not found")
	}
	return id
}

// NewContextWithRequestID returns a new context with the request ID attached.
func NewContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if no request ID is present.
func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDContextKey).(string)
	return requestID
}
