package routes

import (
	"context"
	"net/http"

	"github.com/dukerupert/mercato/internal/auth"
	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/handler/api"
	"github.com/dukerupert/mercato/internal/handler/webhook"
	"github.com/dukerupert/mercato/internal/middleware"
)

// APIDeps contains dependencies for the /api/orders routes
type APIDeps struct {
	OrderHandler *api.OrderHandler

	// Tokens verifies bearer access tokens
	Tokens *auth.TokenManager

	// Users resolves the caller for admin checks
	Users domain.UserStore

	// CheckoutLimiter throttles order creation per client (optional)
	CheckoutLimiter *middleware.RateLimiter
}

// WebhookDeps contains dependencies for payment provider callbacks
type WebhookDeps struct {
	CallbackHandler *webhook.CallbackHandler

	// Limiter throttles callbacks per client (optional)
	Limiter *middleware.RateLimiter
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsDeps contains dependencies for health and metrics endpoints
type OpsDeps struct {
	Store   Pinger
	Metrics http.Handler
}
