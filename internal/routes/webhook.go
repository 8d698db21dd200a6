package routes

import (
	"github.com/dukerupert/mercato/internal/middleware"
	"github.com/dukerupert/mercato/internal/payment"
	"github.com/dukerupert/mercato/internal/router"
)

// maxCallbackBodySize bounds provider callback bodies.
const maxCallbackBodySize = 64 << 10

// RegisterWebhookRoutes registers payment provider callbacks.
//
// Note: Callback routes do NOT have authentication middleware.
// Each handler verifies the provider's mac or signature itself.
func RegisterWebhookRoutes(r *router.Router, deps WebhookDeps) {
	mw := []router.Middleware{middleware.MaxBodySize(maxCallbackBodySize)}
	if deps.Limiter != nil {
		mw = append(mw, deps.Limiter.Middleware)
	}

	callbacks := r.Group(mw...)
	callbacks.Post(payment.ZaloCallbackPath, deps.CallbackHandler.ZaloPay)
	callbacks.Post(payment.MomoCallbackPath, deps.CallbackHandler.Momo)
}
