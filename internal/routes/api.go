package routes

import (
	"github.com/dukerupert/mercato/internal/middleware"
	"github.com/dukerupert/mercato/internal/router"
)

// RegisterAPIRoutes registers the order API.
//
// Shopper routes require a valid access token. Admin routes additionally
// require the token's user to be an administrator. /api/orders/admin is
// registered alongside /api/orders/{orderId}; the mux prefers the literal
// segment.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	h := deps.OrderHandler

	shopper := r.Group(middleware.RequireAuth(deps.Tokens))

	var checkoutMW []router.Middleware
	if deps.CheckoutLimiter != nil {
		checkoutMW = append(checkoutMW, deps.CheckoutLimiter.Middleware)
	}
	shopper.Post("/api/orders", h.Checkout, checkoutMW...)
	shopper.Get("/api/orders", h.ListMine)
	shopper.Patch("/api/orders/cancel-order/{orderId}", h.Cancel)
	shopper.Patch("/api/orders/confirm-order/{orderId}", h.Confirm)

	admin := shopper.Group(middleware.RequireAdmin(deps.Users))
	admin.Get("/api/orders/admin", h.AdminList)
	admin.Get("/api/orders/{orderId}", h.Get)
	admin.Patch("/api/orders/{orderId}", h.Update)
	admin.Delete("/api/orders/{orderId}", h.Delete)
}
