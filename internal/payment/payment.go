// Package payment adapts redirect-based payment providers behind one
// Gateway interface.
//
// A gateway builds and signs a provider payment request for a cart total and
// later verifies the provider's asynchronous callback. Gateways never touch
// the store; turning a verified callback into an order is the checkout
// service's job.
package payment

import (
	"context"
	"net/url"

	"github.com/dukerupert/mercato/internal/domain"
)

// Gateway is a redirect payment provider.
type Gateway interface {
	// Method returns the payment method this gateway settles.
	Method() domain.PaymentMethod

	// CreatePayment signs and sends a payment request to the provider.
	// Transport failures, non-2xx responses and provider failure codes
	// return an EGATEWAY error.
	CreatePayment(ctx context.Context, params PaymentParams) (*PaymentRequest, error)

	// VerifyCallback authenticates a provider callback and extracts the
	// settlement it reports. A bad signature returns ErrInvalidSignature.
	VerifyCallback(payload CallbackPayload) (*Callback, error)
}

// PaymentParams identifies what is being paid for. UserID and CartID travel
// in the callback URL so the callback can rebuild the order.
type PaymentParams struct {
	TotalPrice int64
	UserID     string
	CartID     string
}

// PaymentRequest is the provider's answer to a create request.
type PaymentRequest struct {
	Method domain.PaymentMethod

	// Ref is the provider transaction id the callback will carry.
	Ref string

	// Detail is the provider response body, returned to the client so it can
	// redirect to the payment page.
	Detail map[string]any
}

// CallbackPayload is the raw callback as received over HTTP.
type CallbackPayload struct {
	Body  []byte
	Query url.Values
}

// Callback is a verified provider notification.
type Callback struct {
	Method     domain.PaymentMethod
	PaymentRef string
	UserID     string
	CartID     string
	Amount     int64

	// Succeeded is false when the provider reports a failed or cancelled
	// payment. Such callbacks are acknowledged without creating an order.
	Succeeded  bool
	ResultCode int
	Message    string
}

// Confirmation converts a successful callback into a reconciliation request.
func (c *Callback) Confirmation() domain.PaymentConfirmation {
	return domain.PaymentConfirmation{
		Method:     c.Method,
		PaymentRef: c.PaymentRef,
		UserID:     c.UserID,
		CartID:     c.CartID,
		Amount:     c.Amount,
	}
}

// Registry looks gateways up by payment method.
type Registry struct {
	gateways map[domain.PaymentMethod]Gateway
}

// NewRegistry registers gateways. A later gateway for the same method
// replaces an earlier one.
func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[domain.PaymentMethod]Gateway, len(gateways))}
	for _, g := range gateways {
		r.gateways[g.Method()] = g
	}
	return r
}

// Get returns the gateway for method.
func (r *Registry) Get(method domain.PaymentMethod) (Gateway, error) {
	if r != nil {
		if g, ok := r.gateways[method]; ok {
			return g, nil
		}
	}
	return nil, ErrGatewayNotConfigured
}

// callbackURL builds a provider callback URL carrying the user and cart ids.
func callbackURL(serverURL, path, userID, cartID string) string {
	q := url.Values{}
	q.Set("userId", userID)
	q.Set("cartId", cartID)
	return serverURL + path + "?" + q.Encode()
}

// Callback paths under SERVER_URL.
const (
	ZaloCallbackPath = "/api/orders/zalo-callback"
	MomoCallbackPath = "/api/orders/momo-callback"
	ordersReturnPath = "/account/orders"
)
