package payment

import (
	"fmt"

	"github.com/dukerupert/mercato/internal/domain"
)

var (
	// ErrInvalidSignature is returned when a callback's mac or signature does
	// not match the payload.
	ErrInvalidSignature = domain.Unauthorized("", "Invalid callback signature")

	// ErrMalformedCallback is returned when a callback body or query cannot
	// be parsed or lacks required fields.
	ErrMalformedCallback = domain.Invalid("", malformedMessage)

	// ErrGatewayNotConfigured is returned for a payment method with no
	// registered gateway.
	ErrGatewayNotConfigured = domain.Invalid("", "Payment method is not available")
)

const malformedMessage = "Malformed payment callback"

// ProviderError is a failure code returned by a provider in an otherwise
// successful HTTP exchange.
type ProviderError struct {
	Provider string
	Code     int
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: code %d: %s", e.Provider, e.Code, e.Message)
}

// malformed wraps a parse failure with the ErrMalformedCallback message.
func malformed(op string, err error) error {
	return domain.WrapError(err, domain.EINVALID, op, malformedMessage)
}
