package service

import (
	"github.com/dukerupert/mercato/internal/domain"
)

// Callback errors - use domain.EINVALID
var (
	ErrMissingPaymentRef  = domain.Errorf(domain.EINVALID, "", "Payment reference missing from callback")
	ErrMissingCallbackIDs = domain.Errorf(domain.EINVALID, "", "User or cart id missing from callback")
	ErrInvalidQuantity    = domain.Errorf(domain.EINVALID, "", "Quantity must be greater than 0")
)

// ErrAmountMismatch - use domain.ECONFLICT
var ErrAmountMismatch = domain.Conflict("", "Paid amount does not match the cart total")

// Gateway errors
var (
	ErrMissingGatewayRef = domain.Errorf(domain.EGATEWAY, "", "Payment provider returned no transaction reference")
)

// Order-related errors re-exported for handler tests.
var (
	ErrOrderNotFound    = domain.ErrOrderNotFound
	ErrOrderAlreadyPaid = domain.ErrOrderAlreadyPaid
	ErrEmptyCart        = domain.ErrEmptyCart
)
