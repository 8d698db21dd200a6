package domain

import (
	"errors"
	"fmt"
)

// Error codes. Handlers turn them into HTTP statuses; the comment gives the
// status each one answers with.
const (
	EINVALID      = "invalid"       // 400 bad input, bad id, duplicate key
	ECONFLICT     = "conflict"      // 400 business rule violated (stock, order state, amount)
	EUNAUTHORIZED = "unauthorized"  // 401 missing or invalid access token
	EEXPIRED      = "token_expired" // 401 expired access token, client refreshes
	EFORBIDDEN    = "forbidden"     // 403 not the owner, not an admin
	ENOTFOUND     = "not_found"     // 404
	ERATELIMIT    = "rate_limit"    // 429
	EGATEWAY      = "bad_gateway"   // 502 payment provider unreachable or refused
	EINTERNAL     = "internal"      // 500 details are logged, never returned
)

const internalMessage = "An internal error occurred. Please try again later."

// Error is the error type returned across package boundaries. Message is
// safe to show to a client; Op and Err are for logs.
type Error struct {
	Code    string
	Message string
	Op      string // e.g. "CheckoutService.Checkout"
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode returns the code of the first *Error in err's chain. Errors
// without one are internal.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the client-facing message for err. Internal and
// foreign errors get a generic message.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Code != EINTERNAL {
		return e.Message
	}
	return internalMessage
}

// ErrorOp returns the operation recorded on err, if any.
func ErrorOp(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// IsCode reports whether err carries code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// Errorf builds an error with a formatted message.
func Errorf(code, op, format string, args ...any) error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches code, op and a client message to err. A nil err stays
// nil.
func WrapError(err error, code, op, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

func Invalid(op, message string) error      { return &Error{Code: EINVALID, Op: op, Message: message} }
func Conflict(op, message string) error     { return &Error{Code: ECONFLICT, Op: op, Message: message} }
func Unauthorized(op, message string) error { return &Error{Code: EUNAUTHORIZED, Op: op, Message: message} }
func Expired(op, message string) error      { return &Error{Code: EEXPIRED, Op: op, Message: message} }
func Forbidden(op, message string) error    { return &Error{Code: EFORBIDDEN, Op: op, Message: message} }
func NotFound(op, message string) error     { return &Error{Code: ENOTFOUND, Op: op, Message: message} }

// Internal wraps err; clients only ever see the generic message.
func Internal(err error, op, message string) error {
	return &Error{Code: EINTERNAL, Op: op, Message: message, Err: err}
}

// Gateway wraps a payment provider failure.
func Gateway(err error, op, message string) error {
	return &Error{Code: EGATEWAY, Op: op, Message: message, Err: err}
}

// ValidationError collects per-field failures. Handlers answer with 400 and
// the field map.
type ValidationError struct {
	Fields map[string]string
	Op     string
}

func (e *ValidationError) Error() string {
	prefix := ""
	if e.Op != "" {
		prefix = e.Op + ": "
	}
	if len(e.Fields) == 1 {
		for field, msg := range e.Fields {
			return prefix + field + ": " + msg
		}
	}
	return fmt.Sprintf("%svalidation failed for %d fields", prefix, len(e.Fields))
}

// NewValidationError reports a single bad field.
func NewValidationError(op, field, message string) error {
	return &ValidationError{Op: op, Fields: map[string]string{field: message}}
}

// AddFieldError adds a field to err when it is a ValidationError, or starts
// a new one.
func AddFieldError(err error, field, message string) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		ve.Fields[field] = message
		return ve
	}
	return &ValidationError{Fields: map[string]string{field: message}}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// GetValidationFields returns the field map of a ValidationError, or nil.
func GetValidationFields(err error) map[string]string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}
