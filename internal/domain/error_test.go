package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	dbErr := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"message only", ErrOrderNotFound, "Order not found"},
		{"with op", Conflict("OrderService.Cancel", "Order is already paid"), "OrderService.Cancel: Order is already paid"},
		{"wrapped with op", Internal(dbErr, "postgres.CreateOrder", "database error"), "postgres.CreateOrder: database error: connection reset"},
		{"wrapped without op", Gateway(dbErr, "", "Payment provider unavailable"), "Payment provider unavailable: connection reset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorCodeAndMessage(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    string
		message string
	}{
		{"nil", nil, "", ""},
		{"sentinel", ErrEmptyCart, EINVALID, "Cart is empty"},
		{"wrapped sentinel", fmt.Errorf("checkout: %w", ErrNotOrderOwner), EFORBIDDEN, "You are not allowed to access this order"},
		{"stock shortfall", InsufficientStock("inventory.debit", "Kem chống nắng"), ECONFLICT, "Not enough (Kem chống nắng) in stock"},
		{"missing product", ProductNotFound("assembler", "p-9"), ENOTFOUND, "Product p-9 not found"},
		{"expired token", Expired("auth.Verify", "Unauthorized! (Access token expired)"), EEXPIRED, "Unauthorized! (Access token expired)"},
		{"internal hides detail", Internal(errors.New("dsn leaked"), "op", "database error"), EINTERNAL, internalMessage},
		{"foreign error", errors.New("boom"), EINTERNAL, internalMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, ErrorCode(tt.err))
			assert.Equal(t, tt.message, ErrorMessage(tt.err))
		})
	}
}

func TestErrorOp(t *testing.T) {
	assert.Equal(t, "postgres.SaveCart", ErrorOp(Internal(nil, "postgres.SaveCart", "database error")))
	assert.Empty(t, ErrorOp(ErrCartNotFound))
	assert.Empty(t, ErrorOp(errors.New("plain")))
	assert.Empty(t, ErrorOp(nil))
}

func TestWrapError(t *testing.T) {
	assert.NoError(t, WrapError(nil, EINVALID, "op", "msg"))

	underlying := errors.New("22P02")
	err := WrapError(underlying, EINVALID, "postgres.FindOrderByID", "Invalid id")
	assert.ErrorIs(t, err, underlying)
	assert.True(t, IsCode(err, EINVALID))
	assert.False(t, IsCode(err, ENOTFOUND))
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("OrderHandler.Update", "status", "status is required")
	assert.Equal(t, "OrderHandler.Update: status: status is required", err.Error())
	require.True(t, IsValidationError(err))

	err = AddFieldError(err, "paymentMethod", "paymentMethod must be one of: COD ZALO MOMO")
	assert.Equal(t, "OrderHandler.Update: validation failed for 2 fields", err.Error())
	assert.Len(t, GetValidationFields(err), 2)

	fresh := AddFieldError(nil, "searchString", "Invalid search pattern")
	assert.Equal(t, map[string]string{"searchString": "Invalid search pattern"}, GetValidationFields(fresh))

	assert.False(t, IsValidationError(ErrInvalidPayment))
	assert.Nil(t, GetValidationFields(ErrInvalidPayment))
}

func TestOrderFilter_SearchPattern(t *testing.T) {
	re, err := OrderFilter{}.SearchPattern()
	require.NoError(t, err)
	assert.Nil(t, re)

	re, err = OrderFilter{Search: "^ng(uyen|o)"}.SearchPattern()
	require.NoError(t, err)
	assert.True(t, re.MatchString("Nguyen Van A"))
	assert.False(t, re.MatchString("Tran Nguyen"))

	_, err = OrderFilter{Search: "(unclosed"}.SearchPattern()
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}
