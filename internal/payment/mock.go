package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dukerupert/mercato/internal/domain"
)

// MockGateway is a Gateway for tests. By default CreatePayment succeeds with a
// random reference and VerifyCallback returns Callback unchanged.
type MockGateway struct {
	PaymentMethod domain.PaymentMethod

	// CreatePaymentFunc allows customizing create behavior
	CreatePaymentFunc func(ctx context.Context, params PaymentParams) (*PaymentRequest, error)

	// VerifyCallbackFunc allows customizing callback verification
	VerifyCallbackFunc func(payload CallbackPayload) (*Callback, error)

	// Callback is returned by the default VerifyCallback
	Callback *Callback

	mu sync.Mutex
	// CallLog tracks method calls for test assertions
	CallLog []string
}

var _ Gateway = (*MockGateway)(nil)

// NewMockGateway creates a mock gateway for method.
func NewMockGateway(method domain.PaymentMethod) *MockGateway {
	return &MockGateway{PaymentMethod: method, CallLog: []string{}}
}

func (m *MockGateway) log(entry string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallLog = append(m.CallLog, entry)
}

// Calls returns a copy of the call log.
func (m *MockGateway) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.CallLog...)
}

func (m *MockGateway) Method() domain.PaymentMethod {
	return m.PaymentMethod
}

func (m *MockGateway) CreatePayment(ctx context.Context, params PaymentParams) (*PaymentRequest, error) {
	m.log(fmt.Sprintf("CreatePayment(%d, %s, %s)", params.TotalPrice, params.UserID, params.CartID))

	if m.CreatePaymentFunc != nil {
		return m.CreatePaymentFunc(ctx, params)
	}

	ref := "mock_" + uuid.NewString()
	return &PaymentRequest{
		Method: m.PaymentMethod,
		Ref:    ref,
		Detail: map[string]any{"order_url": "https://pay.example.test/" + ref},
	}, nil
}

func (m *MockGateway) VerifyCallback(payload CallbackPayload) (*Callback, error) {
	m.log("VerifyCallback")

	if m.VerifyCallbackFunc != nil {
		return m.VerifyCallbackFunc(payload)
	}
	if m.Callback == nil {
		return nil, ErrInvalidSignature
	}
	cb := *m.Callback
	return &cb, nil
}
