package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/events"
	"github.com/dukerupert/mercato/internal/memory"
	"github.com/dukerupert/mercato/internal/payment"
	"github.com/dukerupert/mercato/internal/service"
)

type callbackFixture struct {
	store   *memory.Store
	zalo    *payment.MockGateway
	momo    *payment.MockGateway
	handler *CallbackHandler

	user    *domain.User
	product *domain.Product
	cart    *domain.Cart
}

func newCallbackFixture(t *testing.T) *callbackFixture {
	t.Helper()

	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &callbackFixture{
		store: store,
		zalo:  payment.NewMockGateway(domain.PaymentZalo),
		momo:  payment.NewMockGateway(domain.PaymentMomo),
	}

	f.user = store.PutUser(domain.User{Name: "Le Van C", Email: "c@example.com", PhoneNumber: "0912345678"})
	f.product = store.PutProduct(domain.Product{Title: "Canvas Tote", Price: 50000, Quantity: 5})
	f.cart = store.PutCart(domain.Cart{
		UserID: f.user.ID,
		Items:  []domain.CartItem{{ProductID: f.product.ID, Quantity: 2}},
	})

	registry := payment.NewRegistry(f.zalo, f.momo)
	checkout := service.NewCheckoutService(store, registry, &events.Recorder{}, logger)
	f.handler = NewCallbackHandler(registry, checkout, logger)
	return f
}

func (f *callbackFixture) paid(method domain.PaymentMethod, ref string) *payment.Callback {
	return &payment.Callback{
		Method:     method,
		PaymentRef: ref,
		UserID:     f.user.ID,
		CartID:     f.cart.ID,
		Amount:     100000,
		Succeeded:  true,
	}
}

func (f *callbackFixture) orders(t *testing.T) []domain.Order {
	t.Helper()
	orders, _, err := f.store.Orders().ListOrders(context.Background(), domain.OrderFilter{Page: 1, Limit: 100})
	require.NoError(t, err)
	return orders
}

func post(h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeZalo(t *testing.T, rec *httptest.ResponseRecorder) zaloResult {
	t.Helper()
	var res zaloResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestZaloPay_CreatesPaidOrder(t *testing.T) {
	f := newCallbackFixture(t)
	f.zalo.Callback = f.paid(domain.PaymentZalo, "241018_abc")

	rec := post(f.handler.ZaloPay, payment.ZaloCallbackPath, `{"data":"{}","mac":"x"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, zaloResult{ReturnCode: 1, ReturnMessage: "success"}, decodeZalo(t, rec))

	orders := f.orders(t)
	require.Len(t, orders, 1)
	assert.True(t, orders[0].IsPaid)
	assert.Equal(t, "241018_abc", orders[0].PaymentRef)
	assert.Equal(t, domain.PaymentZalo, orders[0].PaymentMethod)

	p, err := f.store.Products().FindProductByID(context.Background(), f.product.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Quantity)
}

func TestZaloPay_ReplayIsIdempotent(t *testing.T) {
	f := newCallbackFixture(t)
	f.zalo.Callback = f.paid(domain.PaymentZalo, "241018_replay")

	for i := 0; i < 3; i++ {
		rec := post(f.handler.ZaloPay, payment.ZaloCallbackPath, `{}`)
		assert.Equal(t, 1, decodeZalo(t, rec).ReturnCode)
	}

	assert.Len(t, f.orders(t), 1)
	p, err := f.store.Products().FindProductByID(context.Background(), f.product.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Quantity)
}

func TestZaloPay_BadMac(t *testing.T) {
	f := newCallbackFixture(t)
	f.zalo.VerifyCallbackFunc = func(payment.CallbackPayload) (*payment.Callback, error) {
		return nil, payment.ErrInvalidSignature
	}

	rec := post(f.handler.ZaloPay, payment.ZaloCallbackPath, `{"data":"{}","mac":"forged"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, zaloResult{ReturnCode: -1, ReturnMessage: "mac not equal"}, decodeZalo(t, rec))
	assert.Empty(t, f.orders(t))
}

func TestZaloPay_Malformed(t *testing.T) {
	f := newCallbackFixture(t)
	f.zalo.VerifyCallbackFunc = func(payment.CallbackPayload) (*payment.Callback, error) {
		return nil, payment.ErrMalformedCallback
	}

	rec := post(f.handler.ZaloPay, payment.ZaloCallbackPath, `not json`)

	res := decodeZalo(t, rec)
	assert.Equal(t, 0, res.ReturnCode)
	assert.Equal(t, domain.ErrorMessage(payment.ErrMalformedCallback), res.ReturnMessage)
	assert.Empty(t, f.orders(t))
}

func TestZaloPay_ReconcileFailureStillAcked(t *testing.T) {
	f := newCallbackFixture(t)
	cb := f.paid(domain.PaymentZalo, "241018_short")
	f.zalo.Callback = cb

	// Stock sold out between redirect and callback.
	require.NoError(t, f.store.WithTx(context.Background(), func(tx domain.Tx) error {
		return tx.Products().DebitStock(context.Background(), []domain.StockLine{{ProductID: f.product.ID, Title: f.product.Title, Amount: 4}})
	}))

	rec := post(f.handler.ZaloPay, payment.ZaloCallbackPath, `{}`)

	assert.Equal(t, zaloResult{ReturnCode: 1, ReturnMessage: "success"}, decodeZalo(t, rec))
	assert.Empty(t, f.orders(t))
}

func TestZaloPay_AmountMismatchCreatesNoOrder(t *testing.T) {
	f := newCallbackFixture(t)
	cb := f.paid(domain.PaymentZalo, "241018_under")
	cb.Amount = 1000
	f.zalo.Callback = cb

	rec := post(f.handler.ZaloPay, payment.ZaloCallbackPath, `{}`)

	assert.Equal(t, zaloResult{ReturnCode: 1, ReturnMessage: "success"}, decodeZalo(t, rec))
	assert.Empty(t, f.orders(t))

	cart, err := f.store.Carts().FindCartByID(context.Background(), f.cart.ID)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
}

func TestZaloPay_PassesBodyAndQuery(t *testing.T) {
	f := newCallbackFixture(t)
	var got payment.CallbackPayload
	f.zalo.VerifyCallbackFunc = func(p payment.CallbackPayload) (*payment.Callback, error) {
		got = p
		return nil, payment.ErrInvalidSignature
	}

	post(f.handler.ZaloPay, payment.ZaloCallbackPath+"?userId=u1&cartId=c1", `{"mac":"m"}`)

	assert.Equal(t, `{"mac":"m"}`, string(got.Body))
	assert.Equal(t, "u1", got.Query.Get("userId"))
	assert.Equal(t, "c1", got.Query.Get("cartId"))
}

func TestMomo(t *testing.T) {
	tests := []struct {
		name       string
		verify     func(f *callbackFixture) func(payment.CallbackPayload) (*payment.Callback, error)
		wantStatus int
		wantOrders int
		wantEcho   bool
	}{
		{
			name: "paid ipn creates order",
			verify: func(f *callbackFixture) func(payment.CallbackPayload) (*payment.Callback, error) {
				return func(payment.CallbackPayload) (*payment.Callback, error) {
					return f.paid(domain.PaymentMomo, "MOMO-1"), nil
				}
			},
			wantStatus: http.StatusOK,
			wantOrders: 1,
			wantEcho:   true,
		},
		{
			name: "failed payment acked without order",
			verify: func(f *callbackFixture) func(payment.CallbackPayload) (*payment.Callback, error) {
				return func(payment.CallbackPayload) (*payment.Callback, error) {
					cb := f.paid(domain.PaymentMomo, "MOMO-2")
					cb.Succeeded = false
					cb.ResultCode = 1006
					cb.Message = "Transaction denied by user."
					return cb, nil
				}
			},
			wantStatus: http.StatusOK,
			wantOrders: 0,
			wantEcho:   true,
		},
		{
			name: "bad signature rejected",
			verify: func(f *callbackFixture) func(payment.CallbackPayload) (*payment.Callback, error) {
				return func(payment.CallbackPayload) (*payment.Callback, error) {
					return nil, payment.ErrInvalidSignature
				}
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "malformed rejected",
			verify: func(f *callbackFixture) func(payment.CallbackPayload) (*payment.Callback, error) {
				return func(payment.CallbackPayload) (*payment.Callback, error) {
					return nil, payment.ErrMalformedCallback
				}
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCallbackFixture(t)
			f.momo.VerifyCallbackFunc = tt.verify(f)
			body := `{"partnerCode":"MOMO","orderId":"MOMO-1","resultCode":0}`

			rec := post(f.handler.Momo, payment.MomoCallbackPath, body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Len(t, f.orders(t), tt.wantOrders)
			if tt.wantEcho {
				assert.JSONEq(t, body, rec.Body.String())
			}
		})
	}
}

func TestCallback_GatewayNotConfigured(t *testing.T) {
	f := newCallbackFixture(t)
	f.handler = NewCallbackHandler(payment.NewRegistry(f.zalo), f.handler.checkout, nil)

	rec := post(f.handler.Momo, payment.MomoCallbackPath, `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.orders(t))
}
