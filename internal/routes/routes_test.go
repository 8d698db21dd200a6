package routes

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/mercato/internal/auth"
	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/events"
	"github.com/dukerupert/mercato/internal/handler/api"
	"github.com/dukerupert/mercato/internal/handler/webhook"
	"github.com/dukerupert/mercato/internal/memory"
	"github.com/dukerupert/mercato/internal/payment"
	"github.com/dukerupert/mercato/internal/router"
	"github.com/dukerupert/mercato/internal/service"
)

type routeFixture struct {
	router  *router.Router
	tokens  *auth.TokenManager
	shopper *domain.User
	admin   *domain.User
}

func newRouteFixture(t *testing.T, store Pinger) *routeFixture {
	t.Helper()

	mem := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := payment.NewRegistry(payment.NewMockGateway(domain.PaymentZalo), payment.NewMockGateway(domain.PaymentMomo))
	checkout := service.NewCheckoutService(mem, registry, events.Noop{}, logger)
	orders := service.NewOrderService(mem, events.Noop{}, logger)

	f := &routeFixture{
		router: router.New(),
		tokens: auth.NewTokenManager("test-secret", time.Hour),
	}
	f.shopper = mem.PutUser(domain.User{Name: "Shopper", Email: "s@example.com"})
	f.admin = mem.PutUser(domain.User{Name: "Admin", Email: "a@example.com", IsAdmin: true})

	if store == nil {
		store = mem
	}

	RegisterAPIRoutes(f.router, APIDeps{
		OrderHandler: api.NewOrderHandler(checkout, orders, logger),
		Tokens:       f.tokens,
		Users:        mem.Users(),
	})
	RegisterWebhookRoutes(f.router, WebhookDeps{
		CallbackHandler: webhook.NewCallbackHandler(registry, checkout, logger),
	})
	RegisterOpsRoutes(f.router, OpsDeps{
		Store: store,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("# metrics"))
		}),
	})
	return f
}

func (f *routeFixture) request(t *testing.T, as *domain.User, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		token, err := f.tokens.Issue(as.ID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestAPIRoutes_Access(t *testing.T) {
	tests := []struct {
		name       string
		as         string
		method     string
		path       string
		wantStatus int
	}{
		{"list mine without token", "", http.MethodGet, "/api/orders", http.StatusUnauthorized},
		{"list mine", "shopper", http.MethodGet, "/api/orders", http.StatusOK},
		{"admin list as shopper", "shopper", http.MethodGet, "/api/orders/admin", http.StatusForbidden},
		{"admin list as admin", "admin", http.MethodGet, "/api/orders/admin", http.StatusOK},
		{"admin get without token", "", http.MethodGet, "/api/orders/abc", http.StatusUnauthorized},
		{"admin get missing order", "admin", http.MethodGet, "/api/orders/abc", http.StatusNotFound},
		{"admin delete as shopper", "shopper", http.MethodDelete, "/api/orders/abc", http.StatusForbidden},
		{"cancel missing order", "shopper", http.MethodPatch, "/api/orders/cancel-order/abc", http.StatusNotFound},
		{"put not allowed", "admin", http.MethodPut, "/api/orders/abc", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouteFixture(t, nil)

			var as *domain.User
			switch tt.as {
			case "shopper":
				as = f.shopper
			case "admin":
				as = f.admin
			}

			rec := f.request(t, as, tt.method, tt.path, "")
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestWebhookRoutes_NoAuth(t *testing.T) {
	f := newRouteFixture(t, nil)

	// Mock gateways without a configured callback reject the signature.
	rec := f.request(t, nil, http.MethodPost, payment.ZaloCallbackPath, `{"data":"{}","mac":"x"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"return_code":-1,"return_message":"mac not equal"}`, rec.Body.String())

	rec = f.request(t, nil, http.MethodPost, payment.MomoCallbackPath, `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestOpsRoutes(t *testing.T) {
	f := newRouteFixture(t, nil)

	rec := f.request(t, nil, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = f.request(t, nil, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())

	f = newRouteFixture(t, failingPinger{})
	rec = f.request(t, nil, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "refused")
}
