// Package webhook receives asynchronous payment provider callbacks.
//
// Providers are always acknowledged once a callback has been authenticated,
// even when it could not be turned into an order; retrying would not fix a
// stock shortfall or a missing cart. Such failures are logged, counted and
// reported to Sentry for manual follow-up.
package webhook

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/middleware"
	"github.com/dukerupert/mercato/internal/payment"
	"github.com/dukerupert/mercato/internal/telemetry"
)

// maxCallbackBody bounds provider callback bodies.
const maxCallbackBody = 64 << 10

// Callback outcomes recorded in metrics.
const (
	outcomeCreated          = "created"
	outcomeDuplicate        = "duplicate"
	outcomeFailed           = "failed"
	outcomeInvalidSignature = "invalid_signature"
	outcomeMalformed        = "malformed"
	outcomePaymentFailed    = "payment_failed"
)

// CallbackHandler verifies provider callbacks and reconciles them into
// orders.
type CallbackHandler struct {
	gateways *payment.Registry
	checkout domain.CheckoutService
	logger   *slog.Logger
}

// NewCallbackHandler creates a new callback handler
func NewCallbackHandler(gateways *payment.Registry, checkout domain.CheckoutService, logger *slog.Logger) *CallbackHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CallbackHandler{
		gateways: gateways,
		checkout: checkout,
		logger:   logger,
	}
}

// verified is the result of reading and authenticating one callback.
type verified struct {
	body     []byte
	callback *payment.Callback
	err      error
}

// verify reads the request and authenticates it with the method's gateway.
func (h *CallbackHandler) verify(r *http.Request, method domain.PaymentMethod) verified {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		return verified{err: domain.Invalid("webhook.verify", "Error reading request body")}
	}

	gateway, err := h.gateways.Get(method)
	if err != nil {
		return verified{body: body, err: err}
	}

	cb, err := gateway.VerifyCallback(payment.CallbackPayload{Body: body, Query: r.URL.Query()})
	return verified{body: body, callback: cb, err: err}
}

// reconcile turns a verified callback into an order and returns the
// outcome label. Failures never reach the provider.
func (h *CallbackHandler) reconcile(ctx context.Context, cb *payment.Callback) string {
	logger := middleware.GetLogger(ctx, h.logger).With(
		"method", cb.Method,
		"payment_ref", cb.PaymentRef,
		"user_id", cb.UserID,
		"cart_id", cb.CartID,
	)

	if !cb.Succeeded {
		logger.Info("payment not completed, no order created",
			"result_code", cb.ResultCode,
			"provider_message", cb.Message,
		)
		return outcomePaymentFailed
	}

	result := h.checkout.ReconcilePayment(ctx, cb.Confirmation())
	switch {
	case result.Err != nil:
		code := domain.ErrorCode(result.Err)
		telemetry.Business.RecordCallbackFailure(string(cb.Method), code)
		telemetry.CaptureErrorFromContext(ctx, result.Err, map[string]interface{}{
			"method":      string(cb.Method),
			"payment_ref": cb.PaymentRef,
			"user_id":     cb.UserID,
			"cart_id":     cb.CartID,
			"amount":      cb.Amount,
		})
		logger.Error("paid callback could not be reconciled",
			"error", result.Err,
			"code", code,
			"amount", cb.Amount,
		)
		return outcomeFailed
	case result.Duplicate:
		logger.Info("callback already reconciled", "order_id", result.Order.ID)
		return outcomeDuplicate
	default:
		logger.Info("callback reconciled", "order_id", result.Order.ID)
		return outcomeCreated
	}
}

func record(method domain.PaymentMethod, outcome string, start time.Time) {
	telemetry.Business.RecordCallback(string(method), outcome, time.Since(start).Seconds())
}
