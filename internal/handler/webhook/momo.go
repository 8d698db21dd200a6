package webhook

import (
	"net/http"
	"time"

	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/handler"
)

// Momo handles POST /api/orders/momo-callback
//
// A forged or unsigned IPN is refused with 401 and creates no order. Every
// verified IPN is acknowledged with 200 and its own body echoed back,
// including IPNs reporting a failed payment.
func (h *CallbackHandler) Momo(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	v := h.verify(r, domain.PaymentMomo)

	if v.err != nil {
		outcome := outcomeMalformed
		if domain.ErrorCode(v.err) == domain.EUNAUTHORIZED {
			outcome = outcomeInvalidSignature
		}
		record(domain.PaymentMomo, outcome, start)
		handler.ErrorResponse(w, r, v.err)
		return
	}

	outcome := h.reconcile(r.Context(), v.callback)
	record(domain.PaymentMomo, outcome, start)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(v.body)
}
