package webhook

import (
	"errors"
	"net/http"
	"time"

	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/handler"
	"github.com/dukerupert/mercato/internal/payment"
)

// zaloResult is the acknowledgement body ZaloPay expects.
type zaloResult struct {
	ReturnCode    int    `json:"return_code"`
	ReturnMessage string `json:"return_message"`
}

// ZaloPay handles POST /api/orders/zalo-callback
//
// Response body (always HTTP 200):
//   - {"return_code": 1, "return_message": "success"} once the mac verifies
//   - {"return_code": -1, "return_message": "mac not equal"} on a bad mac
//   - {"return_code": 0, "return_message": <error>} for an unreadable callback
func (h *CallbackHandler) ZaloPay(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	v := h.verify(r, domain.PaymentZalo)

	switch {
	case errors.Is(v.err, payment.ErrInvalidSignature):
		record(domain.PaymentZalo, outcomeInvalidSignature, start)
		h.logger.Warn("zalopay callback rejected: mac mismatch", "remote_addr", r.RemoteAddr)
		handler.JSON(w, http.StatusOK, zaloResult{ReturnCode: -1, ReturnMessage: "mac not equal"})
		return
	case v.err != nil:
		record(domain.PaymentZalo, outcomeMalformed, start)
		h.logger.Warn("zalopay callback malformed", "error", v.err)
		handler.JSON(w, http.StatusOK, zaloResult{ReturnCode: 0, ReturnMessage: domain.ErrorMessage(v.err)})
		return
	}

	outcome := h.reconcile(r.Context(), v.callback)
	record(domain.PaymentZalo, outcome, start)
	handler.JSON(w, http.StatusOK, zaloResult{ReturnCode: 1, ReturnMessage: "success"})
}
