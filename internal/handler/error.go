// Package handler holds the HTTP response helpers shared by the API and
// webhook handlers.
package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/middleware"
	"github.com/dukerupert/mercato/internal/telemetry"
)

// ErrorResponse logs err and writes it to the client. JSON clients receive
// {"error":{"code","message"}}; others receive plain text. Internal errors
// are reported to Sentry and their details are never sent.
func ErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	if domain.IsValidationError(err) {
		ValidationErrorResponse(w, r, err)
		return
	}

	code := domain.ErrorCode(err)
	message := domain.ErrorMessage(err)
	status := middleware.ErrorCodeToHTTPStatus(code)

	logError(r, err, code, status)

	if acceptsJSON(r) {
		JSON(w, status, map[string]interface{}{
			"error": map[string]string{
				"code":    code,
				"message": message,
			},
		})
		return
	}

	http.Error(w, message, status)
}

// ValidationErrorResponse writes field-level validation failures. Errors
// that are not validation errors fall back to ErrorResponse.
func ValidationErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	fields := domain.GetValidationFields(err)
	if fields == nil {
		ErrorResponse(w, r, err)
		return
	}

	logError(r, err, domain.EINVALID, http.StatusBadRequest)

	if acceptsJSON(r) {
		JSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": map[string]interface{}{
				"code":    domain.EINVALID,
				"message": "Validation failed",
				"fields":  fields,
			},
		})
		return
	}

	http.Error(w, err.Error(), http.StatusBadRequest)
}

func logError(r *http.Request, err error, code string, status int) {
	logger := middleware.GetLogger(r.Context())
	attrs := []any{
		"error", err.Error(),
		"code", code,
		"op", domain.ErrorOp(err),
		"status", status,
	}

	if status >= 500 {
		logger.Error("request failed", attrs...)
		telemetry.CaptureErrorFromContext(r.Context(), err, map[string]interface{}{
			"path":   r.URL.Path,
			"method": r.Method,
			"code":   code,
		})
		return
	}
	logger.Info("request rejected", attrs...)
}

// acceptsJSON checks if the client prefers JSON responses. Everything under
// /api/ is JSON unless the client asks for text.
func acceptsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")

	switch {
	case strings.Contains(accept, "application/json"):
		return true
	case strings.Contains(r.Header.Get("Content-Type"), "application/json"):
		return true
	case strings.HasSuffix(r.URL.Path, ".json"):
		return true
	case strings.HasPrefix(r.URL.Path, "/api/"):
		return !strings.Contains(accept, "text/")
	}
	return false
}

// JSON writes v as a JSON response with status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		telemetry.CaptureError(err, map[string]interface{}{"stage": "encode_response"})
	}
}
