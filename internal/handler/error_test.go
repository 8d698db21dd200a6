package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/mercato/internal/domain"
)

type errorBody struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestErrorResponse_JSON(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
		expectedMsg    string
	}{
		{
			name:           "not found",
			err:            domain.NotFound("order.get", "order abc-123 not found"),
			expectedStatus: http.StatusNotFound,
			expectedCode:   domain.ENOTFOUND,
		},
		{
			name:           "conflict is a bad request",
			err:            domain.Conflict("order.cancel", "Order has already been paid"),
			expectedStatus: http.StatusBadRequest,
			expectedCode:   domain.ECONFLICT,
			expectedMsg:    "Order has already been paid",
		},
		{
			name:           "expired token",
			err:            domain.Expired("auth.verify", "Unauthorized! (Access token expired)"),
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   domain.EEXPIRED,
			expectedMsg:    "Unauthorized! (Access token expired)",
		},
		{
			name:           "gateway failure",
			err:            domain.Gateway(errors.New("dial tcp: timeout"), "zalopay.create", "Payment provider unavailable"),
			expectedStatus: http.StatusBadGateway,
			expectedCode:   domain.EGATEWAY,
			expectedMsg:    "Payment provider unavailable",
		},
		{
			name:           "plain error hides details",
			err:            errors.New("pq: connection refused"),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   domain.EINTERNAL,
			expectedMsg:    "An internal error occurred. Please try again later.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set("Accept", "application/json")
			rec := httptest.NewRecorder()

			ErrorResponse(rec, req, tt.err)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			body := decodeError(t, rec)
			assert.Equal(t, tt.expectedCode, body.Error.Code)
			if tt.expectedMsg != "" {
				assert.Equal(t, tt.expectedMsg, body.Error.Message)
			}
			assert.NotContains(t, rec.Body.String(), "connection refused")
		})
	}
}

func TestErrorResponse_PlainText(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, domain.NotFound("x", "order 1 not found"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}

func TestValidationErrorResponse(t *testing.T) {
	err := domain.NewValidationError("order.update", "name", "name is required")
	err = domain.AddFieldError(err, "status", "status must be one of: pending delivered cancelled")

	req := httptest.NewRequest(http.MethodPatch, "/api/orders/1", nil)
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, domain.EINVALID, body.Error.Code)
	assert.Equal(t, "Validation failed", body.Error.Message)
	assert.Equal(t, "name is required", body.Error.Fields["name"])
	assert.Contains(t, body.Error.Fields, "status")
}

func TestAcceptsJSON(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		accept      string
		contentType string
		expected    bool
	}{
		{"accept header", "/health", "application/json", "", true},
		{"content type", "/health", "", "application/json", true},
		{"json suffix", "/feed.json", "", "", true},
		{"api prefix", "/api/orders", "", "", true},
		{"api prefix asking for text", "/api/orders", "text/plain", "", false},
		{"html page", "/health", "text/html", "", false},
		{"no hints", "/health", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			assert.Equal(t, tt.expected, acceptsJSON(req))
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		PaymentMethod string `json:"paymentMethod" validate:"required,oneof=COD ZALO MOMO"`
		Email         string `json:"email" validate:"omitempty,email"`
	}

	tests := []struct {
		name       string
		body       string
		wantCode   string
		wantFields []string
	}{
		{name: "valid", body: `{"paymentMethod":"COD"}`},
		{name: "empty body", body: ``, wantCode: domain.EINVALID},
		{name: "bad json", body: `{"paymentMethod":`, wantCode: domain.EINVALID},
		{name: "missing field", body: `{}`, wantFields: []string{"paymentMethod"}},
		{name: "bad enum and email", body: `{"paymentMethod":"CASH","email":"nope"}`, wantFields: []string{"paymentMethod", "email"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(tt.body))
			var dst payload
			err := DecodeJSON(req, &dst)

			switch {
			case tt.wantCode != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, domain.ErrorCode(err))
			case tt.wantFields != nil:
				require.True(t, domain.IsValidationError(err))
				fields := domain.GetValidationFields(err)
				for _, f := range tt.wantFields {
					assert.Contains(t, fields, f)
				}
			default:
				require.NoError(t, err)
				assert.Equal(t, "COD", dst.PaymentMethod)
			}
		})
	}
}

func TestDecodeJSON_TooLarge(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{"paymentMethod":"`+strings.Repeat("x", 64)+`"}`))
	req.Body = http.MaxBytesReader(rec, req.Body, 16)

	var dst struct {
		PaymentMethod string `json:"paymentMethod"`
	}
	err := DecodeJSON(req, &dst)

	require.Error(t, err)
	assert.Equal(t, "Request body too large", domain.ErrorMessage(err))
}
