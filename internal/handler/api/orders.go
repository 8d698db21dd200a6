// Package api serves the JSON order endpoints under /api/orders.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/handler"
	"github.com/dukerupert/mercato/internal/middleware"
)

// OrderHandler handles checkout and order management.
type OrderHandler struct {
	checkout domain.CheckoutService
	orders   domain.OrderService
	logger   *slog.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(checkout domain.CheckoutService, orders domain.OrderService, logger *slog.Logger) *OrderHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderHandler{
		checkout: checkout,
		orders:   orders,
		logger:   logger,
	}
}

type orderResponse struct {
	Message string        `json:"message"`
	Order   *domain.Order `json:"order"`
}

type orderListResponse struct {
	Message    string            `json:"message"`
	Orders     []domain.Order    `json:"orders"`
	Pagination domain.Pagination `json:"pagination"`
}

type paymentResponse struct {
	Message string         `json:"message"`
	Detail  map[string]any `json:"detail"`
}

type checkoutRequest struct {
	PaymentMethod string `json:"paymentMethod" validate:"required,oneof=COD ZALO MOMO"`
}

// Checkout handles POST /api/orders
//
// COD answers 201 with the created order. ZALO and MOMO answer 201 with the
// provider response in detail; the client redirects to the payment page and
// the order is created when the provider calls back.
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	method := domain.PaymentMethod(req.PaymentMethod)
	result, err := h.checkout.Checkout(r.Context(), domain.CheckoutRequest{
		UserID:        domain.RequireUserID(r.Context()),
		PaymentMethod: method,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if result.Order != nil {
		handler.JSON(w, http.StatusCreated, orderResponse{
			Message: "Create cod order successfully",
			Order:   result.Order,
		})
		return
	}

	middleware.GetLogger(r.Context(), h.logger).Info("payment redirect issued",
		"method", method,
		"payment_ref", result.PaymentRef,
	)
	handler.JSON(w, http.StatusCreated, paymentResponse{
		Message: fmt.Sprintf("Create %s payment request successfully", strings.ToLower(string(method))),
		Detail:  result.Detail,
	})
}

// ListMine handles GET /api/orders?page=&limit=
func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.orders.ListMine(r.Context(),
		domain.RequireUserID(r.Context()),
		positiveInt(q.Get("page"), 1),
		positiveInt(q.Get("limit"), 0),
	)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, orderListResponse{
		Message:    "Get user orders successfully",
		Orders:     page.Orders,
		Pagination: page.Pagination,
	})
}

// Cancel handles PATCH /api/orders/cancel-order/{orderId}
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Cancel(r.Context(), domain.RequireUserID(r.Context()), r.PathValue("orderId"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, orderResponse{Message: "Cancel order successfully", Order: order})
}

// Confirm handles PATCH /api/orders/confirm-order/{orderId}
func (h *OrderHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Confirm(r.Context(), domain.RequireUserID(r.Context()), r.PathValue("orderId"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, orderResponse{Message: "Confirm order successfully", Order: order})
}

// AdminList handles GET /api/orders/admin
//
// Query parameters:
//   - searchString (or search): case-insensitive regular expression over shipping name or phone
//   - paymentMethod: COD, ZALO, MOMO or "all"
//   - sortBy: desc (default), asc, a-z, z-a
//   - page, limit
func (h *OrderHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	search := q.Get("searchString")
	if search == "" {
		search = q.Get("search")
	}

	filter := domain.OrderFilter{
		Search: strings.TrimSpace(search),
		Sort:   domain.ParseOrderSort(q.Get("sortBy")),
		Page:   positiveInt(q.Get("page"), 1),
		Limit:  positiveInt(q.Get("limit"), 0),
	}
	if pm := q.Get("paymentMethod"); pm != "" && pm != "all" {
		filter.PaymentMethod = domain.PaymentMethod(pm)
	}

	page, err := h.orders.List(r.Context(), filter)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, orderListResponse{
		Message:    "Get admin orders successfully",
		Orders:     page.Orders,
		Pagination: page.Pagination,
	})
}

// Get handles GET /api/orders/{orderId}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Get(r.Context(), r.PathValue("orderId"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, orderResponse{Message: "Get order successfully", Order: order})
}

type updateOrderRequest struct {
	Name         string `json:"name" validate:"required"`
	Email        string `json:"email" validate:"omitempty,email"`
	Phone        string `json:"phone" validate:"required"`
	Province     string `json:"province"`
	ProvinceName string `json:"provinceName"`
	District     string `json:"district"`
	DistrictName string `json:"districtName"`
	Ward         string `json:"ward"`
	WardName     string `json:"wardName"`
	Address      string `json:"address"`

	PaymentMethod string `json:"paymentMethod" validate:"required,oneof=COD ZALO MOMO"`
	IsPaid        bool   `json:"isPaid"`
	IsDelivered   bool   `json:"isDelivered"`
	Status        string `json:"status" validate:"required,oneof=Pending Processing Delivering Delivered Cancelled"`
}

func (req updateOrderRequest) toUpdate() domain.OrderUpdate {
	return domain.OrderUpdate{
		ShippingAddress: domain.ShippingAddress{
			Name:  req.Name,
			Email: req.Email,
			Phone: req.Phone,
			Address: domain.Address{
				Province:     req.Province,
				ProvinceName: req.ProvinceName,
				District:     req.District,
				DistrictName: req.DistrictName,
				Ward:         req.Ward,
				WardName:     req.WardName,
				Address:      req.Address,
			},
		},
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		IsPaid:        req.IsPaid,
		IsDelivered:   req.IsDelivered,
		Status:        domain.OrderStatus(req.Status),
	}
}

// Update handles PATCH /api/orders/{orderId}
func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateOrderRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.orders.Update(r.Context(), r.PathValue("orderId"), req.toUpdate())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, orderResponse{Message: "Update order successfully", Order: order})
}

// Delete handles DELETE /api/orders/{orderId}
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Delete(r.Context(), r.PathValue("orderId"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, orderResponse{Message: "Delete order successfully", Order: order})
}

// positiveInt parses s, returning def when s is missing, malformed or below 1.
func positiveInt(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}
