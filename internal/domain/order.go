package domain

import (
	"context"
	"regexp"
	"time"
)

// Order-related domain errors.
var (
	ErrOrderNotFound       = NotFound("", "Order not found")
	ErrOrderAlreadyPaid    = Conflict("", "Order is already paid")
	ErrOrderCancelled      = Conflict("", "Order is already cancelled")
	ErrOrderNotPending     = Conflict("", "Only pending orders can be cancelled")
	ErrNotOrderOwner       = Forbidden("", "You are not allowed to access this order")
	ErrInvalidPayment      = Invalid("", "Invalid payment method")
	ErrInvalidOrderStatus  = Invalid("", "Invalid order status")
	ErrDuplicatePaymentRef = Invalid("", "Payment reference already recorded")
)

// DefaultShippingFee is recorded on every new order. It is informational and
// not added to TotalPrice.
const DefaultShippingFee int64 = 3000

// PaymentMethod identifies how an order is paid.
type PaymentMethod string

const (
	PaymentCOD  PaymentMethod = "COD"
	PaymentZalo PaymentMethod = "ZALO"
	PaymentMomo PaymentMethod = "MOMO"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCOD, PaymentZalo, PaymentMomo:
		return true
	}
	return false
}

// Redirect reports whether the method settles through a provider callback.
func (m PaymentMethod) Redirect() bool {
	return m == PaymentZalo || m == PaymentMomo
}

// OrderStatus is the fulfilment state of an order.
//
//	Pending -> Processing -> Delivering -> Delivered
//	Pending -> Cancelled
type OrderStatus string

const (
	StatusPending    OrderStatus = "Pending"
	StatusProcessing OrderStatus = "Processing"
	StatusDelivering OrderStatus = "Delivering"
	StatusDelivered  OrderStatus = "Delivered"
	StatusCancelled  OrderStatus = "Cancelled"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusDelivering, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// ShippingAddress is the contact and address snapshot taken at checkout.
type ShippingAddress struct {
	Name    string  `json:"name" bson:"name"`
	Email   string  `json:"email" bson:"email"`
	Phone   string  `json:"phone" bson:"phone"`
	Address Address `json:"address" bson:"address"`
}

// OrderItem is an immutable snapshot of a purchased product line.
type OrderItem struct {
	ProductID string `json:"product" bson:"product"`
	Title     string `json:"title" bson:"title"`
	Size      string `json:"size" bson:"size"`
	Amount    int    `json:"amount" bson:"amount"`
	Image     string `json:"image" bson:"image"`
	Price     int64  `json:"price" bson:"price"`
}

// Order is a placed order.
type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user"`
	Items           []OrderItem     `json:"orderItems"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	PaymentRef      string          `json:"paymentRef,omitempty"`
	ShippingFee     int64           `json:"shippingFee"`
	TotalPrice      int64           `json:"totalPrice"`
	IsPaid          bool            `json:"isPaid"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	IsDelivered     bool            `json:"isDelivered"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty"`
	Status          OrderStatus     `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// StockLines returns the inventory movements an order represents.
func (o *Order) StockLines() []StockLine {
	lines := make([]StockLine, 0, len(o.Items))
	for _, item := range o.Items {
		lines = append(lines, StockLine{ProductID: item.ProductID, Title: item.Title, Amount: item.Amount})
	}
	return lines
}

// OrderDraft is a priced and stock-checked cart ready to become an order.
type OrderDraft struct {
	UserID     string
	CartID     string
	Items      []OrderItem
	TotalPrice int64
}

// StockLines returns the inventory movements the draft requires.
func (d *OrderDraft) StockLines() []StockLine {
	lines := make([]StockLine, 0, len(d.Items))
	for _, item := range d.Items {
		lines = append(lines, StockLine{ProductID: item.ProductID, Title: item.Title, Amount: item.Amount})
	}
	return lines
}

// OrderSort selects the ordering of admin order listings.
type OrderSort string

const (
	SortNewest   OrderSort = "desc"
	SortOldest   OrderSort = "asc"
	SortNameAsc  OrderSort = "a-z"
	SortNameDesc OrderSort = "z-a"
)

// ParseOrderSort maps a query value to a sort, defaulting to newest first.
func ParseOrderSort(s string) OrderSort {
	switch OrderSort(s) {
	case SortOldest, SortNameAsc, SortNameDesc:
		return OrderSort(s)
	}
	return SortNewest
}

// OrderFilter narrows an order listing. Zero values mean "no filter".
type OrderFilter struct {
	UserID        string
	Search        string // case-insensitive regular expression over shipping name and phone
	PaymentMethod PaymentMethod
	Sort          OrderSort
	Page          int
	Limit         int
}

// SearchPattern compiles Search as a case-insensitive regular expression.
// An empty Search matches everything and returns nil.
func (f OrderFilter) SearchPattern() (*regexp.Regexp, error) {
	if f.Search == "" {
		return nil, nil
	}
	re, err := regexp.Compile("(?i)" + f.Search)
	if err != nil {
		return nil, NewValidationError("OrderFilter.SearchPattern", "searchString", "Invalid search pattern")
	}
	return re, nil
}

// Offset returns the number of rows to skip for the filter's page.
func (f OrderFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// Pagination describes one page of a listing.
type Pagination struct {
	TotalOrders int `json:"totalOrders"`
	TotalPages  int `json:"totalPages"`
	CurrentPage int `json:"currentPage"`
	Limit       int `json:"limit"`
}

// NewPagination computes page counts. An empty listing still has one page.
func NewPagination(total, page, limit int) Pagination {
	pages := 1
	if limit > 0 && total > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{
		TotalOrders: total,
		TotalPages:  pages,
		CurrentPage: page,
		Limit:       limit,
	}
}

// OrderPage is a paginated order listing.
type OrderPage struct {
	Orders     []Order
	Pagination Pagination
}

// OrderUpdate is an administrative overwrite of an order's mutable fields.
type OrderUpdate struct {
	ShippingAddress ShippingAddress
	PaymentMethod   PaymentMethod
	IsPaid          bool
	IsDelivered     bool
	Status          OrderStatus
}

// CheckoutRequest starts checkout for the caller's cart.
type CheckoutRequest struct {
	UserID        string
	PaymentMethod PaymentMethod
}

// CheckoutResult is either a created COD order or a provider redirect.
type CheckoutResult struct {
	Order *Order

	// PaymentRef and Detail are set for redirect payments. Detail is the
	// provider's response body, passed through to the client.
	PaymentRef string
	Detail     map[string]any
}

// PaymentConfirmation is a verified provider callback reporting a settled
// payment for a user's cart.
type PaymentConfirmation struct {
	Method     PaymentMethod
	PaymentRef string
	UserID     string
	CartID     string
	Amount     int64
}

// ReconcileResult reports how a payment callback was applied.
// Duplicate is true when the payment reference already had an order.
type ReconcileResult struct {
	Order     *Order
	Duplicate bool
	Err       error
}

// CheckoutService turns carts into orders.
type CheckoutService interface {
	// Checkout creates a COD order immediately, or sends a signed payment
	// request to the provider and returns its redirect details.
	Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)

	// ReconcilePayment creates a paid order from a verified provider callback.
	// It is idempotent on (method, payment reference).
	ReconcilePayment(ctx context.Context, confirmation PaymentConfirmation) ReconcileResult
}

// OrderService provides order lifecycle and administration.
type OrderService interface {
	Cancel(ctx context.Context, userID, orderID string) (*Order, error)
	Confirm(ctx context.Context, userID, orderID string) (*Order, error)
	ListMine(ctx context.Context, userID string, page, limit int) (*OrderPage, error)

	Get(ctx context.Context, orderID string) (*Order, error)
	Update(ctx context.Context, orderID string, update OrderUpdate) (*Order, error)
	Delete(ctx context.Context, orderID string) (*Order, error)
	List(ctx context.Context, filter OrderFilter) (*OrderPage, error)
}
