// Package events publishes order lifecycle events to the message bus.
// Events are sent after the store transaction commits; a failed publish is
// logged and counted, never rolled back into the request.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/dukerupert/mercato/internal/domain"
)

// Subjects.
const (
	SubjectOrderCreated   = "orders.created"
	SubjectOrderCancelled = "orders.cancelled"
)

// Publisher publishes an event under subject. key identifies the event for
// de-duplication by consumers.
type Publisher interface {
	PublishEvent(ctx context.Context, subject string, key string, event any) error
}

// OrderEvent is the payload for order subjects.
type OrderEvent struct {
	OrderID       string               `json:"orderId"`
	UserID        string               `json:"userId"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
	PaymentRef    string               `json:"paymentRef,omitempty"`
	TotalPrice    int64                `json:"totalPrice"`
	IsPaid        bool                 `json:"isPaid"`
	Status        domain.OrderStatus   `json:"status"`
	Items         []domain.OrderItem   `json:"items"`
	OccurredAt    time.Time            `json:"occurredAt"`
}

// NewOrderEvent snapshots order for publishing.
func NewOrderEvent(order *domain.Order, at time.Time) OrderEvent {
	return OrderEvent{
		OrderID:       order.ID,
		UserID:        order.UserID,
		PaymentMethod: order.PaymentMethod,
		PaymentRef:    order.PaymentRef,
		TotalPrice:    order.TotalPrice,
		IsPaid:        order.IsPaid,
		Status:        order.Status,
		Items:         order.Items,
		OccurredAt:    at,
	}
}

// Noop discards events. Used when NATS_URL is unset.
type Noop struct{}

func (Noop) PublishEvent(ctx context.Context, subject, key string, event any) error {
	return nil
}

// Recorded is one event captured by a Recorder.
type Recorded struct {
	Subject string
	Key     string
	Event   any
}

// Recorder keeps published events in memory for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded

	// Err, when set, is returned from every publish.
	Err error
}

func (r *Recorder) PublishEvent(ctx context.Context, subject, key string, event any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, Recorded{Subject: subject, Key: key, Event: event})
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Recorded{}, r.events...)
}
