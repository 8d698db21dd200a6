package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/events"
	"github.com/dukerupert/mercato/internal/telemetry"
)

// Listing defaults.
const (
	DefaultMyOrdersLimit    = 5
	DefaultAdminOrdersLimit = 10
)

type orderService struct {
	store  domain.Store
	ledger Ledger
	events events.Publisher
	logger *slog.Logger
	now    func() time.Time
}

// NewOrderService creates a new OrderService instance.
func NewOrderService(store domain.Store, publisher events.Publisher, logger *slog.Logger) domain.OrderService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &orderService{
		store:  store,
		events: publisher,
		logger: logger,
		now:    time.Now,
	}
}

// Cancel cancels an unpaid pending order owned by userID and returns its
// items to stock in the same transaction.
func (s *orderService) Cancel(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	var order *domain.Order

	err := s.store.WithTx(ctx, func(tx domain.Tx) error {
		var err error
		order, err = ownedOrder(ctx, tx, userID, orderID)
		if err != nil {
			return err
		}

		switch {
		case order.IsPaid:
			return domain.ErrOrderAlreadyPaid
		case order.Status == domain.StatusCancelled:
			return domain.ErrOrderCancelled
		case order.Status != domain.StatusPending:
			return domain.ErrOrderNotPending
		}

		if err := s.ledger.Restock(ctx, tx, order.StockLines()); err != nil {
			return err
		}

		order.Status = domain.StatusCancelled
		return tx.Orders().UpdateOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	telemetry.Business.RecordCancelled()
	s.logger.Info("order cancelled", "order_id", order.ID, "user_id", userID)
	publishOrder(ctx, s.events, s.logger, events.SubjectOrderCancelled, order, s.now())

	return order, nil
}

// Confirm marks an order owned by userID as delivered.
func (s *orderService) Confirm(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	var order *domain.Order

	err := s.store.WithTx(ctx, func(tx domain.Tx) error {
		var err error
		order, err = ownedOrder(ctx, tx, userID, orderID)
		if err != nil {
			return err
		}
		if order.Status == domain.StatusCancelled {
			return domain.ErrOrderCancelled
		}

		now := s.now()
		order.Status = domain.StatusDelivered
		order.IsDelivered = true
		order.DeliveredAt = &now
		return tx.Orders().UpdateOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	telemetry.Business.RecordConfirmed()
	return order, nil
}

// ListMine returns the user's orders, newest first.
func (s *orderService) ListMine(ctx context.Context, userID string, page, limit int) (*domain.OrderPage, error) {
	if limit < 1 {
		limit = DefaultMyOrdersLimit
	}
	return s.list(ctx, domain.OrderFilter{
		UserID: userID,
		Sort:   domain.SortNewest,
		Page:   page,
		Limit:  limit,
	})
}

// Get returns any order by ID.
func (s *orderService) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.store.Orders().FindOrderByID(ctx, orderID)
}

// Update overwrites an order's shipping address, payment method, flags and
// status. Any status may be set; only enumeration membership is checked.
func (s *orderService) Update(ctx context.Context, orderID string, update domain.OrderUpdate) (*domain.Order, error) {
	if !update.PaymentMethod.Valid() {
		return nil, domain.ErrInvalidPayment
	}
	if !update.Status.Valid() {
		return nil, domain.ErrInvalidOrderStatus
	}

	var order *domain.Order

	err := s.store.WithTx(ctx, func(tx domain.Tx) error {
		var err error
		order, err = tx.Orders().FindOrderByID(ctx, orderID)
		if err != nil {
			return err
		}

		now := s.now()
		shipping := update.ShippingAddress
		if shipping.Email == "" {
			shipping.Email = order.ShippingAddress.Email
		}

		order.ShippingAddress = shipping
		order.PaymentMethod = update.PaymentMethod
		order.Status = update.Status

		order.IsPaid = update.IsPaid
		switch {
		case !order.IsPaid:
			order.PaidAt = nil
		case order.PaidAt == nil:
			order.PaidAt = &now
		}

		order.IsDelivered = update.IsDelivered
		switch {
		case !order.IsDelivered:
			order.DeliveredAt = nil
		case order.DeliveredAt == nil:
			order.DeliveredAt = &now
		}

		return tx.Orders().UpdateOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order updated by admin",
		"order_id", order.ID,
		"status", order.Status,
		"is_paid", order.IsPaid,
	)
	return order, nil
}

// Delete removes an order and returns what was removed. Stock is not
// restored.
func (s *orderService) Delete(ctx context.Context, orderID string) (*domain.Order, error) {
	var order *domain.Order

	err := s.store.WithTx(ctx, func(tx domain.Tx) error {
		var err error
		order, err = tx.Orders().FindOrderByID(ctx, orderID)
		if err != nil {
			return err
		}
		return tx.Orders().DeleteOrder(ctx, orderID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order deleted", "order_id", orderID)
	return order, nil
}

// List returns one page of orders matching filter.
func (s *orderService) List(ctx context.Context, filter domain.OrderFilter) (*domain.OrderPage, error) {
	if filter.Limit < 1 {
		filter.Limit = DefaultAdminOrdersLimit
	}
	if filter.Sort == "" {
		filter.Sort = domain.SortNewest
	}
	if filter.PaymentMethod != "" && !filter.PaymentMethod.Valid() {
		return nil, domain.ErrInvalidPayment
	}
	if _, err := filter.SearchPattern(); err != nil {
		return nil, err
	}
	return s.list(ctx, filter)
}

func (s *orderService) list(ctx context.Context, filter domain.OrderFilter) (*domain.OrderPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}

	orders, total, err := s.store.Orders().ListOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []domain.Order{}
	}

	return &domain.OrderPage{
		Orders:     orders,
		Pagination: domain.NewPagination(total, filter.Page, filter.Limit),
	}, nil
}

// ownedOrder loads orderID and checks it belongs to userID.
func ownedOrder(ctx context.Context, tx domain.Tx, userID, orderID string) (*domain.Order, error) {
	order, err := tx.Orders().FindOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, domain.ErrNotOrderOwner
	}
	return order, nil
}
