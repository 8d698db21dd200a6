package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/events"
	"github.com/dukerupert/mercato/internal/payment"
	"github.com/dukerupert/mercato/internal/telemetry"
)

// checkoutService implements domain.CheckoutService.
type checkoutService struct {
	store    domain.Store
	gateways *payment.Registry
	ledger   Ledger
	events   events.Publisher
	logger   *slog.Logger
	now      func() time.Time
}

// NewCheckoutService creates a new CheckoutService instance.
func NewCheckoutService(
	store domain.Store,
	gateways *payment.Registry,
	publisher events.Publisher,
	logger *slog.Logger,
) domain.CheckoutService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &checkoutService{
		store:    store,
		gateways: gateways,
		events:   publisher,
		logger:   logger,
		now:      time.Now,
	}
}

// Checkout creates an order from the caller's cart.
//
// COD orders are created in a single transaction: assemble, debit stock,
// insert the order, clear the cart. Redirect methods only assemble the
// draft inside the transaction and then send the signed payment request;
// the order is created later by ReconcilePayment.
func (s *checkoutService) Checkout(ctx context.Context, req domain.CheckoutRequest) (result *domain.CheckoutResult, err error) {
	const op = "CheckoutService.Checkout"

	defer func() {
		telemetry.Business.RecordCheckout(string(req.PaymentMethod), domain.ErrorCode(err))
	}()

	if !req.PaymentMethod.Valid() {
		return nil, domain.ErrInvalidPayment
	}

	if !req.PaymentMethod.Redirect() {
		order, err := s.checkoutCOD(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		return &domain.CheckoutResult{Order: order}, nil
	}

	gateway, err := s.gateways.Get(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	var draft *domain.OrderDraft
	err = s.store.WithTx(ctx, func(tx domain.Tx) error {
		var err error
		draft, err = s.draftFor(ctx, tx, req.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	pr, err := gateway.CreatePayment(ctx, payment.PaymentParams{
		TotalPrice: draft.TotalPrice,
		UserID:     draft.UserID,
		CartID:     draft.CartID,
	})
	if err != nil {
		s.logger.Warn("payment request failed",
			"op", op,
			"method", req.PaymentMethod,
			"user_id", req.UserID,
			"error", err,
		)
		return nil, err
	}
	if pr.Ref == "" {
		return nil, ErrMissingGatewayRef
	}

	s.logger.Info("payment request created",
		"method", req.PaymentMethod,
		"payment_ref", pr.Ref,
		"user_id", req.UserID,
		"cart_id", draft.CartID,
		"total_price", draft.TotalPrice,
	)

	return &domain.CheckoutResult{PaymentRef: pr.Ref, Detail: pr.Detail}, nil
}

func (s *checkoutService) checkoutCOD(ctx context.Context, userID string) (*domain.Order, error) {
	var order *domain.Order

	err := s.store.WithTx(ctx, func(tx domain.Tx) error {
		user, err := tx.Users().FindUserByID(ctx, userID)
		if err != nil {
			return err
		}

		cart, err := s.cartFor(ctx, tx, user.ID)
		if err != nil {
			return err
		}

		draft, err := AssembleOrder(ctx, tx, user.ID, cart)
		if err != nil {
			return err
		}

		order, err = s.placeOrder(ctx, tx, draft, user, cart, domain.PaymentCOD)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.created(ctx, order)
	return order, nil
}

// ReconcilePayment creates a paid order from a verified provider callback.
// A payment reference that already has an order is reported as a duplicate
// and changes nothing. A settled amount that differs from the cart total
// creates no order; the cart changed after the payment request was sent.
func (s *checkoutService) ReconcilePayment(ctx context.Context, c domain.PaymentConfirmation) domain.ReconcileResult {
	const op = "CheckoutService.ReconcilePayment"

	if c.PaymentRef == "" {
		return domain.ReconcileResult{Err: ErrMissingPaymentRef}
	}
	if c.UserID == "" || c.CartID == "" {
		return domain.ReconcileResult{Err: ErrMissingCallbackIDs}
	}

	var (
		order     *domain.Order
		duplicate bool
	)

	err := s.store.WithTx(ctx, func(tx domain.Tx) error {
		existing, err := tx.Orders().FindOrderByPaymentRef(ctx, c.Method, c.PaymentRef)
		if err == nil {
			order, duplicate = existing, true
			return nil
		}
		if !domain.IsCode(err, domain.ENOTFOUND) {
			return err
		}

		user, err := tx.Users().FindUserByID(ctx, c.UserID)
		if err != nil {
			return err
		}

		cart, err := tx.Carts().FindCartByID(ctx, c.CartID)
		if err != nil {
			return err
		}
		if cart.IsEmpty() {
			return domain.ErrCartNotFound
		}
		if cart.UserID != user.ID {
			return domain.ErrCartOwner
		}

		draft, err := AssembleOrder(ctx, tx, user.ID, cart)
		if err != nil {
			return err
		}
		if c.Amount != 0 && c.Amount != draft.TotalPrice {
			s.logger.Warn("callback amount differs from cart total",
				"op", op,
				"method", c.Method,
				"payment_ref", c.PaymentRef,
				"callback_amount", c.Amount,
				"cart_total", draft.TotalPrice,
			)
			return ErrAmountMismatch
		}

		order, err = s.placeOrder(ctx, tx, draft, user, cart, c.Method, func(o *domain.Order) {
			now := s.now()
			o.IsPaid = true
			o.PaidAt = &now
			o.PaymentRef = c.PaymentRef
		})
		return err
	})

	// A concurrent delivery of the same callback won the insert.
	if errors.Is(err, domain.ErrDuplicatePaymentRef) {
		existing, findErr := s.store.Orders().FindOrderByPaymentRef(ctx, c.Method, c.PaymentRef)
		if findErr == nil {
			return domain.ReconcileResult{Order: existing, Duplicate: true}
		}
	}
	if err != nil {
		return domain.ReconcileResult{Err: err}
	}

	if duplicate {
		s.logger.Info("duplicate payment callback",
			"method", c.Method,
			"payment_ref", c.PaymentRef,
			"order_id", order.ID,
		)
		return domain.ReconcileResult{Order: order, Duplicate: true}
	}

	s.created(ctx, order)
	return domain.ReconcileResult{Order: order}
}

// draftFor loads the user's cart and assembles it.
func (s *checkoutService) draftFor(ctx context.Context, tx domain.Tx, userID string) (*domain.OrderDraft, error) {
	user, err := tx.Users().FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	cart, err := s.cartFor(ctx, tx, user.ID)
	if err != nil {
		return nil, err
	}

	return AssembleOrder(ctx, tx, user.ID, cart)
}

// cartFor returns the user's cart. A user without a cart has nothing to
// check out.
func (s *checkoutService) cartFor(ctx context.Context, tx domain.Tx, userID string) (*domain.Cart, error) {
	cart, err := tx.Carts().FindCartByUser(ctx, userID)
	if domain.IsCode(err, domain.ENOTFOUND) {
		return nil, domain.ErrEmptyCart
	}
	return cart, err
}

// placeOrder debits stock for draft, inserts the order and clears the cart.
func (s *checkoutService) placeOrder(
	ctx context.Context,
	tx domain.Tx,
	draft *domain.OrderDraft,
	user *domain.User,
	cart *domain.Cart,
	method domain.PaymentMethod,
	opts ...func(*domain.Order),
) (*domain.Order, error) {
	if err := s.ledger.Debit(ctx, tx, draft.StockLines()); err != nil {
		return nil, err
	}

	order := &domain.Order{
		UserID:          user.ID,
		Items:           draft.Items,
		ShippingAddress: user.ShippingSnapshot(),
		PaymentMethod:   method,
		ShippingFee:     domain.DefaultShippingFee,
		TotalPrice:      draft.TotalPrice,
		Status:          domain.StatusPending,
	}
	for _, opt := range opts {
		opt(order)
	}

	if err := tx.Orders().CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	cart.Clear()
	if err := tx.Carts().SaveCart(ctx, cart); err != nil {
		return nil, err
	}

	return order, nil
}

// created records a committed order and announces it.
func (s *checkoutService) created(ctx context.Context, order *domain.Order) {
	units := 0
	for _, item := range order.Items {
		units += item.Amount
	}
	telemetry.Business.RecordOrderCreated(string(order.PaymentMethod), order.TotalPrice, units)

	s.logger.Info("order created",
		"order_id", order.ID,
		"user_id", order.UserID,
		"method", order.PaymentMethod,
		"total_price", order.TotalPrice,
		"is_paid", order.IsPaid,
	)

	publishOrder(ctx, s.events, s.logger, events.SubjectOrderCreated, order, s.now())
}

// publishOrder sends an order event. Failures are logged and counted; the
// order is already committed.
func publishOrder(ctx context.Context, pub events.Publisher, logger *slog.Logger, subject string, order *domain.Order, at time.Time) {
	err := pub.PublishEvent(ctx, subject, order.ID, events.NewOrderEvent(order, at))
	if err != nil {
		telemetry.Business.RecordEvent(subject, "error")
		logger.Error("failed to publish order event",
			"subject", subject,
			"order_id", order.ID,
			"error", err,
		)
		return
	}
	telemetry.Business.RecordEvent(subject, "ok")
}
