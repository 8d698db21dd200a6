package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/events"
)

// placeCOD checks out the fixture cart and returns the order.
func placeCOD(t *testing.T, f *fixture) *domain.Order {
	t.Helper()
	result, err := f.checkout().Checkout(context.Background(), domain.CheckoutRequest{
		UserID:        f.user.ID,
		PaymentMethod: domain.PaymentCOD,
	})
	require.NoError(t, err)
	return result.Order
}

func TestOrderService_Cancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := placeCOD(t, f)
	require.Equal(t, 8, f.productNow(t, f.product.ID).Quantity)

	cancelled, err := f.orders().Cancel(ctx, f.user.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)

	p := f.productNow(t, f.product.ID)
	assert.Equal(t, 10, p.Quantity)
	assert.Equal(t, 0, p.QuantitySold)

	published := f.publisher.Events()
	require.Len(t, published, 2)
	assert.Equal(t, events.SubjectOrderCancelled, published[1].Subject)

	// A second cancel must not restock twice.
	_, err = f.orders().Cancel(ctx, f.user.ID, order.ID)
	assert.ErrorIs(t, err, domain.ErrOrderCancelled)
	assert.Equal(t, 10, f.productNow(t, f.product.ID).Quantity)
}

func TestOrderService_CancelRejections(t *testing.T) {
	tests := []struct {
		name    string
		prepare    func(t *testing.T, f *fixture, order *domain.Order) (userID, orderID string)
		wantErr    error
		wantStatus domain.OrderStatus
	}{
		{
			name: "paid order",
			prepare: func(t *testing.T, f *fixture, order *domain.Order) (string, string) {
				order.IsPaid = true
				require.NoError(t, f.store.Orders().UpdateOrder(context.Background(), order))
				return f.user.ID, order.ID
			},
			wantErr: domain.ErrOrderAlreadyPaid,
		},
		{
			name: "delivered cash order",
			prepare: func(t *testing.T, f *fixture, order *domain.Order) (string, string) {
				_, err := f.orders().Confirm(context.Background(), f.user.ID, order.ID)
				require.NoError(t, err)
				return f.user.ID, order.ID
			},
			wantErr:    domain.ErrOrderNotPending,
			wantStatus: domain.StatusDelivered,
		},
		{
			name: "order in processing",
			prepare: func(t *testing.T, f *fixture, order *domain.Order) (string, string) {
				order.Status = domain.StatusProcessing
				require.NoError(t, f.store.Orders().UpdateOrder(context.Background(), order))
				return f.user.ID, order.ID
			},
			wantErr:    domain.ErrOrderNotPending,
			wantStatus: domain.StatusProcessing,
		},
		{
			name: "not the owner",
			prepare: func(t *testing.T, f *fixture, order *domain.Order) (string, string) {
				return f.other.ID, order.ID
			},
			wantErr: domain.ErrNotOrderOwner,
		},
		{
			name: "unknown order",
			prepare: func(t *testing.T, f *fixture, order *domain.Order) (string, string) {
				return f.user.ID, "missing"
			},
			wantErr: domain.ErrOrderNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			order := placeCOD(t, f)
			userID, orderID := tt.prepare(t, f, order)

			_, err := f.orders().Cancel(context.Background(), userID, orderID)
			assert.ErrorIs(t, err, tt.wantErr)

			want := tt.wantStatus
			if want == "" {
				want = domain.StatusPending
			}
			after, err := f.store.Orders().FindOrderByID(context.Background(), order.ID)
			require.NoError(t, err)
			assert.Equal(t, want, after.Status)
			assert.Equal(t, 8, f.productNow(t, f.product.ID).Quantity)
		})
	}
}

func TestOrderService_Confirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := placeCOD(t, f)

	_, err := f.orders().Confirm(ctx, f.other.ID, order.ID)
	assert.ErrorIs(t, err, domain.ErrNotOrderOwner)

	confirmed, err := f.orders().Confirm(ctx, f.user.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, confirmed.Status)
	assert.True(t, confirmed.IsDelivered)
	assert.NotNil(t, confirmed.DeliveredAt)
}

func TestOrderService_ConfirmCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := placeCOD(t, f)

	_, err := f.orders().Cancel(ctx, f.user.ID, order.ID)
	require.NoError(t, err)

	_, err = f.orders().Confirm(ctx, f.user.ID, order.ID)
	assert.ErrorIs(t, err, domain.ErrOrderCancelled)
}

func TestOrderService_ListMine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 6; i++ {
		f.store.PutCart(domain.Cart{
			ID:     f.cart.ID,
			UserID: f.user.ID,
			Items:  []domain.CartItem{{ProductID: f.product.ID, Quantity: 1}},
		})
		ids = append(ids, placeCOD(t, f).ID)
	}

	page, err := f.orders().ListMine(ctx, f.user.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, page.Orders, DefaultMyOrdersLimit)
	assert.Equal(t, domain.Pagination{TotalOrders: 6, TotalPages: 2, CurrentPage: 1, Limit: 5}, page.Pagination)
	assert.Equal(t, ids[5], page.Orders[0].ID, "newest first")

	page, err = f.orders().ListMine(ctx, f.user.ID, 2, 5)
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, ids[0], page.Orders[0].ID)

	page, err = f.orders().ListMine(ctx, f.other.ID, 1, 5)
	require.NoError(t, err)
	assert.Empty(t, page.Orders)
	assert.NotNil(t, page.Orders)
	assert.Equal(t, 1, page.Pagination.TotalPages)
}

func TestOrderService_Update(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := placeCOD(t, f)

	update := domain.OrderUpdate{
		ShippingAddress: domain.ShippingAddress{
			Name:    "Le Van C",
			Phone:   "0912345678",
			Address: domain.Address{Province: "01", ProvinceName: "Ha Noi", Address: "2 Hang Bai"},
		},
		PaymentMethod: domain.PaymentCOD,
		IsPaid:        true,
		IsDelivered:   true,
		Status:        domain.StatusDelivered,
	}

	updated, err := f.orders().Update(ctx, order.ID, update)
	require.NoError(t, err)
	assert.Equal(t, "Le Van C", updated.ShippingAddress.Name)
	assert.Equal(t, "a@example.com", updated.ShippingAddress.Email)
	assert.True(t, updated.IsPaid)
	assert.NotNil(t, updated.PaidAt)
	assert.NotNil(t, updated.DeliveredAt)
	assert.Equal(t, domain.StatusDelivered, updated.Status)

	// No state machine: an admin may move a delivered order back.
	update.Status = domain.StatusProcessing
	update.IsDelivered = false
	updated, err = f.orders().Update(ctx, order.ID, update)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, updated.Status)
	assert.Nil(t, updated.DeliveredAt)
}

func TestOrderService_UpdateValidation(t *testing.T) {
	f := newFixture(t)
	order := placeCOD(t, f)

	tests := []struct {
		name    string
		update  domain.OrderUpdate
		wantErr error
	}{
		{"bad method", domain.OrderUpdate{PaymentMethod: "CASH", Status: domain.StatusPending}, domain.ErrInvalidPayment},
		{"bad status", domain.OrderUpdate{PaymentMethod: domain.PaymentCOD, Status: "Lost"}, domain.ErrInvalidOrderStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orders().Update(context.Background(), order.ID, tt.update)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := f.orders().Update(context.Background(), "missing", domain.OrderUpdate{
		PaymentMethod: domain.PaymentCOD,
		Status:        domain.StatusPending,
	})
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestOrderService_GetDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := placeCOD(t, f)

	got, err := f.orders().Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	deleted, err := f.orders().Delete(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, deleted.ID)

	_, err = f.orders().Get(ctx, order.ID)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	_, err = f.orders().Delete(ctx, order.ID)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestOrderService_List(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	placeCOD(t, f)

	result := f.checkout().ReconcilePayment(ctx, domain.PaymentConfirmation{
		Method:     domain.PaymentZalo,
		PaymentRef: "250102_1",
		UserID:     f.user.ID,
		CartID:     f.store.PutCart(domain.Cart{ID: f.cart.ID, UserID: f.user.ID, Items: []domain.CartItem{{ProductID: f.product.ID, Quantity: 1}}}).ID,
	})
	require.NoError(t, result.Err)

	page, err := f.orders().List(ctx, domain.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, page.Orders, 2)
	assert.Equal(t, DefaultAdminOrdersLimit, page.Pagination.Limit)
	assert.Equal(t, 1, page.Pagination.CurrentPage)

	page, err = f.orders().List(ctx, domain.OrderFilter{PaymentMethod: domain.PaymentZalo})
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, "250102_1", page.Orders[0].PaymentRef)

	page, err = f.orders().List(ctx, domain.OrderFilter{Search: "nguyen"})
	require.NoError(t, err)
	assert.Len(t, page.Orders, 2)

	page, err = f.orders().List(ctx, domain.OrderFilter{Search: "^nguy.n"})
	require.NoError(t, err)
	assert.Len(t, page.Orders, 2)

	_, err = f.orders().List(ctx, domain.OrderFilter{PaymentMethod: "CASH"})
	assert.ErrorIs(t, err, domain.ErrInvalidPayment)

	_, err = f.orders().List(ctx, domain.OrderFilter{Search: "[0-9"})
	assert.True(t, domain.IsValidationError(err))
}
