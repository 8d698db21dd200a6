package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/mercato/internal/domain"
)

func TestWithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := s.PutProduct(domain.Product{Title: "Serum", Price: 100000, Quantity: 5})

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx domain.Tx) error {
		require.NoError(t, tx.Products().DebitStock(ctx, []domain.StockLine{{ProductID: p.ID, Amount: 2}}))
		require.NoError(t, tx.Orders().CreateOrder(ctx, &domain.Order{UserID: "u"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Products().FindProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Quantity)
	assert.Equal(t, 0, got.QuantitySold)

	_, total, err := s.Orders().ListOrders(ctx, domain.OrderFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := s.PutProduct(domain.Product{Title: "Toner", Quantity: 1})

	assert.Panics(t, func() {
		_ = s.WithTx(ctx, func(tx domain.Tx) error {
			_ = tx.Products().DebitStock(ctx, []domain.StockLine{{ProductID: p.ID, Amount: 1}})
			panic("fail")
		})
	})

	got, _ := s.Products().FindProductByID(ctx, p.ID)
	assert.Equal(t, 1, got.Quantity)
}

func TestDebitStock(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := s.PutProduct(domain.Product{Title: "A", Quantity: 3})
	b := s.PutProduct(domain.Product{Title: "B", Quantity: 1})

	err := s.Products().DebitStock(ctx, []domain.StockLine{
		{ProductID: a.ID, Amount: 2},
		{ProductID: b.ID, Amount: 2},
	})
	require.Error(t, err)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
	assert.Equal(t, "Not enough (B) in stock", domain.ErrorMessage(err))

	got, _ := s.Products().FindProductByID(ctx, a.ID)
	assert.Equal(t, 3, got.Quantity, "failed debit must not touch earlier lines")

	require.NoError(t, s.Products().DebitStock(ctx, []domain.StockLine{{ProductID: a.ID, Amount: 3}}))
	got, _ = s.Products().FindProductByID(ctx, a.ID)
	assert.Equal(t, 0, got.Quantity)
	assert.Equal(t, 3, got.QuantitySold)

	require.NoError(t, s.Products().RestockItems(ctx, []domain.StockLine{{ProductID: a.ID, Amount: 1}}))
	got, _ = s.Products().FindProductByID(ctx, a.ID)
	assert.Equal(t, 1, got.Quantity)
	assert.Equal(t, 2, got.QuantitySold)
}

func TestCreateOrder_PaymentRefUnique(t *testing.T) {
	ctx := context.Background()
	s := New()

	first := &domain.Order{UserID: "u", PaymentMethod: domain.PaymentZalo, PaymentRef: "250101_42"}
	require.NoError(t, s.Orders().CreateOrder(ctx, first))
	assert.NotEmpty(t, first.ID)

	dup := &domain.Order{UserID: "u", PaymentMethod: domain.PaymentZalo, PaymentRef: "250101_42"}
	assert.ErrorIs(t, s.Orders().CreateOrder(ctx, dup), domain.ErrDuplicatePaymentRef)

	// Same reference under another provider is a different payment.
	other := &domain.Order{UserID: "u", PaymentMethod: domain.PaymentMomo, PaymentRef: "250101_42"}
	require.NoError(t, s.Orders().CreateOrder(ctx, other))

	found, err := s.Orders().FindOrderByPaymentRef(ctx, domain.PaymentZalo, "250101_42")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)

	// COD orders have no reference and never collide.
	require.NoError(t, s.Orders().CreateOrder(ctx, &domain.Order{PaymentMethod: domain.PaymentCOD}))
	require.NoError(t, s.Orders().CreateOrder(ctx, &domain.Order{PaymentMethod: domain.PaymentCOD}))
}

func TestListOrders(t *testing.T) {
	ctx := context.Background()
	s := New()

	names := []string{"Minh", "an", "Bao", "Chi"}
	methods := []domain.PaymentMethod{domain.PaymentCOD, domain.PaymentZalo, domain.PaymentCOD, domain.PaymentMomo}
	for i, name := range names {
		require.NoError(t, s.Orders().CreateOrder(ctx, &domain.Order{
			UserID:          "u1",
			PaymentMethod:   methods[i],
			ShippingAddress: domain.ShippingAddress{Name: name, Phone: "09000000" + string(rune('0'+i))},
		}))
	}

	tests := []struct {
		name      string
		filter    domain.OrderFilter
		wantNames []string
		wantTotal int
	}{
		{"newest first", domain.OrderFilter{Sort: domain.SortNewest}, []string{"Chi", "Bao", "an", "Minh"}, 4},
		{"oldest first", domain.OrderFilter{Sort: domain.SortOldest}, []string{"Minh", "an", "Bao", "Chi"}, 4},
		{"by method", domain.OrderFilter{PaymentMethod: domain.PaymentCOD}, []string{"Bao", "Minh"}, 2},
		{"search is case-insensitive", domain.OrderFilter{Search: "MIN"}, []string{"Minh"}, 1},
		{"search by phone", domain.OrderFilter{Search: "090000002"}, []string{"Bao"}, 1},
		{"search is a regular expression", domain.OrderFilter{Search: "^(bao|chi)$"}, []string{"Chi", "Bao"}, 2},
		{"paged", domain.OrderFilter{Sort: domain.SortOldest, Page: 2, Limit: 3}, []string{"Chi"}, 4},
		{"other user", domain.OrderFilter{UserID: "u2"}, []string{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders, total, err := s.Orders().ListOrders(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, total)

			got := make([]string, 0, len(orders))
			for _, o := range orders {
				got = append(got, o.ShippingAddress.Name)
			}
			assert.Equal(t, tt.wantNames, got)
		})
	}

	_, _, err := s.Orders().ListOrders(ctx, domain.OrderFilter{Search: "[unclosed"})
	assert.True(t, domain.IsValidationError(err))
}

func TestReturnedValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	c := s.PutCart(domain.Cart{UserID: "u", Items: []domain.CartItem{{ProductID: "p", Quantity: 2}}})
	assert.Equal(t, 2, c.TotalQuantity)

	got, err := s.Carts().FindCartByUser(ctx, "u")
	require.NoError(t, err)
	got.Items[0].Quantity = 99

	again, _ := s.Carts().FindCartByID(ctx, c.ID)
	assert.Equal(t, 2, again.Items[0].Quantity)
}
