package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/events"
	"github.com/dukerupert/mercato/internal/memory"
)

// fixture is a seeded in-memory store: one shopper with a cart holding two
// units of a 100000 product discounted by 20%.
type fixture struct {
	store     *memory.Store
	publisher *events.Recorder
	logger    *slog.Logger

	user    *domain.User
	other   *domain.User
	product *domain.Product
	cart    *domain.Cart
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.New()
	f := &fixture{
		store:     store,
		publisher: &events.Recorder{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	f.user = store.PutUser(domain.User{
		Name:        "Nguyen Van A",
		Email:       "a@example.com",
		PhoneNumber: "0901234567",
		ShippingAddress: domain.Address{
			Province:     "79",
			ProvinceName: "Ho Chi Minh",
			District:     "760",
			DistrictName: "Quan 1",
			Ward:         "26734",
			WardName:     "Ben Nghe",
			Address:      "1 Le Loi",
		},
	})
	f.other = store.PutUser(domain.User{Name: "Tran Thi B", Email: "b@example.com"})

	f.product = store.PutProduct(domain.Product{
		Title:         "Linen Shirt",
		Size:          "M",
		Price:         100000,
		PriceDiscount: 20,
		Quantity:      10,
		MainImage:     "shirt.jpg",
	})

	f.cart = store.PutCart(domain.Cart{
		UserID: f.user.ID,
		Items:  []domain.CartItem{{ProductID: f.product.ID, Quantity: 2}},
	})

	return f
}

func (f *fixture) checkout() domain.CheckoutService {
	return NewCheckoutService(f.store, nil, f.publisher, f.logger)
}

func (f *fixture) orders() domain.OrderService {
	return NewOrderService(f.store, f.publisher, f.logger)
}

func (f *fixture) productNow(t *testing.T, id string) *domain.Product {
	t.Helper()
	p, err := f.store.Products().FindProductByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (f *fixture) cartNow(t *testing.T) *domain.Cart {
	t.Helper()
	c, err := f.store.Carts().FindCartByID(context.Background(), f.cart.ID)
	require.NoError(t, err)
	return c
}

func (f *fixture) orderCount(t *testing.T) int {
	t.Helper()
	_, total, err := f.store.Orders().ListOrders(context.Background(), domain.OrderFilter{Page: 1, Limit: 100})
	require.NoError(t, err)
	return total
}
