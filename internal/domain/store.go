package domain

import "context"

// StockLine is a quantity movement for one product.
type StockLine struct {
	ProductID string
	Title     string
	Amount    int
}

// UserStore reads user accounts.
type UserStore interface {
	FindUserByID(ctx context.Context, id string) (*User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)
}

// ProductStore reads products and moves stock.
type ProductStore interface {
	FindProductByID(ctx context.Context, id string) (*Product, error)

	// FindProductsByIDs returns the products that exist, keyed by ID.
	// Missing IDs are simply absent from the map.
	FindProductsByIDs(ctx context.Context, ids []string) (map[string]*Product, error)

	// DebitStock decrements quantity and increments quantity sold for every
	// line. Each decrement is conditional on enough stock remaining; a line
	// that cannot be applied returns InsufficientStock and the caller's
	// transaction must abort.
	DebitStock(ctx context.Context, lines []StockLine) error

	// RestockItems reverses a debit.
	RestockItems(ctx context.Context, lines []StockLine) error
}

// CartStore reads and saves carts.
type CartStore interface {
	FindCartByUser(ctx context.Context, userID string) (*Cart, error)
	FindCartByID(ctx context.Context, id string) (*Cart, error)
	SaveCart(ctx context.Context, cart *Cart) error
}

// OrderStore persists orders.
type OrderStore interface {
	// CreateOrder assigns ID and timestamps to order and stores it.
	// A repeated (method, payment ref) pair returns ErrDuplicatePaymentRef.
	CreateOrder(ctx context.Context, order *Order) error
	FindOrderByID(ctx context.Context, id string) (*Order, error)
	FindOrderByPaymentRef(ctx context.Context, method PaymentMethod, ref string) (*Order, error)
	UpdateOrder(ctx context.Context, order *Order) error
	DeleteOrder(ctx context.Context, id string) error

	// ListOrders returns one page of matching orders and the total match count.
	ListOrders(ctx context.Context, filter OrderFilter) ([]Order, int, error)
}

// Tx is a unit of work. Stores obtained from a Tx see and commit together.
type Tx interface {
	Users() UserStore
	Products() ProductStore
	Carts() CartStore
	Orders() OrderStore
}

// Store is the persistence boundary. Reads outside WithTx run without a
// transaction.
type Store interface {
	Tx

	// WithTx runs fn in a transaction, committing if fn returns nil and
	// rolling back otherwise. fn's error is returned unchanged.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Ping checks connectivity for health reporting.
	Ping(ctx context.Context) error
}
