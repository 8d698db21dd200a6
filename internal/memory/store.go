// Package memory implements domain.Store in process memory.
//
// WithTx holds the store-wide write lock for the whole unit of work and
// restores a snapshot when the work fails, so transactions are serialized and
// all-or-nothing. Used by tests and by the dev server when STORE_DRIVER=memory.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/mercato/internal/domain"
)

type dataset struct {
	users    map[string]*domain.User
	products map[string]*domain.Product
	carts    map[string]*domain.Cart
	orders   map[string]*domain.Order
	seq      map[string]int64  // order id -> insertion sequence
	refs     map[string]string // method:ref -> order id
	nextSeq  int64
}

func newDataset() *dataset {
	return &dataset{
		users:    make(map[string]*domain.User),
		products: make(map[string]*domain.Product),
		carts:    make(map[string]*domain.Cart),
		orders:   make(map[string]*domain.Order),
		seq:      make(map[string]int64),
		refs:     make(map[string]string),
	}
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	for k, v := range d.users {
		c.users[k] = copyUser(v)
	}
	for k, v := range d.products {
		c.products[k] = copyProduct(v)
	}
	for k, v := range d.carts {
		c.carts[k] = copyCart(v)
	}
	for k, v := range d.orders {
		c.orders[k] = copyOrder(v)
	}
	for k, v := range d.seq {
		c.seq[k] = v
	}
	for k, v := range d.refs {
		c.refs[k] = v
	}
	c.nextSeq = d.nextSeq
	return c
}

// Store is an in-memory domain.Store.
type Store struct {
	mu   sync.RWMutex
	data *dataset
	now  func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		data: newDataset(),
		now:  time.Now,
	}
}

var _ domain.Store = (*Store)(nil)

// WithTx implements domain.Store.
func (s *Store) WithTx(ctx context.Context, fn func(tx domain.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	defer func() {
		if r := recover(); r != nil {
			s.data = snapshot
			panic(r)
		}
		if err != nil {
			s.data = snapshot
		}
	}()

	return fn(&txView{s: s, inTx: true})
}

// Ping implements domain.Store.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Users() domain.UserStore       { return &userRepo{txView{s: s}} }
func (s *Store) Products() domain.ProductStore { return &productRepo{txView{s: s}} }
func (s *Store) Carts() domain.CartStore       { return &cartRepo{txView{s: s}} }
func (s *Store) Orders() domain.OrderStore     { return &orderRepo{txView{s: s}} }

// txView scopes repositories to either a running transaction (lock already
// held) or to standalone calls that lock per operation.
type txView struct {
	s    *Store
	inTx bool
}

func (v *txView) Users() domain.UserStore       { return &userRepo{*v} }
func (v *txView) Products() domain.ProductStore { return &productRepo{*v} }
func (v *txView) Carts() domain.CartStore       { return &cartRepo{*v} }
func (v *txView) Orders() domain.OrderStore     { return &orderRepo{*v} }

func (v txView) read() func() {
	if v.inTx {
		return func() {}
	}
	v.s.mu.RLock()
	return v.s.mu.RUnlock
}

func (v txView) write() func() {
	if v.inTx {
		return func() {}
	}
	v.s.mu.Lock()
	return v.s.mu.Unlock
}

// =============================================================================
// Seeding
// =============================================================================

// PutUser inserts or replaces a user, assigning an ID when empty.
func (s *Store) PutUser(u domain.User) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	stampCreated(&u.CreatedAt, &u.UpdatedAt, s.now())
	s.data.users[u.ID] = copyUser(&u)
	return copyUser(&u)
}

// PutProduct inserts or replaces a product, assigning an ID when empty.
func (s *Store) PutProduct(p domain.Product) *domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	stampCreated(&p.CreatedAt, &p.UpdatedAt, s.now())
	s.data.products[p.ID] = copyProduct(&p)
	return copyProduct(&p)
}

// PutCart inserts or replaces a cart, assigning an ID when empty.
func (s *Store) PutCart(c domain.Cart) *domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Recount()
	stampCreated(&c.CreatedAt, &c.UpdatedAt, s.now())
	s.data.carts[c.ID] = copyCart(&c)
	return copyCart(&c)
}

func stampCreated(created, updated *time.Time, now time.Time) {
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

// =============================================================================
// Copies
// =============================================================================

func copyUser(u *domain.User) *domain.User {
	c := *u
	return &c
}

func copyProduct(p *domain.Product) *domain.Product {
	c := *p
	return &c
}

func copyCart(cart *domain.Cart) *domain.Cart {
	c := *cart
	c.Items = append([]domain.CartItem{}, cart.Items...)
	return &c
}

func copyOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.OrderItem{}, o.Items...)
	if o.PaidAt != nil {
		t := *o.PaidAt
		c.PaidAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		c.DeliveredAt = &t
	}
	return &c
}
