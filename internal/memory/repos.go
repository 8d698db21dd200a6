package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/mercato/internal/domain"
)

type userRepo struct{ v txView }

func (r *userRepo) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	defer r.v.read()()

	u, ok := r.v.s.data.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return copyUser(u), nil
}

func (r *userRepo) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	defer r.v.read()()

	for _, u := range r.v.s.data.users {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

type productRepo struct{ v txView }

func (r *productRepo) FindProductByID(ctx context.Context, id string) (*domain.Product, error) {
	defer r.v.read()()

	p, ok := r.v.s.data.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return copyProduct(p), nil
}

func (r *productRepo) FindProductsByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	defer r.v.read()()

	found := make(map[string]*domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.v.s.data.products[id]; ok {
			found[id] = copyProduct(p)
		}
	}
	return found, nil
}

func (r *productRepo) DebitStock(ctx context.Context, lines []domain.StockLine) error {
	defer r.v.write()()

	// Validate every line first so a standalone call never half-applies.
	for _, line := range lines {
		p, ok := r.v.s.data.products[line.ProductID]
		if !ok {
			return domain.ProductNotFound("memory.DebitStock", line.ProductID)
		}
		if p.Quantity < line.Amount {
			return domain.InsufficientStock("memory.DebitStock", p.Title)
		}
	}

	now := r.v.s.now()
	for _, line := range lines {
		p := r.v.s.data.products[line.ProductID]
		p.Quantity -= line.Amount
		p.QuantitySold += line.Amount
		p.UpdatedAt = now
	}
	return nil
}

func (r *productRepo) RestockItems(ctx context.Context, lines []domain.StockLine) error {
	defer r.v.write()()

	now := r.v.s.now()
	for _, line := range lines {
		p, ok := r.v.s.data.products[line.ProductID]
		if !ok {
			// Product removed since purchase; nothing to restock.
			continue
		}
		p.Quantity += line.Amount
		p.QuantitySold -= line.Amount
		p.UpdatedAt = now
	}
	return nil
}

type cartRepo struct{ v txView }

func (r *cartRepo) FindCartByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	defer r.v.read()()

	for _, c := range r.v.s.data.carts {
		if c.UserID == userID {
			return copyCart(c), nil
		}
	}
	return nil, domain.ErrCartNotFound
}

func (r *cartRepo) FindCartByID(ctx context.Context, id string) (*domain.Cart, error) {
	defer r.v.read()()

	c, ok := r.v.s.data.carts[id]
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	return copyCart(c), nil
}

func (r *cartRepo) SaveCart(ctx context.Context, cart *domain.Cart) error {
	defer r.v.write()()

	now := r.v.s.now()
	if cart.ID == "" {
		cart.ID = uuid.NewString()
		cart.CreatedAt = now
	}
	cart.Recount()
	cart.UpdatedAt = now
	r.v.s.data.carts[cart.ID] = copyCart(cart)
	return nil
}

type orderRepo struct{ v txView }

func refKey(method domain.PaymentMethod, ref string) string {
	return string(method) + ":" + ref
}

func (r *orderRepo) CreateOrder(ctx context.Context, order *domain.Order) error {
	defer r.v.write()()

	d := r.v.s.data
	if order.PaymentRef != "" {
		if _, taken := d.refs[refKey(order.PaymentMethod, order.PaymentRef)]; taken {
			return domain.ErrDuplicatePaymentRef
		}
	}

	now := r.v.s.now()
	order.ID = uuid.NewString()
	order.CreatedAt = now
	order.UpdatedAt = now

	d.nextSeq++
	d.seq[order.ID] = d.nextSeq
	d.orders[order.ID] = copyOrder(order)
	if order.PaymentRef != "" {
		d.refs[refKey(order.PaymentMethod, order.PaymentRef)] = order.ID
	}
	return nil
}

func (r *orderRepo) FindOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	defer r.v.read()()

	o, ok := r.v.s.data.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (r *orderRepo) FindOrderByPaymentRef(ctx context.Context, method domain.PaymentMethod, ref string) (*domain.Order, error) {
	defer r.v.read()()

	id, ok := r.v.s.data.refs[refKey(method, ref)]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return copyOrder(r.v.s.data.orders[id]), nil
}

func (r *orderRepo) UpdateOrder(ctx context.Context, order *domain.Order) error {
	defer r.v.write()()

	d := r.v.s.data
	existing, ok := d.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}

	// Keep the payment reference index in step with admin edits of the method.
	if existing.PaymentRef != "" {
		delete(d.refs, refKey(existing.PaymentMethod, existing.PaymentRef))
	}
	if order.PaymentRef != "" {
		key := refKey(order.PaymentMethod, order.PaymentRef)
		if other, taken := d.refs[key]; taken && other != order.ID {
			if existing.PaymentRef != "" {
				d.refs[refKey(existing.PaymentMethod, existing.PaymentRef)] = existing.ID
			}
			return domain.ErrDuplicatePaymentRef
		}
		d.refs[key] = order.ID
	}

	order.UpdatedAt = r.v.s.now()
	d.orders[order.ID] = copyOrder(order)
	return nil
}

func (r *orderRepo) DeleteOrder(ctx context.Context, id string) error {
	defer r.v.write()()

	d := r.v.s.data
	o, ok := d.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if o.PaymentRef != "" {
		delete(d.refs, refKey(o.PaymentMethod, o.PaymentRef))
	}
	delete(d.orders, id)
	delete(d.seq, id)
	return nil
}

func (r *orderRepo) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int, error) {
	defer r.v.read()()

	d := r.v.s.data
	search, err := filter.SearchPattern()
	if err != nil {
		return nil, 0, err
	}

	matched := make([]*domain.Order, 0, len(d.orders))
	for _, o := range d.orders {
		if filter.UserID != "" && o.UserID != filter.UserID {
			continue
		}
		if filter.PaymentMethod != "" && o.PaymentMethod != filter.PaymentMethod {
			continue
		}
		if search != nil &&
			!search.MatchString(o.ShippingAddress.Name) &&
			!search.MatchString(o.ShippingAddress.Phone) {
			continue
		}
		matched = append(matched, o)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch filter.Sort {
		case domain.SortOldest:
			return d.seq[a.ID] < d.seq[b.ID]
		case domain.SortNameAsc:
			if a.ShippingAddress.Name != b.ShippingAddress.Name {
				return a.ShippingAddress.Name < b.ShippingAddress.Name
			}
		case domain.SortNameDesc:
			if a.ShippingAddress.Name != b.ShippingAddress.Name {
				return a.ShippingAddress.Name > b.ShippingAddress.Name
			}
		}
		return d.seq[a.ID] > d.seq[b.ID]
	})

	total := len(matched)
	start := filter.Offset()
	if start > total {
		start = total
	}
	end := total
	if filter.Limit > 0 && start+filter.Limit < total {
		end = start + filter.Limit
	}

	page := make([]domain.Order, 0, end-start)
	for _, o := range matched[start:end] {
		page = append(page, *copyOrder(o))
	}
	return page, total, nil
}
