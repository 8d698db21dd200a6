package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/dukerupert/mercato/internal/domain"
)

// OrderRepo persists orders and their item snapshots.
type OrderRepo struct {
	q querier
}

const orderColumns = `id::text, user_id::text, shipping_name, shipping_email, shipping_phone, shipping_address,
	payment_method, COALESCE(payment_ref, ''), shipping_fee, total_price, is_paid, paid_at,
	is_delivered, delivered_at, status, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.UserID, &o.ShippingAddress.Name, &o.ShippingAddress.Email,
		&o.ShippingAddress.Phone, &o.ShippingAddress.Address, &o.PaymentMethod, &o.PaymentRef,
		&o.ShippingFee, &o.TotalPrice, &o.IsPaid, &o.PaidAt, &o.IsDelivered, &o.DeliveredAt,
		&o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// nullableRef stores COD orders with a NULL reference so the partial unique
// index ignores them.
func nullableRef(ref string) *string {
	if ref == "" {
		return nil
	}
	return &ref
}

func (r *OrderRepo) CreateOrder(ctx context.Context, order *domain.Order) error {
	const op = "postgres.CreateOrder"

	err := r.q.QueryRow(ctx, `
		INSERT INTO orders (user_id, shipping_name, shipping_email, shipping_phone, shipping_address,
			payment_method, payment_ref, shipping_fee, total_price, is_paid, paid_at,
			is_delivered, delivered_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id::text, created_at, updated_at`,
		order.UserID, order.ShippingAddress.Name, order.ShippingAddress.Email, order.ShippingAddress.Phone,
		order.ShippingAddress.Address, order.PaymentMethod, nullableRef(order.PaymentRef),
		order.ShippingFee, order.TotalPrice, order.IsPaid, order.PaidAt,
		order.IsDelivered, order.DeliveredAt, order.Status).
		Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return mapError(err, op)
	}

	batch := &pgx.Batch{}
	for i, item := range order.Items {
		batch.Queue(`
			INSERT INTO order_items (order_id, position, product_id, title, size, amount, image, price)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			order.ID, i, item.ProductID, item.Title, item.Size, item.Amount, item.Image, item.Price)
	}
	br := r.q.SendBatch(ctx, batch)
	defer br.Close()

	for range order.Items {
		if _, err := br.Exec(); err != nil {
			return mapError(err, op)
		}
	}
	return nil
}

func (r *OrderRepo) FindOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.findOne(ctx, "postgres.FindOrderByID", `id = $1`, id)
}

func (r *OrderRepo) FindOrderByPaymentRef(ctx context.Context, method domain.PaymentMethod, ref string) (*domain.Order, error) {
	return r.findOne(ctx, "postgres.FindOrderByPaymentRef", `payment_method = $1 AND payment_ref = $2`, method, ref)
}

func (r *OrderRepo) findOne(ctx context.Context, op, where string, args ...any) (*domain.Order, error) {
	row := r.q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+where, args...)
	o, err := scanOrder(row)
	if err != nil {
		return nil, notFound(err, op, domain.ErrOrderNotFound)
	}

	if err := r.attachItems(ctx, op, []*domain.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

// UpdateOrder overwrites the mutable columns. Items and totals never change.
func (r *OrderRepo) UpdateOrder(ctx context.Context, order *domain.Order) error {
	err := r.q.QueryRow(ctx, `
		UPDATE orders SET
			shipping_name = $2, shipping_email = $3, shipping_phone = $4, shipping_address = $5,
			payment_method = $6, payment_ref = $7, is_paid = $8, paid_at = $9,
			is_delivered = $10, delivered_at = $11, status = $12, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		order.ID, order.ShippingAddress.Name, order.ShippingAddress.Email, order.ShippingAddress.Phone,
		order.ShippingAddress.Address, order.PaymentMethod, nullableRef(order.PaymentRef),
		order.IsPaid, order.PaidAt, order.IsDelivered, order.DeliveredAt, order.Status).
		Scan(&order.UpdatedAt)
	if err != nil {
		return notFound(err, "postgres.UpdateOrder", domain.ErrOrderNotFound)
	}
	return nil
}

func (r *OrderRepo) DeleteOrder(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "postgres.DeleteOrder")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *OrderRepo) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int, error) {
	const op = "postgres.ListOrders"

	where, args := orderWhere(filter)

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, mapError(err, op)
	}

	query := `SELECT ` + orderColumns + ` FROM orders` + where + ` ORDER BY ` + orderBy(filter.Sort)
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset())
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, mapError(err, op)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, mapError(err, op)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapError(err, op)
	}
	rows.Close()

	if err := r.attachItems(ctx, op, orders); err != nil {
		return nil, 0, err
	}

	out := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, *o)
	}
	return out, total, nil
}

func orderWhere(filter domain.OrderFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.PaymentMethod != "" {
		args = append(args, filter.PaymentMethod)
		conds = append(conds, fmt.Sprintf("payment_method = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, filter.Search)
		conds = append(conds, fmt.Sprintf("(shipping_name ~* $%d OR shipping_phone ~* $%d)", len(args), len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderBy(sort domain.OrderSort) string {
	switch sort {
	case domain.SortOldest:
		return "created_at ASC, id ASC"
	case domain.SortNameAsc:
		return "shipping_name ASC, created_at DESC"
	case domain.SortNameDesc:
		return "shipping_name DESC, created_at DESC"
	default:
		return "created_at DESC, id DESC"
	}
}

// attachItems loads item snapshots for orders in one query.
func (r *OrderRepo) attachItems(ctx context.Context, op string, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[string]*domain.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		o.Items = []domain.OrderItem{}
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	rows, err := r.q.Query(ctx, `
		SELECT order_id::text, product_id::text, title, size, amount, image, price
		FROM order_items WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position`, ids)
	if err != nil {
		return mapError(err, op)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			item    domain.OrderItem
		)
		if err := rows.Scan(&orderID, &item.ProductID, &item.Title, &item.Size, &item.Amount, &item.Image, &item.Price); err != nil {
			return mapError(err, op)
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return mapError(rows.Err(), op)
}
