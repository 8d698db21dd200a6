package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/dukerupert/mercato/internal/domain"
)

// CartRepo reads and saves carts with their items. Inside a transaction
// reads lock the cart row, so two checkouts of one cart run one after the
// other and the second sees the cleared cart.
type CartRepo struct {
	q    querier
	lock bool
}

func (r *CartRepo) FindCartByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	return r.findCart(ctx, "postgres.FindCartByUser", `user_id = $1`, userID)
}

func (r *CartRepo) FindCartByID(ctx context.Context, id string) (*domain.Cart, error) {
	return r.findCart(ctx, "postgres.FindCartByID", `id = $1`, id)
}

func (r *CartRepo) findCart(ctx context.Context, op, where string, arg string) (*domain.Cart, error) {
	query := `
		SELECT id::text, user_id::text, total_quantity, created_at, updated_at
		FROM carts WHERE ` + where
	if r.lock {
		query += ` FOR UPDATE`
	}

	var c domain.Cart
	err := r.q.QueryRow(ctx, query, arg).
		Scan(&c.ID, &c.UserID, &c.TotalQuantity, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err, op, domain.ErrCartNotFound)
	}

	rows, err := r.q.Query(ctx, `
		SELECT product_id::text, quantity FROM cart_items
		WHERE cart_id = $1 ORDER BY position`, c.ID)
	if err != nil {
		return nil, mapError(err, op)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CartItem, error) {
		var item domain.CartItem
		err := row.Scan(&item.ProductID, &item.Quantity)
		return item, err
	})
	if err != nil {
		return nil, mapError(err, op)
	}
	c.Items = items
	return &c, nil
}

// SaveCart upserts the cart row and replaces its items.
func (r *CartRepo) SaveCart(ctx context.Context, cart *domain.Cart) error {
	cart.Recount()

	err := r.q.QueryRow(ctx, `
		INSERT INTO carts (id, user_id, total_quantity)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3)
		ON CONFLICT (id) DO UPDATE SET total_quantity = EXCLUDED.total_quantity, updated_at = NOW()
		RETURNING id::text, created_at, updated_at`,
		cart.ID, cart.UserID, cart.TotalQuantity).
		Scan(&cart.ID, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		return mapError(err, "postgres.SaveCart")
	}

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM cart_items WHERE cart_id = $1`, cart.ID)
	for i, item := range cart.Items {
		batch.Queue(`INSERT INTO cart_items (cart_id, position, product_id, quantity) VALUES ($1, $2, $3, $4)`,
			cart.ID, i, item.ProductID, item.Quantity)
	}

	br := r.q.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return mapError(err, "postgres.SaveCart")
		}
	}
	return nil
}
