package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/dukerupert/mercato/internal/domain"
)

// ProductRepo reads products and moves stock.
type ProductRepo struct {
	q querier
}

const productColumns = `id::text, title, slug, size, price, price_discount, quantity, quantity_sold,
	main_image, is_deleted, COALESCE(category_id::text, ''), created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.Size, &p.Price, &p.PriceDiscount, &p.Quantity,
		&p.QuantitySold, &p.MainImage, &p.IsDeleted, &p.CategoryID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepo) FindProductByID(ctx context.Context, id string) (*domain.Product, error) {
	row := r.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		return nil, notFound(err, "postgres.FindProductByID", domain.ErrProductNotFound)
	}
	return p, nil
}

func (r *ProductRepo) FindProductsByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	rows, err := r.q.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		return nil, mapError(err, "postgres.FindProductsByIDs")
	}
	defer rows.Close()

	found := make(map[string]*domain.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, mapError(err, "postgres.FindProductsByIDs")
		}
		found[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "postgres.FindProductsByIDs")
	}
	return found, nil
}

// DebitStock sends one conditional UPDATE per line in a single batch.
// A line that matches no row had too little stock when the statement ran.
func (r *ProductRepo) DebitStock(ctx context.Context, lines []domain.StockLine) error {
	batch := &pgx.Batch{}
	for _, line := range lines {
		batch.Queue(`
			UPDATE products
			SET quantity = quantity - $2, quantity_sold = quantity_sold + $2, updated_at = NOW()
			WHERE id = $1 AND quantity >= $2 AND quantity >= 1`,
			line.ProductID, line.Amount)
	}

	br := r.q.SendBatch(ctx, batch)
	defer br.Close()

	for _, line := range lines {
		tag, err := br.Exec()
		if err != nil {
			return mapError(err, "postgres.DebitStock")
		}
		if tag.RowsAffected() == 0 {
			return domain.InsufficientStock("postgres.DebitStock", line.Title)
		}
	}
	return nil
}

func (r *ProductRepo) RestockItems(ctx context.Context, lines []domain.StockLine) error {
	batch := &pgx.Batch{}
	for _, line := range lines {
		batch.Queue(`
			UPDATE products
			SET quantity = quantity + $2, quantity_sold = quantity_sold - $2, updated_at = NOW()
			WHERE id = $1`,
			line.ProductID, line.Amount)
	}

	br := r.q.SendBatch(ctx, batch)
	defer br.Close()

	for range lines {
		if _, err := br.Exec(); err != nil {
			return mapError(err, "postgres.RestockItems")
		}
	}
	return nil
}
