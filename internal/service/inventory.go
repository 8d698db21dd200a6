package service

import (
	"context"

	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/telemetry"
)

// Ledger moves stock inside the caller's transaction. It never retries; a
// refused debit aborts the whole unit of work.
type Ledger struct{}

// Debit re-reads the products in tx, re-validates every line against current
// stock and then applies conditional decrements.
func (Ledger) Debit(ctx context.Context, tx domain.Tx, lines []domain.StockLine) error {
	const op = "Ledger.Debit"

	wanted := sumByProduct(lines)
	products, err := tx.Products().FindProductsByIDs(ctx, productIDs(lines))
	if err != nil {
		return err
	}

	for _, line := range lines {
		p, ok := products[line.ProductID]
		if !ok || p.IsDeleted {
			return domain.ProductNotFound(op, line.ProductID)
		}
		if !p.CanFulfil(wanted[line.ProductID]) {
			telemetry.Business.RecordStockConflict()
			return domain.InsufficientStock(op, p.Title)
		}
	}

	if err := tx.Products().DebitStock(ctx, lines); err != nil {
		if domain.IsCode(err, domain.ECONFLICT) {
			telemetry.Business.RecordStockConflict()
		}
		return err
	}
	return nil
}

// Restock returns the lines to stock.
func (Ledger) Restock(ctx context.Context, tx domain.Tx, lines []domain.StockLine) error {
	if len(lines) == 0 {
		return nil
	}
	return tx.Products().RestockItems(ctx, lines)
}

func productIDs(lines []domain.StockLine) []string {
	seen := make(map[string]bool, len(lines))
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		if !seen[line.ProductID] {
			seen[line.ProductID] = true
			ids = append(ids, line.ProductID)
		}
	}
	return ids
}

func sumByProduct(lines []domain.StockLine) map[string]int {
	sums := make(map[string]int, len(lines))
	for _, line := range lines {
		sums[line.ProductID] += line.Amount
	}
	return sums
}
