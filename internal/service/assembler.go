package service

import (
	"context"

	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/telemetry"
)

// AssembleOrder prices a cart and checks it against stock without mutating
// anything. Products are resolved in one batch; a soft-deleted product is
// reported as not found.
func AssembleOrder(ctx context.Context, tx domain.Tx, userID string, cart *domain.Cart) (*domain.OrderDraft, error) {
	const op = "AssembleOrder"

	if cart.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}

	ids := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}

	products, err := tx.Products().FindProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	draft := &domain.OrderDraft{
		UserID: userID,
		CartID: cart.ID,
		Items:  make([]domain.OrderItem, 0, len(cart.Items)),
	}

	for _, item := range cart.Items {
		if item.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}

		p, ok := products[item.ProductID]
		if !ok || p.IsDeleted {
			return nil, domain.ProductNotFound(op, item.ProductID)
		}
		if !p.CanFulfil(item.Quantity) {
			telemetry.Business.RecordStockConflict()
			return nil, domain.InsufficientStock(op, p.Title)
		}

		price := p.UnitPrice()
		draft.Items = append(draft.Items, domain.OrderItem{
			ProductID: p.ID,
			Title:     p.Title,
			Size:      p.Size,
			Amount:    item.Quantity,
			Image:     p.MainImage,
			Price:     price,
		})
		draft.TotalPrice += price * int64(item.Quantity)
	}

	return draft, nil
}
