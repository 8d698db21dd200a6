package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var ErrProductNotFound = NotFound("", "Product not found")

// Product is a sellable catalog entry. Prices are whole VND.
type Product struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Slug          string    `json:"slug"`
	Size          string    `json:"size"`
	Price         int64     `json:"price"`
	PriceDiscount int       `json:"priceDiscount"` // percent, 0 = none
	Quantity      int       `json:"quantity"`
	QuantitySold  int       `json:"quantitySold"`
	MainImage     string    `json:"mainImage"`
	IsDeleted     bool      `json:"isDeleted"`
	CategoryID    string    `json:"category"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// UnitPrice returns the price a customer pays for one unit.
func (p *Product) UnitPrice() int64 {
	return EffectivePrice(p.Price, p.PriceDiscount)
}

// CanFulfil reports whether n units can be taken from stock.
func (p *Product) CanFulfil(n int) bool {
	return p.Quantity >= 1 && n <= p.Quantity
}

// EffectivePrice applies a percentage discount to price and rounds half away
// from zero to the nearest whole unit. The discount is clamped to 0..100.
func EffectivePrice(price int64, discountPercent int) int64 {
	if discountPercent <= 0 {
		return price
	}
	if discountPercent > 100 {
		discountPercent = 100
	}

	factor := decimal.NewFromInt(100 - int64(discountPercent)).Div(decimal.NewFromInt(100))
	return decimal.NewFromInt(price).Mul(factor).Round(0).IntPart()
}

// ProductNotFound names the missing product in a not found error.
func ProductNotFound(op, productID string) error {
	return NotFound(op, fmt.Sprintf("Product %s not found", productID))
}

// InsufficientStock reports a stock shortfall for the named product.
func InsufficientStock(op, title string) error {
	return Conflict(op, fmt.Sprintf("Not enough (%s) in stock", title))
}
