package domain

import "time"

var (
	ErrCartNotFound = NotFound("", "Cart not found")
	ErrEmptyCart    = Invalid("", "Cart is empty")
	ErrCartOwner    = Forbidden("", "Cart does not belong to this user")
)

// CartItem is one product line in a cart.
type CartItem struct {
	ProductID string `json:"product"`
	Quantity  int    `json:"quantity"`
}

// Cart is a user's pending selection. A cart is emptied after checkout,
// never deleted.
type Cart struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user"`
	Items         []CartItem `json:"cartItems"`
	TotalQuantity int        `json:"totalQuantity"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// IsEmpty reports whether the cart has nothing to check out.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// Recount recomputes TotalQuantity from the items.
func (c *Cart) Recount() {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	c.TotalQuantity = total
}

// Clear removes every item.
func (c *Cart) Clear() {
	c.Items = []CartItem{}
	c.TotalQuantity = 0
}
