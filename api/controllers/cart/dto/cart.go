package cartdto

import "github.com/angelmondragon/bookworm-storefront/internal/cart"

// CartLine is the rendered form of one line item.
type CartLine struct {
	ID         cart.ItemID    `json:"id"`
	Title      string         `json:"title"`
	AuthorName string         `json:"authorName"`
	Cover      string         `json:"cover,omitempty"`
	Quantity   int            `json:"quantity"`
	Prices     cart.PriceView `json:"prices"`
	UnitPrice  string         `json:"unitPrice"`
	LineTotal  string         `json:"lineTotal"`
}

// Cart is the rendered active tier.
type Cart struct {
	Tier          string     `json:"tier"`
	Lines         []CartLine `json:"lines"`
	Count         int        `json:"count"`
	Total         string     `json:"total"`
	Generation    uint64     `json:"generation"`
	Reconciling   bool       `json:"reconciling"`
	MergeFailed   bool       `json:"mergeFailed"`
	UnmergedLines []CartLine `json:"unmergedLines,omitempty"`
}

// AddItemResult reports the add outcome with the cart after the change.
type AddItemResult struct {
	Outcome string   `json:"outcome"`
	Line    CartLine `json:"line"`
	Cart    Cart     `json:"cart"`
}
