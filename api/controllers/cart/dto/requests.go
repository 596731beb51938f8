package cartdto

import "encoding/json"

// AddItemRequest carries the catalog descriptor of the book being added.
// Prices are accepted as numbers or numeric strings.
type AddItemRequest struct {
	ID            json.RawMessage `json:"id" validate:"required"`
	Title         string          `json:"title" validate:"max=512"`
	AuthorName    string          `json:"authorName" validate:"max=256"`
	Price         json.RawMessage `json:"price" validate:"required"`
	DiscountPrice json.RawMessage `json:"discountPrice"`
	Cover         string          `json:"cover" validate:"omitempty,max=2048"`
	Quantity      json.RawMessage `json:"quantity"`
}

// UpdateItemRequest sets a line's quantity. Zero or less removes the line.
type UpdateItemRequest struct {
	Quantity json.RawMessage `json:"quantity"`
}
