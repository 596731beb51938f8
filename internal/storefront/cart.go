package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/angelmondragon/bookworm-storefront/internal/cart"
	pkgerrors "github.com/angelmondragon/bookworm-storefront/pkg/errors"
)

var _ cart.RemoteGateway = (*Client)(nil)

// remoteLine is the cart line on the wire. The service keys stored lines by
// book_id; id is accepted as a fallback for lines echoed back verbatim.
type remoteLine struct {
	BookID        cart.ItemID     `json:"book_id"`
	ID            cart.ItemID     `json:"id"`
	Title         string          `json:"title,omitempty"`
	AuthorName    string          `json:"authorName,omitempty"`
	Price         cart.Price      `json:"price"`
	DiscountPrice cart.Price      `json:"discountPrice"`
	Cover         string          `json:"cover,omitempty"`
	Quantity      json.RawMessage `json:"quantity"`
}

func toRemoteLine(line cart.LineItem) remoteLine {
	return remoteLine{
		BookID:        line.ID,
		ID:            line.ID,
		Title:         line.Title,
		AuthorName:    line.AuthorName,
		Price:         line.UnitPrice,
		DiscountPrice: line.DiscountUnitPrice,
		Cover:         line.CoverRef,
		Quantity:      json.RawMessage(strconv.Itoa(line.Quantity)),
	}
}

func (r remoteLine) toLineItem() cart.LineItem {
	id := r.BookID
	if id.IsZero() {
		id = r.ID
	}
	raw := string(bytes.Trim(bytes.TrimSpace(r.Quantity), `"`))
	quantity, err := cart.ParseQuantity(raw)
	if err != nil {
		quantity = 0
	}
	return cart.LineItem{
		ID:                id,
		Title:             r.Title,
		AuthorName:        r.AuthorName,
		UnitPrice:         r.Price,
		DiscountUnitPrice: r.DiscountPrice,
		CoverRef:          r.Cover,
		Quantity:          quantity,
	}
}

// FetchCart returns the signed-in user's stored cart. An empty cart is an
// empty slice; any failure is an error, never an empty cart.
func (c *Client) FetchCart(ctx context.Context) ([]cart.LineItem, error) {
	req, err := c.newRequest(ctx, http.MethodGet, cartPath, nil)
	if err != nil {
		return nil, err
	}
	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}

	var wire []remoteLine
	if err := c.do(req, "fetch cart", &wire, http.StatusOK); err != nil {
		return nil, err
	}
	lines := make([]cart.LineItem, 0, len(wire))
	for _, item := range wire {
		lines = append(lines, item.toLineItem())
	}
	return lines, nil
}

// ReplaceCart overwrites the stored cart with lines.
func (c *Client) ReplaceCart(ctx context.Context, lines []cart.LineItem) error {
	wire := make([]remoteLine, 0, len(lines))
	for _, line := range lines {
		wire = append(wire, toRemoteLine(line))
	}
	req, err := c.newJSONRequest(ctx, http.MethodPost, cartPath, wire)
	if err != nil {
		return err
	}
	if err := c.authorize(ctx, req); err != nil {
		return err
	}
	return c.do(req, "replace cart", nil, http.StatusOK, http.StatusCreated, http.StatusNoContent)
}

// IsUnauthorized reports whether err means the stored session is not valid.
func IsUnauthorized(err error) bool {
	return pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized)
}
