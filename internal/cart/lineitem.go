package cart

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/bookworm-storefront/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	// MaxQuantity is the per-line quantity ceiling.
	MaxQuantity = 8

	DefaultTitle      = "Unknown Title"
	DefaultAuthorName = "Unknown Author"
)

// ItemID is the stable catalog key of a book. The catalog issues integers,
// but any non-empty string is accepted.
type ItemID string

func (id ItemID) String() string {
	return string(id)
}

func (id ItemID) IsZero() bool {
	return strings.TrimSpace(string(id)) == ""
}

// MarshalJSON emits integer ids as JSON numbers and everything else as strings.
func (id ItemID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(string(id)), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts a number or a string. Other shapes decode to the zero id.
func (id *ItemID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*id = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*id = ""
			return nil
		}
		*id = ItemID(strings.TrimSpace(s))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			*id = ""
			return nil
		}
		*id = ItemID(n.String())
	}
	return nil
}

// ItemDescriptor is the catalog view of a book at the moment it is added.
type ItemDescriptor struct {
	ID            ItemID `json:"id"`
	Title         string `json:"title"`
	AuthorName    string `json:"authorName"`
	Price         Price  `json:"price"`
	DiscountPrice Price  `json:"discountPrice"`
	Cover         string `json:"cover,omitempty"`
}

func (d ItemDescriptor) validate() error {
	if d.ID.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	if !d.Price.Valid {
		return pkgerrors.New(pkgerrors.CodeValidation, "item price is missing or invalid").
			WithDetails(map[string]any{"id": d.ID})
	}
	return nil
}

// LineItem is one cart entry with its price snapshot.
type LineItem struct {
	ID                ItemID
	Title             string
	AuthorName        string
	UnitPrice         Price
	DiscountUnitPrice Price
	CoverRef          string
	Quantity          int
}

// NewLineItem snapshots the descriptor. Later catalog changes never reach the line.
func NewLineItem(desc ItemDescriptor, quantity int) (LineItem, error) {
	if !validQuantity(quantity) {
		return LineItem{}, invalidQuantity(quantity)
	}
	if err := desc.validate(); err != nil {
		return LineItem{}, err
	}
	title := strings.TrimSpace(desc.Title)
	if title == "" {
		title = DefaultTitle
	}
	author := strings.TrimSpace(desc.AuthorName)
	if author == "" {
		author = DefaultAuthorName
	}
	return LineItem{
		ID:                ItemID(strings.TrimSpace(string(desc.ID))),
		Title:             title,
		AuthorName:        author,
		UnitPrice:         desc.Price,
		DiscountUnitPrice: desc.DiscountPrice,
		CoverRef:          desc.Cover,
		Quantity:          quantity,
	}, nil
}

// EffectiveUnitPrice returns the discount when it is valid and strictly lower
// than the list price, otherwise the list price.
func (l LineItem) EffectiveUnitPrice() Price {
	if l.DiscountUnitPrice.LessThan(l.UnitPrice) {
		return l.DiscountUnitPrice
	}
	return l.UnitPrice
}

// LineTotal is effective unit price times quantity. ok is false for malformed lines.
func (l LineItem) LineTotal() (total decimal.Decimal, ok bool) {
	price := l.EffectiveUnitPrice()
	if !price.Valid || !validQuantity(l.Quantity) {
		return decimal.Zero, false
	}
	return price.Amount.Mul(decimal.NewFromInt(int64(l.Quantity))), true
}

// Prices returns the display form of the line's unit pricing.
func (l LineItem) Prices() PriceView {
	return ViewPrices(l.UnitPrice, l.DiscountUnitPrice)
}

type lineItemJSON struct {
	ID            ItemID          `json:"id"`
	Title         string          `json:"title"`
	AuthorName    string          `json:"authorName"`
	Price         Price           `json:"price"`
	DiscountPrice Price           `json:"discountPrice"`
	Cover         string          `json:"cover,omitempty"`
	Quantity      json.RawMessage `json:"quantity"`
}

func (l LineItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(lineItemJSON{
		ID:            l.ID,
		Title:         l.Title,
		AuthorName:    l.AuthorName,
		Price:         l.UnitPrice,
		DiscountPrice: l.DiscountUnitPrice,
		Cover:         l.CoverRef,
		Quantity:      json.RawMessage(strconv.Itoa(l.Quantity)),
	})
}

// UnmarshalJSON is tolerant: unknown price shapes become unavailable prices and
// a non-numeric quantity decodes to 0 so normalization can drop the line.
func (l *LineItem) UnmarshalJSON(data []byte) error {
	var raw lineItemJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	quantity, err := ParseQuantity(string(bytes.Trim(bytes.TrimSpace(raw.Quantity), `"`)))
	if err != nil {
		quantity = 0
	}
	*l = LineItem{
		ID:                raw.ID,
		Title:             raw.Title,
		AuthorName:        raw.AuthorName,
		UnitPrice:         raw.Price,
		DiscountUnitPrice: raw.DiscountPrice,
		CoverRef:          raw.Cover,
		Quantity:          quantity,
	}
	return nil
}

// ParseQuantity converts raw user input into a quantity. Values above
// MaxQuantity saturate to MaxQuantity+1 and negatives to -1, so callers bound
// them without integer wraparound; non-numeric input fails with
// INVALID_QUANTITY.
func ParseQuantity(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		return saturateQuantity(n), nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || !d.IsInteger() {
		return 0, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be a whole number").
			WithDetails(map[string]any{"quantity": raw})
	}
	switch {
	case d.GreaterThan(decimal.NewFromInt(MaxQuantity)):
		return MaxQuantity + 1, nil
	case d.IsNegative():
		return -1, nil
	}
	return int(d.IntPart()), nil
}

func saturateQuantity(n int) int {
	return min(max(n, -1), MaxQuantity+1)
}

func validQuantity(q int) bool {
	return q >= 1 && q <= MaxQuantity
}

func clampQuantity(q int) int {
	return min(max(q, 1), MaxQuantity)
}
