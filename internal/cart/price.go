package cart

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Unavailable is rendered in place of a price that is missing or unparsable.
const Unavailable = "N/A"

// Price is a non-negative money amount that may be unavailable.
// Invalid input never errors: it degrades to an unavailable Price.
type Price struct {
	Amount decimal.Decimal
	Valid  bool
}

// NewPrice returns a valid Price, or an unavailable one for negative amounts.
func NewPrice(amount decimal.Decimal) Price {
	if amount.IsNegative() {
		return Price{}
	}
	return Price{Amount: amount, Valid: true}
}

// MustPrice parses a literal such as "19.99". Intended for tests and fixtures.
func MustPrice(value string) Price {
	p := ParsePrice(value)
	if !p.Valid {
		panic("cart: invalid price literal " + strconv.Quote(value))
	}
	return p
}

// ParsePrice accepts strings, numbers and decimals. Anything else is unavailable.
func ParsePrice(value any) Price {
	switch v := value.(type) {
	case nil:
		return Price{}
	case Price:
		return v
	case decimal.Decimal:
		return NewPrice(v)
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return Price{}
		}
		return NewPrice(d)
	case json.Number:
		return ParsePrice(string(v))
	case json.RawMessage:
		return parseRawPrice(v)
	case float64:
		return NewPrice(decimal.NewFromFloat(v))
	case float32:
		return NewPrice(decimal.NewFromFloat32(v))
	case int:
		return NewPrice(decimal.NewFromInt(int64(v)))
	case int64:
		return NewPrice(decimal.NewFromInt(v))
	default:
		return Price{}
	}
}

// FormatPrice renders two decimals, or Unavailable.
func FormatPrice(p Price) string {
	if !p.Valid {
		return Unavailable
	}
	return p.Amount.StringFixed(2)
}

func (p Price) String() string {
	return FormatPrice(p)
}

// LessThan reports whether both prices are available and p < other.
func (p Price) LessThan(other Price) bool {
	return p.Valid && other.Valid && p.Amount.LessThan(other.Amount)
}

func (p Price) MarshalJSON() ([]byte, error) {
	if !p.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(p.Amount.String())
}

func (p *Price) UnmarshalJSON(data []byte) error {
	*p = parseRawPrice(data)
	return nil
}

func parseRawPrice(data []byte) Price {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Price{}
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return Price{}
		}
		return ParsePrice(s)
	}
	return ParsePrice(string(data))
}

// PriceView is what a UI needs to render a price with an optional discount.
type PriceView struct {
	Original    string `json:"original"`
	Discounted  string `json:"discounted,omitempty"`
	HasDiscount bool   `json:"has_discount"`
}

// ViewPrices builds the display form, showing the discount only when it applies.
func ViewPrices(unit, discount Price) PriceView {
	if discount.LessThan(unit) {
		return PriceView{
			Original:    FormatPrice(unit),
			Discounted:  FormatPrice(discount),
			HasDiscount: true,
		}
	}
	return PriceView{Original: FormatPrice(unit)}
}
