package validators

import (
	"bytes"
	"encoding/json"

	"github.com/angelmondragon/bookworm-storefront/internal/cart"
	pkgerrors "github.com/angelmondragon/bookworm-storefront/pkg/errors"
)

// ParseQuantity reads a quantity sent as a JSON number or numeric string. An
// absent value yields fallback when allowMissing is set.
func ParseQuantity(raw json.RawMessage, fallback int, allowMissing bool) (int, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		if allowMissing {
			return fallback, nil
		}
		return 0, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity is required")
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return 0, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be a whole number")
		}
		return cart.ParseQuantity(s)
	}
	return cart.ParseQuantity(string(trimmed))
}
