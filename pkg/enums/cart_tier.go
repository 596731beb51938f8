package enums

import "fmt"

// CartTier identifies which cart storage context is active.
type CartTier string

const (
	CartTierAnonymous     CartTier = "anonymous"
	CartTierAuthenticated CartTier = "authenticated"
)

var validCartTiers = []CartTier{
	CartTierAnonymous,
	CartTierAuthenticated,
}

// String implements fmt.Stringer.
func (c CartTier) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CartTier.
func (c CartTier) IsValid() bool {
	for _, candidate := range validCartTiers {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCartTier converts raw input into a CartTier.
func ParseCartTier(value string) (CartTier, error) {
	for _, candidate := range validCartTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cart tier %q", value)
}
