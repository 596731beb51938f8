package enums

import "fmt"

// SessionState is the authentication state the cart is bound to.
type SessionState string

const (
	SessionStateAnonymous     SessionState = "anonymous"
	SessionStateAuthenticated SessionState = "authenticated"
)

var validSessionStates = []SessionState{
	SessionStateAnonymous,
	SessionStateAuthenticated,
}

// String implements fmt.Stringer.
func (s SessionState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SessionState.
func (s SessionState) IsValid() bool {
	for _, candidate := range validSessionStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// CartTier maps the session state to the cart tier it activates.
func (s SessionState) CartTier() CartTier {
	if s == SessionStateAuthenticated {
		return CartTierAuthenticated
	}
	return CartTierAnonymous
}

// ParseSessionState converts raw input into a SessionState.
func ParseSessionState(value string) (SessionState, error) {
	for _, candidate := range validSessionStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid session state %q", value)
}
