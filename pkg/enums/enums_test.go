package enums

import "testing"

func TestParseCartTier(t *testing.T) {
	for _, tier := range []CartTier{CartTierAnonymous, CartTierAuthenticated} {
		got, err := ParseCartTier(tier.String())
		if err != nil || got != tier {
			t.Fatalf("ParseCartTier(%q) = %q, %v", tier, got, err)
		}
	}
	if _, err := ParseCartTier("guest"); err == nil {
		t.Fatalf("expected error for unknown tier")
	}
	if CartTier("").IsValid() {
		t.Fatalf("empty tier must be invalid")
	}
}

func TestSessionStateCartTier(t *testing.T) {
	if SessionStateAuthenticated.CartTier() != CartTierAuthenticated {
		t.Fatalf("authenticated session should activate authenticated tier")
	}
	if SessionStateAnonymous.CartTier() != CartTierAnonymous {
		t.Fatalf("anonymous session should activate anonymous tier")
	}
	if _, err := ParseSessionState("pending"); err == nil {
		t.Fatalf("no intermediate session states exist")
	}
}

func TestAddOutcomeChanged(t *testing.T) {
	if !AddOutcomeAdded.Changed() || !AddOutcomeIncremented.Changed() {
		t.Fatalf("added and incremented modify the cart")
	}
	if AddOutcomeMaxReached.Changed() {
		t.Fatalf("max reached must not report a change")
	}
}
