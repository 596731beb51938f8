package enums

// AddOutcome reports what an add-to-cart call did.
type AddOutcome string

const (
	AddOutcomeAdded       AddOutcome = "added"
	AddOutcomeIncremented AddOutcome = "incremented"
	AddOutcomeMaxReached  AddOutcome = "max_reached"
)

// String implements fmt.Stringer.
func (a AddOutcome) String() string {
	return string(a)
}

// Changed reports whether the cart was modified.
func (a AddOutcome) Changed() bool {
	return a == AddOutcomeAdded || a == AddOutcomeIncremented
}
