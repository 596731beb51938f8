package cart

import "github.com/shopspring/decimal"

// lineSet holds at most one line per id, in insertion order.
type lineSet []LineItem

func (s lineSet) indexOf(id ItemID) int {
	for i := range s {
		if s[i].ID == id {
			return i
		}
	}
	return -1
}

func (s lineSet) clone() lineSet {
	if len(s) == 0 {
		return lineSet{}
	}
	out := make(lineSet, len(s))
	copy(out, s)
	return out
}

func (s lineSet) without(id ItemID) lineSet {
	idx := s.indexOf(id)
	if idx < 0 {
		return s
	}
	out := make(lineSet, 0, len(s)-1)
	out = append(out, s[:idx]...)
	return append(out, s[idx+1:]...)
}

func (s lineSet) count() int {
	total := 0
	for _, line := range s {
		total += line.Quantity
	}
	return total
}

func (s lineSet) total() decimal.Decimal {
	sum := decimal.Zero
	for _, line := range s {
		if lineTotal, ok := line.LineTotal(); ok {
			sum = sum.Add(lineTotal)
		}
	}
	return sum
}

// normalizeLines repairs data read from storage or the remote service: lines
// without an id or with quantity < 1 are dropped, quantities above the ceiling
// are clamped, and duplicate ids are folded into the first occurrence.
func normalizeLines(lines []LineItem) (out lineSet, dropped int) {
	out = make(lineSet, 0, len(lines))
	for _, line := range lines {
		if line.ID.IsZero() || line.Quantity < 1 {
			dropped++
			continue
		}
		if idx := out.indexOf(line.ID); idx >= 0 {
			out[idx].Quantity = clampQuantity(out[idx].Quantity + line.Quantity)
			dropped++
			continue
		}
		line.Quantity = clampQuantity(line.Quantity)
		out = append(out, line)
	}
	return out, dropped
}

// Total sums the line totals, skipping malformed lines.
func Total(lines []LineItem) decimal.Decimal {
	return lineSet(lines).total()
}

// Count sums quantities.
func Count(lines []LineItem) int {
	return lineSet(lines).count()
}
