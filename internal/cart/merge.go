package cart

// MergeLines reconciles an anonymous cart into a remote one. Remote lines keep
// their snapshot fields; shared ids sum quantities up to MaxQuantity; lines only
// present in anonymous are appended. Neither input is modified.
func MergeLines(remote, anonymous []LineItem) []LineItem {
	merged := lineSet(remote).clone()
	for _, line := range anonymous {
		if idx := merged.indexOf(line.ID); idx >= 0 {
			merged[idx].Quantity = min(merged[idx].Quantity+line.Quantity, MaxQuantity)
			continue
		}
		merged = append(merged, line)
	}
	return merged
}
