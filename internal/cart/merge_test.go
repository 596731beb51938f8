package cart

import (
	"reflect"
	"testing"
)

func TestMergeLinesClampsSharedIDs(t *testing.T) {
	t.Parallel()

	merged := MergeLines([]LineItem{line("1", 7)}, []LineItem{line("1", 3)})
	if len(merged) != 1 || merged[0].Quantity != MaxQuantity {
		t.Fatalf("expected single line at %d, got %+v", MaxQuantity, merged)
	}
}

func TestMergeLinesAppendsAnonymousOnly(t *testing.T) {
	t.Parallel()

	merged := MergeLines([]LineItem{line("1", 1)}, []LineItem{line("2", 2)})
	got := []ItemID{merged[0].ID, merged[1].ID}
	if !reflect.DeepEqual(got, []ItemID{"1", "2"}) {
		t.Fatalf("unexpected order %v", got)
	}
	if merged[0].Quantity != 1 || merged[1].Quantity != 2 {
		t.Fatalf("unexpected quantities %+v", merged)
	}
}

func TestMergeLinesKeepsRemoteSnapshot(t *testing.T) {
	t.Parallel()

	remote := line("1", 2)
	remote.Title = "Remote Title"
	remote.UnitPrice = MustPrice("30.00")
	anonymous := line("1", 1)
	anonymous.Title = "Local Title"

	merged := MergeLines([]LineItem{remote}, []LineItem{anonymous})
	if merged[0].Title != "Remote Title" || FormatPrice(merged[0].UnitPrice) != "30.00" || merged[0].Quantity != 3 {
		t.Fatalf("remote snapshot must win: %+v", merged[0])
	}
}

func TestMergeLinesDoesNotMutateInputs(t *testing.T) {
	t.Parallel()

	remote := []LineItem{line("1", 5)}
	anonymous := []LineItem{line("1", 2), line("3", 1)}
	_ = MergeLines(remote, anonymous)
	if remote[0].Quantity != 5 || len(remote) != 1 {
		t.Fatalf("remote input mutated: %+v", remote)
	}
	if anonymous[0].Quantity != 2 {
		t.Fatalf("anonymous input mutated: %+v", anonymous)
	}
}

func TestNormalizeLines(t *testing.T) {
	t.Parallel()

	lines, dropped := normalizeLines([]LineItem{
		line("1", 3),
		line("", 2),
		line("2", 0),
		line("3", 12),
		line("1", 6),
	})
	if dropped != 3 {
		t.Fatalf("expected 3 dropped, got %d", dropped)
	}
	want := map[ItemID]int{"1": 8, "3": 8}
	if got := quantities(lines); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
