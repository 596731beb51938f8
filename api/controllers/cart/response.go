package cart

import (
	cartdto "github.com/angelmondragon/bookworm-storefront/api/controllers/cart/dto"
	cartsvc "github.com/angelmondragon/bookworm-storefront/internal/cart"
)

func newCart(snap cartsvc.Snapshot) cartdto.Cart {
	out := cartdto.Cart{
		Tier:        snap.Tier.String(),
		Lines:       newCartLines(snap.Lines),
		Count:       snap.Count,
		Total:       snap.Total.StringFixed(2),
		Generation:  snap.Generation,
		Reconciling: snap.Reconciling,
		MergeFailed: snap.MergeFailed,
	}
	if len(snap.UnmergedLines) > 0 {
		out.UnmergedLines = newCartLines(snap.UnmergedLines)
	}
	return out
}

func newCartLines(lines []cartsvc.LineItem) []cartdto.CartLine {
	out := make([]cartdto.CartLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, newCartLine(line))
	}
	return out
}

func newCartLine(line cartsvc.LineItem) cartdto.CartLine {
	total := cartsvc.Unavailable
	if amount, ok := line.LineTotal(); ok {
		total = amount.StringFixed(2)
	}
	return cartdto.CartLine{
		ID:         line.ID,
		Title:      line.Title,
		AuthorName: line.AuthorName,
		Cover:      line.CoverRef,
		Quantity:   line.Quantity,
		Prices:     line.Prices(),
		UnitPrice:  cartsvc.FormatPrice(line.EffectiveUnitPrice()),
		LineTotal:  total,
	}
}
