package cart

import (
	"encoding/json"

	cartdto "github.com/angelmondragon/bookworm-storefront/api/controllers/cart/dto"
	"github.com/angelmondragon/bookworm-storefront/api/validators"
	cartsvc "github.com/angelmondragon/bookworm-storefront/internal/cart"
	pkgerrors "github.com/angelmondragon/bookworm-storefront/pkg/errors"
)

const (
	maxTitleLength  = 512
	maxAuthorLength = 256
)

func toItemDescriptor(payload cartdto.AddItemRequest) (cartsvc.ItemDescriptor, error) {
	var id cartsvc.ItemID
	if err := json.Unmarshal(payload.ID, &id); err != nil || id.IsZero() {
		return cartsvc.ItemDescriptor{}, pkgerrors.New(pkgerrors.CodeValidation, "item id is required").
			WithDetails(map[string]string{"id": "must be a number or non-empty string"})
	}
	return cartsvc.ItemDescriptor{
		ID:            id,
		Title:         validators.SanitizeString(payload.Title, maxTitleLength),
		AuthorName:    validators.SanitizeString(payload.AuthorName, maxAuthorLength),
		Price:         cartsvc.ParsePrice(payload.Price),
		DiscountPrice: cartsvc.ParsePrice(payload.DiscountPrice),
		Cover:         validators.SanitizeString(payload.Cover, 0),
	}, nil
}
