package cart

import "context"

// LocalStore persists the anonymous cart on the device profile.
type LocalStore interface {
	Load(ctx context.Context) ([]LineItem, error)
	Save(ctx context.Context, lines []LineItem) error
	Clear(ctx context.Context) error
}

// RemoteGateway reads and overwrites the signed-in user's cart on the storefront.
type RemoteGateway interface {
	FetchCart(ctx context.Context) ([]LineItem, error)
	ReplaceCart(ctx context.Context, lines []LineItem) error
}
