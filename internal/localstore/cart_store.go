package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/bookworm-storefront/internal/cart"
	pkgerrors "github.com/angelmondragon/bookworm-storefront/pkg/errors"
	"github.com/angelmondragon/bookworm-storefront/pkg/logger"
)

// CartKey is the fixed storage key of the anonymous cart. The payload is the
// bare JSON array of line items.
const CartKey = "guest_cart"

// CartStore implements cart.LocalStore on top of a Backend.
type CartStore struct {
	backend   Backend
	profileID string
	logg      *logger.Logger
}

var _ cart.LocalStore = (*CartStore)(nil)

func NewCartStore(backend Backend, profileID string, logg *logger.Logger) (*CartStore, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend required")
	}
	if strings.TrimSpace(profileID) == "" {
		return nil, fmt.Errorf("profile id required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &CartStore{backend: backend, profileID: profileID, logg: logg}, nil
}

// Load returns the persisted anonymous cart. Missing or corrupt data yields an
// empty cart; only backend failures are errors.
func (s *CartStore) Load(ctx context.Context) ([]cart.LineItem, error) {
	raw, err := s.backend.Get(ctx, s.profileID, CartKey)
	if errors.Is(err, ErrNotFound) {
		return []cart.LineItem{}, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "read anonymous cart")
	}
	if strings.TrimSpace(raw) == "" {
		return []cart.LineItem{}, nil
	}

	var lines []cart.LineItem
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"key": CartKey, "error": err.Error()})
		s.logg.Warn(logCtx, "ignoring unparsable anonymous cart")
		return []cart.LineItem{}, nil
	}
	if lines == nil {
		lines = []cart.LineItem{}
	}
	return lines, nil
}

func (s *CartStore) Save(ctx context.Context, lines []cart.LineItem) error {
	if lines == nil {
		lines = []cart.LineItem{}
	}
	payload, err := json.Marshal(lines)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "encode anonymous cart")
	}
	if err := s.backend.Set(ctx, s.profileID, CartKey, string(payload)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "write anonymous cart")
	}
	return nil
}

func (s *CartStore) Clear(ctx context.Context) error {
	if err := s.backend.Delete(ctx, s.profileID, CartKey); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "delete anonymous cart")
	}
	return nil
}
