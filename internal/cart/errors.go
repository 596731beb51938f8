package cart

import (
	"errors"
	"fmt"

	pkgerrors "github.com/angelmondragon/bookworm-storefront/pkg/errors"
)

// ErrSuperseded is returned by a session transition whose result was discarded
// because a newer transition started before it finished.
var ErrSuperseded = errors.New("cart: session transition superseded")

func invalidQuantity(q int) error {
	return pkgerrors.New(pkgerrors.CodeInvalidQuantity, fmt.Sprintf("quantity must be between 1 and %d", MaxQuantity)).
		WithDetails(map[string]any{"quantity": q})
}

func mergeInProgress(kind transitionKind) error {
	return pkgerrors.New(pkgerrors.CodeMergeInProgress, "cart is being reconciled; retry once it completes").
		WithDetails(map[string]any{"transition": string(kind)})
}

func storageFailure(op string, err error) error {
	if pkgerrors.IsCode(err, pkgerrors.CodeStorage) {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "local cart "+op+" failed")
}

func remoteFailure(op string, err error) error {
	if pkgerrors.IsCode(err, pkgerrors.CodeRemote) || pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeRemote, err, "remote cart "+op+" failed")
}
