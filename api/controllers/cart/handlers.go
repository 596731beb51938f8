package cart

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	cartdto "github.com/angelmondragon/bookworm-storefront/api/controllers/cart/dto"
	"github.com/angelmondragon/bookworm-storefront/api/responses"
	"github.com/angelmondragon/bookworm-storefront/api/validators"
	cartsvc "github.com/angelmondragon/bookworm-storefront/internal/cart"
	pkgerrors "github.com/angelmondragon/bookworm-storefront/pkg/errors"
	"github.com/angelmondragon/bookworm-storefront/pkg/logger"
)

// Service is the slice of the cart engine the HTTP surface drives.
type Service interface {
	Snapshot() cartsvc.Snapshot
	AddItem(ctx context.Context, desc cartsvc.ItemDescriptor, quantity int) (cartsvc.AddResult, error)
	UpdateQuantity(ctx context.Context, id cartsvc.ItemID, quantity int) error
	RemoveItem(ctx context.Context, id cartsvc.ItemID) error
	Clear(ctx context.Context) error
	Save(ctx context.Context) error
	RetryMerge(ctx context.Context) error
}

// CartFetch renders the active tier.
func CartFetch(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		responses.WriteSuccess(w, newCart(svc.Snapshot()))
	}
}

// CartAddItem adds a book to the active tier. Quantity defaults to 1.
func CartAddItem(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		var payload cartdto.AddItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quantity, err := validators.ParseQuantity(payload.Quantity, 1, true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		desc, err := toItemDescriptor(payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.AddItem(r.Context(), desc, quantity)
		if err != nil {
			writeMutationError(r.Context(), logg, w, svc, err)
			return
		}

		status := http.StatusOK
		if result.Outcome.Changed() {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, cartdto.AddItemResult{
			Outcome: result.Outcome.String(),
			Line:    newCartLine(result.Line),
			Cart:    newCart(svc.Snapshot()),
		})
	}
}

// CartUpdateItem sets the quantity of one line.
func CartUpdateItem(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		id, err := itemIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload cartdto.UpdateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quantity, err := validators.ParseQuantity(payload.Quantity, 0, false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.UpdateQuantity(r.Context(), id, quantity); err != nil {
			writeMutationError(r.Context(), logg, w, svc, err)
			return
		}
		responses.WriteSuccess(w, newCart(svc.Snapshot()))
	}
}

// CartRemoveItem drops one line. Unknown ids succeed.
func CartRemoveItem(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		id, err := itemIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.RemoveItem(r.Context(), id); err != nil {
			writeMutationError(r.Context(), logg, w, svc, err)
			return
		}
		responses.WriteSuccess(w, newCart(svc.Snapshot()))
	}
}

// CartClear empties the active tier.
func CartClear(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		if err := svc.Clear(r.Context()); err != nil {
			writeMutationError(r.Context(), logg, w, svc, err)
			return
		}
		responses.WriteSuccess(w, newCart(svc.Snapshot()))
	}
}

// CartSave persists the active tier to its backing store.
func CartSave(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		if err := svc.Save(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCart(svc.Snapshot()))
	}
}

// CartRetryMerge reruns a failed merge-on-login.
func CartRetryMerge(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		if err := svc.RetryMerge(r.Context()); err != nil {
			if errors.Is(err, cartsvc.ErrSuperseded) {
				err = pkgerrors.Wrap(pkgerrors.CodeConflict, err, "session changed while merging")
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCart(svc.Snapshot()))
	}
}

func itemIDFromPath(r *http.Request) (cartsvc.ItemID, error) {
	id := cartsvc.ItemID(validators.SanitizeString(chi.URLParam(r, "itemId"), 0))
	if id.IsZero() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	return id, nil
}

// writeMutationError reports a failed mutation. The in-memory cart keeps a
// change whose persistence failed, so storage errors carry the current cart.
func writeMutationError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, svc Service, err error) {
	if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeStorage {
		err = pkgerrors.Wrap(pkgerrors.CodeStorage, err, typed.Message()).
			WithDetails(map[string]any{"cart": newCart(svc.Snapshot())})
	}
	responses.WriteError(ctx, logg, w, err)
}
