package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/bookworm-storefront/api/responses"
	"github.com/angelmondragon/bookworm-storefront/api/validators"
	"github.com/angelmondragon/bookworm-storefront/internal/storefront"
	"github.com/angelmondragon/bookworm-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/bookworm-storefront/pkg/errors"
	"github.com/angelmondragon/bookworm-storefront/pkg/logger"
)

// SessionService is the session binding as seen by the HTTP surface.
type SessionService interface {
	State() (enums.SessionState, *storefront.User)
	Login(ctx context.Context, email, password string) (*storefront.User, error)
	Logout(ctx context.Context) error
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,max=320"`
	Password string `json:"password" validate:"required,max=256"`
}

type sessionUser struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

type sessionResponse struct {
	State   string       `json:"state"`
	User    *sessionUser `json:"user,omitempty"`
	Warning string       `json:"warning,omitempty"`
}

func newSessionResponse(state enums.SessionState, user *storefront.User) sessionResponse {
	resp := sessionResponse{State: state.String()}
	if user != nil {
		resp.User = &sessionUser{ID: user.ID, Email: user.Email, DisplayName: user.DisplayName()}
	}
	return resp
}

// SessionFetch reports whether the cart is bound to a signed-in account.
func SessionFetch(svc SessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session service unavailable"))
			return
		}
		responses.WriteSuccess(w, newSessionResponse(svc.State()))
	}
}

// SessionLogin signs in and merges the anonymous cart into the account cart.
// A failed merge still signs the user in; the response carries a warning and
// the cart endpoints expose the unmerged lines.
func SessionLogin(svc SessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session service unavailable"))
			return
		}

		var body loginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		email := strings.ToLower(validators.SanitizeString(body.Email, 0))
		if err := validators.ValidateVar("email", email, "required,email"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.Login(r.Context(), email, body.Password)
		if user == nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := newSessionResponse(svc.State())
		if err != nil {
			if logg != nil {
				logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "signed in with an unreconciled cart")
			}
			resp.Warning = "cart merge failed; retry from the cart"
		}
		responses.WriteSuccess(w, resp)
	}
}

// SessionLogout signs out. The account cart flush is best effort, so logout
// always succeeds once the local state has switched.
func SessionLogout(svc SessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session service unavailable"))
			return
		}

		resp := sessionResponse{State: enums.SessionStateAnonymous.String()}
		if err := svc.Logout(r.Context()); err != nil {
			if logg != nil {
				logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "logout completed with errors")
			}
			resp.Warning = "anonymous cart could not be reloaded"
		}
		responses.WriteSuccess(w, resp)
	}
}
