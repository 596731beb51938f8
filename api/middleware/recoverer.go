package middleware

import (
	"fmt"
	"net/http"

	"github.com/angelmondragon/bookworm-storefront/api/responses"
	pkgerrors "github.com/angelmondragon/bookworm-storefront/pkg/errors"
	"github.com/angelmondragon/bookworm-storefront/pkg/logger"
)

// Recoverer turns a handler panic into a logged INTERNAL_ERROR response.
// http.ErrAbortHandler keeps its net/http meaning and is re-raised.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err := pkgerrors.Wrap(pkgerrors.CodeInternal, fmt.Errorf("panic: %v", rec), "handler panicked")
				if logg != nil {
					ctx := logg.WithFields(r.Context(), map[string]any{
						"panic":  fmt.Sprint(rec),
						"method": r.Method,
						"path":   r.URL.Path,
					})
					logg.Error(ctx, "panic.recovered", err)
				}
				// Already logged with the panic stack above.
				responses.WriteError(r.Context(), nil, w, err)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
