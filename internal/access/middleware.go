package access

import (
	"errors"
	"log/slog"
	"net/http"
)

// IdentityFunc extracts the authenticated user id from a request, false
// when the request is anonymous. Credential validation itself lives in
// the auth package.
type IdentityFunc func(r *http.Request) (int64, bool)

// Middleware builds the per-request access context. It runs the role
// and group resolvers once and stores the result; every downstream
// permission or visibility check uses that single view.
type Middleware struct {
	Resolver *Resolver
	Identity IdentityFunc
	Logger   *slog.Logger
}

// Handler resolves the request context for authenticated requests.
// Anonymous requests pass through without one; protected operations
// then fail closed on the missing context.
func (m Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := m.Identity(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		rc, err := m.Resolver.ResolveContext(r.Context(), userID)
		if err != nil {
			if errors.Is(err, ErrUnauthorized) {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			if m.Logger != nil {
				m.Logger.Error("resolve request scope", slog.Int64("user_id", userID), slog.Any("error", err))
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithRequestContext(r.Context(), rc)))
	})
}

// Require gates a route on an exact permission id. Declared once per
// route instead of ad hoc string checks inside handlers.
func (m Middleware) Require(id string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch err := CheckPermission(r.Context(), id); {
			case errors.Is(err, ErrUnauthorized):
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			case errors.Is(err, ErrForbidden):
				if m.Logger != nil {
					m.Logger.Warn("permission denied",
						slog.String("permission", id),
						slog.String("path", r.URL.Path))
				}
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
