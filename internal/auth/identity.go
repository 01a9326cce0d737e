package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// Identity resolves the authenticated user id for a request from its
// session cookie or API key header. It implements credential lookup
// only; scope resolution happens once, downstream, in the access
// middleware.
type Identity struct {
	Sessions *SessionManager
	Service  *Service
	Logger   *slog.Logger
}

// FromRequest satisfies access.IdentityFunc. Lookup failures yield an
// anonymous request, which fails closed at the first permission check.
func (id Identity) FromRequest(r *http.Request) (int64, bool) {
	if key := bearerToken(r); key != "" {
		user, err := id.Service.AuthenticateAPIKey(r.Context(), key)
		if err != nil {
			if !errors.Is(err, ErrInvalidCredentials) && id.Logger != nil {
				id.Logger.Warn("api key lookup", slog.Any("error", err))
			}
			return 0, false
		}
		return user.ID, true
	}

	sess, err := id.Sessions.Load(r.Context(), r)
	if err != nil {
		if !errors.Is(err, ErrNoSession) && id.Logger != nil {
			id.Logger.Warn("session lookup", slog.Any("error", err))
		}
		return 0, false
	}
	return sess.UserID, true
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
