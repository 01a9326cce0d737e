package access

import "context"

// RequestContext bundles the authenticated user and its resolved scope.
// It is constructed exactly once per inbound request and exposed
// read-only to everything downstream; re-resolving mid-request is
// forbidden (it would open a TOCTOU window between check and use).
type RequestContext struct {
	User  User
	Scope *Scope
}

type requestContextKey struct{}

// WithRequestContext stores the request context.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// FromContext extracts the request context, nil when absent.
func FromContext(ctx context.Context) *RequestContext {
	rc, _ := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc
}

// ScopeFromContext returns the resolved scope, nil when no request
// context was built. A nil scope fails closed everywhere it is used.
func ScopeFromContext(ctx context.Context) *Scope {
	if rc := FromContext(ctx); rc != nil {
		return rc.Scope
	}
	return nil
}

// CheckPermission verifies the exact permission id against the request
// context: ErrUnauthorized when no context was built, ErrForbidden when
// the scope lacks the permission.
func CheckPermission(ctx context.Context, id string) error {
	rc := FromContext(ctx)
	if rc == nil {
		return ErrUnauthorized
	}
	if !rc.Scope.HasPermission(id) {
		return ErrForbidden
	}
	return nil
}

// IsObjectVisible applies the object-level visibility rule under the
// request's scope. Missing context fails closed.
func IsObjectVisible(ctx context.Context, obj Provenanced) bool {
	return ScopeFromContext(ctx).Visible(obj)
}
