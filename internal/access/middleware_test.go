package access

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func middlewareForUser(store *stubStore, userID int64, authenticated bool) Middleware {
	return Middleware{
		Resolver: NewResolver(store, nil),
		Identity: func(*http.Request) (int64, bool) {
			return userID, authenticated
		},
	}
}

func TestMiddlewareBuildsRequestContext(t *testing.T) {
	store := &stubStore{
		users: map[int64]User{7: {ID: 7, Username: "drw", IsActive: true}},
		perms: map[int64][]string{7: {"sample.read"}},
		ceilings: map[int64]map[string]Classification{
			7: {"internal": ClassificationAmber},
		},
	}
	mw := middlewareForUser(store, 7, true)

	var seen *RequestContext
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if seen == nil {
		t.Fatal("expected request context to be set")
	}
	if seen.User.ID != 7 || !seen.Scope.HasPermission("sample.read") {
		t.Fatalf("unexpected context: %+v", seen)
	}
}

func TestMiddlewareAnonymousPassesThroughWithoutContext(t *testing.T) {
	mw := middlewareForUser(&stubStore{}, 0, false)

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()) != nil {
			t.Fatal("anonymous request must carry no context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}

func TestMiddlewareInactiveUserGets401(t *testing.T) {
	store := &stubStore{users: map[int64]User{7: {ID: 7, IsActive: false}}}
	mw := middlewareForUser(store, 7, true)

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestMiddlewareResolutionFailureGets403(t *testing.T) {
	store := &stubStore{
		users:    map[int64]User{7: {ID: 7, IsActive: true}},
		permsErr: errors.New("connection refused"),
	}
	mw := middlewareForUser(store, 7, true)

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestRequireGatesRoutes(t *testing.T) {
	store := &stubStore{
		users: map[int64]User{7: {ID: 7, IsActive: true}},
		perms: map[int64][]string{7: {"sample.read"}},
	}
	mw := middlewareForUser(store, 7, true)

	routed := mw.Handler(mw.Require("sample.write")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	rr := httptest.NewRecorder()
	routed.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without sample.write, got %d", rr.Code)
	}

	granted := mw.Handler(mw.Require("sample.read")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	rr = httptest.NewRecorder()
	granted.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with sample.read, got %d", rr.Code)
	}

	anonymous := mw.Require("sample.read")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	rr = httptest.NewRecorder()
	anonymous.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without context, got %d", rr.Code)
	}
}
