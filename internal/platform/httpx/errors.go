package httpx

import (
	"errors"
	"net/http"

	"github.com/crucible-ti/crucible/internal/access"
)

// Sentinel errors for the domain layer, used alongside the access
// error taxonomy.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrDuplicate  = errors.New("duplicate entry")
	ErrValidation = errors.New("validation failed")
)

// RespondError maps domain and access errors to problem responses.
// Forbidden covers both "not visible" and "does not exist" for
// provenance-filtered objects so responses never reveal existence;
// scope resolution failures surface the same way and are never
// treated as allow-all.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, access.ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "")
	case errors.Is(err, access.ErrForbidden), errors.Is(err, access.ErrScopeResolution):
		Problem(w, http.StatusForbidden, "Forbidden", "")
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
