package objects

import (
	"time"

	"github.com/crucible-ti/crucible/internal/access"
)

// Object is a provenance-tagged record. Fields carries the type-specific
// payload opaquely; the access layer only ever inspects Provenance.
type Object struct {
	ID         string                   `json:"id"`
	Type       string                   `json:"type"`
	Fields     map[string]any           `json:"fields"`
	Provenance []access.ProvenanceEntry `json:"provenance"`
	CreatedAt  time.Time                `json:"created_at"`
	UpdatedAt  time.Time                `json:"updated_at"`
}

// ProvenanceEntries implements access.Provenanced.
func (o Object) ProvenanceEntries() []access.ProvenanceEntry {
	return o.Provenance
}

// Comment is an analyst note attached to an object. Comments inherit the
// parent object's visibility; there is no per-comment provenance.
type Comment struct {
	ID        int64     `json:"id"`
	ObjectID  string    `json:"object_id"`
	AuthorID  int64     `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// ListParams bounds a listing. Limit is clamped by the service.
type ListParams struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ListResult is a page of visible objects. Total counts only rows the
// caller's scope can see, so pagination never leaks hidden rows.
type ListResult struct {
	Items  []Object `json:"items"`
	Total  int64    `json:"total"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
}
