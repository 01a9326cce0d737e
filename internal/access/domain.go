package access

import "time"

// User is the authenticated principal as seen by the access layer. It is
// immutable for the duration of a request; administration happens
// elsewhere.
type User struct {
	ID          int64
	Username    string
	IsActive    bool
	IsSuperuser bool
}

// Role groups granted permissions. Roles are looked up, never mutated,
// by this package.
type Role struct {
	ID          int64
	Name        string
	Permissions PermissionSet
}

// ProvenanceEntry records which data-sharing group contributed an object
// and at what classification. An object may carry several entries when
// multiple groups contributed it.
type ProvenanceEntry struct {
	Group          string         `json:"group"`
	Classification Classification `json:"classification"`
	Method         string         `json:"method,omitempty"`
	Reference      string         `json:"reference,omitempty"`
	Analyst        string         `json:"analyst,omitempty"`
	Date           time.Time      `json:"date,omitzero"`
}

// Provenanced is implemented by any domain object the visibility filter
// can evaluate.
type Provenanced interface {
	ProvenanceEntries() []ProvenanceEntry
}
