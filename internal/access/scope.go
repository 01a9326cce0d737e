package access

// Scope is a user's resolved access scope: the effective permission set
// plus the map of visible groups and their classification ceilings. It
// is derived once per request and never persisted. A nil *Scope behaves
// as the empty scope (fails closed).
type Scope struct {
	UserID        int64
	Superuser     bool
	Permissions   PermissionSet
	GroupCeilings map[string]Classification

	fingerprint string
}

// HasPermission reports whether the scope grants the exact permission
// id. Superuser scopes grant everything.
func (s *Scope) HasPermission(id string) bool {
	if s == nil {
		return false
	}
	if s.Superuser {
		return true
	}
	return s.Permissions.Has(id)
}

// Ceiling returns the classification ceiling for a group. A group
// absent from the scope is fully invisible, which is the same as an
// explicit zero grant: ok is false for both a missing scope and a
// missing group.
func (s *Scope) Ceiling(group string) (Classification, bool) {
	if s == nil {
		return 0, false
	}
	ceiling, ok := s.GroupCeilings[group]
	return ceiling, ok
}

// Visible decides object-level visibility: true iff the scope is
// superuser, or at least one provenance entry names a group the scope
// can see at or above the entry's classification. An object with no
// provenance entries is visible to nobody but a superuser.
func (s *Scope) Visible(obj Provenanced) bool {
	if s == nil {
		return false
	}
	if s.Superuser {
		return true
	}
	if obj == nil {
		return false
	}
	for _, entry := range obj.ProvenanceEntries() {
		ceiling, ok := s.GroupCeilings[entry.Group]
		if ok && entry.Classification <= ceiling {
			return true
		}
	}
	return false
}
