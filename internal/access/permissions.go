package access

import "sort"

// Permission identifiers are opaque strings compared for exact match.
// There is no wildcard or prefix matching: "sample.read" does not imply
// "sample.comments_add".
const (
	// PermAPIInterface gates access to the JSON API as a whole.
	PermAPIInterface = "api_interface"
)

// ReadPermission returns the object-type-level read permission id.
func ReadPermission(typeName string) string { return typeName + ".read" }

// WritePermission returns the object-type-level write permission id.
func WritePermission(typeName string) string { return typeName + ".write" }

// DeletePermission returns the object-type-level delete permission id.
func DeletePermission(typeName string) string { return typeName + ".delete" }

// SubresourcePermission returns a sub-resource-level permission id such
// as "sample.comments_add".
func SubresourcePermission(typeName, action string) string {
	return typeName + "." + action
}

// PermissionSet is an effective permission set resolved from a user's
// roles. The zero value is the empty set and denies everything.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from permission identifiers.
func NewPermissionSet(ids ...string) PermissionSet {
	set := make(PermissionSet, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}

// Has reports whether the exact permission id is in the set.
func (p PermissionSet) Has(id string) bool {
	_, ok := p[id]
	return ok
}

// Union merges other into a new set without mutating either operand.
// A permission granted by any role is granted; there are no negative
// permissions.
func (p PermissionSet) Union(other PermissionSet) PermissionSet {
	merged := make(PermissionSet, len(p)+len(other))
	for id := range p {
		merged[id] = struct{}{}
	}
	for id := range other {
		merged[id] = struct{}{}
	}
	return merged
}

// List returns the permission ids in sorted order.
func (p PermissionSet) List() []string {
	ids := make([]string, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
