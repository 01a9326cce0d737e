// Package objects stores the provenance-tagged top-level records of the
// platform. Every read is filtered by the caller's resolved scope and
// every write invalidates the affected type's cache segment.
package objects

import (
	"sort"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/crucible-ti/crucible/internal/access"
)

// TypeSpec describes a registered object type. The name doubles as the
// URL segment and the permission id prefix.
type TypeSpec struct {
	Name         string
	Display      string
	Subresources []string
}

var titleCaser = cases.Title(language.English)

var registry = buildRegistry(
	TypeSpec{Name: "sample", Subresources: []string{"comments_add", "provenance_add"}},
	TypeSpec{Name: "domain", Subresources: []string{"comments_add", "provenance_add"}},
	TypeSpec{Name: "indicator", Subresources: []string{"comments_add", "provenance_add"}},
	TypeSpec{Name: "ip", Subresources: []string{"comments_add", "provenance_add"}},
	TypeSpec{Name: "email", Subresources: []string{"comments_add", "provenance_add"}},
	TypeSpec{Name: "event", Subresources: []string{"comments_add", "provenance_add"}},
)

func buildRegistry(specs ...TypeSpec) map[string]TypeSpec {
	m := make(map[string]TypeSpec, len(specs))
	for _, spec := range specs {
		if spec.Display == "" {
			spec.Display = titleCaser.String(spec.Name)
		}
		m[spec.Name] = spec
	}
	return m
}

// Lookup returns the spec for a type name.
func Lookup(name string) (TypeSpec, bool) {
	spec, ok := registry[name]
	return spec, ok
}

// Types returns all registered specs ordered by name.
func Types() []TypeSpec {
	specs := make([]TypeSpec, 0, len(registry))
	for _, spec := range registry {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// PermissionCatalog enumerates every permission id this package defines:
// read, write and delete per type plus each registered subresource
// action. Role edits are validated against it.
func PermissionCatalog() []string {
	ids := []string{access.PermAPIInterface}
	for _, spec := range Types() {
		ids = append(ids,
			access.ReadPermission(spec.Name),
			access.WritePermission(spec.Name),
			access.DeletePermission(spec.Name))
		for _, action := range spec.Subresources {
			ids = append(ids, access.SubresourcePermission(spec.Name, action))
		}
	}
	sort.Strings(ids)
	return ids
}
