package access

import "testing"

type provenanced []ProvenanceEntry

func (p provenanced) ProvenanceEntries() []ProvenanceEntry { return p }

func TestHasPermissionExactMatch(t *testing.T) {
	scope := &Scope{Permissions: NewPermissionSet("sample.read", PermAPIInterface)}

	if !scope.HasPermission("sample.read") {
		t.Fatal("expected sample.read to be granted")
	}
	if scope.HasPermission("sample.comments_add") {
		t.Fatal("sample.read must not imply sample.comments_add")
	}
	if scope.HasPermission("sample") {
		t.Fatal("no prefix matching")
	}
}

func TestHasPermissionSuperuser(t *testing.T) {
	scope := &Scope{Superuser: true}
	if !scope.HasPermission("anything.at_all") {
		t.Fatal("superuser bypasses permission checks")
	}
}

func TestHasPermissionNilScope(t *testing.T) {
	var scope *Scope
	if scope.HasPermission("sample.read") {
		t.Fatal("nil scope must fail closed")
	}
}

func TestVisible(t *testing.T) {
	scope := &Scope{GroupCeilings: map[string]Classification{"alpha": ClassificationAmber}}

	cases := []struct {
		name    string
		entries provenanced
		want    bool
	}{
		{"at ceiling", provenanced{{Group: "alpha", Classification: ClassificationAmber}}, true},
		{"below ceiling", provenanced{{Group: "alpha", Classification: ClassificationGreen}}, true},
		{"above ceiling", provenanced{{Group: "alpha", Classification: ClassificationRed}}, false},
		{"unknown group", provenanced{{Group: "beta", Classification: ClassificationWhite}}, false},
		{"one qualifying entry suffices", provenanced{
			{Group: "alpha", Classification: ClassificationRed},
			{Group: "beta", Classification: ClassificationWhite},
			{Group: "alpha", Classification: ClassificationWhite},
		}, true},
		{"no provenance", provenanced{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := scope.Visible(tc.entries); got != tc.want {
				t.Fatalf("Visible = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestVisibleSuperuserSeesEverything(t *testing.T) {
	scope := &Scope{Superuser: true}
	objects := []provenanced{
		{{Group: "alpha", Classification: ClassificationGreen}},
		{{Group: "alpha", Classification: ClassificationRed}},
		{{Group: "beta", Classification: ClassificationWhite}},
		{},
	}
	for _, obj := range objects {
		if !scope.Visible(obj) {
			t.Fatalf("superuser must see %v", obj)
		}
	}
}

func TestVisibleFailsClosed(t *testing.T) {
	var nilScope *Scope
	obj := provenanced{{Group: "alpha", Classification: ClassificationWhite}}
	if nilScope.Visible(obj) {
		t.Fatal("missing scope must be treated as empty scope")
	}
	empty := &Scope{}
	if empty.Visible(obj) {
		t.Fatal("empty scope sees nothing")
	}
}

func TestCeilingAbsentGroup(t *testing.T) {
	scope := &Scope{GroupCeilings: map[string]Classification{"alpha": ClassificationGreen}}
	if _, ok := scope.Ceiling("beta"); ok {
		t.Fatal("absent group must report no ceiling")
	}
	if c, ok := scope.Ceiling("alpha"); !ok || c != ClassificationGreen {
		t.Fatalf("Ceiling(alpha) = %v, %v", c, ok)
	}
}

func TestPermissionSetUnion(t *testing.T) {
	a := NewPermissionSet("sample.read", "domain.read")
	b := NewPermissionSet("sample.read", "sample.write")
	merged := a.Union(b)

	for _, id := range []string{"sample.read", "sample.write", "domain.read"} {
		if !merged.Has(id) {
			t.Fatalf("union missing %s", id)
		}
	}
	if len(merged) != 3 {
		t.Fatalf("union size = %d, want 3", len(merged))
	}
	if b.Has("domain.read") {
		t.Fatal("union must not mutate operands")
	}
}
