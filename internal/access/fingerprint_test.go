package access

import "testing"

func TestFingerprintOrderIndependent(t *testing.T) {
	a := &Scope{GroupCeilings: map[string]Classification{
		"alpha": ClassificationAmber,
		"beta":  ClassificationGreen,
		"gamma": ClassificationRed,
	}}
	b := &Scope{GroupCeilings: map[string]Classification{
		"gamma": ClassificationRed,
		"alpha": ClassificationAmber,
		"beta":  ClassificationGreen,
	}}
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatalf("identical mappings must fingerprint identically: %s != %s", a.Fingerprint(), b.Fingerprint())
	}
}

func TestFingerprintChangesWithCeiling(t *testing.T) {
	before := &Scope{GroupCeilings: map[string]Classification{"alpha": ClassificationAmber}}
	after := &Scope{GroupCeilings: map[string]Classification{"alpha": ClassificationRed}}
	if before.Fingerprint() == after.Fingerprint() {
		t.Fatal("ceiling change must change the fingerprint")
	}
}

func TestFingerprintChangesWithMembership(t *testing.T) {
	before := &Scope{GroupCeilings: map[string]Classification{"alpha": ClassificationAmber}}
	after := &Scope{GroupCeilings: map[string]Classification{
		"alpha": ClassificationAmber,
		"beta":  ClassificationWhite,
	}}
	if before.Fingerprint() == after.Fingerprint() {
		t.Fatal("membership change must change the fingerprint")
	}
}

func TestFingerprintSuperuserReserved(t *testing.T) {
	su := &Scope{Superuser: true, GroupCeilings: map[string]Classification{"alpha": ClassificationAmber}}
	if su.Fingerprint() != SuperuserFingerprint {
		t.Fatalf("superuser fingerprint = %s", su.Fingerprint())
	}
	regular := &Scope{GroupCeilings: map[string]Classification{"alpha": ClassificationAmber}}
	if regular.Fingerprint() == SuperuserFingerprint {
		t.Fatal("regular scope must never share the superuser fingerprint")
	}
}

func TestFingerprintEmptyAndNilAgree(t *testing.T) {
	var nilScope *Scope
	empty := &Scope{}
	if nilScope.Fingerprint() != empty.Fingerprint() {
		t.Fatal("missing scope is the empty scope")
	}
	if nilScope.Fingerprint() == SuperuserFingerprint {
		t.Fatal("empty scope must not collide with superuser")
	}
}

func TestFingerprintGroupNamesWithSeparators(t *testing.T) {
	// "a|b:0" as one group must not collide with groups "a" and "b".
	a := &Scope{GroupCeilings: map[string]Classification{"a|b": ClassificationWhite}}
	b := &Scope{GroupCeilings: map[string]Classification{
		"a": ClassificationWhite,
		"b": ClassificationWhite,
	}}
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatal("fingerprint collision across distinct mappings")
	}
}
