package access

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// SuperuserFingerprint is the reserved fingerprint for superuser scopes
// so their cached results are never mixed with any regular-user segment.
const SuperuserFingerprint = "root"

// fingerprintLen is the number of hex characters kept from the digest.
const fingerprintLen = 16

// Fingerprint returns a stable digest of the scope's group→ceiling map,
// independent of map iteration order. Identical maps produce identical
// fingerprints; any membership or ceiling change produces a different
// one, which makes cache entries built under the old scope unreachable
// without any explicit invalidation signal.
func (s *Scope) Fingerprint() string {
	if s == nil {
		return fingerprintOf(nil)
	}
	if s.Superuser {
		return SuperuserFingerprint
	}
	if s.fingerprint == "" {
		s.fingerprint = fingerprintOf(s.GroupCeilings)
	}
	return s.fingerprint
}

func fingerprintOf(ceilings map[string]Classification) string {
	groups := make([]string, 0, len(ceilings))
	for group := range ceilings {
		groups = append(groups, group)
	}
	sort.Strings(groups)

	var b strings.Builder
	for i, group := range groups {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(group)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(int(ceilings[group])))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}
