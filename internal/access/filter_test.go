package access

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisibilityPredicateSuperuser(t *testing.T) {
	pred := VisibilityPredicate(&Scope{Superuser: true}, "provenance", 1)
	assert.Equal(t, "TRUE", pred.SQL)
	assert.Empty(t, pred.Args)
}

func TestVisibilityPredicateEmptyScope(t *testing.T) {
	for _, scope := range []*Scope{nil, {}, {GroupCeilings: map[string]Classification{}}} {
		pred := VisibilityPredicate(scope, "provenance", 1)
		assert.Equal(t, "FALSE", pred.SQL, "empty scope matches nothing, not everything")
		assert.Empty(t, pred.Args)
	}
}

func TestVisibilityPredicateRegularScope(t *testing.T) {
	scope := &Scope{GroupCeilings: map[string]Classification{
		"beta":  ClassificationGreen,
		"alpha": ClassificationAmber,
	}}
	pred := VisibilityPredicate(scope, "provenance", 3)

	require.Equal(t, []any{"alpha", int(ClassificationAmber), "beta", int(ClassificationGreen)}, pred.Args,
		"one (group, ceiling) pair per visible group, sorted by group")
	assert.Contains(t, pred.SQL, "jsonb_array_elements(provenance)")
	assert.Contains(t, pred.SQL, "$3")
	assert.Contains(t, pred.SQL, "$6")
	assert.NotContains(t, pred.SQL, "$7")
	assert.Equal(t, 1, strings.Count(pred.SQL, " OR "), "disjunction over the two visible groups")
}

// The predicate and the object-level check implement one rule: for
// every (group, ceiling) pair the predicate would match, an in-memory
// entry at the ceiling is visible and one just above it is not.
func TestPredicateAgreesWithVisible(t *testing.T) {
	scope := &Scope{GroupCeilings: map[string]Classification{
		"alpha": ClassificationAmber,
		"beta":  ClassificationWhite,
	}}
	pred := VisibilityPredicate(scope, "provenance", 1)
	require.Len(t, pred.Args, 4)

	for i := 0; i < len(pred.Args); i += 2 {
		group := pred.Args[i].(string)
		ceiling := Classification(pred.Args[i+1].(int))

		assert.True(t, scope.Visible(provenanced{{Group: group, Classification: ceiling}}))
		if ceiling < ClassificationRed {
			assert.False(t, scope.Visible(provenanced{{Group: group, Classification: ceiling + 1}}))
		}
	}
}

func TestFilterQuery(t *testing.T) {
	scope := &Scope{GroupCeilings: map[string]Classification{"alpha": ClassificationGreen}}
	sql, args := FilterQuery(scope,
		"SELECT id FROM objects WHERE object_type = $1", []any{"sample"}, "provenance")

	require.Equal(t, []any{"sample", "alpha", int(ClassificationGreen)}, args)
	assert.True(t, strings.HasPrefix(sql, "SELECT id FROM objects WHERE object_type = $1 AND EXISTS"))
	assert.Contains(t, sql, "$2")
	assert.Contains(t, sql, "$3")
}

func TestFilterQueryEmptyScopeMatchesNothing(t *testing.T) {
	sql, args := FilterQuery(&Scope{}, "SELECT id FROM objects WHERE object_type = $1", []any{"sample"}, "provenance")
	assert.Equal(t, "SELECT id FROM objects WHERE object_type = $1 AND FALSE", sql)
	assert.Equal(t, []any{"sample"}, args)
}
