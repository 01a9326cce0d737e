package access

import (
	"fmt"
	"sort"
	"strings"
)

// Predicate is a parameterized SQL fragment expressing the visibility
// rule over a JSONB provenance column. It is emitted by this package
// and executed by the store; rows are filtered at the source so that
// pagination counts and offsets stay correct. Predicate and
// Scope.Visible implement the same rule and must agree.
type Predicate struct {
	SQL  string
	Args []any
}

// VisibilityPredicate builds the predicate for a scope. column is the
// JSONB provenance column of the queried table and startArg the first
// free positional parameter number.
//
// Superuser scopes produce an always-true predicate. A scope with no
// visible groups, or a missing scope, produces a predicate matching
// nothing: resolution failures degrade to an empty result set, never
// to unfiltered rows.
func VisibilityPredicate(scope *Scope, column string, startArg int) Predicate {
	if scope != nil && scope.Superuser {
		return Predicate{SQL: "TRUE"}
	}
	if scope == nil || len(scope.GroupCeilings) == 0 {
		return Predicate{SQL: "FALSE"}
	}

	groups := make([]string, 0, len(scope.GroupCeilings))
	for group := range scope.GroupCeilings {
		groups = append(groups, group)
	}
	sort.Strings(groups)

	clauses := make([]string, 0, len(groups))
	args := make([]any, 0, 2*len(groups))
	arg := startArg
	for _, group := range groups {
		clauses = append(clauses, fmt.Sprintf(
			"(prov->>'group' = $%d AND (prov->>'classification')::int <= $%d)", arg, arg+1))
		args = append(args, group, int(scope.GroupCeilings[group]))
		arg += 2
	}

	sql := fmt.Sprintf(
		"EXISTS (SELECT 1 FROM jsonb_array_elements(%s) AS prov WHERE %s)",
		column, strings.Join(clauses, " OR "))
	return Predicate{SQL: sql, Args: args}
}

// FilterQuery conjoins the visibility predicate onto a base query. The
// base query must end in a WHERE clause the predicate can be ANDed to,
// and its positional parameters must be exactly baseArgs.
func FilterQuery(scope *Scope, baseSQL string, baseArgs []any, column string) (string, []any) {
	pred := VisibilityPredicate(scope, column, len(baseArgs)+1)
	return baseSQL + " AND " + pred.SQL, append(baseArgs, pred.Args...)
}
