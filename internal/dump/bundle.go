// Package dump implements the extraction pipeline: it resolves the working
// tag set, fans their sub-queries out through the batched hub client,
// correlates the results back into per-tag bundles, canonicalizes them, and
// synthesizes the ordered task list for the declarative configuration
// document.
package dump

import (
	"errors"
	"fmt"

	"github.com/CentOS/ansible-role-kojibot/internal/koji"
)

// Every tag contributes exactly this many sub-queries to the batched round,
// always in the same kind order. Correlation arithmetic depends on it.
const tagSubQueries = 3

// subQueryKinds is the per-tag sub-query order within the flattened call
// list.
var subQueryKinds = [tagSubQueries]koji.QueryKind{
	koji.QueryInheritance,
	koji.QueryPackages,
	koji.QueryExternalRepos,
}

// ErrResultMismatch reports a batched result stream that cannot be paired
// one-to-one with the submitted calls. This is an internal invariant
// violation, not a user-recoverable condition: call construction and
// correlation walk the same tag sequence, so the counts can only diverge if
// that coupling is broken.
var ErrResultMismatch = errors.New("batched results do not match submitted calls")

// ErrBadRecord reports a hub record missing an expected field or carrying an
// unexpected type. Fatal: an incomplete configuration document would be
// replayed as if authoritative.
var ErrBadRecord = errors.New("malformed hub record")

// Bundle aggregates the raw sub-query results belonging to one tag.
type Bundle struct {
	Tag           koji.Record
	Inheritance   []any
	Packages      []any
	ExternalRepos []any
}

// tagCalls builds the batched call list: for each tag, in tag order, one
// call per sub-query kind. The resulting flat list keeps tag i's calls at
// positions [i*3, i*3+3).
func tagCalls(tags []koji.Record) ([]koji.Call, error) {
	calls := make([]koji.Call, 0, len(tags)*tagSubQueries)
	for _, tag := range tags {
		name, err := stringField(tag, "name")
		if err != nil {
			return nil, err
		}
		calls = append(calls,
			koji.Call{
				Key:    koji.CallKey{Entity: name, Query: koji.QueryInheritance},
				Method: koji.MethodInheritanceData,
				Args:   []any{name},
			},
			koji.Call{
				Key:    koji.CallKey{Entity: name, Query: koji.QueryPackages},
				Method: koji.MethodListPackages,
				Args:   []any{koji.Kwargs(map[string]any{"tagID": name})},
			},
			koji.Call{
				Key:    koji.CallKey{Entity: name, Query: koji.QueryExternalRepos},
				Method: koji.MethodTagExternalRepos,
				Args:   []any{name},
			},
		)
	}
	return calls, nil
}

// correlate pairs the batched results back with the tags that requested
// them, one bundle per tag in tag order. Results are looked up by call key;
// the positional invariant (len(results) == len(tags)*3) is still checked as
// a guard against a miscounted call list.
func correlate(tags []koji.Record, results *koji.ResultSet) ([]Bundle, error) {
	if got, want := results.Len(), len(tags)*tagSubQueries; got != want {
		return nil, fmt.Errorf("%w: %d results for %d tags (want %d)", ErrResultMismatch, got, len(tags), want)
	}

	bundles := make([]Bundle, 0, len(tags))
	for _, tag := range tags {
		name, err := stringField(tag, "name")
		if err != nil {
			return nil, err
		}

		b := Bundle{Tag: tag}
		for _, kind := range subQueryKinds {
			value, ok := results.Get(koji.CallKey{Entity: name, Query: kind})
			if !ok {
				return nil, fmt.Errorf("%w: no %s result for tag %s", ErrResultMismatch, kind, name)
			}
			rows, err := resultRows(value)
			if err != nil {
				return nil, fmt.Errorf("tag %s, %s: %w", name, kind, err)
			}
			switch kind {
			case koji.QueryInheritance:
				b.Inheritance = rows
			case koji.QueryPackages:
				b.Packages = rows
			case koji.QueryExternalRepos:
				b.ExternalRepos = rows
			}
		}
		bundles = append(bundles, b)
	}
	return bundles, nil
}

// resultRows normalizes one sub-query result to a row list. The hub returns
// an array (possibly empty) for all three sub-query kinds; anything else is
// a shape anomaly.
func resultRows(value any) ([]any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []any:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: sub-query result is %T, want array", ErrBadRecord, value)
	}
}
