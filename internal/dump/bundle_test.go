package dump

import (
	"errors"
	"fmt"
	"testing"

	"github.com/CentOS/ansible-role-kojibot/internal/koji"
)

func stubTags(n int) []koji.Record {
	tags := make([]koji.Record, n)
	for i := range tags {
		tags[i] = koji.Record{"id": int64(i), "name": fmt.Sprintf("tag-%d", i)}
	}
	return tags
}

// resultsFor builds a scripted result set in the exact order tagCalls
// submits, tagging each value with its origin so tests can verify pairing.
func resultsFor(t *testing.T, tags []koji.Record) *koji.ResultSet {
	t.Helper()
	calls, err := tagCalls(tags)
	if err != nil {
		t.Fatalf("tagCalls failed: %v", err)
	}
	keyed := make([]koji.KeyedResult, len(calls))
	for i, call := range calls {
		keyed[i] = koji.KeyedResult{
			Key:   call.Key,
			Value: []any{fmt.Sprintf("%s/%s", call.Key.Entity, call.Key.Query)},
		}
	}
	return koji.NewResultSet(keyed)
}

func TestCorrelate_OneBundlePerTag(t *testing.T) {
	tags := stubTags(4)
	results := resultsFor(t, tags)

	bundles, err := correlate(tags, results)
	if err != nil {
		t.Fatalf("correlate failed: %v", err)
	}
	if len(bundles) != len(tags) {
		t.Fatalf("got %d bundles, want %d", len(bundles), len(tags))
	}

	for i, b := range bundles {
		name := fmt.Sprintf("tag-%d", i)
		wantRows := map[koji.QueryKind][]any{
			koji.QueryInheritance:   b.Inheritance,
			koji.QueryPackages:      b.Packages,
			koji.QueryExternalRepos: b.ExternalRepos,
		}
		for kind, rows := range wantRows {
			want := fmt.Sprintf("%s/%s", name, kind)
			if len(rows) != 1 || rows[0] != want {
				t.Errorf("bundle %d %s = %v, want [%s]", i, kind, rows, want)
			}
		}
	}
}

// The flattened stream is laid out tag-major: tag i owns positions
// [i*3, i*3+3). Keyed lookup is the primary mechanism, but the layout is a
// wire-order contract and is asserted here.
func TestCorrelate_PositionalLayout(t *testing.T) {
	tags := stubTags(5)
	results := resultsFor(t, tags)

	if results.Len() != len(tags)*tagSubQueries {
		t.Fatalf("result count %d, want %d", results.Len(), len(tags)*tagSubQueries)
	}
	for i := range tags {
		for j, kind := range subQueryKinds {
			got := results.At(i*tagSubQueries + j)
			want := []any{fmt.Sprintf("tag-%d/%s", i, kind)}
			rows, ok := got.([]any)
			if !ok || len(rows) != 1 || rows[0] != want[0] {
				t.Errorf("position %d = %v, want %v", i*tagSubQueries+j, got, want)
			}
		}
	}
}

func TestCorrelate_CountMismatchIsFatal(t *testing.T) {
	tags := stubTags(3)
	calls, err := tagCalls(tags)
	if err != nil {
		t.Fatalf("tagCalls failed: %v", err)
	}

	// Drop the last result: 8 results for 3 tags.
	keyed := make([]koji.KeyedResult, 0, len(calls)-1)
	for _, call := range calls[:len(calls)-1] {
		keyed = append(keyed, koji.KeyedResult{Key: call.Key, Value: []any{}})
	}

	_, err = correlate(tags, koji.NewResultSet(keyed))
	if !errors.Is(err, ErrResultMismatch) {
		t.Fatalf("got %v, want ErrResultMismatch", err)
	}
}

func TestCorrelate_MissingKeyIsFatal(t *testing.T) {
	tags := stubTags(2)
	calls, err := tagCalls(tags)
	if err != nil {
		t.Fatalf("tagCalls failed: %v", err)
	}

	// Right count, but one result keyed to a tag nobody asked about.
	keyed := make([]koji.KeyedResult, len(calls))
	for i, call := range calls {
		keyed[i] = koji.KeyedResult{Key: call.Key, Value: []any{}}
	}
	keyed[4].Key = koji.CallKey{Entity: "impostor", Query: koji.QueryPackages}

	_, err = correlate(tags, koji.NewResultSet(keyed))
	if !errors.Is(err, ErrResultMismatch) {
		t.Fatalf("got %v, want ErrResultMismatch", err)
	}
}

func TestCorrelate_NonArrayResultIsShapeAnomaly(t *testing.T) {
	tags := stubTags(1)
	calls, err := tagCalls(tags)
	if err != nil {
		t.Fatalf("tagCalls failed: %v", err)
	}

	keyed := make([]koji.KeyedResult, len(calls))
	for i, call := range calls {
		keyed[i] = koji.KeyedResult{Key: call.Key, Value: []any{}}
	}
	keyed[1].Value = "not an array"

	_, err = correlate(tags, koji.NewResultSet(keyed))
	if !errors.Is(err, ErrBadRecord) {
		t.Fatalf("got %v, want ErrBadRecord", err)
	}
}

func TestTagCalls_FixedSubQueriesPerTag(t *testing.T) {
	tags := stubTags(3)
	calls, err := tagCalls(tags)
	if err != nil {
		t.Fatalf("tagCalls failed: %v", err)
	}
	if len(calls) != len(tags)*tagSubQueries {
		t.Fatalf("got %d calls, want %d", len(calls), len(tags)*tagSubQueries)
	}
	for i, call := range calls {
		wantEntity := fmt.Sprintf("tag-%d", i/tagSubQueries)
		if call.Key.Entity != wantEntity {
			t.Errorf("call %d entity = %s, want %s", i, call.Key.Entity, wantEntity)
		}
		if call.Key.Query != subQueryKinds[i%tagSubQueries] {
			t.Errorf("call %d kind = %s, want %s", i, call.Key.Query, subQueryKinds[i%tagSubQueries])
		}
	}
}

func TestTagCalls_NamelessTagIsFatal(t *testing.T) {
	_, err := tagCalls([]koji.Record{{"id": int64(9)}})
	if !errors.Is(err, ErrBadRecord) {
		t.Fatalf("got %v, want ErrBadRecord", err)
	}
}
