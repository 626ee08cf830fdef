package dump

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// PermissionResolver resolves a permission id to its name against the hub.
type PermissionResolver interface {
	PermissionName(id int64) (string, error)
}

// transformer canonicalizes one detail bundle into the payload of a koji_tag
// task. The three row transforms are pure; only permission resolution
// touches the hub.
type transformer struct {
	perms PermissionResolver
}

// payload converts a bundle into its canonical, cleaned task payload.
func (t *transformer) payload(b Bundle) (map[string]any, error) {
	name, err := stringField(b.Tag, "name")
	if err != nil {
		return nil, err
	}

	rec := make(map[string]any, len(b.Tag)+3)
	for k, v := range b.Tag {
		rec[k] = v
	}

	if rec["inheritance"], err = canonicalInheritance(b.Inheritance); err != nil {
		return nil, fmt.Errorf("tag %s: %w", name, err)
	}
	if rec["packages"], err = canonicalPackages(b.Packages); err != nil {
		return nil, fmt.Errorf("tag %s: %w", name, err)
	}
	if rec["external_repos"], err = canonicalExternalRepos(b.ExternalRepos); err != nil {
		return nil, fmt.Errorf("tag %s: %w", name, err)
	}

	if err := t.resolvePermission(rec); err != nil {
		return nil, fmt.Errorf("tag %s: %w", name, err)
	}

	return cleanRecord(rec), nil
}

// resolvePermission swaps a numeric permission reference for its name.
// One extra hub round trip per tag that carries one; permission references
// are rare enough that this stays outside the batched round.
func (t *transformer) resolvePermission(rec map[string]any) error {
	id, ok := intValue(rec["perm_id"])
	if !ok || id == 0 {
		return nil
	}
	name, err := t.perms.PermissionName(id)
	if err != nil {
		return fmt.Errorf("resolving perm_id %d: %w", id, err)
	}
	rec["perm"] = name
	return nil
}

// canonicalInheritance sorts inheritance rows ascending by priority.
// Priorities are unique per tag in practice; if they are not, the stable
// sort keeps equal-priority rows in input order so output is still
// deterministic.
func canonicalInheritance(rows []any) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(rows))
	for _, raw := range rows {
		row, err := rowFields(raw)
		if err != nil {
			return nil, err
		}
		parent, err := stringField(row, "name")
		if err != nil {
			return nil, err
		}
		priority, err := intField(row, "priority")
		if err != nil {
			return nil, err
		}
		out = append(out, map[string]any{
			"parent":   parent,
			"priority": priority,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i]["priority"].(int64) < out[j]["priority"].(int64)
	})
	return out, nil
}

// canonicalPackages groups package names by owner. Rows are sorted by
// package name before grouping, so every owner's list is sorted and the
// result is independent of hub row order.
func canonicalPackages(rows []any) (map[string][]string, error) {
	type pkg struct {
		name  string
		owner string
	}
	pkgs := make([]pkg, 0, len(rows))
	for _, raw := range rows {
		row, err := rowFields(raw)
		if err != nil {
			return nil, err
		}
		name, err := stringField(row, "package_name")
		if err != nil {
			return nil, err
		}
		owner, err := stringField(row, "owner_name")
		if err != nil {
			return nil, err
		}
		pkgs = append(pkgs, pkg{name: name, owner: owner})
	}
	sort.SliceStable(pkgs, func(i, j int) bool {
		return pkgs[i].name < pkgs[j].name
	})

	grouped := make(map[string][]string)
	for _, p := range pkgs {
		grouped[p.owner] = append(grouped[p.owner], p.name)
	}
	return grouped, nil
}

// canonicalExternalRepos sorts external repo bindings ascending by priority,
// ties keeping hub order.
func canonicalExternalRepos(rows []any) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(rows))
	for _, raw := range rows {
		row, err := rowFields(raw)
		if err != nil {
			return nil, err
		}
		repo, err := stringField(row, "external_repo_name")
		if err != nil {
			return nil, err
		}
		priority, err := intField(row, "priority")
		if err != nil {
			return nil, err
		}
		out = append(out, map[string]any{
			"repo":     repo,
			"priority": priority,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i]["priority"].(int64) < out[j]["priority"].(int64)
	})
	return out, nil
}

// cleanRecord strips internal identifiers and every falsy field, so the
// emitted document only carries meaningfully-set attributes. The blanket
// truthiness check (zero and false count as unset) reproduces the behavior
// the downstream replay tool depends on; do not narrow it.
func cleanRecord(rec map[string]any) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		if k == "id" || strings.HasSuffix(k, "_id") {
			continue
		}
		if falsy(v) {
			continue
		}
		out[k] = v
	}
	return out
}

// falsy reports whether a field value counts as unset.
func falsy(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case bool:
		return !x
	case string:
		return x == ""
	case int:
		return x == 0
	case int32:
		return x == 0
	case int64:
		return x == 0
	case float64:
		return x == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	}
	return false
}

// rowFields asserts one raw sub-query row is a struct record.
func rowFields(raw any) (map[string]any, error) {
	row, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: row is %T, want struct", ErrBadRecord, raw)
	}
	return row, nil
}

// stringField extracts a required string field.
func stringField(rec map[string]any, key string) (string, error) {
	v, ok := rec[key]
	if !ok {
		return "", fmt.Errorf("%w: missing field %q", ErrBadRecord, key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: field %q is %T (%v), want non-empty string", ErrBadRecord, key, v, v)
	}
	return s, nil
}

// intField extracts a required integer field.
func intField(rec map[string]any, key string) (int64, error) {
	v, ok := rec[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing field %q", ErrBadRecord, key)
	}
	n, ok := intValue(v)
	if !ok {
		return 0, fmt.Errorf("%w: field %q is %T (%v), want integer", ErrBadRecord, key, v, v)
	}
	return n, nil
}

// intValue normalizes the integer widths the XML-RPC decoder may produce.
func intValue(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	}
	return 0, false
}
