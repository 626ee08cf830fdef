package koji

import (
	"fmt"
)

// Hub method names consumed by the dump pipeline. Sub-query methods are
// referenced by the pipeline when it builds multiCall batches.
const (
	MethodAPIVersion       = "getAPIVersion"
	MethodListTags         = "listTags"
	MethodSearch           = "search"
	MethodGetTag           = "getTag"
	MethodInheritanceData  = "getInheritanceData"
	MethodListPackages     = "listPackages"
	MethodTagExternalRepos = "getTagExternalRepos"
	MethodBuildTargets     = "getBuildTargets"
	MethodPermissionName   = "getPermissionName"
	MethodMultiCall        = "multiCall"
)

// Record is a raw hub record. The hub returns heterogeneous structs; they are
// decoded as generic maps and shaped downstream by the transform pipeline.
type Record = map[string]any

// CheckCapabilities verifies the hub is recent enough for batched dumping.
// Must be called before any query work; an old hub is a fatal, user-visible
// error, not something to degrade around.
func (c *Client) CheckCapabilities() error {
	var version int
	if err := c.Call(MethodAPIVersion, nil, &version); err != nil {
		return fmt.Errorf("%w (probe failed: %v)", ErrHubTooOld, err)
	}
	if version < minAPIVersion {
		return fmt.Errorf("%w (hub API version %d, need >= %d)", ErrHubTooOld, version, minAPIVersion)
	}
	return nil
}

// ListTags returns all tags known to the hub, ordered by name server-side.
func (c *Client) ListTags() ([]Record, error) {
	var tags []Record
	args := []any{Kwargs(map[string]any{
		"queryOpts": map[string]any{"order": "name"},
	})}
	if err := c.Call(MethodListTags, args, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// SearchTags performs a server-side regexp match against tag names. A plain
// substring like "foo" also matches "foo-bar". Matches carry name (and id)
// only; full records come from a batched getTag round.
func (c *Client) SearchTags(pattern string) ([]Record, error) {
	var matches []Record
	args := []any{pattern, "tag", "regexp"}
	if err := c.Call(MethodSearch, args, &matches); err != nil {
		return nil, err
	}
	return matches, nil
}

// ListBuildTargets returns all build targets, ordered by name server-side.
func (c *Client) ListBuildTargets() ([]Record, error) {
	var targets []Record
	args := []any{Kwargs(map[string]any{
		"queryOpts": map[string]any{"order": "name"},
	})}
	if err := c.Call(MethodBuildTargets, args, &targets); err != nil {
		return nil, err
	}
	return targets, nil
}

// PermissionName resolves a permission id to its name. Issued once per tag
// that carries a permission reference; these are rare enough that the call
// is not folded into the batched round.
func (c *Client) PermissionName(id int64) (string, error) {
	var name string
	if err := c.Call(MethodPermissionName, []any{id}, &name); err != nil {
		return "", err
	}
	return name, nil
}
