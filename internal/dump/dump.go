package dump

import (
	"context"
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/CentOS/ansible-role-kojibot/internal/koji"
)

// Hub is the slice of the hub client the pipeline consumes.
// *koji.Client implements it.
type Hub interface {
	CheckCapabilities() error
	ListTags() ([]koji.Record, error)
	SearchTags(pattern string) ([]koji.Record, error)
	ListBuildTargets() ([]koji.Record, error)
	PermissionResolver
}

// BatchRunner executes a keyed call list in bounded batches.
// *koji.Aggregator implements it.
type BatchRunner interface {
	Run(ctx context.Context, calls []koji.Call) (*koji.ResultSet, error)
}

// Dumper drives one extraction run. Stages execute strictly in order:
// search/list, batch aggregation, correlation, transform, synthesis. A run
// either completes or aborts fatally on the first error; nothing is retried
// and no partial document is emitted.
type Dumper struct {
	hub    Hub
	batch  BatchRunner
	logger *zap.Logger
}

// New returns a Dumper over the given hub and batch runner.
func New(hub Hub, batch BatchRunner, logger *zap.Logger) *Dumper {
	return &Dumper{
		hub:    hub,
		batch:  batch,
		logger: logger,
	}
}

// Run extracts the hub's tag and target configuration and returns the
// ordered task list. With a pattern, the tag set is the server's regexp
// matches in match order; otherwise all tags in name order. Targets are
// always dumped in full, after the tags.
func (d *Dumper) Run(ctx context.Context, pattern string) ([]Task, error) {
	if err := d.hub.CheckCapabilities(); err != nil {
		return nil, err
	}

	tags, err := d.resolveTags(ctx, pattern)
	if err != nil {
		return nil, err
	}
	d.logger.Info("querying tags", zap.Int("count", len(tags)))

	tasks, err := d.tagTasks(ctx, tags)
	if err != nil {
		return nil, err
	}

	targets, err := d.hub.ListBuildTargets()
	if err != nil {
		return nil, err
	}
	d.logger.Info("querying targets", zap.Int("count", len(targets)))

	for _, rec := range targets {
		task, err := targetTask(rec)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// resolveTags produces the working tag set with full records, either by
// full listing or by pattern search plus a batched detail round.
func (d *Dumper) resolveTags(ctx context.Context, pattern string) ([]koji.Record, error) {
	if pattern == "" {
		return d.hub.ListTags()
	}

	matches, err := d.hub.SearchTags(pattern)
	if err != nil {
		return nil, err
	}

	// Matches carry names only; fetch the full record per match in one
	// batched round, in match order.
	calls := make([]koji.Call, 0, len(matches))
	for _, m := range matches {
		name, err := stringField(m, "name")
		if err != nil {
			return nil, fmt.Errorf("search match: %w", err)
		}
		calls = append(calls, koji.Call{
			Key:    koji.CallKey{Entity: name, Query: koji.QueryDetail},
			Method: koji.MethodGetTag,
			Args:   []any{name},
		})
	}

	results, err := d.batch.Run(ctx, calls)
	if err != nil {
		return nil, err
	}
	if results.Len() != len(matches) {
		return nil, fmt.Errorf("%w: %d detail results for %d matches", ErrResultMismatch, results.Len(), len(matches))
	}

	tags := make([]koji.Record, 0, len(matches))
	for i, call := range calls {
		rec, ok := results.At(i).(map[string]any)
		if !ok || rec == nil {
			return nil, fmt.Errorf("%w: no detail record for tag %s", ErrBadRecord, call.Key.Entity)
		}
		tags = append(tags, rec)
	}
	return tags, nil
}

// tagTasks runs the batched sub-queries for all tags and synthesizes their
// tasks in tag order.
func (d *Dumper) tagTasks(ctx context.Context, tags []koji.Record) ([]Task, error) {
	calls, err := tagCalls(tags)
	if err != nil {
		return nil, err
	}

	results, err := d.batch.Run(ctx, calls)
	if err != nil {
		return nil, err
	}

	bundles, err := correlate(tags, results)
	if err != nil {
		return nil, err
	}
	if len(bundles) > 0 && d.logger.Core().Enabled(zapcore.DebugLevel) {
		d.logger.Debug("first detail bundle", zap.String("bundle", spew.Sdump(bundles[0])))
	}

	tr := &transformer{perms: d.hub}
	tasks := make([]Task, 0, len(bundles))
	for _, b := range bundles {
		name, err := stringField(b.Tag, "name")
		if err != nil {
			return nil, err
		}
		payload, err := tr.payload(b)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, tagTask(name, payload))
	}
	return tasks, nil
}
