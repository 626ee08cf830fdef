package koji

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// QueryKind identifies which sub-query a batched call answers for its entity.
type QueryKind string

const (
	QueryDetail        QueryKind = "detail"
	QueryInheritance   QueryKind = "inheritance"
	QueryPackages      QueryKind = "packages"
	QueryExternalRepos QueryKind = "external-repos"
)

// CallKey names the originating entity and sub-query of a batched call.
// Keys must be unique within one aggregator run.
type CallKey struct {
	Entity string
	Query  QueryKind
}

// Call is one hub call queued for batched execution.
type Call struct {
	Key    CallKey
	Method string
	Args   []any
}

// KeyedResult pairs a call key with its result value.
type KeyedResult struct {
	Key   CallKey
	Value any
}

// ResultSet holds the results of an aggregator run, both in submission order
// and keyed by the originating call. One result per call, always.
type ResultSet struct {
	ordered []any
	byKey   map[CallKey]any
}

// NewResultSet assembles a result set from key/value pairs in submission
// order. The aggregator builds these itself; the constructor exists so
// pipeline tests can script batch results.
func NewResultSet(results []KeyedResult) *ResultSet {
	rs := &ResultSet{
		ordered: make([]any, 0, len(results)),
		byKey:   make(map[CallKey]any, len(results)),
	}
	for _, r := range results {
		rs.ordered = append(rs.ordered, r.Value)
		rs.byKey[r.Key] = r.Value
	}
	return rs
}

// Len returns the number of results (equal to the number of submitted calls).
func (r *ResultSet) Len() int { return len(r.ordered) }

// At returns the result at submission position i.
func (r *ResultSet) At(i int) any { return r.ordered[i] }

// Get returns the result for the given call key.
func (r *ResultSet) Get(key CallKey) (any, bool) {
	v, ok := r.byKey[key]
	return v, ok
}

// Aggregator executes a sequence of independent hub calls in bounded batches
// over the hub's multiCall primitive. Thousands of individual round trips do
// not finish in practical time; batching amortizes the round-trip cost.
// Batches run sequentially and strictly: the first failed sub-call aborts the
// whole run with no partial results. Batch size is a manual tunable — too
// large risks a server-side timeout, and there is deliberately no adaptive
// shrink-and-retry.
type Aggregator struct {
	caller    Caller
	batchSize int
	logger    *zap.Logger
}

// NewAggregator wraps caller with batching at the given batch size.
func NewAggregator(caller Caller, batchSize int, logger *zap.Logger) *Aggregator {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Aggregator{
		caller:    caller,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Run executes calls in submission order and returns one result per call.
// Any transport error or sub-call fault is fatal for the entire run.
func (a *Aggregator) Run(ctx context.Context, calls []Call) (*ResultSet, error) {
	rs := &ResultSet{
		ordered: make([]any, 0, len(calls)),
		byKey:   make(map[CallKey]any, len(calls)),
	}

	for start := 0; start < len(calls); start += a.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("batch run aborted: %w", err)
		}

		end := start + a.batchSize
		if end > len(calls) {
			end = len(calls)
		}
		batch := calls[start:end]

		a.logger.Debug("issuing batch",
			zap.Int("calls", len(batch)),
			zap.Int("offset", start))

		specs := make([]map[string]any, len(batch))
		for i, call := range batch {
			specs[i] = map[string]any{
				"methodName": call.Method,
				"params":     callParams(call.Args),
			}
		}

		var replies []any
		if err := a.caller.Call(MethodMultiCall, []any{specs}, &replies); err != nil {
			return nil, err
		}
		if len(replies) != len(batch) {
			return nil, fmt.Errorf("multiCall returned %d results for %d calls", len(replies), len(batch))
		}

		for i, reply := range replies {
			value, err := unwrapReply(reply)
			if err != nil {
				return nil, fmt.Errorf("batched call %s (%s/%s) failed: %w",
					batch[i].Method, batch[i].Key.Entity, batch[i].Key.Query, err)
			}
			rs.ordered = append(rs.ordered, value)
			rs.byKey[batch[i].Key] = value
		}
	}

	return rs, nil
}

// callParams normalizes nil argument lists: multiCall specs always carry a
// params array, even an empty one.
func callParams(args []any) []any {
	if args == nil {
		return []any{}
	}
	return args
}

// unwrapReply unpacks one multiCall result element: a one-element array on
// success, a fault struct on failure.
func unwrapReply(reply any) (any, error) {
	switch v := reply.(type) {
	case []any:
		if len(v) != 1 {
			return nil, fmt.Errorf("malformed result envelope (length %d)", len(v))
		}
		return v[0], nil
	case map[string]any:
		code := v["faultCode"]
		msg, _ := v["faultString"].(string)
		return nil, fmt.Errorf("hub fault %v: %s", code, msg)
	default:
		return nil, fmt.Errorf("malformed result envelope (%T)", reply)
	}
}
