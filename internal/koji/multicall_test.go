package koji

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"
)

// fakeCaller answers multiCall invocations from a scripted reply function and
// records every batch it sees.
type fakeCaller struct {
	t       *testing.T
	batches [][]map[string]any
	// reply produces the result envelope for one call spec. Defaults to a
	// success envelope echoing the method name.
	reply func(batch, index int, spec map[string]any) any
}

func (f *fakeCaller) Call(method string, args []any, reply any) error {
	if method != MethodMultiCall {
		f.t.Fatalf("unexpected method %q", method)
	}
	specs, ok := args[0].([]map[string]any)
	if !ok {
		f.t.Fatalf("multiCall args[0] is %T, want []map[string]any", args[0])
	}
	f.batches = append(f.batches, specs)

	out := make([]any, len(specs))
	for i, spec := range specs {
		if f.reply != nil {
			out[i] = f.reply(len(f.batches)-1, i, spec)
		} else {
			out[i] = []any{fmt.Sprintf("result-%s", spec["methodName"])}
		}
	}
	*(reply.(*[]any)) = out
	return nil
}

func nCalls(n int) []Call {
	calls := make([]Call, n)
	for i := range calls {
		calls[i] = Call{
			Key:    CallKey{Entity: fmt.Sprintf("tag-%d", i), Query: QueryDetail},
			Method: fmt.Sprintf("method-%d", i),
		}
	}
	return calls
}

func TestAggregator_SplitsIntoBoundedBatches(t *testing.T) {
	fake := &fakeCaller{t: t}
	agg := NewAggregator(fake, 100, zap.NewNop())

	rs, err := agg.Run(context.Background(), nCalls(250))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(fake.batches) != 3 {
		t.Fatalf("issued %d batches, want 3", len(fake.batches))
	}
	for i, want := range []int{100, 100, 50} {
		if len(fake.batches[i]) != want {
			t.Errorf("batch %d has %d calls, want %d", i, len(fake.batches[i]), want)
		}
	}

	if rs.Len() != 250 {
		t.Fatalf("got %d results, want 250", rs.Len())
	}
	for i := 0; i < 250; i++ {
		want := fmt.Sprintf("result-method-%d", i)
		if rs.At(i) != want {
			t.Fatalf("result %d = %v, want %v", i, rs.At(i), want)
		}
	}
}

func TestAggregator_KeyedResults(t *testing.T) {
	fake := &fakeCaller{t: t}
	agg := NewAggregator(fake, 10, zap.NewNop())

	rs, err := agg.Run(context.Background(), nCalls(25))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got, ok := rs.Get(CallKey{Entity: "tag-17", Query: QueryDetail})
	if !ok {
		t.Fatal("missing keyed result for tag-17")
	}
	if got != "result-method-17" {
		t.Errorf("keyed result = %v, want result-method-17", got)
	}

	if _, ok := rs.Get(CallKey{Entity: "tag-17", Query: QueryPackages}); ok {
		t.Error("lookup with wrong query kind should miss")
	}
}

func TestAggregator_FaultAbortsRemainingBatches(t *testing.T) {
	fake := &fakeCaller{t: t}
	fake.reply = func(batch, index int, spec map[string]any) any {
		if batch == 1 && index == 3 {
			return map[string]any{
				"faultCode":   int64(1000),
				"faultString": "GenericError: no such tag",
			}
		}
		return []any{"ok"}
	}
	agg := NewAggregator(fake, 100, zap.NewNop())

	rs, err := agg.Run(context.Background(), nCalls(250))
	if err == nil {
		t.Fatal("expected error from fault in batch 2")
	}
	if rs != nil {
		t.Fatal("no partial results may be returned after a fault")
	}
	if !strings.Contains(err.Error(), "no such tag") {
		t.Errorf("error should carry the hub fault string, got: %v", err)
	}
	if len(fake.batches) != 2 {
		t.Errorf("issued %d batches, want 2 (batch 3 must never be issued)", len(fake.batches))
	}
}

func TestAggregator_EmptyCallList(t *testing.T) {
	fake := &fakeCaller{t: t}
	agg := NewAggregator(fake, 100, zap.NewNop())

	rs, err := agg.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rs.Len() != 0 {
		t.Errorf("got %d results, want 0", rs.Len())
	}
	if len(fake.batches) != 0 {
		t.Errorf("no round trips expected for an empty call list, got %d", len(fake.batches))
	}
}

func TestAggregator_CancelledContext(t *testing.T) {
	fake := &fakeCaller{t: t}
	agg := NewAggregator(fake, 100, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := agg.Run(ctx, nCalls(10)); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if len(fake.batches) != 0 {
		t.Errorf("no round trips expected after cancellation, got %d", len(fake.batches))
	}
}

func TestUnwrapReply_MalformedEnvelope(t *testing.T) {
	if _, err := unwrapReply([]any{"a", "b"}); err == nil {
		t.Error("two-element envelope should be rejected")
	}
	if _, err := unwrapReply("bare"); err == nil {
		t.Error("non-array envelope should be rejected")
	}
	v, err := unwrapReply([]any{"value"})
	if err != nil || v != "value" {
		t.Errorf("unwrapReply = (%v, %v), want (value, nil)", v, err)
	}
}
