package router

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nobletooth/tempo/pkg/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingOp is an operation that records how often it was invoked and echoes its inputs.
type countingOp struct {
	calls atomic.Int64
}

func (o *countingOp) op(_ context.Context, path string, args ...string) ([]byte, error) {
	o.calls.Add(1)
	result := path
	for _, arg := range args {
		result += "|" + arg
	}
	return []byte(result), nil
}

func newTestRouter(t *testing.T, rules policy.Rules, ops map[string]Operation, opts ...Option) *Router {
	t.Helper()
	resolver, err := policy.NewResolver(rules)
	require.NoError(t, err)
	return New(resolver, ops, opts...)
}

func TestRouter_UnknownOperation(t *testing.T) {
	router := newTestRouter(t, policy.Rules{}, map[string]Operation{})
	_, err := router.Dispatch(context.Background(), "nope", "/a")
	assert.ErrorIs(t, err, ErrUnknownOperation)
}

func TestRouter_UnmatchedKeysBypassCaching(t *testing.T) {
	ctx := context.Background()
	op := &countingOp{}
	rules := policy.Rules{Paths: map[string]policy.Params{"/cached": {Span: policy.Span{Hours: 1}}}}
	router := newTestRouter(t, rules, map[string]Operation{"cat": op.op})

	for i := 0; i < 3; i++ {
		got, err := router.Dispatch(ctx, "cat", "/uncached")
		require.NoError(t, err)
		assert.Equal(t, []byte("/uncached"), got)
	}
	assert.EqualValues(t, 3, op.calls.Load(), "Unmatched keys must reach the operation every time")
	assert.Empty(t, router.gates, "No gate is ever built for an unmatched key")
}

func TestRouter_MatchedKeysAreMemoized(t *testing.T) {
	ctx := context.Background()
	op := &countingOp{}
	rules := policy.Rules{Default: &policy.Params{Span: policy.Span{Hours: 1}}}
	router := newTestRouter(t, rules, map[string]Operation{"cat": op.op})

	for i := 0; i < 3; i++ {
		got, err := router.Dispatch(ctx, "cat", "/a")
		require.NoError(t, err)
		assert.Equal(t, []byte("/a"), got)
	}
	assert.EqualValues(t, 1, op.calls.Load(), "Repeated calls on a cached key must hit the store")
}

func TestRouter_ExtraArgsExtendTheMemoKey(t *testing.T) {
	ctx := context.Background()
	op := &countingOp{}
	rules := policy.Rules{Default: &policy.Params{Span: policy.Span{Hours: 1}}}
	router := newTestRouter(t, rules, map[string]Operation{"read": op.op})

	first, err := router.Dispatch(ctx, "read", "/a", "offset=0")
	require.NoError(t, err)
	second, err := router.Dispatch(ctx, "read", "/a", "offset=8")
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "Different arguments must produce distinct entries")
	assert.EqualValues(t, 2, op.calls.Load())

	// The operation sees the decoded arguments, not the joined memo key.
	assert.Equal(t, []byte("/a|offset=0"), first)

	_, err = router.Dispatch(ctx, "read", "/a", "offset=0")
	require.NoError(t, err)
	assert.EqualValues(t, 2, op.calls.Load(), "A repeated (path, args) pair must hit the store")
}

func TestRouter_SamePolicySharesOneGate(t *testing.T) {
	ctx := context.Background()
	op := &countingOp{}
	rules := policy.Rules{Globs: []policy.GlobRule{
		{Pattern: "*.txt", Params: policy.Params{Span: policy.Span{Hours: 1}}},
	}}
	router := newTestRouter(t, rules, map[string]Operation{"cat": op.op})

	_, err := router.Dispatch(ctx, "cat", "/a.txt")
	require.NoError(t, err)
	_, err = router.Dispatch(ctx, "cat", "/b.txt")
	require.NoError(t, err)
	assert.Len(t, router.gates, 1, "Keys resolving to the same params must share a gate")

	// Invalidating one key clears its shared gate, so the sibling key reloads too.
	router.Invalidate("/a.txt")
	_, err = router.Dispatch(ctx, "cat", "/b.txt")
	require.NoError(t, err)
	assert.EqualValues(t, 3, op.calls.Load(), "Clearing a shared gate drops sibling keys as well")
}

func TestRouter_DistinctPoliciesAreIsolated(t *testing.T) {
	ctx := context.Background()
	op := &countingOp{}
	rules := policy.Rules{Paths: map[string]policy.Params{
		"/fast": {Span: policy.Span{Seconds: 1}},
		"/slow": {Span: policy.Span{Hours: 1}},
	}}
	router := newTestRouter(t, rules, map[string]Operation{"cat": op.op})

	_, err := router.Dispatch(ctx, "cat", "/fast")
	require.NoError(t, err)
	_, err = router.Dispatch(ctx, "cat", "/slow")
	require.NoError(t, err)
	assert.Len(t, router.gates, 2, "Distinct params must get distinct gates")

	router.Invalidate("/fast")
	_, err = router.Dispatch(ctx, "cat", "/slow")
	require.NoError(t, err)
	assert.EqualValues(t, 2, op.calls.Load(), "Invalidating one policy must not touch another")
}

func TestRouter_OperationsAreIsolated(t *testing.T) {
	ctx := context.Background()
	catOp, statOp := &countingOp{}, &countingOp{}
	rules := policy.Rules{Default: &policy.Params{Span: policy.Span{Hours: 1}}}
	router := newTestRouter(t, rules, map[string]Operation{"cat": catOp.op, "stat": statOp.op})

	_, err := router.Dispatch(ctx, "cat", "/a")
	require.NoError(t, err)
	_, err = router.Dispatch(ctx, "stat", "/a")
	require.NoError(t, err)
	assert.Len(t, router.gates, 2, "Each operation gets its own gate even under one policy")
	assert.EqualValues(t, 1, catOp.calls.Load())
	assert.EqualValues(t, 1, statOp.calls.Load())
}

func TestRouter_InvalidateAll(t *testing.T) {
	ctx := context.Background()
	op := &countingOp{}
	rules := policy.Rules{Paths: map[string]policy.Params{
		"/a": {Span: policy.Span{Seconds: 1}},
		"/b": {Span: policy.Span{Hours: 1}},
	}}
	router := newTestRouter(t, rules, map[string]Operation{"cat": op.op})

	for _, path := range []string{"/a", "/b"} {
		_, err := router.Dispatch(ctx, "cat", path)
		require.NoError(t, err)
	}
	router.InvalidateAll()
	for _, path := range []string{"/a", "/b"} {
		_, err := router.Dispatch(ctx, "cat", path)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 4, op.calls.Load(), "InvalidateAll must clear every gate")
}

func TestRouter_InvalidateUnmatchedKeyIsNoop(t *testing.T) {
	ctx := context.Background()
	op := &countingOp{}
	rules := policy.Rules{Paths: map[string]policy.Params{"/cached": {Span: policy.Span{Hours: 1}}}}
	router := newTestRouter(t, rules, map[string]Operation{"cat": op.op})

	_, err := router.Dispatch(ctx, "cat", "/cached")
	require.NoError(t, err)
	router.Invalidate("/uncached")
	_, err = router.Dispatch(ctx, "cat", "/cached")
	require.NoError(t, err)
	assert.EqualValues(t, 1, op.calls.Load(), "Invalidating an unmatched key must not clear anything")
}

func TestRouter_ConcurrentFirstDispatchBuildsOneGate(t *testing.T) {
	ctx := context.Background()
	op := &countingOp{}
	rules := policy.Rules{Default: &policy.Params{Span: policy.Span{Hours: 1}}}
	router := newTestRouter(t, rules, map[string]Operation{"cat": op.op})

	var wg sync.WaitGroup
	for worker := 0; worker < 16; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			_, err := router.Dispatch(ctx, "cat", fmt.Sprintf("/file-%d", worker%4))
			assert.NoError(t, err)
		}(worker)
	}
	wg.Wait()
	assert.Len(t, router.gates, 1, "Concurrent first dispatches must construct exactly one gate")
}
