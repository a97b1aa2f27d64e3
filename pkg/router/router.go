// This module implements the cache router: the orchestrator between named operations over keyed
// resources and the temporal gates memoizing them. For each distinct (operation, resolved params)
// pair the router lazily constructs exactly one gate, so callers sharing a policy share a cache
// instance while callers under different policies stay isolated. Keys whose policy resolves to
// nothing bypass the router entirely; no gate is ever built for them.

package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nobletooth/tempo/pkg/cache"
	"github.com/nobletooth/tempo/pkg/policy"
)

// Operation is one named call over a keyed resource, e.g. a filesystem read. Extra arguments beyond
// the key become part of the memo key. Results are opaque bytes; structured results are encoded by
// the operation itself.
type Operation func(ctx context.Context, path string, args ...string) ([]byte, error)

// argSeparator joins the path and extra arguments into one memo key. The unit separator control
// byte never appears in paths or sane arguments.
const argSeparator = "\x1f"

// ErrUnknownOperation is returned by Dispatch for operation names the router wasn't built with.
var ErrUnknownOperation = errors.New("router: unknown operation")

// gateID identifies one gate in the registry: the operation name plus the params fingerprint.
type gateID struct {
	op     string
	params uint64
}

// Router dispatches operation calls through per-policy temporal gates.
type Router struct {
	resolver *policy.Resolver
	ops      map[string]Operation
	sw       *cache.Switch
	now      func() time.Time

	mux   sync.Mutex // Guards gate construction; reads of existing gates go through it too.
	gates map[gateID]*cache.Gate[string, []byte]
}

// Option configures a Router.
type Option func(*Router)

// WithSwitch injects the disable switch the router's gates read. Defaults to the process-wide one.
func WithSwitch(sw *cache.Switch) Option {
	return func(r *Router) { r.sw = sw }
}

// WithClock injects the clock the router's gates check windows against. Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// New is the constructor for Router. The operation set is fixed at construction.
func New(resolver *policy.Resolver, ops map[string]Operation, opts ...Option) *Router {
	r := &Router{
		resolver: resolver,
		ops:      ops,
		sw:       cache.DefaultSwitch(),
		now:      time.Now,
		gates:    make(map[gateID]*cache.Gate[string, []byte]),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dispatch serves one operation call for a key. The key's policy decides whether the call is
// memoized at all and under which gate; unmatched keys go straight to the operation.
func (r *Router) Dispatch(ctx context.Context, opName, path string, args ...string) ([]byte, error) {
	op, found := r.ops[opName]
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, opName)
	}

	params, cacheable := r.resolver.Resolve(path)
	if !cacheable {
		return op(ctx, path, args...)
	}

	gate := r.gate(opName, op, params)
	return gate.Call(ctx, encodeKey(path, args))
}

// gate returns the gate for the (operation, params) pair, constructing it on first use. Construction
// is double checked under the registry lock so concurrent first calls build exactly one gate.
func (r *Router) gate(opName string, op Operation, params policy.Params) *cache.Gate[string, []byte] {
	id := gateID{op: opName, params: params.Fingerprint()}

	r.mux.Lock()
	defer r.mux.Unlock()
	if gate, found := r.gates[id]; found {
		return gate
	}

	load := func(ctx context.Context, key string) ([]byte, error) {
		path, args := decodeKey(key)
		return op(ctx, path, args...)
	}
	var store cache.MemoStore[string, []byte]
	if params.Persist != "" {
		// One operation per blob: gates sharing a persist location must not clobber each other's
		// snapshots, so the blob path is namespaced by operation name.
		store = cache.NewPersistentMemo(opName, params.Persist+"."+opName, params.EffectiveCapacity(), load)
	} else {
		store = cache.NewMemo(opName, params.EffectiveCapacity(), load)
	}
	gate := cache.NewGate(opName, params.Span.Duration(), store, load, r.sw, r.now)
	r.gates[id] = gate
	return gate
}

// Invalidate clears the gates serving the given key's policy, across every operation. Because gates
// are shared by all keys resolving to the same params, this clears those sibling keys too; that is a
// deliberate simplification, not a per-key guarantee.
func (r *Router) Invalidate(path string) {
	params, cacheable := r.resolver.Resolve(path)
	if !cacheable {
		return
	}
	fingerprint := params.Fingerprint()

	r.mux.Lock()
	defer r.mux.Unlock()
	for id, gate := range r.gates {
		if id.params == fingerprint {
			gate.Clear()
		}
	}
}

// InvalidateAll clears every gate the router has ever constructed.
func (r *Router) InvalidateAll() {
	r.mux.Lock()
	defer r.mux.Unlock()
	for _, gate := range r.gates {
		gate.Clear()
	}
}

// encodeKey folds the path and extra arguments into one memo key.
func encodeKey(path string, args []string) string {
	if len(args) == 0 {
		return path
	}
	return path + argSeparator + strings.Join(args, argSeparator)
}

// decodeKey splits a memo key back into the path and extra arguments.
func decodeKey(key string) (string, []string) {
	parts := strings.Split(key, argSeparator)
	return parts[0], parts[1:]
}
