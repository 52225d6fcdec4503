package hal

import "sync"

type retainKey struct {
	ctx *Context
	id  any
}

// retainTable counts facade references per engine handle. A handle is
// protected in its engine exactly while its count is above zero.
type retainTable struct {
	mu     sync.Mutex
	counts map[retainKey]int
}

func newRetainTable() *retainTable {
	return &retainTable{counts: make(map[retainKey]int)}
}

// retains is shared by every context in the process.
var retains = newRetainTable()

// Protect increments the count for h, protecting it in the engine on the
// first reference.
func (t *retainTable) Protect(ctx *Context, h Handle) {
	if ctx == nil || h == nil || ctx.closed.Load() {
		return
	}
	key := retainKey{ctx: ctx, id: ctx.engine.Identity(h)}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[key]++
	if t.counts[key] == 1 {
		ctx.engine.Protect(h)
	}
}

// Unprotect decrements the count for h and releases it in the engine when no
// reference is left. Unknown handles are ignored.
func (t *retainTable) Unprotect(ctx *Context, h Handle) {
	if ctx == nil || h == nil || ctx.closed.Load() {
		return
	}
	key := retainKey{ctx: ctx, id: ctx.engine.Identity(h)}

	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.counts[key]
	if !ok {
		return
	}
	if n > 1 {
		t.counts[key] = n - 1
		return
	}
	delete(t.counts, key)
	ctx.engine.Unprotect(h)
}

// Count returns the number of live references to h.
func (t *retainTable) Count(ctx *Context, h Handle) int {
	if ctx == nil || h == nil || ctx.closed.Load() {
		return 0
	}
	key := retainKey{ctx: ctx, id: ctx.engine.Identity(h)}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[key]
}

// Len returns the number of distinct handles referenced by ctx.
func (t *retainTable) Len(ctx *Context) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for key := range t.counts {
		if key.ctx == ctx {
			n++
		}
	}
	return n
}

// dropContext forgets every entry of ctx. The engine is going away, so
// nothing is unprotected.
func (t *retainTable) dropContext(ctx *Context) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for key := range t.counts {
		if key.ctx == ctx {
			delete(t.counts, key)
			n++
		}
	}
	return n
}
