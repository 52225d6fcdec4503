package hal

import (
	"errors"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// ErrGroupClosed is returned when creating a context in a closed group.
var ErrGroupClosed = errors.New("hal: context group is closed")

// ContextGroup owns a set of contexts. Values never cross contexts; the group
// is the unit that tears them down together and the source of their default
// options.
type ContextGroup struct {
	mu       sync.Mutex
	opts     options
	logger   *zap.Logger
	contexts map[*Context]struct{}
	closed   bool
}

// NewContextGroup creates a context group. Its options are inherited by every
// context created in it.
func NewContextGroup(opts ...Option) *ContextGroup {
	o := options{}.apply(opts).resolve()
	return &ContextGroup{
		opts:     o,
		logger:   o.logger,
		contexts: make(map[*Context]struct{}),
	}
}

// CreateContext creates a context in the group. opts override the group's
// options for this context only.
func (g *ContextGroup) CreateContext(opts ...Option) (*Context, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil, ErrGroupClosed
	}
	o := g.opts.apply(opts).resolve()
	g.mu.Unlock()

	ctx := newContext(g, o)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		ctx.group = nil
		_ = ctx.Close()
		return nil, ErrGroupClosed
	}
	g.contexts[ctx] = struct{}{}
	return ctx, nil
}

// Len returns the number of open contexts.
func (g *ContextGroup) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.contexts)
}

func (g *ContextGroup) remove(ctx *Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.contexts, ctx)
}

// Close closes every context of the group. The group cannot be used
// afterwards.
func (g *ContextGroup) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	contexts := make([]*Context, 0, len(g.contexts))
	for ctx := range g.contexts {
		contexts = append(contexts, ctx)
	}
	g.mu.Unlock()

	var result *multierror.Error
	for _, ctx := range contexts {
		if err := ctx.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	g.logger.Debug("closed context group", zap.Int("contexts", len(contexts)))
	return result.ErrorOrNil()
}
