package hal

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContextGroup(t *testing.T) {
	group := NewContextGroup()

	first, err := group.CreateContext()
	require.NoError(t, err)
	second, err := group.CreateContext()
	require.NoError(t, err)
	require.Equal(t, 2, group.Len())
	require.Same(t, group, first.Group())

	// contexts do not share globals
	eval(t, first, "var shared = 'first'")
	require.Equal(t, "undefined", evalString(t, second, "typeof shared"))

	require.NoError(t, first.Close())
	require.Equal(t, 1, group.Len())

	require.NoError(t, group.Close())
	require.Zero(t, group.Len())
	_, err = second.EvaluateScript("1")
	require.ErrorIs(t, err, ErrContextClosed)

	_, err = group.CreateContext()
	require.ErrorIs(t, err, ErrGroupClosed)
	require.NoError(t, group.Close())
}

func TestContextGroupConcurrentCreate(t *testing.T) {
	group := NewContextGroup()
	defer group.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, err := group.CreateContext()
			if err == nil {
				v, _ := ctx.EvaluateScript("1 + 1")
				v.Free()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 8, group.Len())
}

func TestContextGroupCloseFinalizesObjects(t *testing.T) {
	group := NewContextGroup()
	contexts := make([]*Context, 3)
	for i := range contexts {
		ctx, err := group.CreateContext()
		require.NoError(t, err)
		exposeClass(t, ctx, "Widget", ClassOf[*Widget]())
		contexts[i] = ctx
	}

	finalized := widgetsFinalized.Load()
	require.NoError(t, group.Close())
	require.Equal(t, finalized+3, widgetsFinalized.Load())
}
