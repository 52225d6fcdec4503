package hal

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoop(t *testing.T) {
	l := newLoop()
	require.False(t, l.IsLoopPending())
	require.Zero(t, l.Run())

	var order []int
	require.True(t, l.ScheduleJob(func() { order = append(order, 1) }))
	require.True(t, l.ScheduleJob(func() {
		order = append(order, 2)
		l.ScheduleJob(func() { order = append(order, 3) })
	}))
	require.True(t, l.IsLoopPending())

	require.Equal(t, 3, l.Run())
	require.Equal(t, []int{1, 2, 3}, order)
	require.False(t, l.IsLoopPending())
}

func TestLoopScheduleFromGoroutines(t *testing.T) {
	l := newLoop()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.ScheduleJob(func() {})
		}()
	}
	wg.Wait()
	require.Equal(t, 10, l.Run())
}

func TestLoopStop(t *testing.T) {
	l := newLoop()
	ran := false
	l.ScheduleJob(func() { ran = true })
	l.Stop()

	require.False(t, l.ScheduleJob(func() {}))
	require.Zero(t, l.Run())
	require.False(t, ran)
}
