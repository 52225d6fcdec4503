package hal

import "sync"

type job func()

// loop queues jobs from any goroutine and runs them on the goroutine that
// owns the context. The engine uses it to move finalization off the
// runtime's cleanup goroutine.
type loop struct {
	mu      sync.Mutex
	jobs    []job
	stopped bool
}

func newLoop() *loop {
	return &loop{}
}

// ScheduleJob adds a job to the loop. It reports false once the loop has been
// stopped.
func (l *loop) ScheduleJob(j job) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return false
	}
	l.jobs = append(l.jobs, j)
	return true
}

// IsLoopPending reports whether jobs are waiting to run.
func (l *loop) IsLoopPending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.jobs) > 0
}

// Run executes pending jobs, including jobs scheduled while running, and
// returns how many ran.
func (l *loop) Run() int {
	n := 0
	for {
		l.mu.Lock()
		jobs := l.jobs
		l.jobs = nil
		l.mu.Unlock()

		if len(jobs) == 0 {
			return n
		}
		for _, j := range jobs {
			j()
			n++
		}
	}
}

// Stop drops pending jobs and rejects new ones.
func (l *loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
	l.jobs = nil
}
