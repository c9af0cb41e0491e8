package jobs

import "sync/atomic"

// Guard prevents overlapping runs of the same job. A run that cannot acquire
// the guard is skipped entirely rather than queued.
type Guard struct {
	busy atomic.Bool
}

// TryAcquire reports whether the caller may run. On true, the caller must
// call Release when the run finishes.
func (g *Guard) TryAcquire() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Release marks the job as idle again.
func (g *Guard) Release() {
	g.busy.Store(false)
}
