package queue

import "sync"

// Stats is a snapshot of warm-up job counters.
type Stats struct {
	Submitted int `json:"submitted"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
}

// ProgressTracker counts jobs as they move through the warmer.
type ProgressTracker struct {
	mu        sync.RWMutex
	submitted int
	completed int
	failed    int
}

func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{}
}

func (t *ProgressTracker) IncrementSubmitted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.submitted++
}

func (t *ProgressTracker) IncrementCompleted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed++
}

func (t *ProgressTracker) IncrementFailed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failed++
}

func (t *ProgressTracker) Snapshot() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Stats{Submitted: t.submitted, Completed: t.completed, Failed: t.failed}
}

// Percentage of submitted jobs that have finished, successfully or not.
func (t *ProgressTracker) Percentage() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.submitted == 0 {
		return 0
	}
	return float64(t.completed+t.failed) / float64(t.submitted) * 100
}
