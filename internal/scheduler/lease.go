package scheduler

import "sync"

// Lease serializes cycle executions per cycle type. A scheduled tick or a
// manual trigger that arrives while the same cycle is still running is
// skipped, never queued.
type Lease struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLease creates an empty lease table.
func NewLease() *Lease {
	return &Lease{held: make(map[string]bool)}
}

// TryAcquire takes the lease for a cycle type. Returns false when the
// cycle is already running.
func (l *Lease) TryAcquire(cycle string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[cycle] {
		return false
	}
	l.held[cycle] = true
	return true
}

// Release frees the lease for a cycle type.
func (l *Lease) Release(cycle string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, cycle)
}
