package ghost

import "sync"

// InFlight reports which points are currently being continued by a worker.
type InFlight interface {
	Contains(pointID string) bool
	Len() int
}

// Registry tracks the point each ghost worker is running from.
//
// Thread-safety: safe for concurrent use. Workers register and release from
// their own goroutines while the scheduler reads.
type Registry struct {
	mu       sync.RWMutex
	byWorker map[string]string
	refs     map[string]int
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byWorker: make(map[string]string),
		refs:     make(map[string]int),
	}
}

// Assign records that worker is running from pointID, replacing any earlier
// assignment of that worker.
func (r *Registry) Assign(worker, pointID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseLocked(worker)
	r.byWorker[worker] = pointID
	r.refs[pointID]++
}

// Release forgets the assignment of worker. Unknown workers are ignored.
func (r *Registry) Release(worker string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseLocked(worker)
}

func (r *Registry) releaseLocked(worker string) {
	prev, ok := r.byWorker[worker]
	if !ok {
		return
	}
	delete(r.byWorker, worker)
	if r.refs[prev] <= 1 {
		delete(r.refs, prev)
	} else {
		r.refs[prev]--
	}
}

// Contains reports whether any worker is running from pointID.
func (r *Registry) Contains(pointID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.refs[pointID] > 0
}

// Len returns the number of busy workers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byWorker)
}
