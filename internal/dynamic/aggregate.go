package dynamic

import "sync"

// Aggregate is the shared feature map every stage's parse step writes
// into. One coarse lock guards the whole map: write volume is a
// handful of keys per run, so correctness wins over throughput. The
// lock is held per key write, never across a stage's whole parse pass.
type Aggregate struct {
	mu    sync.Mutex
	feats map[string]int64
}

// NewAggregate returns an empty aggregate.
func NewAggregate() *Aggregate {
	return &Aggregate{feats: make(map[string]int64)}
}

// Set records one feature value under the lock.
func (a *Aggregate) Set(key string, value int64) {
	a.mu.Lock()
	a.feats[key] = value
	a.mu.Unlock()
}

// Snapshot returns a copy of the feature map. The orchestrator calls
// it only after every stage has finished, so no writer is inside the
// critical section concurrently with a full read.
func (a *Aggregate) Snapshot() map[string]int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]int64, len(a.feats))
	for k, v := range a.feats {
		out[k] = v
	}
	return out
}

// Len returns the number of recorded features.
func (a *Aggregate) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.feats)
}
