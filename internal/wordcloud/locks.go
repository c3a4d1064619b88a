package wordcloud

import "sync"

// lockRegistry hands out one mutex per render key.
//
// The registry mutex guards only table mutation; it is never held across a
// render. Entries are never evicted: key cardinality is bounded by the
// distinct (identity, timestamp) pairs actually requested, which is small
// in practice.
type lockRegistry struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockRegistry() *lockRegistry {
	return &lockRegistry{locks: map[string]*sync.Mutex{}}
}

func (r *lockRegistry) get(key string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lk, ok := r.locks[key]
	if !ok {
		lk = &sync.Mutex{}
		r.locks[key] = lk
	}
	return lk
}

func (r *lockRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}
