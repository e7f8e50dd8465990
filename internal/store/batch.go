package store

// Batch implements the multi-key locking protocol required by spec.md
// §4.1 for WRITE/READ/DELETE: lock the distinct buckets touched by a key
// set in a single total order (ascending bucket index), all in the same
// mode, holding the mode gate in shared mode for the whole call, and
// release bucket locks in reverse order on Unlock. Locking buckets in a
// fixed global order is what makes two overlapping-key batches from
// different goroutines deadlock-free.
type Batch struct {
	store    *Store
	order    []int
	buckets  []*bucket
	write    bool
	released bool
}

// LockBatch computes the distinct buckets touched by keys, locks them in
// ascending order (all in read mode if write is false, all in write mode
// otherwise), and holds the store's mode gate in shared mode for the
// duration. The caller must call Unlock exactly once.
func (s *Store) LockBatch(keys [][]byte, write bool) *Batch {
	s.gate.RLock()

	order := s.sortedDistinctBuckets(keys)
	locked := make([]*bucket, len(order))
	for i, bi := range order {
		b := s.buckets[bi]
		if write {
			b.mu.Lock()
		} else {
			b.mu.RLock()
		}
		locked[i] = b
	}

	return &Batch{store: s, order: order, buckets: locked, write: write}
}

// Unlock releases the bucket locks in reverse acquisition order and then
// the mode gate. Safe to call at most once; a second call is a no-op.
func (b *Batch) Unlock() {
	if b.released {
		return
	}
	b.released = true
	for i := len(b.buckets) - 1; i >= 0; i-- {
		if b.write {
			b.buckets[i].mu.Unlock()
		} else {
			b.buckets[i].mu.RUnlock()
		}
	}
	b.store.gate.RUnlock()
}

// bucketFor returns the already-locked bucket owning key. Panics if key
// maps to a bucket not covered by this batch (a caller bug: the batch
// must be constructed from the exact key set it will operate on).
func (b *Batch) bucketFor(key []byte) *bucket {
	bi := b.store.bucketIndex(key)
	for i, idx := range b.order {
		if idx == bi {
			return b.buckets[i]
		}
	}
	panic("store: key's bucket was not locked by this batch")
}

// Put writes key->value using a bucket this batch already holds locked,
// enforcing the same MAX_KEY/MAX_VAL limits as Store.Put (spec.md §3) —
// WRITE's multi-key path must reject oversized entries rather than let
// them reach the Notifier's fixed-width framing, which would otherwise
// silently truncate them.
func (b *Batch) Put(key, value []byte) error {
	if len(key) > b.store.maxKey || len(value) > b.store.maxVal {
		return ErrTooLarge
	}
	b.store.putLocked(b.bucketFor(key), key, value)
	return nil
}

// Get reads key using a bucket this batch already holds locked.
func (b *Batch) Get(key []byte) ([]byte, bool) { return b.store.getLocked(b.bucketFor(key), key) }

// Remove deletes key using a bucket this batch already holds locked,
// returning its former subscriber set.
func (b *Batch) Remove(key []byte) ([]SinkID, bool) {
	return b.store.removeLocked(b.bucketFor(key), key)
}

// Subscribers returns a copy of key's current subscriber set without
// mutating it, used by WRITE to fan out notifications while the bucket
// is still locked (spec.md §4.3).
func (b *Batch) Subscribers(key []byte) []SinkID {
	bu := b.bucketFor(key)
	e, ok := bu.entries[string(key)]
	if !ok {
		return nil
	}
	subs := make([]SinkID, 0, len(e.subs))
	for s := range e.subs {
		subs = append(subs, s)
	}
	return subs
}
