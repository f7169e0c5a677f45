package record

import "sync"

// Store is the in-memory record set behind one list screen.
//
// The slice held by a Store is never modified after it is published: every
// change builds a new slice and swaps it in, so a render pass can keep reading
// the reference returned by Snapshot while a reload or an optimistic update
// lands.
//
// Reloads go through Begin/Commit. Each Begin hands out a ticket from a
// monotonic counter and Commit drops a result whose ticket is older than one
// already committed, so a slow reload cannot overwrite a newer one. Stores
// built with WithLastWriteWins skip that check and apply whichever reload
// resolves last.
type Store[T Record] struct {
	mu            sync.RWMutex
	records       []T
	issued        uint64
	committed     uint64
	lastWriteWins bool
}

// Ticket identifies one reload started with Begin.
type Ticket uint64

type StoreOption func(*storeOptions)

type storeOptions struct {
	lastWriteWins bool
}

// WithLastWriteWins disables the reload generation guard.
func WithLastWriteWins() StoreOption {
	return func(o *storeOptions) { o.lastWriteWins = true }
}

func NewStore[T Record](opts ...StoreOption) *Store[T] {
	var o storeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[T]{lastWriteWins: o.lastWriteWins}
}

// Snapshot returns the current records. Callers must not modify the slice.
func (s *Store[T]) Snapshot() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records
}

func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Find returns the record with id from the current snapshot.
func (s *Store[T]) Find(id int64) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.RecordID() == id {
			return r, true
		}
	}
	var zero T
	return zero, false
}

// Replace swaps in records unconditionally. Duplicate ids keep their first
// occurrence.
func (s *Store[T]) Replace(records []T) {
	next := dedupe(records)
	s.mu.Lock()
	s.records = next
	s.mu.Unlock()
}

// Begin starts a reload.
func (s *Store[T]) Begin() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return Ticket(s.issued)
}

// Commit publishes the result of the reload identified by t. It reports
// whether the records were applied.
func (s *Store[T]) Commit(t Ticket, records []T) bool {
	next := dedupe(records)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lastWriteWins && uint64(t) < s.committed {
		return false
	}
	if uint64(t) > s.committed {
		s.committed = uint64(t)
	}
	s.records = next
	return true
}

// Rewrite replaces the record with id by fn(record) in a fresh slice. It
// reports false when id is not present.
func (s *Store[T]) Rewrite(id int64, fn func(T) T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, r := range s.records {
		if r.RecordID() == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	next := make([]T, len(s.records))
	copy(next, s.records)
	next[idx] = fn(next[idx])
	s.records = next
	return true
}

func dedupe[T Record](records []T) []T {
	out := make([]T, 0, len(records))
	seen := make(map[int64]bool, len(records))
	for _, r := range records {
		if seen[r.RecordID()] {
			continue
		}
		seen[r.RecordID()] = true
		out = append(out, r)
	}
	return out
}
