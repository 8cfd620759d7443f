// Package annotate holds client-local UI state attached to appointments by
// id. The state is never written back to the booking service.
package annotate

import (
	"sort"
	"sync"
)

// Annotation is ephemeral per-appointment UI state.
type Annotation struct {
	Struck bool `json:"struck"`
}

// IsZero reports whether a carries no state.
func (a Annotation) IsZero() bool {
	return a == Annotation{}
}

// Set is an immutable id -> Annotation mapping. Reducers return a new Set
// and never modify their input, so a Set handed to a renderer or subscriber
// stays valid after later changes.
type Set struct {
	m map[int64]Annotation
}

// NewSet copies m into a Set.
func NewSet(m map[int64]Annotation) Set {
	cp := make(map[int64]Annotation, len(m))
	for id, a := range m {
		if !a.IsZero() {
			cp[id] = a
		}
	}
	return Set{m: cp}
}

// Get returns the annotation for id, or the zero Annotation.
func (s Set) Get(id int64) (Annotation, bool) {
	a, ok := s.m[id]
	return a, ok
}

// Len is the number of annotated ids.
func (s Set) Len() int {
	return len(s.m)
}

// IDs returns annotated ids in ascending order.
func (s Set) IDs() []int64 {
	ids := make([]int64, 0, len(s.m))
	for id := range s.m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Map returns a copy of the underlying mapping.
func (s Set) Map() map[int64]Annotation {
	cp := make(map[int64]Annotation, len(s.m))
	for id, a := range s.m {
		cp[id] = a
	}
	return cp
}

func (s Set) with(id int64, a Annotation) Set {
	cp := s.Map()
	if a.IsZero() {
		delete(cp, id)
	} else {
		cp[id] = a
	}
	return Set{m: cp}
}

// Reducer derives a new Set from the current one.
type Reducer func(Set) Set

// ToggleStrikeout flips the struck flag of id.
func ToggleStrikeout(s Set, id int64) Set {
	a, _ := s.Get(id)
	a.Struck = !a.Struck
	return s.with(id, a)
}

// SetStrikeout sets the struck flag of id to struck.
func SetStrikeout(s Set, id int64, struck bool) Set {
	a, _ := s.Get(id)
	a.Struck = struck
	return s.with(id, a)
}

// Toggle wraps ToggleStrikeout as a Reducer.
func Toggle(id int64) Reducer {
	return func(s Set) Set { return ToggleStrikeout(s, id) }
}

// Strike wraps SetStrikeout as a Reducer.
func Strike(id int64, struck bool) Reducer {
	return func(s Set) Set { return SetStrikeout(s, id, struck) }
}

// Store holds the current Set. Ids are never pruned: an annotation for an
// appointment missing from the latest fetch survives until it is toggled
// off, so a refetch that briefly omits a record does not lose its state.
type Store struct {
	mu      sync.Mutex
	current Set
	nextSub int
	subs    map[int]func(Set)
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		current: NewSet(nil),
		subs:    make(map[int]func(Set)),
	}
}

// Current returns the latest Set.
func (st *Store) Current() Set {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.current
}

// Dispatch applies r and notifies subscribers with the resulting Set.
// Subscribers run synchronously after the lock is released.
func (st *Store) Dispatch(r Reducer) Set {
	st.mu.Lock()
	st.current = r(st.current)
	next := st.current
	subs := make([]func(Set), 0, len(st.subs))
	for _, fn := range st.subs {
		subs = append(subs, fn)
	}
	st.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	return next
}

// Subscribe registers fn to be called after every Dispatch. The returned
// function removes the subscription.
func (st *Store) Subscribe(fn func(Set)) (unsubscribe func()) {
	st.mu.Lock()
	id := st.nextSub
	st.nextSub++
	st.subs[id] = fn
	st.mu.Unlock()

	return func() {
		st.mu.Lock()
		delete(st.subs, id)
		st.mu.Unlock()
	}
}
