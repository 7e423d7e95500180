package entity

import (
	"sync/atomic"

	"github.com/geserver/server/internal/component"
)

// Store owns entity identities and the mapping from each entity to its
// attached components. It is not internally locked: every caller goes
// through the runtime's world mutex, which also spans the cascading
// cleanup in the other managers so removal appears atomic to readers.
type Store struct {
	entities map[ID]map[component.Kind]any
	nextID   int64
	count    atomic.Int64 // lock-free entity count for status reporting
}

func NewStore() *Store {
	return &Store{
		entities: make(map[ID]map[component.Kind]any, 64),
	}
}

// Create allocates a fresh identifier and stores the mandatory
// CoreProperties component. It never fails given validated input.
func (s *Store) Create(core component.CoreProperties) ID {
	s.nextID++
	id := ID(s.nextID)
	s.entities[id] = map[component.Kind]any{
		component.KindCoreProperties: core,
	}
	s.count.Add(1)
	return id
}

// Exists reports whether the entity is live.
func (s *Store) Exists(id ID) bool {
	_, ok := s.entities[id]
	return ok
}

// Remove clears the entity's component map and releases the identifier.
// Cascading cleanup in the render and scripting managers is the
// dispatch layer's responsibility and must happen before this call.
func (s *Store) Remove(id ID) error {
	if _, ok := s.entities[id]; !ok {
		return ErrNotFound
	}
	delete(s.entities, id)
	s.count.Add(-1)
	return nil
}

// Attach stores a component value under its kind, enforcing the kind's
// cardinality rule: Transform is replaceable, everything else is
// attach-once.
func (s *Store) Attach(id ID, kind component.Kind, value any) error {
	comps, ok := s.entities[id]
	if !ok {
		return ErrNotFound
	}
	if _, present := comps[kind]; present && !kind.Replaceable() {
		return ErrAlreadyPresent
	}
	comps[kind] = value
	return nil
}

// Get returns the component value of the given kind, if attached.
func (s *Store) Get(id ID, kind component.Kind) (any, bool) {
	comps, ok := s.entities[id]
	if !ok {
		return nil, false
	}
	v, ok := comps[kind]
	return v, ok
}

// Transform returns the entity's Transform component, if attached.
func (s *Store) Transform(id ID) (component.Transform, bool) {
	v, ok := s.Get(id, component.KindTransform)
	if !ok {
		return component.Transform{}, false
	}
	return v.(component.Transform), true
}

// Snapshot returns a copy of all attached components at a single point
// in time. Callers hold the world lock for the duration, so no torn
// reads across components of the same entity are possible.
func (s *Store) Snapshot(id ID) (map[component.Kind]any, error) {
	comps, ok := s.entities[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make(map[component.Kind]any, len(comps))
	for k, v := range comps {
		if core, isCore := v.(component.CoreProperties); isCore {
			out[k] = core.Clone()
			continue
		}
		out[k] = v
	}
	return out, nil
}

// IDs returns all live entity identifiers (unordered).
func (s *Store) IDs() []ID {
	ids := make([]ID, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the live entity count without requiring the world lock.
func (s *Store) Count() int64 {
	return s.count.Load()
}

// Reset drops every entity and restarts identifier assignment at 1.
// Used for full-state reinitialization; after a reset no stale
// references remain, so restarting the counter cannot alias old ids.
func (s *Store) Reset() {
	s.entities = make(map[ID]map[component.Kind]any, 64)
	s.nextID = 0
	s.count.Store(0)
}
