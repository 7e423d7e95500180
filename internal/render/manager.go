package render

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/geserver/server/internal/component"
	"github.com/geserver/server/internal/entity"
)

// Record binds one loaded mesh resource to one live entity.
type Record struct {
	EntityID entity.ID
	Handle   string
	Path     string
	Mesh     *Mesh

	// Pending is true until the scheduler consumes it by applying the
	// entity's current Transform to Model. It is set again whenever the
	// Transform is replaced.
	Pending bool
	Model   mgl64.Mat4
}

func (r *Record) apply(t component.Transform) {
	r.Model = mgl64.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z()).
		Mul4(mgl64.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z()))
	r.Pending = false
}

// TransformLookup resolves an entity's current Transform. The runtime
// supplies one that reads the entity store under the world lock.
type TransformLookup func(entity.ID) (component.Transform, bool)

// Manager is the resource lifecycle manager. Its record list has its
// own mutex, independent of the world lock, so the scheduler's
// per-tick pass can flip pending flags without entity-store access.
// Lock order: the world lock, when needed, is always taken first.
type Manager struct {
	mu      sync.Mutex
	records map[entity.ID]*Record
	loader  Loader
	log     *zap.Logger
}

func NewManager(loader Loader, log *zap.Logger) *Manager {
	if loader == nil {
		loader = FileLoader{}
	}
	return &Manager{
		records: make(map[entity.ID]*Record, 32),
		loader:  loader,
		log:     log,
	}
}

// Load resolves a mesh asset without touching any record state, so the
// dispatch layer can load outside the world lock and attach under it.
// Failures surface as LoadError and leave no record behind.
func (m *Manager) Load(path string) (*Mesh, error) {
	mesh, err := m.loader.Load(path)
	if err != nil {
		return nil, &entity.LoadError{Path: path, Err: err}
	}
	return mesh, nil
}

// Attach registers a resource record for a loaded mesh and returns its
// handle. The record starts with a pending transform so the next tick
// places the mesh.
func (m *Manager) Attach(id entity.ID, path string, mesh *Mesh) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := &Record{
		EntityID: id,
		Handle:   uuid.NewString(),
		Path:     path,
		Mesh:     mesh,
		Pending:  true,
		Model:    mgl64.Ident4(),
	}
	m.records[id] = rec
	m.log.Debug("mesh attached",
		zap.Int64("entity", int64(id)),
		zap.String("path", path),
		zap.Int("vertices", len(mesh.Vertices)))
	return rec.Handle
}

// MarkDirty flags the entity's resource for transform re-application.
// No-op when the entity has no mesh.
func (m *Manager) MarkDirty(id entity.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[id]; ok {
		rec.Pending = true
	}
}

// ApplyPending applies the current Transform to every record with a
// pending flag and clears the flag. Records whose entity has no
// Transform yet are left pending: the visual update is deferred until
// a Transform exists.
func (m *Manager) ApplyPending(lookup TransformLookup) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if !rec.Pending {
			continue
		}
		t, ok := lookup(rec.EntityID)
		if !ok {
			continue
		}
		rec.apply(t)
	}
}

// ApplyPendingFor applies the entity's pending transform, if any, and
// reports whether an application happened. Used by the script tick so
// a behavior's on_update observes the placed mesh.
func (m *Manager) ApplyPendingFor(id entity.ID, lookup TransformLookup) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok || !rec.Pending {
		return false
	}
	t, ok := lookup(id)
	if !ok {
		return false
	}
	rec.apply(t)
	return true
}

// Detach removes the entity's resource record and releases the mesh.
// Idempotent: detaching an absent entity is a no-op.
func (m *Manager) Detach(id entity.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return
	}
	delete(m.records, id)
	rec.Mesh = nil // release geometry; nothing else holds it
	m.log.Debug("mesh detached", zap.Int64("entity", int64(id)), zap.String("path", rec.Path))
}

// Get returns the entity's resource record, if one exists. The record
// is a live pointer; callers must not retain it across ticks.
func (m *Manager) Get(id entity.ID) (*Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	return rec, ok
}

// Count returns the number of live resource records.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Reset drops every resource record.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[entity.ID]*Record, 32)
}
