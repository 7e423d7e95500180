// Package runtime is the dispatch layer of the entity world: it
// validates requests, routes component attachments to the render and
// scripting managers, and enforces the cross-manager invariants under
// a single world mutex.
package runtime

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/geserver/server/internal/component"
	"github.com/geserver/server/internal/entity"
	"github.com/geserver/server/internal/render"
	"github.com/geserver/server/internal/scripting"
)

// Runtime owns the world lock and the three managers. All state is
// injected at construction so multiple worlds can coexist in tests.
//
// Lock discipline: the world mutex guards the entity store and is held
// for the full duration of every multi-manager operation, so entity
// creation, removal and attachment appear atomic to concurrent
// readers. The render and scripting managers carry their own internal
// locks; when more than one lock is needed the world lock is always
// taken first.
type Runtime struct {
	mu      sync.Mutex // world lock
	store   *entity.Store
	render  *render.Manager
	scripts *scripting.Manager
	log     *zap.Logger

	started time.Time
	ticks   atomic.Uint64
}

func New(store *entity.Store, rm *render.Manager, sm *scripting.Manager, log *zap.Logger) *Runtime {
	return &Runtime{
		store:   store,
		render:  rm,
		scripts: sm,
		log:     log,
		started: time.Now(),
	}
}

// CreateEntity validates the core properties and allocates an entity.
func (r *Runtime) CreateEntity(name, targetScene string, tags []string) (entity.ID, error) {
	core, err := component.ValidateCoreProperties(name, targetScene, tags)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	id := r.store.Create(core)
	r.mu.Unlock()
	r.log.Info("entity created",
		zap.Int64("entity", int64(id)),
		zap.String("name", core.Name),
		zap.String("scene", core.TargetScene))
	return id, nil
}

// RemoveEntity removes an entity and cascades cleanup through the
// render and scripting managers. Ordering matters: resource and script
// cleanup complete before the store entry is cleared, and the world
// lock spans all of it, so a concurrent reader never observes a store
// entry whose resources are already gone, nor a missing entry whose
// resources linger.
func (r *Runtime) RemoveEntity(id entity.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.store.Exists(id) {
		return entity.ErrNotFound
	}
	r.render.Detach(id)
	r.scripts.Detach(id)
	if err := r.store.Remove(id); err != nil {
		return err
	}
	r.log.Info("entity removed", zap.Int64("entity", int64(id)))
	return nil
}

// QueryEntity returns a consistent snapshot of the entity's components.
func (r *Runtime) QueryEntity(id entity.ID) (map[component.Kind]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Snapshot(id)
}

// AttachComponent validates the payload, loads any backing asset, and
// attaches the component. Validation and mesh loading run before the
// world lock is taken; only the attach itself mutates state, and a
// failure at any point leaves the world untouched.
func (r *Runtime) AttachComponent(id entity.ID, kind component.Kind, payload map[string]any) (any, error) {
	value, err := component.Parse(kind, payload)
	if err != nil {
		return nil, err
	}

	// Mesh loads are bounded one-shot filesystem work; doing them
	// before the lock keeps hold time short. If the entity vanishes in
	// between, the loaded mesh is simply dropped.
	var mesh *render.Mesh
	if kind == component.KindRenderer {
		mesh, err = r.render.Load(value.(component.Renderer).FilePath)
		if err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.store.Exists(id) {
		return nil, entity.ErrNotFound
	}
	if _, present := r.store.Get(id, kind); present && !kind.Replaceable() {
		return nil, entity.ErrAlreadyPresent
	}

	switch kind {
	case component.KindTransform:
		t := value.(component.Transform)
		if err := r.store.Attach(id, kind, t); err != nil {
			return nil, err
		}
		// Replacing the Transform re-arms the pending visual update.
		r.render.MarkDirty(id)
		return t, nil

	case component.KindRenderer:
		rend := value.(component.Renderer)
		rend.Handle = r.render.Attach(id, rend.FilePath, mesh)
		if err := r.store.Attach(id, kind, rend); err != nil {
			r.render.Detach(id)
			return nil, err
		}
		return rend, nil

	case component.KindScript:
		sc := value.(component.Script)
		// on_load must observe a live entity, so the script load runs
		// under the world lock. A failing load or hook rolls back: no
		// Script component is recorded.
		if err := r.scripts.Attach(id, sc.ScriptPath); err != nil {
			return nil, err
		}
		if err := r.store.Attach(id, kind, sc); err != nil {
			r.scripts.Detach(id)
			return nil, err
		}
		return sc, nil
	}
	return nil, &component.ValidationError{Field: "type", Msg: "unsupported component type"}
}

// ResetWorld clears all entities and cascades cleanup through every
// resource and script record. Identifier assignment restarts at 1.
func (r *Runtime) ResetWorld() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.render.Reset()
	r.scripts.Reset()
	r.store.Reset()
	r.log.Info("world reset")
}

// Tick advances the world one scheduler step: pending mesh transforms
// are applied from the entities' current Transforms, then every script
// registration's update pass runs.
func (r *Runtime) Tick(dt time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// The world lock is already held, so the lookup reads the store
	// directly. Lock order world → scripting → render holds throughout.
	lookup := func(id entity.ID) (component.Transform, bool) {
		return r.store.Transform(id)
	}
	r.render.ApplyPending(lookup)
	ev := scripting.TickEvent{Tick: r.ticks.Add(1), Delta: dt}
	r.scripts.Tick(ev, lookup)
}

// Status is an opaque liveness indicator for health signaling.
type Status struct {
	StartedAt time.Time     `json:"startedAt"`
	Uptime    time.Duration `json:"uptime"`
	Ticks     uint64        `json:"ticks"`
	Entities  int64         `json:"entities"`
}

// Status reports liveness without touching the world lock.
func (r *Runtime) Status() Status {
	return Status{
		StartedAt: r.started,
		Uptime:    time.Since(r.started),
		Ticks:     r.ticks.Load(),
		Entities:  r.store.Count(),
	}
}
