// Package scripting loads Lua behavior modules, binds them to
// entities, and drives their lifecycle hooks from the scheduler.
//
// A behavior module is a Lua file exposing up to two globals:
//
//	on_load(entity_id)  -- invoked once, synchronously, at attach
//	on_update(event)    -- invoked every scheduler tick while bound
//
// Module identity is shared per absolute path: attaching the same file
// to several entities reuses one loaded VM and one update registration.
package scripting

import (
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/geserver/server/internal/entity"
	"github.com/geserver/server/internal/render"
)

// APIVersion is exposed to scripts as the API_VERSION global.
const APIVersion = 1

// TickEvent is the opaque value passed to on_update hooks.
type TickEvent struct {
	Tick  uint64
	Delta time.Duration
}

// Binding owns one loaded behavior module: its VM, its optional update
// registration, and the entity identifiers the registration serves.
// Once the last served entity detaches the VM is closed; there is no
// transition back to unloaded — re-attachment means a fresh load.
type Binding struct {
	Path      string
	vm        *lua.LState
	hasLoad   bool
	hasUpdate bool
	entities  []entity.ID
}

// Entities returns the served entity list (read-only view).
func (b *Binding) Entities() []entity.ID { return b.entities }

// HasUpdate reports whether the module registered an update hook.
func (b *Binding) HasUpdate() bool { return b.hasUpdate }

// Manager is the script binding manager. Its registration list has its
// own mutex, independent of the world lock and the render manager's
// record lock. Lock order: world → scripting → render; the scripting
// lock is never held while blocking on the world lock.
type Manager struct {
	mu       sync.Mutex
	bindings map[string]*Binding  // absolute script path → binding
	byEntity map[entity.ID]*Binding
	render   *render.Manager
	log      *zap.Logger
}

func NewManager(render *render.Manager, log *zap.Logger) *Manager {
	return &Manager{
		bindings: make(map[string]*Binding, 8),
		byEntity: make(map[entity.ID]*Binding, 32),
		render:   render,
		log:      log,
	}
}

// Attach loads the module at scriptPath (or reuses the binding already
// loaded for that path), invokes its on_load hook with the entity
// identifier, and registers the entity for updates. A failing load or
// on_load rolls the attachment back completely.
func (m *Manager) Attach(id entity.ID, scriptPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, bound := m.byEntity[id]; bound {
		return entity.ErrAlreadyPresent
	}

	b, loaded := m.bindings[scriptPath]
	if !loaded {
		var err error
		b, err = m.load(scriptPath)
		if err != nil {
			return err
		}
	}

	if b.hasLoad {
		if err := m.call(b, "on_load", lua.LNumber(id)); err != nil {
			if !loaded {
				b.vm.Close()
			}
			return &entity.LoadError{Path: scriptPath, Err: fmt.Errorf("on_load: %w", err)}
		}
	}

	m.bindings[scriptPath] = b
	b.entities = append(b.entities, id)
	m.byEntity[id] = b
	m.log.Info("script attached",
		zap.Int64("entity", int64(id)),
		zap.String("path", scriptPath),
		zap.Bool("update_hook", b.hasUpdate))
	return nil
}

// load creates a VM for the module and resolves its hook set. The
// binding is not registered yet; the caller does that after on_load
// succeeds.
func (m *Manager) load(scriptPath string) (*Binding, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(APIVersion))
	vm.SetGlobal("log", vm.NewFunction(func(l *lua.LState) int {
		m.log.Info("script log",
			zap.String("path", scriptPath),
			zap.String("msg", l.OptString(1, "")))
		return 0
	}))

	if err := vm.DoFile(scriptPath); err != nil {
		vm.Close()
		return nil, &entity.LoadError{Path: scriptPath, Err: err}
	}

	b := &Binding{Path: scriptPath, vm: vm}
	if _, ok := vm.GetGlobal("on_load").(*lua.LFunction); ok {
		b.hasLoad = true
	}
	if _, ok := vm.GetGlobal("on_update").(*lua.LFunction); ok {
		b.hasUpdate = true
	}
	return b, nil
}

func (m *Manager) call(b *Binding, name string, args ...lua.LValue) error {
	fn := b.vm.GetGlobal(name)
	if fn == lua.LNil {
		return fmt.Errorf("lua function %s not found", name)
	}
	return b.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, args...)
}

// Tick runs one update pass: for every registration with an update
// hook, each served entity first has any pending mesh transform
// applied, then the module's on_update hook is invoked with the tick
// event. A failing hook is logged and the pass continues; one faulty
// behavior never halts the scheduler for all entities.
func (m *Manager) Tick(ev TickEvent, lookup render.TransformLookup) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bindings {
		if !b.hasUpdate {
			continue
		}
		for _, id := range b.entities {
			m.render.ApplyPendingFor(id, lookup)
			t := b.vm.NewTable()
			t.RawSetString("tick", lua.LNumber(ev.Tick))
			t.RawSetString("delta", lua.LNumber(ev.Delta.Seconds()))
			t.RawSetString("entity_id", lua.LNumber(id))
			if err := m.call(b, "on_update", t); err != nil {
				m.log.Error("lua on_update error",
					zap.String("path", b.Path),
					zap.Int64("entity", int64(id)),
					zap.Error(err))
			}
		}
	}
}

// Detach removes the entity from its registration's served list. When
// the list empties the registration is cancelled and the VM released.
// Idempotent: detaching an unbound entity is a no-op.
func (m *Manager) Detach(id entity.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.byEntity[id]
	if !ok {
		return
	}
	delete(m.byEntity, id)
	for i, e := range b.entities {
		if e == id {
			b.entities = append(b.entities[:i], b.entities[i+1:]...)
			break
		}
	}
	if len(b.entities) == 0 {
		b.vm.Close()
		delete(m.bindings, b.Path)
		m.log.Info("script binding released", zap.String("path", b.Path))
	}
}

// Bound reports whether the entity has a script binding.
func (m *Manager) Bound(id entity.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byEntity[id]
	return ok
}

// BindingCount returns the number of loaded modules.
func (m *Manager) BindingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bindings)
}

// Reset cancels every registration and closes every VM.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bindings {
		b.vm.Close()
	}
	m.bindings = make(map[string]*Binding, 8)
	m.byEntity = make(map[entity.ID]*Binding, 32)
}
