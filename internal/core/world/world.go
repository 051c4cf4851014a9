package world

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/zeusync/metacore/internal/core/meta"
	"github.com/zeusync/metacore/internal/core/observability/log"
)

type slot struct {
	generation uint32
	entity     *Entity
}

type Option func(*World)

func WithLogger(l log.Log) Option {
	return func(w *World) { w.log = l }
}

// WithOverrides makes Flush drop the override flags of released entities and
// their components from t.
func WithOverrides(t *meta.OverrideTable) Option {
	return func(w *World) { w.overrides = t }
}

// World is an arena of entities addressed by generation-checked handles.
// Destroyed entities stay allocated until Flush recycles their slots.
//
// A World is not safe for concurrent use.
type World struct {
	registry  *meta.Registry
	overrides *meta.OverrideTable
	log       log.Log

	slots   []slot
	free    []uint32
	byID    map[uuid.UUID]meta.EntityHandle
	roots   []meta.EntityHandle
	pending []meta.EntityHandle
}

func NewWorld(registry *meta.Registry, opts ...Option) *World {
	w := &World{
		registry: registry,
		log:      log.Nop(),
		byID:     make(map[uuid.UUID]meta.EntityHandle),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *World) Registry() *meta.Registry { return w.registry }

// Len returns the number of live entities.
func (w *World) Len() int { return len(w.byID) }

// CreateEntity allocates a root entity with a fresh identity.
func (w *World) CreateEntity(name string) meta.EntityHandle {
	h, _ := w.CreateEntityWithID(uuid.New(), name)
	return h
}

// CreateEntityWithID allocates a root entity with the given identity.
func (w *World) CreateEntityWithID(id uuid.UUID, name string) (meta.EntityHandle, error) {
	if id == uuid.Nil {
		id = uuid.New()
	}
	if _, taken := w.byID[id]; taken {
		return meta.InvalidEntity, fmt.Errorf("%w: %s", ErrDuplicateIdentity, id)
	}

	var index uint32
	if n := len(w.free); n > 0 {
		index = w.free[n-1]
		w.free = w.free[:n-1]
	} else {
		index = uint32(len(w.slots))
		w.slots = append(w.slots, slot{generation: 1})
	}
	h := meta.EntityHandle{Index: index, Generation: w.slots[index].generation}
	w.slots[index].entity = newEntity(h, id, name)
	w.byID[id] = h
	w.roots = append(w.roots, h)
	return h, nil
}

// Get returns the live entity behind h.
func (w *World) Get(h meta.EntityHandle) (*Entity, bool) {
	if !h.Valid() || int(h.Index) >= len(w.slots) {
		return nil, false
	}
	s := w.slots[h.Index]
	if s.generation != h.Generation || s.entity == nil {
		return nil, false
	}
	if cur, ok := w.byID[s.entity.id]; !ok || cur != h {
		// pending destruction
		return nil, false
	}
	return s.entity, true
}

func (w *World) mustGet(h meta.EntityHandle) (*Entity, error) {
	e, ok := w.Get(h)
	if !ok {
		return nil, fmt.Errorf("%w: %d/%d", ErrInvalidHandle, h.Index, h.Generation)
	}
	return e, nil
}

func (w *World) Valid(h meta.EntityHandle) bool {
	_, ok := w.Get(h)
	return ok
}

// Lookup finds a live entity by identity.
func (w *World) Lookup(id uuid.UUID) (meta.EntityHandle, bool) {
	h, ok := w.byID[id]
	return h, ok
}

// Roots returns the parentless entities in creation order.
func (w *World) Roots() []meta.EntityHandle { return slices.Clone(w.roots) }

// DestroyEntity detaches h and its descendants from the world. Their slots
// are released by the next Flush.
func (w *World) DestroyEntity(h meta.EntityHandle) error {
	e, err := w.mustGet(h)
	if err != nil {
		return err
	}
	if p, ok := w.Get(e.parent); ok {
		p.children = removeHandle(p.children, h)
	} else {
		w.roots = removeHandle(w.roots, h)
	}
	w.destroyTree(e)
	return nil
}

func (w *World) destroyTree(e *Entity) {
	for _, c := range e.children {
		if child, ok := w.Get(c); ok {
			w.destroyTree(child)
		}
	}
	if p, ok := w.Get(e.prototype); ok {
		p.instances = removeHandle(p.instances, e.handle)
	}
	for _, i := range e.instances {
		if inst, ok := w.Get(i); ok {
			inst.prototype = meta.InvalidEntity
		}
	}
	e.instances = nil
	delete(w.byID, e.id)
	w.pending = append(w.pending, e.handle)
}

// Flush releases every entity destroyed since the last Flush: components are
// torn down, slots are reset and their generation bumped so stale handles
// stop resolving. It returns the number of released entities.
func (w *World) Flush() int {
	n := len(w.pending)
	for _, h := range w.pending {
		s := &w.slots[h.Index]
		if s.generation != h.Generation || s.entity == nil {
			continue
		}
		w.release(s.entity)
		s.entity = nil
		s.generation++
		if s.generation == 0 {
			s.generation = 1
		}
		w.free = append(w.free, h.Index)
	}
	w.pending = w.pending[:0]
	return n
}

func (w *World) release(e *Entity) {
	if w.overrides != nil {
		w.overrides.Clear(e)
		w.overrides.Clear(e.transform)
	}
	for _, c := range e.components {
		w.dropComponent(c)
	}
	e.components = nil
}

func (w *World) dropComponent(c meta.Object) {
	if w.overrides == nil {
		w.registry.Destroy(c)
		return
	}
	w.registry.Destroy(c, w.overrides.Clear)
}

func (w *World) isDescendant(of, h meta.EntityHandle) bool {
	for cur := h; cur.Valid(); {
		if cur == of {
			return true
		}
		e, ok := w.Get(cur)
		if !ok {
			return false
		}
		cur = e.parent
	}
	return false
}

// AddChild moves child under parent, keeping its world transform.
func (w *World) AddChild(parent, child meta.EntityHandle) error {
	p, err := w.mustGet(parent)
	if err != nil {
		return err
	}
	c, err := w.mustGet(child)
	if err != nil {
		return err
	}
	if w.isDescendant(child, parent) {
		return ErrHierarchyCycle
	}
	if c.parent == parent {
		return nil
	}

	world := w.worldTransform(c)
	w.detach(c)
	c.parent = parent
	p.children = append(p.children, child)
	c.SetLocal(meta.Relative(w.worldTransform(p), world))
	return nil
}

// RemoveChild turns child into a root, keeping its world transform.
func (w *World) RemoveChild(parent, child meta.EntityHandle) error {
	c, err := w.mustGet(child)
	if err != nil {
		return err
	}
	if c.parent != parent {
		return ErrNotChild
	}
	world := w.worldTransform(c)
	w.detach(c)
	w.roots = append(w.roots, child)
	c.SetLocal(world)
	return nil
}

func (w *World) detach(e *Entity) {
	if p, ok := w.Get(e.parent); ok {
		p.children = removeHandle(p.children, e.handle)
	} else {
		w.roots = removeHandle(w.roots, e.handle)
	}
	e.parent = meta.InvalidEntity
}

// WorldTransform composes the local transforms from the root down to h.
func (w *World) WorldTransform(h meta.EntityHandle) (meta.Transform, error) {
	e, err := w.mustGet(h)
	if err != nil {
		return meta.Transform{}, err
	}
	return w.worldTransform(e), nil
}

func (w *World) worldTransform(e *Entity) meta.Transform {
	t := *e.transform
	for p, ok := w.Get(e.parent); ok; p, ok = w.Get(p.parent) {
		t = meta.Compose(*p.transform, t)
	}
	return t
}

// AddComponent attaches c, an instance of a registered class, to h.
func (w *World) AddComponent(h meta.EntityHandle, c meta.Object) error {
	e, err := w.mustGet(h)
	if err != nil {
		return err
	}
	if _, err = w.registry.ClassOf(c); err != nil {
		return err
	}
	e.components = append(e.components, c)
	return nil
}

// RemoveComponent detaches c from h and destroys it.
func (w *World) RemoveComponent(h meta.EntityHandle, c meta.Object) error {
	e, err := w.mustGet(h)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(e.components, func(x meta.Object) bool { return x == c })
	if i < 0 {
		return ErrComponentNotFound
	}
	e.components = slices.Delete(e.components, i, i+1)
	w.dropComponent(c)
	return nil
}

// Components returns the components attached to h in attachment order.
func (w *World) Components(h meta.EntityHandle) ([]meta.Object, error) {
	e, err := w.mustGet(h)
	if err != nil {
		return nil, err
	}
	return e.Components(), nil
}

// Walk visits h and its descendants depth first, parents before children.
func (w *World) Walk(h meta.EntityHandle, fn func(*Entity) error) error {
	e, err := w.mustGet(h)
	if err != nil {
		return err
	}
	if err = fn(e); err != nil {
		return err
	}
	for _, c := range e.Children() {
		if err = w.Walk(c, fn); err != nil {
			return err
		}
	}
	return nil
}

// linkPrototype records proto as the prototype of inst, replacing any
// previous link. An invalid proto just clears the link.
func (w *World) linkPrototype(inst *Entity, proto meta.EntityHandle) {
	if old, ok := w.Get(inst.prototype); ok {
		old.instances = removeHandle(old.instances, inst.handle)
	}
	inst.prototype = meta.InvalidEntity
	if p, ok := w.Get(proto); ok {
		inst.prototype = proto
		p.instances = append(p.instances, inst.handle)
	}
}
