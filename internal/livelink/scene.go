package livelink

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/zeusync/metacore/internal/core/inspect"
	"github.com/zeusync/metacore/internal/core/meta"
	"github.com/zeusync/metacore/internal/core/world"
)

// EntityInfo names one entity of the scene.
type EntityInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Children int    `json:"children"`
}

// Scene guards a world shared between the editor link and the rest of the
// process. Every access to the world goes through Do.
type Scene struct {
	mu       sync.Mutex
	world    *world.World
	archiver *world.Archiver
	inspect  *inspect.Inspector
}

func NewScene(w *world.World, ar *world.Archiver) *Scene {
	s := &Scene{world: w, archiver: ar}
	s.inspect = inspect.New(w.Registry(), inspect.WithEntities(func(h meta.EntityHandle) (uuid.UUID, bool) {
		e, ok := w.Get(h)
		if !ok {
			return uuid.Nil, false
		}
		return e.ID(), true
	}))
	return s
}

// Do runs fn with exclusive access to the world.
func (s *Scene) Do(fn func(w *world.World, ar *world.Archiver) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.world, s.archiver)
}

// Snapshot serializes the tree rooted at the entity with the given identity.
func (s *Scene) Snapshot(id uuid.UUID) ([]byte, error) {
	var data []byte
	err := s.Do(func(w *world.World, ar *world.Archiver) error {
		h, ok := w.Lookup(id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownEntity, id)
		}
		var err error
		data, err = ar.Serialize(w, h)
		return err
	})
	return data, err
}

// Apply decodes an entity tree into the world in place: entities whose
// identity is already live are updated, the others are created. Entities
// dropped from an updated subtree are destroyed and flushed.
func (s *Scene) Apply(data []byte) (EntityInfo, error) {
	var info EntityInfo
	err := s.Do(func(w *world.World, ar *world.Archiver) error {
		h, err := ar.Apply(w, data)
		if err != nil {
			return err
		}
		w.Flush()
		e, _ := w.Get(h)
		info = describe(e)
		return nil
	})
	return info, err
}

// Instantiate creates a new root instance of a in the world.
func (s *Scene) Instantiate(a *world.Archetype) (EntityInfo, error) {
	var info EntityInfo
	err := s.Do(func(w *world.World, ar *world.Archiver) error {
		h, err := a.Instantiate(ar, w)
		if err != nil {
			return err
		}
		e, _ := w.Get(h)
		info = describe(e)
		return nil
	})
	return info, err
}

// Roots lists the root entities of the world.
func (s *Scene) Roots() []EntityInfo {
	var out []EntityInfo
	_ = s.Do(func(w *world.World, _ *world.Archiver) error {
		for _, h := range w.Roots() {
			if e, ok := w.Get(h); ok {
				out = append(out, describe(e))
			}
		}
		return nil
	})
	return out
}

// Inspect renders the components of one entity.
func (s *Scene) Inspect(id uuid.UUID) ([]map[string]any, error) {
	var out []map[string]any
	err := s.Do(func(w *world.World, _ *world.Archiver) error {
		h, ok := w.Lookup(id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownEntity, id)
		}
		cs, err := w.Components(h)
		if err != nil {
			return err
		}
		out = make([]map[string]any, 0, len(cs))
		for _, c := range cs {
			m, err := s.inspect.ToMap(c)
			if err != nil {
				return err
			}
			out = append(out, m)
		}
		return nil
	})
	return out, err
}

func describe(e *world.Entity) EntityInfo {
	return EntityInfo{ID: e.ID().String(), Name: e.Name(), Children: len(e.Children())}
}
