package world

import (
	"slices"

	"github.com/google/uuid"
	"github.com/zeusync/metacore/internal/core/meta"
)

// EntityClassName is the reflected class carrying the mergeable state of an
// entity: its name and local transform.
const EntityClassName = "Entity"

// Entity is a node of the world hierarchy. Parent, children, prototype and
// instances are stored as handles into the owning world.
type Entity struct {
	handle    meta.EntityHandle
	id        uuid.UUID
	name      string
	transform *meta.Transform

	parent     meta.EntityHandle
	children   []meta.EntityHandle
	components []meta.Object

	prototype meta.EntityHandle
	instances []meta.EntityHandle
}

func newEntity(h meta.EntityHandle, id uuid.UUID, name string) *Entity {
	t := meta.IdentityTransform
	return &Entity{handle: h, id: id, name: name, transform: &t}
}

func (e *Entity) Handle() meta.EntityHandle { return e.handle }
func (e *Entity) ID() uuid.UUID             { return e.id }
func (e *Entity) Name() string              { return e.name }
func (e *Entity) SetName(name string)       { e.name = name }

// Local returns the local transform. It is owned by the entity and may be
// modified in place.
func (e *Entity) Local() *meta.Transform { return e.transform }

func (e *Entity) SetLocal(t meta.Transform) { *e.transform = t }

func (e *Entity) Parent() meta.EntityHandle      { return e.parent }
func (e *Entity) Children() []meta.EntityHandle  { return slices.Clone(e.children) }
func (e *Entity) Components() []meta.Object      { return slices.Clone(e.components) }
func (e *Entity) Prototype() meta.EntityHandle   { return e.prototype }
func (e *Entity) Instances() []meta.EntityHandle { return slices.Clone(e.instances) }

func removeHandle(hs []meta.EntityHandle, h meta.EntityHandle) []meta.EntityHandle {
	return slices.DeleteFunc(hs, func(x meta.EntityHandle) bool { return x == h })
}

// RegisterClasses adds the Entity class to r. The builtin Transform class
// must be registered too.
func RegisterClasses(r *meta.Registry) error {
	_, err := meta.NewClass[Entity](EntityClassName).
		Init(func(e *Entity) {
			t := meta.IdentityTransform
			e.transform = &t
		}).
		Properties(
			meta.Field("Name", meta.CategoryString,
				func(e *Entity) string { return e.name },
				func(e *Entity, v string) { e.name = v }),
			meta.ObjectField("Transform", meta.TransformClassName,
				func(e *Entity) *meta.Transform { return e.transform },
				func(e *Entity, v *meta.Transform) {
					if v == nil {
						t := meta.IdentityTransform
						v = &t
					}
					e.transform = v
				}),
		).Register(r)
	if err != nil {
		return err
	}
	_, err = meta.NewClass[Archetype](ArchetypeClassName).Properties(
		meta.SliceField("Data", meta.Elem(meta.CategoryUint8),
			func(a *Archetype) *[]byte { return &a.data }),
	).Register(r)
	return err
}
