package world

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/zeusync/metacore/internal/core/archive"
	"github.com/zeusync/metacore/internal/core/asset"
	"github.com/zeusync/metacore/internal/core/meta"
	"github.com/zeusync/metacore/internal/core/observability/log"
)

const (
	ArchetypeClassName  = "Archetype"
	ArchetypeLoaderName = "ArchetypeLoader"
	ArchetypeExtension  = ".earchetype"
)

// Archetype is an asset holding an entity tree template. Its live prototype
// is decoded into a world on first use; instances created from it track the
// prototype node by node.
type Archetype struct {
	asset.Base
	data []byte

	world *World
	root  meta.EntityHandle
}

func NewArchetype(name string) *Archetype {
	a := &Archetype{}
	a.SetAssetID(uuid.New())
	a.SetAssetName(name)
	return a
}

// NewArchetypeLoader returns the loader owning archetype assets.
func NewArchetypeLoader() asset.Loader {
	return asset.NewLoader(ArchetypeLoaderName, ArchetypeExtension, func(x asset.Asset) error {
		a, ok := x.(*Archetype)
		if !ok {
			return fmt.Errorf("%w: %T is not an archetype", asset.ErrClassMismatch, x)
		}
		// the stored definition may have changed; rebuild the prototype lazily
		a.world, a.root = nil, meta.InvalidEntity
		return nil
	})
}

// Data returns the serialized entity tree defining the archetype.
func (a *Archetype) Data() []byte { return a.data }

// Capture stores the tree under h as the archetype definition and adopts h
// as the live prototype in w.
func (a *Archetype) Capture(ar *Archiver, w *World, h meta.EntityHandle) error {
	data, err := ar.Serialize(w, h)
	if err != nil {
		return err
	}
	a.data = data
	a.world, a.root = w, h
	return nil
}

// Prototype returns the live prototype root in w, decoding the stored
// definition with its identities when needed.
func (a *Archetype) Prototype(ar *Archiver, w *World) (meta.EntityHandle, error) {
	if a.world == w && w.Valid(a.root) {
		return a.root, nil
	}
	if len(a.data) == 0 {
		return meta.InvalidEntity, fmt.Errorf("%w: %s", ErrNoPrototype, a.AssetName())
	}
	h, err := ar.Deserialize(w, a.data)
	if err != nil {
		return meta.InvalidEntity, fmt.Errorf("archetype %s: %w", a.AssetName(), err)
	}
	a.world, a.root = w, h
	return h, nil
}

// Instantiate creates a new instance of the archetype in w as a root.
func (a *Archetype) Instantiate(ar *Archiver, w *World) (meta.EntityHandle, error) {
	proto, err := a.Prototype(ar, w)
	if err != nil {
		return meta.InvalidEntity, err
	}
	return ar.InstanceEntity(w, proto)
}

// Instances lists the live instance roots of the archetype in w.
func (a *Archetype) Instances(w *World) []meta.EntityHandle {
	if a.world != w {
		return nil
	}
	root, ok := w.Get(a.root)
	if !ok {
		return nil
	}
	return root.Instances()
}

type capturedInstance struct {
	blob   []byte
	name   string
	parent uuid.UUID
	local  meta.Transform
}

// Reload replaces the archetype definition with data and refreshes every
// instance in w: each instance is captured, destroyed and decoded again
// against the new prototype, merged with AcceptMerge so its overrides
// survive, reparented under its former parent when that still exists and
// given back its local transform.
//
// ctx is checked while instances are captured; once the old instances are
// destroyed the reload runs to completion.
func (a *Archetype) Reload(ctx context.Context, ar *Archiver, w *World, data []byte) error {
	// reject a broken definition before touching the world
	trial := NewWorld(w.Registry(), WithLogger(w.log), WithOverrides(ar.Objects().Overrides()))
	ph, err := ar.Deserialize(trial, data)
	if err != nil {
		return fmt.Errorf("archetype %s: %w", a.AssetName(), err)
	}
	_ = trial.DestroyEntity(ph)
	trial.Flush()

	if a.world != w || !w.Valid(a.root) {
		a.data = slices.Clone(data)
		a.world, a.root = nil, meta.InvalidEntity
		return nil
	}

	instances := a.topInstances(w)
	captured := make([]capturedInstance, 0, len(instances))
	for _, h := range instances {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, _ := w.Get(h)
		blob, err := ar.Serialize(w, h)
		if err != nil {
			return err
		}
		c := capturedInstance{blob: blob, name: e.name, local: *e.transform}
		if p, ok := w.Get(e.parent); ok {
			c.parent = p.id
		}
		captured = append(captured, c)
	}

	for _, h := range instances {
		if err := w.DestroyEntity(h); err != nil {
			return err
		}
	}
	if err = w.DestroyEntity(a.root); err != nil {
		return err
	}
	w.Flush()

	a.data = slices.Clone(data)
	a.world, a.root = nil, meta.InvalidEntity
	proto, err := a.Prototype(ar, w)
	if err != nil {
		return err
	}

	var errs []error
	for _, c := range captured {
		if err := a.restore(ar, w, proto, c); err != nil {
			errs = append(errs, fmt.Errorf("instance %s: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}

func (a *Archetype) restore(ar *Archiver, w *World, proto meta.EntityHandle, c capturedInstance) error {
	h, err := ar.Deserialize(w, c.blob)
	if err != nil {
		return err
	}
	e, _ := w.Get(h)
	if e.prototype != proto {
		// the new definition changed identities; fall back to tree shape
		ar.linkTrees(w, proto, h)
	}
	if err = ar.MergeEntity(w, proto, h, archive.AcceptMerge); err != nil {
		return err
	}
	switch parent, ok := w.Lookup(c.parent); {
	case ok:
		if err = w.AddChild(parent, h); err != nil {
			return err
		}
	case c.parent != uuid.Nil:
		w.log.Debug("instance parent gone, keeping it as a root",
			log.String("instance", c.name), log.Stringer("parent", c.parent))
	}
	e.SetLocal(c.local)
	return nil
}

// topInstances returns the instances that are not nested inside another
// instance of the same archetype; nested ones travel with their ancestor.
func (a *Archetype) topInstances(w *World) []meta.EntityHandle {
	all := a.Instances(w)
	out := make([]meta.EntityHandle, 0, len(all))
	for _, h := range all {
		nested := false
		for _, other := range all {
			if other != h && w.isDescendant(other, h) {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, h)
		}
	}
	return out
}
