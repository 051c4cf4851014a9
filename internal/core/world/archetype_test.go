package world

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/metacore/internal/core/archive"
	"github.com/zeusync/metacore/internal/core/asset"
	"github.com/zeusync/metacore/internal/core/components"
	"github.com/zeusync/metacore/internal/core/meta"
	"github.com/zeusync/metacore/pkg/bytebuffer"
)

// crate builds a prototype with a mesh and a lid child and captures it.
func crate(t *testing.T, e *env, mesh *components.Mesh) (*Archetype, meta.EntityHandle) {
	t.Helper()
	root := e.w.CreateEntity("crate")
	require.NoError(t, e.w.AddComponent(root, &components.StaticMeshComponent{Mesh: mesh}))
	e.child(t, e.w, root, "lid", at(0, 1, 0))

	a := NewArchetype("crate")
	require.NoError(t, a.Capture(e.ar, e.w, root))
	return a, root
}

// edit copies the prototype into a scratch world, applies fn and returns
// the serialized result.
func edit(t *testing.T, e *env, proto meta.EntityHandle, fn func(w *World, root *Entity)) []byte {
	t.Helper()
	scratch := e.world()
	h, err := e.ar.CopyEntity(e.w, proto, scratch)
	require.NoError(t, err)
	fn(scratch, e.get(t, scratch, h))
	data, err := e.ar.Serialize(scratch, h)
	require.NoError(t, err)
	return data
}

func TestArchetypeReloadKeepsInstanceOverrides(t *testing.T) {
	e := newEnv(t)
	m1, m2 := e.mesh(t, "m1"), e.mesh(t, "m2")
	a, proto := crate(t, e, m1)

	inst, err := a.Instantiate(e.ar, e.w)
	require.NoError(t, err)
	ie := e.get(t, e.w, inst)
	id := ie.ID()
	ie.Local().Position = meta.Vec3{X: 5}
	ie.Local().Scale = meta.Vec3{X: 2, Y: 2, Z: 2}
	require.NoError(t, e.ar.Objects().SetOverride(ie.Local(), "Scale"))

	data := edit(t, e, proto, func(w *World, root *Entity) {
		root.Components()[0].(*components.StaticMeshComponent).Mesh = m2
		e.get(t, w, root.Children()[0]).Local().Position = meta.Vec3{Y: 2}
	})
	require.NoError(t, a.Reload(context.Background(), e.ar, e.w, data))

	h, ok := e.w.Lookup(id)
	require.True(t, ok, "instance identity kept")
	got := e.get(t, e.w, h)
	assert.Equal(t, meta.Vec3{X: 5}, got.Local().Position)
	assert.Equal(t, meta.Vec3{X: 2, Y: 2, Z: 2}, got.Local().Scale)
	assert.Same(t, m2, got.Components()[0].(*components.StaticMeshComponent).Mesh)

	require.Len(t, got.Children(), 1)
	lid := e.get(t, e.w, got.Children()[0])
	assert.Equal(t, meta.Vec3{Y: 2}, lid.Local().Position)

	newProto, err := a.Prototype(e.ar, e.w)
	require.NoError(t, err)
	assert.Equal(t, newProto, got.Prototype())
	assert.Equal(t, []meta.EntityHandle{h}, a.Instances(e.w))
	assert.Equal(t, data, a.Data())
	e.w.Flush()
	assert.Equal(t, 4, e.w.Len())
}

func TestArchetypeReloadParentGone(t *testing.T) {
	e := newEnv(t)
	root := e.w.CreateEntity("tower")
	socket := e.child(t, e.w, root, "Socket", at(0, 10, 0))
	a := NewArchetype("tower")
	require.NoError(t, a.Capture(e.ar, e.w, root))

	inst, err := a.Instantiate(e.ar, e.w)
	require.NoError(t, err)
	require.NoError(t, e.w.AddChild(socket, inst))
	e.get(t, e.w, inst).SetLocal(at(1, 0, 0))
	id := e.get(t, e.w, inst).ID()

	data := edit(t, e, root, func(w *World, r *Entity) {
		require.NoError(t, w.DestroyEntity(r.Children()[0]))
	})
	require.NoError(t, a.Reload(context.Background(), e.ar, e.w, data))

	h, ok := e.w.Lookup(id)
	require.True(t, ok)
	got := e.get(t, e.w, h)
	assert.Equal(t, meta.InvalidEntity, got.Parent())
	assert.Equal(t, at(1, 0, 0), *got.Local())
	assert.Contains(t, e.w.Roots(), h)
}

func TestArchetypeReloadRejectsBrokenData(t *testing.T) {
	e := newEnv(t)
	a, proto := crate(t, e, e.mesh(t, "m1"))
	inst, err := a.Instantiate(e.ar, e.w)
	require.NoError(t, err)
	before := a.Data()

	err = a.Reload(context.Background(), e.ar, e.w, before[:10])
	assert.ErrorIs(t, err, bytebuffer.ErrBufferUnderrun)
	assert.True(t, e.w.Valid(inst))
	assert.True(t, e.w.Valid(proto))
	assert.Equal(t, before, a.Data())
}

func TestArchetypeReloadCancelled(t *testing.T) {
	e := newEnv(t)
	a, proto := crate(t, e, e.mesh(t, "m1"))
	inst, err := a.Instantiate(e.ar, e.w)
	require.NoError(t, err)
	before := a.Data()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	data := edit(t, e, proto, func(*World, *Entity) {})
	assert.ErrorIs(t, a.Reload(ctx, e.ar, e.w, data), context.Canceled)
	assert.True(t, e.w.Valid(inst))
	assert.True(t, e.w.Valid(proto))
	assert.Equal(t, before, a.Data())
}

func TestArchetypeReloadWithoutPrototype(t *testing.T) {
	e := newEnv(t)
	_, proto := crate(t, e, e.mesh(t, "m1"))
	data, err := e.ar.Serialize(e.w, proto)
	require.NoError(t, err)

	a := NewArchetype("fresh")
	_, err = a.Prototype(e.ar, e.w)
	assert.ErrorIs(t, err, ErrNoPrototype)

	require.NoError(t, a.Reload(context.Background(), e.ar, e.w, data))
	assert.Equal(t, data, a.Data())

	other := e.world()
	h, err := a.Instantiate(e.ar, other)
	require.NoError(t, err)
	assert.Equal(t, "crate", e.get(t, other, h).Name())
}

func TestArchetypeAssetRoundTrip(t *testing.T) {
	e := newEnv(t)
	a, _ := crate(t, e, e.mesh(t, "m1"))
	loaders, err := asset.NewLoaders(NewArchetypeLoader())
	require.NoError(t, err)
	assets := archive.NewAssetArchiver(e.ar.Objects(), loaders)
	l, _ := loaders.Get(ArchetypeLoaderName)
	a.SetAssetLoader(l)

	blob, err := assets.Serialize(a)
	require.NoError(t, err)
	out, err := assets.Deserialize(blob)
	require.NoError(t, err)
	got, ok := out.(*Archetype)
	require.True(t, ok)
	assert.Equal(t, a.AssetID(), got.AssetID())
	assert.Equal(t, a.Data(), got.Data())

	other := e.world()
	h, err := got.Instantiate(e.ar, other)
	require.NoError(t, err)
	assert.Len(t, e.get(t, other, h).Children(), 1)

	// reloading the asset in place drops the cached prototype
	require.NoError(t, assets.Reload(bytebuffer.FromBytes(blob), got))
	assert.Empty(t, got.Instances(other))
}
