package asset

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/metacore/internal/core/meta"
)

type texture struct {
	Base
	Width int32
}

type volumeTexture struct {
	texture
	Depth int32
}

type sound struct {
	Base
}

func classes(t *testing.T) (*meta.Registry, *meta.Class, *meta.Class, *meta.Class) {
	t.Helper()
	r := meta.NewRegistry()
	tex, err := meta.NewClass[texture]("Texture").Properties(
		meta.Field("Width", meta.CategoryInt32,
			func(x *texture) int32 { return x.Width },
			func(x *texture, v int32) { x.Width = v }),
	).Register(r)
	require.NoError(t, err)
	vol, err := meta.NewClass[volumeTexture]("VolumeTexture").
		Embed(tex, func(x *volumeTexture) meta.Object { return &x.texture }).
		Register(r)
	require.NoError(t, err)
	snd, err := meta.NewClass[sound]("Sound").Register(r)
	require.NoError(t, err)
	require.NoError(t, r.Freeze())
	return r, tex, vol, snd
}

func TestTableResolve(t *testing.T) {
	r, tex, vol, snd := classes(t)
	tbl := NewTable(r)

	a := &texture{}
	a.SetAssetName("brick")
	require.NoError(t, tbl.Add(a))
	assert.NotEqual(t, uuid.Nil, a.AssetID())

	v := &volumeTexture{}
	v.SetAssetName("fog")
	require.NoError(t, tbl.Add(v))

	got, err := tbl.Resolve(tex, a.AssetID())
	require.NoError(t, err)
	assert.Same(t, a, got)

	got, err = tbl.Resolve(tex, v.AssetID())
	require.NoError(t, err)
	assert.Same(t, v, got)

	_, err = tbl.Resolve(vol, a.AssetID())
	assert.ErrorIs(t, err, ErrClassMismatch)
	_, err = tbl.Resolve(snd, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = tbl.Resolve(tex, uuid.Nil)
	assert.ErrorIs(t, err, ErrNotFound)

	listed := tbl.ByClass(tex)
	require.Len(t, listed, 2)
	assert.Equal(t, "brick", listed[0].AssetName())

	tbl.Remove(a.AssetID())
	assert.Equal(t, 1, tbl.Len())
}

func TestTableRejectsUnregistered(t *testing.T) {
	r, _, _, _ := classes(t)
	tbl := NewTable(r)
	type stray struct{ Base }
	assert.ErrorIs(t, tbl.Add(&stray{}), meta.ErrUnregisteredType)
}

func TestDefaultIsStable(t *testing.T) {
	r, tex, _, _ := classes(t)
	tbl := NewTable(r)

	d := tbl.Default(tex)
	require.NotNil(t, d)
	assert.Same(t, d, tbl.Default(tex))
	assert.Equal(t, "DefaultTexture", d.AssetName())

	custom := &texture{Width: 4}
	tbl.SetDefault(tex, custom)
	assert.Same(t, custom, tbl.Default(tex))
}

func TestLoaders(t *testing.T) {
	var seen Asset
	meshes := NewLoader("MeshLoader", ".emesh", func(a Asset) error {
		seen = a
		return nil
	})
	set, err := NewLoaders(meshes, NewLoader("SoundLoader", ".esnd", nil))
	require.NoError(t, err)
	assert.ErrorIs(t, set.Register(meshes), ErrLoaderExists)
	assert.Equal(t, []string{"MeshLoader", "SoundLoader"}, set.Names())

	l, ok := set.Get("MeshLoader")
	require.True(t, ok)
	a := &texture{}
	require.NoError(t, l.OnLoad(a))
	assert.Same(t, a, seen)

	a.SetAssetLoader(l)
	assert.Equal(t, "MeshLoader", LoaderName(a))
	assert.Equal(t, "", LoaderName(&texture{}))
}

func TestAs(t *testing.T) {
	_, ok := As(&texture{})
	assert.True(t, ok)
	_, ok = As(&struct{}{})
	assert.False(t, ok)
	_, ok = As(nil)
	assert.False(t, ok)
}
