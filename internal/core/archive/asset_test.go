package archive

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/metacore/internal/core/asset"
	"github.com/zeusync/metacore/internal/core/meta"
	"github.com/zeusync/metacore/pkg/bytebuffer"
)

func newAssetArchiver(t *testing.T, loaders ...asset.Loader) (*AssetArchiver, *meta.Registry) {
	t.Helper()
	r := newRegistry(t)
	objects, _ := newArchiver(t, r)
	set, err := asset.NewLoaders(loaders...)
	require.NoError(t, err)
	return NewAssetArchiver(objects, set), r
}

func TestAssetRoundTrip(t *testing.T) {
	var loaded []string
	loader := asset.NewLoader("textures", ".tex", func(x asset.Asset) error {
		loaded = append(loaded, x.AssetName())
		return nil
	})
	a, _ := newAssetArchiver(t, loader)

	tex := &texture{Width: 256}
	tex.SetAssetID(uuid.New())
	tex.SetAssetName("grass")
	tex.SetAssetLoader(loader)

	data, err := a.Serialize(tex)
	require.NoError(t, err)

	out, err := a.Deserialize(data)
	require.NoError(t, err)
	got, ok := out.(*texture)
	require.True(t, ok)
	assert.Equal(t, tex.AssetID(), got.AssetID())
	assert.Equal(t, "grass", got.AssetName())
	assert.Equal(t, int32(256), got.Width)
	assert.Same(t, loader, got.AssetLoader())
	assert.Equal(t, []string{"grass"}, loaded)
}

func TestAssetMissingLoaderStillDecodes(t *testing.T) {
	tex := &texture{Width: 1}
	tex.SetAssetName("orphan")
	tex.SetAssetLoader(asset.NewLoader("gone", ".x", nil))

	a, _ := newAssetArchiver(t)
	data, err := a.Serialize(tex)
	require.NoError(t, err)

	out, err := a.Deserialize(data)
	require.NoError(t, err)
	assert.Nil(t, out.AssetLoader())
	assert.Equal(t, "orphan", out.AssetName())
}

func TestAssetLoaderFailure(t *testing.T) {
	boom := errors.New("boom")
	loader := asset.NewLoader("bad", ".bad", func(asset.Asset) error { return boom })
	a, _ := newAssetArchiver(t, loader)

	tex := &texture{}
	tex.SetAssetLoader(loader)
	data, err := a.Serialize(tex)
	require.NoError(t, err)

	_, err = a.Deserialize(data)
	assert.ErrorIs(t, err, boom)
}

func TestAssetReloadInPlace(t *testing.T) {
	a, _ := newAssetArchiver(t)
	live := &texture{Width: 8}
	live.SetAssetID(uuid.New())
	live.SetAssetName("old")

	edited := &texture{Width: 512}
	edited.SetAssetID(live.AssetID())
	edited.SetAssetName("new")
	data, err := a.Serialize(edited)
	require.NoError(t, err)

	require.NoError(t, a.Reload(bytebuffer.FromBytes(data), live))
	assert.Equal(t, int32(512), live.Width)
	assert.Equal(t, "new", live.AssetName())
	assert.Equal(t, edited.AssetID(), live.AssetID())
}

func TestAssetReloadRejectsOtherClass(t *testing.T) {
	a, _ := newAssetArchiver(t)
	data, err := a.Objects().Serialize(&tint{})
	require.NoError(t, err)

	err = a.Reload(bytebuffer.FromBytes(data), &texture{})
	assert.ErrorIs(t, err, ErrClassMismatch)
}

func TestAssetRejectsNonAssetClass(t *testing.T) {
	a, _ := newAssetArchiver(t)
	data, err := a.Objects().Serialize(&tint{})
	require.NoError(t, err)

	_, err = a.Deserialize(data)
	assert.ErrorIs(t, err, asset.ErrNotAnAsset)
}

func TestBulkSkipsUnknownClasses(t *testing.T) {
	a, r := newAssetArchiver(t)
	first := &texture{Width: 1}
	first.SetAssetName("first")
	second := &texture{Width: 2}
	second.SetAssetName("second")

	// A registry that knows an extra asset class the reader does not.
	type decal struct {
		asset.Base
		Depth float32
	}
	wr := meta.NewRegistry()
	registerTexture(t, wr)
	_, err := meta.NewClass[decal]("Decal").Properties(
		meta.Field("Depth", meta.CategoryFloat32,
			func(d *decal) float32 { return d.Depth },
			func(d *decal, v float32) { d.Depth = v }),
	).Register(wr)
	require.NoError(t, err)
	require.NoError(t, wr.Freeze())
	writer := NewAssetArchiver(NewObjectArchiver(wr, nil), nil)

	buf := bytebuffer.New()
	require.NoError(t, writer.SerializeBulk(buf, []asset.Asset{first, &decal{Depth: 1}, second}))

	byClass, err := a.DeserializeBulk(buf)
	require.NoError(t, err)
	texClass, ok := r.Class("Texture")
	require.True(t, ok)
	require.Len(t, byClass, 1)
	require.Len(t, byClass[texClass], 2)
	assert.Equal(t, "first", byClass[texClass][0].AssetName())
	assert.Equal(t, int32(2), byClass[texClass][1].(*texture).Width)
}

func TestBulkRejectsInflatedCount(t *testing.T) {
	a, _ := newAssetArchiver(t)
	buf := bytebuffer.New()
	buf.WriteUint32(1 << 30)

	_, err := a.DeserializeBulk(buf)
	assert.ErrorIs(t, err, bytebuffer.ErrCorruptData)
}

func TestAssetFiles(t *testing.T) {
	a, r := newAssetArchiver(t)
	dir := t.TempDir()

	tex := &texture{Width: 32}
	tex.SetAssetID(uuid.New())
	tex.SetAssetName("stone")
	path := filepath.Join(dir, "stone.tex")
	require.NoError(t, a.SaveFile(path, tex))

	out, err := a.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, tex.AssetID(), out.AssetID())
	assert.Equal(t, int32(32), out.(*texture).Width)

	bulk := filepath.Join(dir, "all.bulk")
	require.NoError(t, a.SaveBulkFile(bulk, []asset.Asset{tex, out}))
	byClass, err := a.LoadBulkFile(bulk)
	require.NoError(t, err)
	texClass, _ := r.Class("Texture")
	assert.Len(t, byClass[texClass], 2)

	_, err = a.LoadFile(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, bytebuffer.ErrFileIO)
}
