package components

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/metacore/internal/core/archive"
	"github.com/zeusync/metacore/internal/core/asset"
	"github.com/zeusync/metacore/internal/core/meta"
)

func setup(t *testing.T) (*archive.AssetArchiver, *asset.Table) {
	t.Helper()
	r := meta.NewRegistry()
	require.NoError(t, meta.RegisterBuiltins(r))
	require.NoError(t, Register(r))
	require.NoError(t, r.Freeze())

	table := asset.NewTable(r)
	loaders, err := asset.NewLoaders(Loaders()...)
	require.NoError(t, err)
	return archive.NewAssetArchiver(archive.NewObjectArchiver(r, table), loaders), table
}

func loader(t *testing.T, a *archive.AssetArchiver, name string) asset.Loader {
	t.Helper()
	l, ok := a.Loaders().Get(name)
	require.True(t, ok)
	return l
}

func TestRegisterDeclaresClasses(t *testing.T) {
	a, _ := setup(t)
	r := a.Objects().Registry()
	for _, name := range []string{MeshClassName, MaterialClassName, StaticMeshClassName, PointLightClassName, TagsClassName} {
		_, ok := r.Class(name)
		assert.True(t, ok, name)
	}

	mesh, _ := r.Class(MeshClassName)
	assert.True(t, mesh.Property("Extent").Transient())
	sm, _ := r.Class(StaticMeshClassName)
	assert.Equal(t, meta.Weak, sm.Property("Mesh").Ownership())

	c := sm.Construct().(*StaticMeshComponent)
	assert.True(t, c.CastShadows)
}

func TestStaticMeshRoundTrip(t *testing.T) {
	a, table := setup(t)
	mesh := &Mesh{Vertices: []meta.Vec3{{X: 1}}}
	mat := &Material{Albedo: meta.Color{R: 1, A: 1}, Textures: map[string]uuid.UUID{"albedo": uuid.New()}}
	require.NoError(t, table.Add(mesh))
	require.NoError(t, table.Add(mat))

	objs := a.Objects()
	data, err := objs.Serialize(&StaticMeshComponent{Mesh: mesh, Materials: []*Material{mat, nil}})
	require.NoError(t, err)

	out, err := objs.Deserialize(data)
	require.NoError(t, err)
	c := out.(*StaticMeshComponent)
	assert.Same(t, mesh, c.Mesh)
	require.Len(t, c.Materials, 2)
	assert.Same(t, mat, c.Materials[0])
	assert.False(t, c.CastShadows)
	// an unset slot resolves to the default material
	matClass, _ := objs.Registry().Class(MaterialClassName)
	def, ok := table.Default(matClass).(*Material)
	require.True(t, ok)
	assert.Same(t, def, c.Materials[1])
}

func TestUnresolvedMeshFallsBackToDefault(t *testing.T) {
	a, table := setup(t)
	objs := a.Objects()
	data, err := objs.Serialize(&StaticMeshComponent{Mesh: &Mesh{}})
	require.NoError(t, err)

	out, err := objs.Deserialize(data)
	require.NoError(t, err)
	c := out.(*StaticMeshComponent)
	require.NotNil(t, c.Mesh)
	assert.Equal(t, "DefaultMesh", c.Mesh.AssetName())
	mesh, _ := objs.Registry().Class(MeshClassName)
	assert.Same(t, table.Default(mesh), asset.Asset(c.Mesh))
}

func TestMeshLoaderComputesExtent(t *testing.T) {
	a, _ := setup(t)
	m := &Mesh{
		Vertices: []meta.Vec3{{X: -1, Y: 0, Z: 2}, {X: 3, Y: 4, Z: -2}},
		Indices:  []uint32{0, 1, 1},
		Extent:   meta.Vec3{X: 99},
	}
	m.SetAssetName("quad")
	m.SetAssetLoader(loader(t, a, MeshLoaderName))

	data, err := a.Serialize(m)
	require.NoError(t, err)
	out, err := a.Deserialize(data)
	require.NoError(t, err)
	assert.Equal(t, meta.Vec3{X: 2, Y: 2, Z: 2}, out.(*Mesh).Extent)
}

func TestMeshLoaderRejectsBadIndices(t *testing.T) {
	a, _ := setup(t)
	m := &Mesh{Vertices: []meta.Vec3{{}}, Indices: []uint32{3}}
	m.SetAssetLoader(loader(t, a, MeshLoaderName))

	data, err := a.Serialize(m)
	require.NoError(t, err)
	_, err = a.Deserialize(data)
	assert.ErrorContains(t, err, "out of 1 vertices")
}

func TestMaterialLoaderClamps(t *testing.T) {
	a, _ := setup(t)
	m := &Material{Roughness: 4, Metallic: -1, Shading: ShadingToon}
	m.SetAssetLoader(loader(t, a, MaterialLoaderName))

	data, err := a.Serialize(m)
	require.NoError(t, err)
	out, err := a.Deserialize(data)
	require.NoError(t, err)
	got := out.(*Material)
	assert.Equal(t, float32(1), got.Roughness)
	assert.Equal(t, float32(0), got.Metallic)
	assert.Equal(t, ShadingToon, got.Shading)
}

func TestTagsRoundTrip(t *testing.T) {
	a, _ := setup(t)
	in := &TagsComponent{Tags: []string{"enemy", ""}, Labels: map[string]string{"team": "red"}}
	data, err := a.Objects().Serialize(in)
	require.NoError(t, err)
	out, err := a.Objects().Deserialize(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
