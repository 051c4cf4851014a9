package components

import (
	"fmt"
	"math"

	"github.com/zeusync/metacore/internal/core/asset"
	"github.com/zeusync/metacore/internal/core/meta"
)

const (
	MeshLoaderName     = "MeshLoader"
	MaterialLoaderName = "MaterialLoader"
	AssetExtension     = ".easset"
)

// Loaders returns the loaders owning the assets of this package.
func Loaders() []asset.Loader {
	return []asset.Loader{
		asset.NewLoader(MeshLoaderName, AssetExtension, loadMesh),
		asset.NewLoader(MaterialLoaderName, AssetExtension, loadMaterial),
	}
}

func loadMesh(x asset.Asset) error {
	m, ok := x.(*Mesh)
	if !ok {
		return fmt.Errorf("%w: %T is not a mesh", asset.ErrClassMismatch, x)
	}
	for _, i := range m.Indices {
		if int(i) >= len(m.Vertices) {
			return fmt.Errorf("mesh %s: index %d out of %d vertices", m.AssetName(), i, len(m.Vertices))
		}
	}
	m.Extent = extent(m.Vertices)
	return nil
}

func extent(vs []meta.Vec3) meta.Vec3 {
	if len(vs) == 0 {
		return meta.Vec3{}
	}
	lo, hi := vs[0], vs[0]
	for _, v := range vs[1:] {
		lo = meta.Vec3{X: min(lo.X, v.X), Y: min(lo.Y, v.Y), Z: min(lo.Z, v.Z)}
		hi = meta.Vec3{X: max(hi.X, v.X), Y: max(hi.Y, v.Y), Z: max(hi.Z, v.Z)}
	}
	return hi.Sub(lo).Scale(0.5)
}

func loadMaterial(x asset.Asset) error {
	m, ok := x.(*Material)
	if !ok {
		return fmt.Errorf("%w: %T is not a material", asset.ErrClassMismatch, x)
	}
	m.Roughness = clamp01(m.Roughness)
	m.Metallic = clamp01(m.Metallic)
	return nil
}

func clamp01(v float32) float32 {
	if math.IsNaN(float64(v)) {
		return 0
	}
	return min(max(v, 0), 1)
}
