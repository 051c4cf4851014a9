// Package components registers the engine classes persisted by the archive:
// the Mesh and Material assets and the components attached to entities.
package components

import (
	"errors"

	"github.com/google/uuid"
	"github.com/zeusync/metacore/internal/core/asset"
	"github.com/zeusync/metacore/internal/core/meta"
)

const (
	MeshClassName       = "Mesh"
	MaterialClassName   = "Material"
	StaticMeshClassName = "StaticMeshComponent"
	PointLightClassName = "PointLightComponent"
	TagsClassName       = "TagsComponent"
)

type ShadingModel uint8

const (
	ShadingLit ShadingModel = iota
	ShadingUnlit
	ShadingToon
)

type Mesh struct {
	asset.Base
	Vertices []meta.Vec3
	Indices  []uint32

	// Extent is the half size of the vertex bounding box, computed on load.
	Extent meta.Vec3
}

type Material struct {
	asset.Base
	Albedo    meta.Color
	Roughness float32
	Metallic  float32
	Shading   ShadingModel
	// Textures maps a shader slot to the texture asset bound to it.
	Textures map[string]uuid.UUID
}

type StaticMeshComponent struct {
	Mesh        *Mesh
	Materials   []*Material
	CastShadows bool
}

type PointLightComponent struct {
	Color     meta.Color
	Intensity float32
	Radius    float32
	// Target is the entity the light follows, if any.
	Target meta.EntityHandle
}

type TagsComponent struct {
	Tags   []string
	Labels map[string]string
}

type registrar interface {
	Register(*meta.Registry) (*meta.Class, error)
}

// Register adds every class of the package to r.
func Register(r *meta.Registry) error {
	mesh := meta.NewClass[Mesh](MeshClassName).Properties(
		meta.SliceField("Vertices", meta.Elem(meta.CategoryVec3),
			func(m *Mesh) *[]meta.Vec3 { return &m.Vertices }),
		meta.SliceField("Indices", meta.Elem(meta.CategoryUint32),
			func(m *Mesh) *[]uint32 { return &m.Indices }),
		meta.Field("Extent", meta.CategoryVec3,
			func(m *Mesh) meta.Vec3 { return m.Extent },
			func(m *Mesh, v meta.Vec3) { m.Extent = v },
			meta.WithFlags(meta.FlagTransient|meta.FlagReadOnly)),
	)

	material := meta.NewClass[Material](MaterialClassName).
		Init(func(m *Material) {
			m.Albedo = meta.White
			m.Roughness = 0.5
		}).
		Properties(
			meta.Field("Albedo", meta.CategoryColor,
				func(m *Material) meta.Color { return m.Albedo },
				func(m *Material, v meta.Color) { m.Albedo = v }),
			meta.Field("Roughness", meta.CategoryFloat32,
				func(m *Material) float32 { return m.Roughness },
				func(m *Material, v float32) { m.Roughness = v }),
			meta.Field("Metallic", meta.CategoryFloat32,
				func(m *Material) float32 { return m.Metallic },
				func(m *Material, v float32) { m.Metallic = v }),
			meta.EnumField("Shading",
				func(m *Material) ShadingModel { return m.Shading },
				func(m *Material, v ShadingModel) { m.Shading = v }),
			meta.MapField("Textures", meta.CategoryString, meta.Elem(meta.CategoryUUID),
				func(m *Material) *map[string]uuid.UUID { return &m.Textures }),
		)

	staticMesh := meta.NewClass[StaticMeshComponent](StaticMeshClassName).
		Init(func(c *StaticMeshComponent) { c.CastShadows = true }).
		Properties(
			meta.AssetField("Mesh", MeshClassName,
				func(c *StaticMeshComponent) *Mesh { return c.Mesh },
				func(c *StaticMeshComponent, v *Mesh) { c.Mesh = v }),
			meta.SliceField("Materials", meta.AssetElem(MaterialClassName),
				func(c *StaticMeshComponent) *[]*Material { return &c.Materials }),
			meta.Field("CastShadows", meta.CategoryBool,
				func(c *StaticMeshComponent) bool { return c.CastShadows },
				func(c *StaticMeshComponent, v bool) { c.CastShadows = v }),
		)

	pointLight := meta.NewClass[PointLightComponent](PointLightClassName).
		Init(func(c *PointLightComponent) {
			c.Color = meta.White
			c.Intensity = 1
			c.Radius = 10
		}).
		Properties(
			meta.Field("Color", meta.CategoryColor,
				func(c *PointLightComponent) meta.Color { return c.Color },
				func(c *PointLightComponent, v meta.Color) { c.Color = v }),
			meta.Field("Intensity", meta.CategoryFloat32,
				func(c *PointLightComponent) float32 { return c.Intensity },
				func(c *PointLightComponent, v float32) { c.Intensity = v }),
			meta.Field("Radius", meta.CategoryFloat32,
				func(c *PointLightComponent) float32 { return c.Radius },
				func(c *PointLightComponent, v float32) { c.Radius = v }),
			meta.EntityField("Target",
				func(c *PointLightComponent) meta.EntityHandle { return c.Target },
				func(c *PointLightComponent, v meta.EntityHandle) { c.Target = v }),
		)

	tags := meta.NewClass[TagsComponent](TagsClassName).Properties(
		meta.SliceField("Tags", meta.Elem(meta.CategoryString),
			func(c *TagsComponent) *[]string { return &c.Tags }),
		meta.MapField("Labels", meta.CategoryString, meta.Elem(meta.CategoryString),
			func(c *TagsComponent) *map[string]string { return &c.Labels }),
	)

	var errs []error
	for _, b := range []registrar{mesh, material, staticMesh, pointLight, tags} {
		if _, err := b.Register(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
