package archive

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/metacore/internal/core/asset"
	"github.com/zeusync/metacore/internal/core/meta"
)

type mood int16

const (
	moodCalm mood = iota
	moodAngry
)

type tint struct {
	Color    meta.Color
	Strength float32
}

type texture struct {
	asset.Base
	Width int32
}

type sample struct {
	B   bool
	I8  int8
	I16 int16
	I32 int32
	I64 int64
	U8  uint8
	U16 uint16
	U32 uint32
	U64 uint64
	F32 float32
	F64 float64
	S   string

	V2 meta.Vec2
	V3 meta.Vec3
	V4 meta.Vec4
	I3 meta.Int3
	C  meta.Color
	T  meta.Transform

	ID     uuid.UUID
	Mood   mood
	Tex    *texture
	Tint   *tint
	Shared *tint
	Target meta.EntityHandle

	Floats   []float32
	Tints    []*tint
	Textures []*texture
	Fixed    [2]uint16
	Scores   map[string]float64
	ByID     map[int32]*tint

	Cache string
}

func plain[V any](name string, c meta.Category, field func(*sample) *V) *meta.Property {
	return meta.Field(name, c,
		func(s *sample) V { return *field(s) },
		func(s *sample, v V) { *field(s) = v })
}

func registerTint(t *testing.T, r *meta.Registry) {
	t.Helper()
	_, err := meta.NewClass[tint]("Tint").
		Init(func(x *tint) { x.Color = meta.White; x.Strength = 1 }).
		Properties(
			meta.Field("Color", meta.CategoryColor,
				func(x *tint) meta.Color { return x.Color },
				func(x *tint, v meta.Color) { x.Color = v }),
			meta.Field("Strength", meta.CategoryFloat32,
				func(x *tint) float32 { return x.Strength },
				func(x *tint, v float32) { x.Strength = v }),
		).Register(r)
	require.NoError(t, err)
}

func registerTexture(t *testing.T, r *meta.Registry) {
	t.Helper()
	_, err := meta.NewClass[texture]("Texture").Properties(
		meta.Field("Width", meta.CategoryInt32,
			func(x *texture) int32 { return x.Width },
			func(x *texture, v int32) { x.Width = v }),
	).Register(r)
	require.NoError(t, err)
}

func sampleProperties() []*meta.Property {
	return []*meta.Property{
		plain("B", meta.CategoryBool, func(s *sample) *bool { return &s.B }),
		plain("I8", meta.CategoryInt8, func(s *sample) *int8 { return &s.I8 }),
		plain("I16", meta.CategoryInt16, func(s *sample) *int16 { return &s.I16 }),
		plain("I32", meta.CategoryInt32, func(s *sample) *int32 { return &s.I32 }),
		plain("I64", meta.CategoryInt64, func(s *sample) *int64 { return &s.I64 }),
		plain("U8", meta.CategoryUint8, func(s *sample) *uint8 { return &s.U8 }),
		plain("U16", meta.CategoryUint16, func(s *sample) *uint16 { return &s.U16 }),
		plain("U32", meta.CategoryUint32, func(s *sample) *uint32 { return &s.U32 }),
		plain("U64", meta.CategoryUint64, func(s *sample) *uint64 { return &s.U64 }),
		plain("F32", meta.CategoryFloat32, func(s *sample) *float32 { return &s.F32 }),
		plain("F64", meta.CategoryFloat64, func(s *sample) *float64 { return &s.F64 }),
		plain("S", meta.CategoryString, func(s *sample) *string { return &s.S }),
		plain("V2", meta.CategoryVec2, func(s *sample) *meta.Vec2 { return &s.V2 }),
		plain("V3", meta.CategoryVec3, func(s *sample) *meta.Vec3 { return &s.V3 }),
		plain("V4", meta.CategoryVec4, func(s *sample) *meta.Vec4 { return &s.V4 }),
		plain("I3", meta.CategoryInt3, func(s *sample) *meta.Int3 { return &s.I3 }),
		plain("C", meta.CategoryColor, func(s *sample) *meta.Color { return &s.C }),
		plain("T", meta.CategoryTransform, func(s *sample) *meta.Transform { return &s.T }),
		plain("ID", meta.CategoryUUID, func(s *sample) *uuid.UUID { return &s.ID }),
		plain("Target", meta.CategoryEntity, func(s *sample) *meta.EntityHandle { return &s.Target }),
		meta.EnumField("Mood",
			func(s *sample) mood { return s.Mood },
			func(s *sample, v mood) { s.Mood = v }),
		meta.AssetField("Tex", "Texture",
			func(s *sample) *texture { return s.Tex },
			func(s *sample, v *texture) { s.Tex = v }),
		meta.ObjectField("Tint", "Tint",
			func(s *sample) *tint { return s.Tint },
			func(s *sample, v *tint) { s.Tint = v }),
		meta.ObjectField("Shared", "Tint",
			func(s *sample) *tint { return s.Shared },
			func(s *sample, v *tint) { s.Shared = v },
			meta.WithFlags(meta.FlagWeak)),
		meta.SliceField("Floats", meta.Elem(meta.CategoryFloat32),
			func(s *sample) *[]float32 { return &s.Floats }),
		meta.SliceField("Tints", meta.ObjectElem("Tint"),
			func(s *sample) *[]*tint { return &s.Tints }),
		meta.SliceField("Textures", meta.AssetElem("Texture"),
			func(s *sample) *[]*texture { return &s.Textures }),
		meta.ArrayField("Fixed", meta.Elem(meta.CategoryUint16), 2,
			func(s *sample) []uint16 { return s.Fixed[:] }),
		meta.MapField("Scores", meta.CategoryString, meta.Elem(meta.CategoryFloat64),
			func(s *sample) *map[string]float64 { return &s.Scores }),
		meta.MapField("ByID", meta.CategoryInt32, meta.ObjectElem("Tint"),
			func(s *sample) *map[int32]*tint { return &s.ByID }),
		meta.Field("Cache", meta.CategoryString,
			func(s *sample) string { return s.Cache },
			func(s *sample, v string) { s.Cache = v },
			meta.WithFlags(meta.FlagTransient)),
	}
}

// newRegistry registers Tint, Texture and a Sample class built from props.
func newRegistry(t *testing.T, props ...*meta.Property) *meta.Registry {
	t.Helper()
	r := meta.NewRegistry()
	require.NoError(t, meta.RegisterBuiltins(r))
	registerTint(t, r)
	registerTexture(t, r)
	if props == nil {
		props = sampleProperties()
	}
	_, err := meta.NewClass[sample]("Sample").Properties(props...).Register(r)
	require.NoError(t, err)
	require.NoError(t, r.Freeze())
	return r
}

func newArchiver(t *testing.T, r *meta.Registry) (*ObjectArchiver, *asset.Table) {
	t.Helper()
	table := asset.NewTable(r)
	return NewObjectArchiver(r, table), table
}
