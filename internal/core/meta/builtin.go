package meta

// TransformClassName names the class describing Transform values held as
// objects, such as the local transform of an entity.
const TransformClassName = "Transform"

// RegisterBuiltins adds the classes every registry needs.
func RegisterBuiltins(r *Registry) error {
	_, err := NewClass[Transform](TransformClassName).
		Init(func(t *Transform) { *t = IdentityTransform }).
		Properties(
			Field("Position", CategoryVec3,
				func(t *Transform) Vec3 { return t.Position },
				func(t *Transform, v Vec3) { t.Position = v }),
			Field("Rotation", CategoryVec4,
				func(t *Transform) Quat { return t.Rotation },
				func(t *Transform, v Quat) { t.Rotation = v }),
			Field("Scale", CategoryVec3,
				func(t *Transform) Vec3 { return t.Scale },
				func(t *Transform, v Vec3) { t.Scale = v }),
		).
		Register(r)
	return err
}
