package meta

import "math"

type Vec2 struct{ X, Y float32 }

type Vec3 struct{ X, Y, Z float32 }

type Vec4 struct{ X, Y, Z, W float32 }

type Int3 struct{ X, Y, Z int32 }

type Color struct{ R, G, B, A float32 }

// Quat is a rotation quaternion stored as X, Y, Z, W.
type Quat = Vec4

// EntityHandle addresses an entity slot in a world. Generation 0 never
// refers to a live entity.
type EntityHandle struct {
	Index      uint32
	Generation uint32
}

// InvalidEntity is the zero handle.
var InvalidEntity = EntityHandle{}

func (h EntityHandle) Valid() bool { return h.Generation != 0 }

// Transform is a local position, rotation and scale.
type Transform struct {
	Position Vec3
	Rotation Quat
	Scale    Vec3
}

var (
	IdentityQuat      = Quat{W: 1}
	OneVec3           = Vec3{X: 1, Y: 1, Z: 1}
	IdentityTransform = Transform{Rotation: IdentityQuat, Scale: OneVec3}
	White             = Color{R: 1, G: 1, B: 1, A: 1}
)

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }

func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }

// Mul multiplies component-wise.
func (a Vec3) Mul(b Vec3) Vec3 { return Vec3{a.X * b.X, a.Y * b.Y, a.Z * b.Z} }

func (a Vec3) Scale(s float32) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

// Div divides component-wise. Zero components of b yield zero.
func (a Vec3) Div(b Vec3) Vec3 {
	div := func(x, y float32) float32 {
		if y == 0 {
			return 0
		}
		return x / y
	}
	return Vec3{div(a.X, b.X), div(a.Y, b.Y), div(a.Z, b.Z)}
}

// QuatMul returns q*r, which applies r first and q second.
func QuatMul(q, r Quat) Quat {
	return Quat{
		X: q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		Y: q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		Z: q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
		W: q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
	}
}

// QuatInverse returns the inverse rotation of q.
func QuatInverse(q Quat) Quat {
	n := q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W
	if n == 0 {
		return IdentityQuat
	}
	return Quat{X: -q.X / n, Y: -q.Y / n, Z: -q.Z / n, W: q.W / n}
}

// QuatRotate applies the rotation q to v.
func QuatRotate(q Quat, v Vec3) Vec3 {
	u := Vec3{q.X, q.Y, q.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}

// QuatAxisAngle builds a rotation of angle radians around a unit axis.
func QuatAxisAngle(axis Vec3, angle float64) Quat {
	s := float32(math.Sin(angle / 2))
	return Quat{X: axis.X * s, Y: axis.Y * s, Z: axis.Z * s, W: float32(math.Cos(angle / 2))}
}

// Compose returns the world transform of a child with local transform local
// under a parent with world transform parent.
func Compose(parent, local Transform) Transform {
	return Transform{
		Position: parent.Position.Add(QuatRotate(parent.Rotation, parent.Scale.Mul(local.Position))),
		Rotation: QuatMul(parent.Rotation, local.Rotation),
		Scale:    parent.Scale.Mul(local.Scale),
	}
}

// Relative is the inverse of Compose: it returns the local transform that
// places world under parent.
func Relative(parent, world Transform) Transform {
	inv := QuatInverse(parent.Rotation)
	return Transform{
		Position: QuatRotate(inv, world.Position.Sub(parent.Position)).Div(parent.Scale),
		Rotation: QuatMul(inv, world.Rotation),
		Scale:    world.Scale.Div(parent.Scale),
	}
}
