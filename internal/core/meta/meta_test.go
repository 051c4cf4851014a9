package meta

import (
	"math"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type shape uint8

const (
	shapeBox shape = iota + 1
	shapeSphere
)

type base struct {
	ID   uuid.UUID
	Name string
}

type part struct {
	base
	Mass    float32
	Shape   shape
	Offset  *Transform
	Weights []float64
	Slots   [3]int32
	Labels  map[string]int32
	Peer    *part
	closed  bool
}

func (p *part) Destroy() { p.closed = true }

func testRegistry(t *testing.T) (*Registry, *Class, *Class) {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, RegisterBuiltins(r))

	baseClass, err := NewClass[base]("Base").Properties(
		Field("ID", CategoryUUID,
			func(b *base) uuid.UUID { return b.ID },
			func(b *base, v uuid.UUID) { b.ID = v }),
		Field("Name", CategoryString,
			func(b *base) string { return b.Name },
			func(b *base, v string) { b.Name = v }),
	).Register(r)
	require.NoError(t, err)

	partClass, err := NewClass[part]("Part").
		Init(func(p *part) { p.Mass = 1 }).
		Embed(baseClass, func(p *part) Object { return &p.base }).
		Properties(
			Field("Mass", CategoryFloat32,
				func(p *part) float32 { return p.Mass },
				func(p *part, v float32) { p.Mass = v }),
			EnumField("Shape",
				func(p *part) shape { return p.Shape },
				func(p *part, v shape) { p.Shape = v }),
			ObjectField("Offset", TransformClassName,
				func(p *part) *Transform { return p.Offset },
				func(p *part, v *Transform) { p.Offset = v }),
			SliceField("Weights", Elem(CategoryFloat64),
				func(p *part) *[]float64 { return &p.Weights }),
			ArrayField("Slots", Elem(CategoryInt32), 3,
				func(p *part) []int32 { return p.Slots[:] }),
			MapField("Labels", CategoryString, Elem(CategoryInt32),
				func(p *part) *map[string]int32 { return &p.Labels }),
			ObjectField("Peer", "Part",
				func(p *part) *part { return p.Peer },
				func(p *part, v *part) { p.Peer = v },
				WithFlags(FlagWeak)),
		).Register(r)
	require.NoError(t, err)
	require.NoError(t, r.Freeze())
	return r, baseClass, partClass
}

func TestClassLayout(t *testing.T) {
	r, baseClass, partClass := testRegistry(t)

	names := make([]string, 0, partClass.NumProperties())
	for i, p := range partClass.Properties() {
		assert.Equal(t, i, p.Ordinal())
		assert.Same(t, partClass, p.Owner())
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"ID", "Name", "Mass", "Shape", "Offset", "Weights", "Slots", "Labels", "Peer"}, names)
	assert.Nil(t, partClass.Property("Missing"))
	assert.True(t, partClass.IsA(baseClass))
	assert.False(t, baseClass.IsA(partClass))

	offset := partClass.Property("Offset")
	tc, ok := r.Class(TransformClassName)
	require.True(t, ok)
	assert.Same(t, tc, offset.Element().Class())
	assert.Equal(t, Owned, offset.Ownership())
	assert.Equal(t, Weak, partClass.Property("Peer").Ownership())

	obj := partClass.Construct().(*part)
	assert.Equal(t, float32(1), obj.Mass)
	c, err := r.ClassOf(obj)
	require.NoError(t, err)
	assert.Same(t, partClass, c)

	_, err = r.ClassOf(&struct{}{})
	assert.ErrorIs(t, err, ErrUnregisteredType)
}

func TestRegistryRules(t *testing.T) {
	r := NewRegistry()
	_, err := NewClass[base]("Base").Register(r)
	require.NoError(t, err)

	_, err = NewClass[base]("Other").Register(r)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
	_, err = NewClass[part]("Base").Register(r)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	_, err = NewClass[part]("Part").Properties(
		ObjectField("Peer", "Nowhere",
			func(p *part) *part { return p.Peer },
			func(p *part, v *part) { p.Peer = v }),
	).Register(r)
	require.NoError(t, err)
	assert.ErrorIs(t, r.Freeze(), ErrUnresolvedClass)
	assert.False(t, r.Frozen())
}

func TestFrozenRegistryRejectsClasses(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Freeze())
	_, err := NewClass[base]("Base").Register(r)
	assert.ErrorIs(t, err, ErrRegistryFrozen)
}

func TestInvalidDeclarations(t *testing.T) {
	_, err := NewClass[part]("Bad").Properties(
		Field("Mass", CategoryFloat64,
			func(p *part) float32 { return p.Mass },
			func(p *part, v float32) { p.Mass = v }),
	).Build()
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = NewClass[part]("Dup").Properties(
		Field("Mass", CategoryFloat32,
			func(p *part) float32 { return p.Mass },
			func(p *part, v float32) { p.Mass = v }),
		Field("Mass", CategoryFloat32,
			func(p *part) float32 { return p.Mass },
			func(p *part, v float32) { p.Mass = v }),
	).Build()
	assert.ErrorIs(t, err, ErrInvalidClass)

	_, err = NewClass[part]("Keys").Properties(
		MapField("Labels", CategoryVec3, Elem(CategoryInt32),
			func(p *part) *map[string]int32 { return &p.Labels }),
	).Build()
	assert.ErrorIs(t, err, ErrInvalidClass)
}

func TestScalarAccess(t *testing.T) {
	_, _, partClass := testRegistry(t)
	obj := partClass.Construct().(*part)

	id := uuid.New()
	require.NoError(t, SetValue(partClass.Property("ID"), obj, id))
	require.NoError(t, partClass.Property("Name").Set(obj, "wheel"))
	assert.Equal(t, id, obj.ID)
	assert.Equal(t, "wheel", obj.Name)

	name, err := GetValue[string](partClass.Property("Name"), obj)
	require.NoError(t, err)
	assert.Equal(t, "wheel", name)

	_, err = GetValue[int32](partClass.Property("Name"), obj)
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.ErrorIs(t, partClass.Property("Mass").Set(obj, 2.0), ErrTypeMismatch)
	assert.ErrorIs(t, partClass.Property("Mass").Set(&base{}, float32(2)), ErrTypeMismatch)
	assert.ErrorIs(t, partClass.Property("Weights").Set(obj, nil), ErrNotScalar)
}

func TestEnumAccess(t *testing.T) {
	_, _, partClass := testRegistry(t)
	obj := partClass.Construct().(*part)
	p := partClass.Property("Shape")

	require.NoError(t, p.Set(obj, int64(shapeSphere)))
	assert.Equal(t, shapeSphere, obj.Shape)
	require.NoError(t, p.Set(obj, shapeBox))
	v, err := p.Get(obj)
	require.NoError(t, err)
	assert.Equal(t, int64(shapeBox), v)
}

func TestObjectAccess(t *testing.T) {
	_, _, partClass := testRegistry(t)
	obj := partClass.Construct().(*part)
	p := partClass.Property("Offset")

	v, err := p.Get(obj)
	require.NoError(t, err)
	assert.Nil(t, v)

	tr := IdentityTransform
	require.NoError(t, p.Set(obj, &tr))
	assert.Same(t, &tr, obj.Offset)
	require.NoError(t, p.Set(obj, nil))
	assert.Nil(t, obj.Offset)
}

func TestContainerAccess(t *testing.T) {
	_, _, partClass := testRegistry(t)
	obj := partClass.Construct().(*part)

	weights := partClass.Property("Weights")
	require.NoError(t, weights.Resize(obj, 3))
	require.NoError(t, weights.SetIndex(obj, 2, 0.5))
	assert.Equal(t, []float64{0, 0, 0.5}, obj.Weights)
	require.NoError(t, weights.Resize(obj, 1))
	require.NoError(t, weights.Resize(obj, 3))
	assert.Equal(t, []float64{0, 0, 0}, obj.Weights)
	_, err := weights.Index(obj, 3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	slots := partClass.Property("Slots")
	assert.Equal(t, 3, slots.FixedLen())
	require.NoError(t, slots.SetIndex(obj, 1, int32(9)))
	assert.Equal(t, [3]int32{0, 9, 0}, obj.Slots)
	assert.ErrorIs(t, slots.Resize(obj, 4), ErrFixedCapacity)
	assert.NoError(t, slots.Resize(obj, 3))

	labels := partClass.Property("Labels")
	require.NoError(t, labels.SetKey(obj, "b", int32(2)))
	require.NoError(t, labels.SetKey(obj, "a", int32(1)))
	keys, err := labels.Keys(obj)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, keys)
	v, ok, err := labels.Lookup(obj, "b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(2), v)
	require.NoError(t, labels.ClearMap(obj))
	n, err := labels.Len(obj)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = partClass.Property("Mass").Len(obj)
	assert.ErrorIs(t, err, ErrNotContainer)
}

func TestSchemaHash(t *testing.T) {
	_, _, a := testRegistry(t)
	_, _, b := testRegistry(t)
	assert.Equal(t, a.SchemaHash(), b.SchemaHash())

	other, err := NewClass[part]("Part").Properties(
		Field("Mass", CategoryFloat32,
			func(p *part) float32 { return p.Mass },
			func(p *part, v float32) { p.Mass = v }),
	).Build()
	require.NoError(t, err)
	assert.NotEqual(t, a.SchemaHash(), other.SchemaHash())
}

func TestOverrideTable(t *testing.T) {
	_, _, partClass := testRegistry(t)
	a := partClass.Construct()
	b := partClass.Construct()
	tbl := NewOverrideTable()

	tbl.Set(a, partClass.Property("Mass"))
	assert.True(t, tbl.SetByName(a, partClass, "Name"))
	assert.False(t, tbl.SetByName(a, partClass, "Nope"))

	assert.True(t, tbl.Has(a, partClass.Property("Mass")))
	assert.False(t, tbl.Has(b, partClass.Property("Mass")))
	assert.Equal(t, []string{"Name", "Mass"}, tbl.Names(a))

	tbl.Unset(a, partClass.Property("Mass"))
	tbl.Unset(a, partClass.Property("Name"))
	assert.Zero(t, tbl.Len())

	tbl.Set(b, partClass.Property("Labels"))
	tbl.Clear(b)
	assert.Nil(t, tbl.Get(b))
}

func TestDestroyOwnedOnly(t *testing.T) {
	r, _, partClass := testRegistry(t)
	root := partClass.Construct().(*part)
	peer := partClass.Construct().(*part)
	root.Peer = peer

	r.Destroy(root)
	assert.True(t, root.closed)
	assert.False(t, peer.closed)
}

type bolt struct {
	Size   int32
	closed bool
}

func (b *bolt) Destroy() { b.closed = true }

type rig struct {
	Main   *bolt
	Spares []*bolt
	ByName map[string]*bolt
	Loose  *bolt
}

func TestDestroyWalksOwnedContainers(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterBuiltins(r))
	_, err := NewClass[bolt]("Bolt").Properties(
		Field("Size", CategoryInt32,
			func(b *bolt) int32 { return b.Size },
			func(b *bolt, v int32) { b.Size = v }),
	).Register(r)
	require.NoError(t, err)
	_, err = NewClass[rig]("Rig").Properties(
		ObjectField("Main", "Bolt",
			func(x *rig) *bolt { return x.Main },
			func(x *rig, v *bolt) { x.Main = v }),
		SliceField("Spares", ObjectElem("Bolt"),
			func(x *rig) *[]*bolt { return &x.Spares }),
		MapField("ByName", CategoryString, ObjectElem("Bolt"),
			func(x *rig) *map[string]*bolt { return &x.ByName }),
		ObjectField("Loose", "Bolt",
			func(x *rig) *bolt { return x.Loose },
			func(x *rig, v *bolt) { x.Loose = v },
			WithFlags(FlagWeak)),
	).Register(r)
	require.NoError(t, err)
	require.NoError(t, r.Freeze())

	main, spare, named, loose := &bolt{}, &bolt{}, &bolt{}, &bolt{}
	x := &rig{Main: main, Spares: []*bolt{spare, nil}, ByName: map[string]*bolt{"n": named}, Loose: loose}

	var visited []Object
	r.Destroy(x, func(o Object) { visited = append(visited, o) })
	for _, b := range []*bolt{main, spare, named} {
		assert.True(t, b.closed)
	}
	assert.False(t, loose.closed, "weak references are not owned")
	require.Len(t, visited, 4)
	assert.Same(t, x, visited[3], "owner goes last")
}

func TestOverrideTableReplace(t *testing.T) {
	_, _, partClass := testRegistry(t)
	a := partClass.Construct()
	tbl := NewOverrideTable()
	tbl.Set(a, partClass.Property("Mass"))

	unknown := tbl.Replace(a, partClass, []string{"Name", "Ghost"})
	assert.Equal(t, []string{"Ghost"}, unknown)
	assert.Equal(t, []string{"Name"}, tbl.Names(a))

	assert.Empty(t, tbl.Replace(a, partClass, nil))
	assert.Zero(t, tbl.Len())
}

func TestOverrideTableConcurrentUse(t *testing.T) {
	_, _, partClass := testRegistry(t)
	tbl := NewOverrideTable()
	mass := partClass.Property("Mass")
	objs := make([]Object, 8)
	for i := range objs {
		objs[i] = partClass.Construct()
	}

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				o := objs[(i+w)%len(objs)]
				switch i % 4 {
				case 0:
					tbl.Set(o, mass)
				case 1:
					tbl.Replace(o, partClass, []string{"Name"})
				case 2:
					_ = tbl.Get(o)
					_ = tbl.Names(o)
				default:
					tbl.Clear(o)
				}
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, tbl.Len(), len(objs))
}

func TestTransformMath(t *testing.T) {
	parent := Transform{
		Position: Vec3{X: 10},
		Rotation: QuatAxisAngle(Vec3{Z: 1}, math.Pi/2),
		Scale:    Vec3{X: 2, Y: 2, Z: 2},
	}
	local := Transform{Position: Vec3{X: 1}, Rotation: IdentityQuat, Scale: OneVec3}

	world := Compose(parent, local)
	assert.InDelta(t, 10, world.Position.X, 1e-5)
	assert.InDelta(t, 2, world.Position.Y, 1e-5)

	back := Relative(parent, world)
	assert.InDelta(t, 1, back.Position.X, 1e-5)
	assert.InDelta(t, 0, back.Position.Y, 1e-5)
	assert.InDelta(t, 1, back.Rotation.W, 1e-5)
	assert.InDelta(t, 1, back.Scale.X, 1e-5)
}
