package meta

import (
	"fmt"
	"reflect"
)

// Object is a pointer to a value whose type is registered in a Registry.
type Object = any

// Element describes the values held by an object, asset or container
// property.
type Element struct {
	Category  Category
	ClassName string

	class *Class
}

func Elem(category Category) Element { return Element{Category: category} }

func ObjectElem(className string) Element {
	return Element{Category: CategoryObject, ClassName: className}
}

func AssetElem(className string) Element {
	return Element{Category: CategoryAsset, ClassName: className}
}

// Class returns the resolved class of an object or asset element. It is nil
// until the class has been registered.
func (e Element) Class() *Class { return e.class }

type scalarAccess struct {
	get func(Object) (any, error)
	set func(Object, any) error
}

type arrayAccess struct {
	length func(Object) (int, error)
	get    func(Object, int) (any, error)
	set    func(Object, int, any) error
	resize func(Object, int) error
}

type mapAccess struct {
	length func(Object) (int, error)
	keys   func(Object) ([]any, error)
	get    func(Object, any) (any, bool, error)
	set    func(Object, any, any) error
	clear  func(Object) error
}

// Property describes one named, typed member of a class together with the
// accessors that read and write it on an instance.
type Property struct {
	name     string
	category Category
	flags    Flags
	ordinal  int
	owner    *Class
	goType   reflect.Type

	elem     Element
	key      Category
	fixedLen int

	project func(Object) (Object, error)
	scalar  *scalarAccess
	array   *arrayAccess
	dict    *mapAccess

	err error
}

type PropertyOption func(*Property)

func WithFlags(flags Flags) PropertyOption {
	return func(p *Property) { p.flags |= flags }
}

func newProperty(name string, category Category, goType reflect.Type, opts []PropertyOption) *Property {
	p := &Property{name: name, category: category, goType: goType, ordinal: -1}
	for _, opt := range opts {
		opt(p)
	}
	if name == "" {
		p.err = fmt.Errorf("%w: empty property name", ErrInvalidClass)
	}
	return p
}

func (p *Property) fail(err error) {
	if p.err == nil {
		p.err = fmt.Errorf("property %q: %w", p.name, err)
	}
}

func (p *Property) Name() string         { return p.name }
func (p *Property) Category() Category   { return p.category }
func (p *Property) Flags() Flags         { return p.flags }
func (p *Property) Has(flag Flags) bool  { return p.flags.Has(flag) }
func (p *Property) Ordinal() int         { return p.ordinal }
func (p *Property) Owner() *Class        { return p.owner }
func (p *Property) GoType() reflect.Type { return p.goType }

// Element returns the class of an object or asset property, the element of
// an array, or the value side of a map.
func (p *Property) Element() Element { return p.elem }

// KeyCategory is the category of map keys.
func (p *Property) KeyCategory() Category { return p.key }

// FixedLen is the capacity of a fixed array, 0 for growable arrays.
func (p *Property) FixedLen() int { return p.fixedLen }

func (p *Property) Transient() bool { return p.flags.Has(FlagTransient) }

func (p *Property) Ownership() Ownership {
	if p.flags.Has(FlagWeak) {
		return Weak
	}
	return Owned
}

func (p *Property) String() string {
	return fmt.Sprintf("%s(%s)", p.name, p.category)
}

func (p *Property) target(obj Object) (Object, error) {
	if obj == nil {
		return nil, ErrNilObject
	}
	if p.project == nil {
		return obj, nil
	}
	return p.project(obj)
}

// Get reads a scalar, object, asset or entity property.
func (p *Property) Get(obj Object) (any, error) {
	if p.scalar == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotScalar, p)
	}
	o, err := p.target(obj)
	if err != nil {
		return nil, err
	}
	return p.scalar.get(o)
}

// Set writes a scalar, object, asset or entity property. Object and asset
// properties accept nil.
func (p *Property) Set(obj Object, v any) error {
	if p.scalar == nil {
		return fmt.Errorf("%w: %s", ErrNotScalar, p)
	}
	o, err := p.target(obj)
	if err != nil {
		return err
	}
	return p.scalar.set(o, v)
}

func (p *Property) Len(obj Object) (int, error) {
	o, err := p.target(obj)
	if err != nil {
		return 0, err
	}
	switch {
	case p.array != nil:
		return p.array.length(o)
	case p.dict != nil:
		return p.dict.length(o)
	default:
		return 0, fmt.Errorf("%w: %s", ErrNotContainer, p)
	}
}

func (p *Property) arrayTarget(obj Object) (Object, error) {
	if p.array == nil {
		return nil, fmt.Errorf("%w: %s is not an array", ErrNotContainer, p)
	}
	return p.target(obj)
}

func (p *Property) Index(obj Object, i int) (any, error) {
	o, err := p.arrayTarget(obj)
	if err != nil {
		return nil, err
	}
	return p.array.get(o, i)
}

func (p *Property) SetIndex(obj Object, i int, v any) error {
	o, err := p.arrayTarget(obj)
	if err != nil {
		return err
	}
	return p.array.set(o, i, v)
}

// Resize changes the length of a growable array. Fixed arrays only accept
// their own capacity.
func (p *Property) Resize(obj Object, n int) error {
	o, err := p.arrayTarget(obj)
	if err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("%w: negative length %d", ErrIndexOutOfRange, n)
	}
	if p.array.resize == nil {
		if n != p.fixedLen {
			return fmt.Errorf("%w: %s holds %d elements, got %d", ErrFixedCapacity, p, p.fixedLen, n)
		}
		return nil
	}
	return p.array.resize(o, n)
}

func (p *Property) mapTarget(obj Object) (Object, error) {
	if p.dict == nil {
		return nil, fmt.Errorf("%w: %s is not a map", ErrNotContainer, p)
	}
	return p.target(obj)
}

// Keys returns the map keys in ascending order.
func (p *Property) Keys(obj Object) ([]any, error) {
	o, err := p.mapTarget(obj)
	if err != nil {
		return nil, err
	}
	return p.dict.keys(o)
}

func (p *Property) Lookup(obj Object, key any) (any, bool, error) {
	o, err := p.mapTarget(obj)
	if err != nil {
		return nil, false, err
	}
	return p.dict.get(o, key)
}

func (p *Property) SetKey(obj Object, key, v any) error {
	o, err := p.mapTarget(obj)
	if err != nil {
		return err
	}
	return p.dict.set(o, key, v)
}

// ClearMap removes every entry of a map property.
func (p *Property) ClearMap(obj Object) error {
	o, err := p.mapTarget(obj)
	if err != nil {
		return err
	}
	return p.dict.clear(o)
}

// GetValue reads p from obj as a T.
func GetValue[T any](p *Property, obj Object) (T, error) {
	var zero T
	v, err := p.Get(obj)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s holds %T, asked for %T", ErrTypeMismatch, p, v, zero)
	}
	return t, nil
}

// SetValue writes v into p on obj.
func SetValue[T any](p *Property, obj Object, v T) error {
	return p.Set(obj, v)
}

// IsNil reports whether v is nil or a nil pointer, interface, map or slice.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func cast[O any](obj Object) (O, error) {
	o, ok := obj.(O)
	if !ok {
		var zero O
		return zero, fmt.Errorf("%w: expected %T, got %T", ErrTypeMismatch, zero, obj)
	}
	return o, nil
}

func mismatch(p string, want reflect.Type, got any) error {
	return fmt.Errorf("%w: %s expects %s, got %T", ErrTypeMismatch, p, want, got)
}
