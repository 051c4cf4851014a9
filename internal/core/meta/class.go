package meta

import (
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"

	"github.com/cespare/xxhash/v2"
)

// Class is the runtime descriptor of a registered type: its name, its
// ordered properties and a constructor for default instances.
type Class struct {
	name      string
	typeID    uint32
	goType    reflect.Type
	construct func() Object
	props     []*Property
	byName    map[string]*Property
	bases     []*Class
	hash      uint64
}

func (c *Class) Name() string         { return c.name }
func (c *Class) TypeID() uint32       { return c.typeID }
func (c *Class) GoType() reflect.Type { return c.goType }

// Properties returns the properties in declaration order, embedded classes
// first. The slice must not be modified.
func (c *Class) Properties() []*Property { return c.props }

func (c *Class) NumProperties() int { return len(c.props) }

// Property returns the property called name, or nil.
func (c *Class) Property(name string) *Property { return c.byName[name] }

// Construct returns a new default instance.
func (c *Class) Construct() Object { return c.construct() }

// SchemaHash fingerprints the class layout: property names, categories and
// element descriptions. Two classes with equal hashes encode identically.
func (c *Class) SchemaHash() uint64 { return c.hash }

// Bases lists the classes embedded into c.
func (c *Class) Bases() []*Class { return c.bases }

// IsA reports whether c is other or embeds it, directly or transitively.
func (c *Class) IsA(other *Class) bool {
	if c == other {
		return true
	}
	for _, b := range c.bases {
		if b.IsA(other) {
			return true
		}
	}
	return false
}

func (c *Class) String() string { return c.name }

func (c *Class) computeHash() uint64 {
	d := xxhash.New()
	var scratch [4]byte
	writeInt := func(v int32) {
		binary.LittleEndian.PutUint32(scratch[:], uint32(v))
		_, _ = d.Write(scratch[:])
	}
	_, _ = d.WriteString(c.name)
	for _, p := range c.props {
		_, _ = d.WriteString(p.name)
		writeInt(int32(p.category))
		writeInt(int32(p.key))
		writeInt(int32(p.elem.Category))
		_, _ = d.WriteString(p.elem.ClassName)
		writeInt(int32(p.fixedLen))
		writeInt(int32(p.flags & FlagTransient))
	}
	return d.Sum64()
}

// ClassBuilder assembles the descriptor of the Go type T. Instances are *T.
type ClassBuilder[T any] struct {
	name  string
	init  func(*T)
	props []*Property
	bases []*Class
	errs  []error
}

func NewClass[T any](name string) *ClassBuilder[T] {
	return &ClassBuilder[T]{name: name}
}

// Init sets defaults on freshly constructed instances.
func (b *ClassBuilder[T]) Init(fn func(*T)) *ClassBuilder[T] {
	b.init = fn
	return b
}

// Embed copies the properties of base into the class. project returns the
// embedded base value, as a pointer, from an instance.
func (b *ClassBuilder[T]) Embed(base *Class, project func(*T) Object) *ClassBuilder[T] {
	if base == nil {
		b.errs = append(b.errs, fmt.Errorf("%w: embedding nil class into %s", ErrInvalidClass, b.name))
		return b
	}
	b.bases = append(b.bases, base)
	outer := func(obj Object) (Object, error) {
		o, err := cast[*T](obj)
		if err != nil {
			return nil, err
		}
		return project(o), nil
	}
	for _, bp := range base.props {
		p := *bp
		p.owner = nil
		if inner := bp.project; inner != nil {
			p.project = func(obj Object) (Object, error) {
				mid, err := outer(obj)
				if err != nil {
					return nil, err
				}
				return inner(mid)
			}
		} else {
			p.project = outer
		}
		b.props = append(b.props, &p)
	}
	return b
}

func (b *ClassBuilder[T]) Properties(props ...*Property) *ClassBuilder[T] {
	b.props = append(b.props, props...)
	return b
}

func (b *ClassBuilder[T]) Build() (*Class, error) {
	errs := append([]error(nil), b.errs...)
	if b.name == "" {
		errs = append(errs, fmt.Errorf("%w: empty class name", ErrInvalidClass))
	}
	init := b.init
	c := &Class{
		name:   b.name,
		goType: reflect.TypeFor[*T](),
		construct: func() Object {
			v := new(T)
			if init != nil {
				init(v)
			}
			return v
		},
		props:  make([]*Property, 0, len(b.props)),
		byName: make(map[string]*Property, len(b.props)),
		bases:  b.bases,
	}
	for _, p := range b.props {
		if p.err != nil {
			errs = append(errs, p.err)
			continue
		}
		if _, dup := c.byName[p.name]; dup {
			errs = append(errs, fmt.Errorf("%w: duplicate property %q in %s", ErrInvalidClass, p.name, b.name))
			continue
		}
		if p.owner != nil && p.owner != c {
			errs = append(errs, fmt.Errorf("%w: property %q already belongs to %s", ErrInvalidClass, p.name, p.owner.name))
			continue
		}
		p.owner = c
		p.ordinal = len(c.props)
		c.props = append(c.props, p)
		c.byName[p.name] = p
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("class %s: %w", b.name, errors.Join(errs...))
	}
	c.hash = c.computeHash()
	return c, nil
}

// Register builds the class and adds it to r.
func (b *ClassBuilder[T]) Register(r *Registry) (*Class, error) {
	c, err := b.Build()
	if err != nil {
		return nil, err
	}
	if err = r.Register(c); err != nil {
		return nil, err
	}
	return c, nil
}

// MustRegister is Register for package level registration code.
func (b *ClassBuilder[T]) MustRegister(r *Registry) *Class {
	c, err := b.Register(r)
	if err != nil {
		panic(err)
	}
	return c
}
