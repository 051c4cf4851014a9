package meta

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// Destroyer is implemented by objects that release resources when they are
// torn down.
type Destroyer interface {
	Destroy()
}

// Registry maps class names and Go types to class descriptors. Classes are
// registered during start up; once Freeze succeeds the registry is read only
// and safe for concurrent lookups.
type Registry struct {
	byName map[string]*Class
	byType map[reflect.Type]*Class
	order  []*Class
	nextID uint32
	frozen bool
}

func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Class),
		byType: make(map[reflect.Type]*Class),
	}
}

func (r *Registry) Register(c *Class) error {
	if r.frozen {
		return fmt.Errorf("%w: cannot register %s", ErrRegistryFrozen, c.name)
	}
	if _, ok := r.byName[c.name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, c.name)
	}
	if other, ok := r.byType[c.goType]; ok {
		return fmt.Errorf("%w: %s is already registered as %s", ErrAlreadyRegistered, c.goType, other.name)
	}
	r.nextID++
	c.typeID = r.nextID
	r.byName[c.name] = c
	r.byType[c.goType] = c
	r.order = append(r.order, c)
	return nil
}

// Freeze resolves the element classes of every property and rejects further
// registration.
func (r *Registry) Freeze() error {
	if r.frozen {
		return nil
	}
	var errs []error
	for _, c := range r.order {
		for _, p := range c.props {
			if p.elem.ClassName == "" {
				continue
			}
			ec, ok := r.byName[p.elem.ClassName]
			if !ok {
				errs = append(errs, fmt.Errorf("%w: %s.%s references %s", ErrUnresolvedClass, c.name, p.name, p.elem.ClassName))
				continue
			}
			p.elem.class = ec
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	r.frozen = true
	return nil
}

func (r *Registry) Frozen() bool { return r.frozen }

// Class looks a class up by name.
func (r *Registry) Class(name string) (*Class, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// ClassOf returns the class of a registered object.
func (r *Registry) ClassOf(obj Object) (*Class, error) {
	if obj == nil {
		return nil, ErrNilObject
	}
	c, ok := r.byType[reflect.TypeOf(obj)]
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnregisteredType, obj)
	}
	return c, nil
}

// ElementClass resolves the class of an element, also before Freeze.
func (r *Registry) ElementClass(e Element) (*Class, bool) {
	if e.class != nil {
		return e.class, true
	}
	return r.Class(e.ClassName)
}

// Classes returns every registered class sorted by name.
func (r *Registry) Classes() []*Class {
	out := slices.Clone(r.order)
	slices.SortFunc(out, func(a, b *Class) int { return strings.Compare(a.name, b.name) })
	return out
}

// Construct builds a default instance of the named class.
func (r *Registry) Construct(name string) (Object, error) {
	c, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnregisteredType, name)
	}
	return c.Construct(), nil
}

// WalkOwned calls fn for every non-nil object obj owns directly: owned
// object properties, and object elements of owned arrays and maps.
func (r *Registry) WalkOwned(obj Object, fn func(Object)) {
	if IsNil(obj) {
		return
	}
	c, err := r.ClassOf(obj)
	if err != nil {
		return
	}
	visit := func(v any, err error) {
		if err == nil && !IsNil(v) {
			fn(v)
		}
	}
	for _, p := range c.props {
		if p.Ownership() == Weak || p.elem.Category != CategoryObject {
			continue
		}
		switch p.category {
		case CategoryObject:
			visit(p.Get(obj))
		case CategoryArray:
			n, _ := p.Len(obj)
			for i := 0; i < n; i++ {
				visit(p.Index(obj, i))
			}
		case CategoryMap:
			keys, _ := p.Keys(obj)
			for _, k := range keys {
				v, _, err := p.Lookup(obj, k)
				visit(v, err)
			}
		}
	}
}

// Destroy tears obj down together with every object it owns. Owned objects
// are destroyed before their owner. Each hook runs once per destroyed
// object, after its Destroy.
func (r *Registry) Destroy(obj Object, hooks ...func(Object)) {
	if IsNil(obj) {
		return
	}
	r.WalkOwned(obj, func(v Object) { r.Destroy(v, hooks...) })
	if d, ok := obj.(Destroyer); ok {
		d.Destroy()
	}
	for _, hook := range hooks {
		hook(obj)
	}
}
