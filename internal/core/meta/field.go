package meta

import (
	"bytes"
	"cmp"
	"fmt"
	"reflect"
	"slices"

	"github.com/google/uuid"
)

// Integer is the set of Go types an enum property can be declared with.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Field declares a value property: a primitive, string, vector, color,
// transform, UUID or entity handle. V must be the Go type of category.
func Field[O any, V any](name string, category Category, get func(O) V, set func(O, V), opts ...PropertyOption) *Property {
	p := newProperty(name, category, reflect.TypeFor[V](), opts)
	switch {
	case !category.Valid():
		p.fail(fmt.Errorf("%w: invalid category %s", ErrInvalidClass, category))
	case category == CategoryEnum || category == CategoryAsset || category == CategoryObject || category.IsContainer():
		p.fail(fmt.Errorf("%w: %s needs its own constructor", ErrInvalidClass, category))
	default:
		if err := checkGoType(category, p.goType); err != nil {
			p.fail(err)
		}
	}
	p.scalar = &scalarAccess{
		get: func(obj Object) (any, error) {
			o, err := cast[O](obj)
			if err != nil {
				return nil, err
			}
			return get(o), nil
		},
		set: func(obj Object, v any) error {
			o, err := cast[O](obj)
			if err != nil {
				return err
			}
			x, ok := v.(V)
			if !ok {
				return mismatch(name, p.goType, v)
			}
			if set == nil {
				return fmt.Errorf("%w: %s", ErrReadOnlyProperty, name)
			}
			set(o, x)
			return nil
		},
	}
	return p
}

// EntityField declares a reference to another entity of the same world.
func EntityField[O any](name string, get func(O) EntityHandle, set func(O, EntityHandle), opts ...PropertyOption) *Property {
	return Field(name, CategoryEntity, get, set, opts...)
}

// EnumField declares an enumeration. Values travel as int64.
func EnumField[O any, E Integer](name string, get func(O) E, set func(O, E), opts ...PropertyOption) *Property {
	p := newProperty(name, CategoryEnum, reflect.TypeFor[E](), opts)
	p.scalar = &scalarAccess{
		get: func(obj Object) (any, error) {
			o, err := cast[O](obj)
			if err != nil {
				return nil, err
			}
			return int64(get(o)), nil
		},
		set: func(obj Object, v any) error {
			o, err := cast[O](obj)
			if err != nil {
				return err
			}
			var e E
			switch x := v.(type) {
			case E:
				e = x
			case int64:
				e = E(x)
			default:
				return mismatch(name, p.goType, v)
			}
			if set == nil {
				return fmt.Errorf("%w: %s", ErrReadOnlyProperty, name)
			}
			set(o, e)
			return nil
		},
	}
	return p
}

// ObjectField declares a nested object of class className. The property
// owns its value unless FlagWeak is set.
func ObjectField[O any, V any](name, className string, get func(O) V, set func(O, V), opts ...PropertyOption) *Property {
	return referenceField(name, ObjectElem(className), get, set, opts)
}

// AssetField declares a reference to a shared asset of class className.
func AssetField[O any, V any](name, className string, get func(O) V, set func(O, V), opts ...PropertyOption) *Property {
	p := referenceField(name, AssetElem(className), get, set, opts)
	p.flags |= FlagWeak
	return p
}

func referenceField[O any, V any](name string, elem Element, get func(O) V, set func(O, V), opts []PropertyOption) *Property {
	p := newProperty(name, elem.Category, reflect.TypeFor[V](), opts)
	p.elem = elem
	if elem.ClassName == "" {
		p.fail(fmt.Errorf("%w: %s property without class", ErrInvalidClass, elem.Category))
	}
	if err := checkGoType(elem.Category, p.goType); err != nil {
		p.fail(err)
	}
	p.scalar = &scalarAccess{
		get: func(obj Object) (any, error) {
			o, err := cast[O](obj)
			if err != nil {
				return nil, err
			}
			v := any(get(o))
			if IsNil(v) {
				return nil, nil
			}
			return v, nil
		},
		set: func(obj Object, v any) error {
			o, err := cast[O](obj)
			if err != nil {
				return err
			}
			var x V
			if v != nil {
				var ok bool
				if x, ok = v.(V); !ok {
					return mismatch(name, p.goType, v)
				}
			}
			if set == nil {
				return fmt.Errorf("%w: %s", ErrReadOnlyProperty, name)
			}
			set(o, x)
			return nil
		},
	}
	return p
}

// elemConv moves container elements between their Go type and the
// category-level representation used by archivers.
type elemConv[E any] struct {
	toAny   func(E) any
	fromAny func(any) (E, error)
}

func newElemConv[E any](name string, elem Element) (elemConv[E], error) {
	t := reflect.TypeFor[E]()
	if !elem.Category.Valid() || elem.Category.IsContainer() {
		return elemConv[E]{}, fmt.Errorf("%w: element category %s", ErrInvalidClass, elem.Category)
	}
	if err := checkGoType(elem.Category, t); err != nil {
		return elemConv[E]{}, err
	}
	if (elem.Category == CategoryObject || elem.Category == CategoryAsset) && elem.ClassName == "" {
		return elemConv[E]{}, fmt.Errorf("%w: %s element without class", ErrInvalidClass, elem.Category)
	}

	switch elem.Category {
	case CategoryEnum:
		signed := t.Kind() >= reflect.Int && t.Kind() <= reflect.Int64
		return elemConv[E]{
			toAny: func(e E) any {
				rv := reflect.ValueOf(e)
				if signed {
					return rv.Int()
				}
				return int64(rv.Uint())
			},
			fromAny: func(v any) (E, error) {
				var zero E
				x, ok := v.(int64)
				if !ok {
					if e, ok := v.(E); ok {
						return e, nil
					}
					return zero, mismatch(name, t, v)
				}
				rv := reflect.New(t).Elem()
				if signed {
					rv.SetInt(x)
				} else {
					rv.SetUint(uint64(x))
				}
				return rv.Interface().(E), nil
			},
		}, nil
	case CategoryObject, CategoryAsset:
		return elemConv[E]{
			toAny: func(e E) any {
				if v := any(e); !IsNil(v) {
					return v
				}
				return nil
			},
			fromAny: func(v any) (E, error) {
				var zero E
				if v == nil {
					return zero, nil
				}
				e, ok := v.(E)
				if !ok {
					return zero, mismatch(name, t, v)
				}
				return e, nil
			},
		}, nil
	default:
		return elemConv[E]{
			toAny: func(e E) any { return e },
			fromAny: func(v any) (E, error) {
				e, ok := v.(E)
				if !ok {
					var zero E
					return zero, mismatch(name, t, v)
				}
				return e, nil
			},
		}, nil
	}
}

func checkIndex(i, n int) error {
	if i < 0 || i >= n {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, i, n)
	}
	return nil
}

// SliceField declares a growable array backed by a Go slice.
func SliceField[O any, E any](name string, elem Element, get func(O) *[]E, opts ...PropertyOption) *Property {
	p := newProperty(name, CategoryArray, reflect.TypeFor[[]E](), opts)
	p.elem = elem
	conv, err := newElemConv[E](name, elem)
	if err != nil {
		p.fail(err)
		return p
	}
	slice := func(obj Object) (*[]E, error) {
		o, err := cast[O](obj)
		if err != nil {
			return nil, err
		}
		return get(o), nil
	}
	p.array = &arrayAccess{
		length: func(obj Object) (int, error) {
			s, err := slice(obj)
			if err != nil {
				return 0, err
			}
			return len(*s), nil
		},
		get: func(obj Object, i int) (any, error) {
			s, err := slice(obj)
			if err != nil {
				return nil, err
			}
			if err = checkIndex(i, len(*s)); err != nil {
				return nil, err
			}
			return conv.toAny((*s)[i]), nil
		},
		set: func(obj Object, i int, v any) error {
			s, err := slice(obj)
			if err != nil {
				return err
			}
			if err = checkIndex(i, len(*s)); err != nil {
				return err
			}
			e, err := conv.fromAny(v)
			if err != nil {
				return err
			}
			(*s)[i] = e
			return nil
		},
		resize: func(obj Object, n int) error {
			s, err := slice(obj)
			if err != nil {
				return err
			}
			if n <= len(*s) {
				clear((*s)[n:])
				*s = (*s)[:n]
				return nil
			}
			*s = append(*s, make([]E, n-len(*s))...)
			return nil
		},
	}
	return p
}

// ArrayField declares a fixed capacity array. get must return a slice that
// aliases the backing array, for example o.Values[:].
func ArrayField[O any, E any](name string, elem Element, capacity int, get func(O) []E, opts ...PropertyOption) *Property {
	p := newProperty(name, CategoryArray, reflect.TypeFor[[]E](), opts)
	p.elem = elem
	p.fixedLen = capacity
	if capacity <= 0 {
		p.fail(fmt.Errorf("%w: fixed capacity %d", ErrInvalidClass, capacity))
	}
	conv, err := newElemConv[E](name, elem)
	if err != nil {
		p.fail(err)
		return p
	}
	view := func(obj Object) ([]E, error) {
		o, err := cast[O](obj)
		if err != nil {
			return nil, err
		}
		return get(o), nil
	}
	p.array = &arrayAccess{
		length: func(obj Object) (int, error) {
			s, err := view(obj)
			return len(s), err
		},
		get: func(obj Object, i int) (any, error) {
			s, err := view(obj)
			if err != nil {
				return nil, err
			}
			if err = checkIndex(i, len(s)); err != nil {
				return nil, err
			}
			return conv.toAny(s[i]), nil
		},
		set: func(obj Object, i int, v any) error {
			s, err := view(obj)
			if err != nil {
				return err
			}
			if err = checkIndex(i, len(s)); err != nil {
				return err
			}
			e, err := conv.fromAny(v)
			if err != nil {
				return err
			}
			s[i] = e
			return nil
		},
	}
	return p
}

// MapField declares a map from a primitive, string or UUID key to values
// described by elem.
func MapField[O any, K comparable, V any](name string, key Category, elem Element, get func(O) *map[K]V, opts ...PropertyOption) *Property {
	p := newProperty(name, CategoryMap, reflect.TypeFor[map[K]V](), opts)
	p.elem = elem
	p.key = key
	if !key.IsMapKey() {
		p.fail(fmt.Errorf("%w: %s cannot key a map", ErrInvalidClass, key))
		return p
	}
	if err := checkGoType(key, reflect.TypeFor[K]()); err != nil {
		p.fail(err)
		return p
	}
	conv, err := newElemConv[V](name, elem)
	if err != nil {
		p.fail(err)
		return p
	}
	table := func(obj Object) (*map[K]V, error) {
		o, err := cast[O](obj)
		if err != nil {
			return nil, err
		}
		m := get(o)
		if *m == nil {
			*m = make(map[K]V)
		}
		return m, nil
	}
	castKey := func(k any) (K, error) {
		x, ok := k.(K)
		if !ok {
			var zero K
			return zero, mismatch(name, reflect.TypeFor[K](), k)
		}
		return x, nil
	}
	p.dict = &mapAccess{
		length: func(obj Object) (int, error) {
			m, err := table(obj)
			if err != nil {
				return 0, err
			}
			return len(*m), nil
		},
		keys: func(obj Object) ([]any, error) {
			m, err := table(obj)
			if err != nil {
				return nil, err
			}
			keys := make([]K, 0, len(*m))
			for k := range *m {
				keys = append(keys, k)
			}
			slices.SortFunc(keys, func(a, b K) int { return compareKeys(a, b) })
			out := make([]any, len(keys))
			for i, k := range keys {
				out[i] = k
			}
			return out, nil
		},
		get: func(obj Object, k any) (any, bool, error) {
			m, err := table(obj)
			if err != nil {
				return nil, false, err
			}
			key, err := castKey(k)
			if err != nil {
				return nil, false, err
			}
			v, ok := (*m)[key]
			if !ok {
				return nil, false, nil
			}
			return conv.toAny(v), true, nil
		},
		set: func(obj Object, k, v any) error {
			m, err := table(obj)
			if err != nil {
				return err
			}
			key, err := castKey(k)
			if err != nil {
				return err
			}
			val, err := conv.fromAny(v)
			if err != nil {
				return err
			}
			(*m)[key] = val
			return nil
		},
		clear: func(obj Object) error {
			m, err := table(obj)
			if err != nil {
				return err
			}
			clear(*m)
			return nil
		},
	}
	return p
}

// compareKeys orders map keys of the same map key category.
func compareKeys(a, b any) int {
	switch x := a.(type) {
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case int8:
		return cmp.Compare(x, b.(int8))
	case int16:
		return cmp.Compare(x, b.(int16))
	case int32:
		return cmp.Compare(x, b.(int32))
	case int64:
		return cmp.Compare(x, b.(int64))
	case uint8:
		return cmp.Compare(x, b.(uint8))
	case uint16:
		return cmp.Compare(x, b.(uint16))
	case uint32:
		return cmp.Compare(x, b.(uint32))
	case uint64:
		return cmp.Compare(x, b.(uint64))
	case float32:
		return cmp.Compare(x, b.(float32))
	case float64:
		return cmp.Compare(x, b.(float64))
	case string:
		return cmp.Compare(x, b.(string))
	case uuid.UUID:
		y := b.(uuid.UUID)
		return bytes.Compare(x[:], y[:])
	default:
		return 0
	}
}
