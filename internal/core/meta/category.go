package meta

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

// Category is the wire-level kind of a property. The numeric values are
// persisted and must never be reordered.
type Category int32

const (
	CategoryInvalid Category = iota
	CategoryBool
	CategoryInt8
	CategoryInt16
	CategoryInt32
	CategoryInt64
	CategoryUint8
	CategoryUint16
	CategoryUint32
	CategoryUint64
	CategoryFloat32
	CategoryFloat64
	CategoryString
	CategoryVec2
	CategoryVec3
	CategoryVec4
	CategoryInt3
	CategoryColor
	CategoryTransform
	CategoryUUID
	CategoryEnum
	CategoryAsset
	CategoryObject
	CategoryEntity
	CategoryArray
	CategoryMap
	categoryCount
)

var categoryNames = [...]string{
	CategoryInvalid:   "Invalid",
	CategoryBool:      "Bool",
	CategoryInt8:      "Int8",
	CategoryInt16:     "Int16",
	CategoryInt32:     "Int32",
	CategoryInt64:     "Int64",
	CategoryUint8:     "Uint8",
	CategoryUint16:    "Uint16",
	CategoryUint32:    "Uint32",
	CategoryUint64:    "Uint64",
	CategoryFloat32:   "Float32",
	CategoryFloat64:   "Float64",
	CategoryString:    "String",
	CategoryVec2:      "Vec2",
	CategoryVec3:      "Vec3",
	CategoryVec4:      "Vec4",
	CategoryInt3:      "Int3",
	CategoryColor:     "Color",
	CategoryTransform: "Transform",
	CategoryUUID:      "UUID",
	CategoryEnum:      "Enum",
	CategoryAsset:     "Asset",
	CategoryObject:    "Object",
	CategoryEntity:    "Entity",
	CategoryArray:     "Array",
	CategoryMap:       "Map",
}

func (c Category) String() string {
	if c >= 0 && c < categoryCount {
		return categoryNames[c]
	}
	return fmt.Sprintf("Category(%d)", int32(c))
}

// Valid reports whether c is a known category other than CategoryInvalid.
func (c Category) Valid() bool {
	return c > CategoryInvalid && c < categoryCount
}

// IsPrimitive reports whether c is a bool, integer or float.
func (c Category) IsPrimitive() bool {
	return c >= CategoryBool && c <= CategoryFloat64
}

// IsContainer reports whether c is an array or a map.
func (c Category) IsContainer() bool {
	return c == CategoryArray || c == CategoryMap
}

// IsMapKey reports whether values of c may key a map property.
func (c Category) IsMapKey() bool {
	return c.IsPrimitive() || c == CategoryString || c == CategoryUUID
}

// FixedSize returns the encoded size of c, or -1 when the size depends on
// the value.
func (c Category) FixedSize() int {
	switch c {
	case CategoryBool, CategoryInt8, CategoryUint8:
		return 1
	case CategoryInt16, CategoryUint16:
		return 2
	case CategoryInt32, CategoryUint32, CategoryFloat32:
		return 4
	case CategoryInt64, CategoryUint64, CategoryFloat64, CategoryEnum, CategoryVec2:
		return 8
	case CategoryVec3, CategoryInt3:
		return 12
	case CategoryVec4, CategoryColor:
		return 16
	case CategoryTransform:
		return 40
	case CategoryUUID, CategoryAsset, CategoryEntity:
		// canonical UUID text behind a u32 length
		return 4 + 36
	default:
		return -1
	}
}

var categoryTypes = map[Category]reflect.Type{
	CategoryBool:      reflect.TypeFor[bool](),
	CategoryInt8:      reflect.TypeFor[int8](),
	CategoryInt16:     reflect.TypeFor[int16](),
	CategoryInt32:     reflect.TypeFor[int32](),
	CategoryInt64:     reflect.TypeFor[int64](),
	CategoryUint8:     reflect.TypeFor[uint8](),
	CategoryUint16:    reflect.TypeFor[uint16](),
	CategoryUint32:    reflect.TypeFor[uint32](),
	CategoryUint64:    reflect.TypeFor[uint64](),
	CategoryFloat32:   reflect.TypeFor[float32](),
	CategoryFloat64:   reflect.TypeFor[float64](),
	CategoryString:    reflect.TypeFor[string](),
	CategoryVec2:      reflect.TypeFor[Vec2](),
	CategoryVec3:      reflect.TypeFor[Vec3](),
	CategoryVec4:      reflect.TypeFor[Vec4](),
	CategoryInt3:      reflect.TypeFor[Int3](),
	CategoryColor:     reflect.TypeFor[Color](),
	CategoryTransform: reflect.TypeFor[Transform](),
	CategoryUUID:      reflect.TypeFor[uuid.UUID](),
	CategoryEntity:    reflect.TypeFor[EntityHandle](),
}

// GoType returns the Go type that carries values of a value category. It
// returns nil for categories whose Go type is chosen by the owning class
// (enums, assets, objects, containers).
func (c Category) GoType() reflect.Type {
	return categoryTypes[c]
}

// checkGoType verifies that t can carry values of c.
func checkGoType(c Category, t reflect.Type) error {
	if want := c.GoType(); want != nil {
		if t != want {
			return fmt.Errorf("%w: category %s needs %s, got %s", ErrTypeMismatch, c, want, t)
		}
		return nil
	}
	switch c {
	case CategoryEnum:
		switch t.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return nil
		}
		return fmt.Errorf("%w: enum needs an integer type, got %s", ErrTypeMismatch, t)
	case CategoryAsset, CategoryObject:
		if t.Kind() == reflect.Pointer || t.Kind() == reflect.Interface {
			return nil
		}
		return fmt.Errorf("%w: %s needs a pointer or interface type, got %s", ErrTypeMismatch, c, t)
	default:
		return fmt.Errorf("%w: category %s cannot carry %s", ErrTypeMismatch, c, t)
	}
}

// Flags describe how tools and archivers treat a property.
type Flags uint32

const (
	FlagReadOnly Flags = 1 << iota
	FlagHidden
	// FlagTransient excludes the property from serialization and merging.
	FlagTransient
	// FlagWeak marks an object-valued property as a non-owning reference.
	FlagWeak
)

func (f Flags) Has(flag Flags) bool { return f&flag != 0 }

// Ownership tells whether an object-valued property owns its value.
type Ownership uint8

const (
	Owned Ownership = iota
	Weak
)

func (o Ownership) String() string {
	if o == Weak {
		return "Weak"
	}
	return "Owned"
}
