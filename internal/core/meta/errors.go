package meta

import "errors"

var (
	// Registration errors

	ErrAlreadyRegistered = errors.New("class already registered")
	ErrRegistryFrozen    = errors.New("registry is frozen")
	ErrUnresolvedClass   = errors.New("referenced class is not registered")
	ErrInvalidClass      = errors.New("invalid class description")

	// Access errors

	ErrTypeMismatch     = errors.New("value type does not match property")
	ErrUnregisteredType = errors.New("type is not registered")
	ErrNotContainer     = errors.New("property is not a container")
	ErrNotScalar        = errors.New("property is a container")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrFixedCapacity    = errors.New("fixed capacity container cannot be resized")
	ErrReadOnlyProperty = errors.New("property is read only")
	ErrPropertyNotFound = errors.New("property not found")
	ErrNilObject        = errors.New("object is nil")
)
