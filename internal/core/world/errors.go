package world

import "errors"

var (
	ErrInvalidHandle     = errors.New("invalid entity handle")
	ErrDuplicateIdentity = errors.New("entity identity already in use")
	ErrHierarchyCycle    = errors.New("entity cannot be parented under itself or a descendant")
	ErrNotChild          = errors.New("entity is not a child of the given parent")
	ErrComponentNotFound = errors.New("component not attached to entity")
	ErrNoPrototype       = errors.New("archetype has no prototype")
)
