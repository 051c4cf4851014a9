package archive

import (
	"errors"
	"fmt"
)

var (
	// Decoding errors

	ErrClassNotFound    = errors.New("class not found")
	ErrClassMismatch    = errors.New("serialized class does not match target object")
	ErrCapacityMismatch = errors.New("element count does not match fixed capacity")

	// Recovered conditions, reported through the log

	ErrAssetUnresolved = errors.New("asset reference unresolved")
	ErrUnknownProperty = errors.New("unknown or mismatched property")

	// Merge errors

	ErrTypeMismatchOnMerge = errors.New("merge across different classes")
)

// PropertyError reports a failure while encoding, decoding or copying one
// property.
type PropertyError struct {
	Class    string
	Property string
	Err      error
}

func (e *PropertyError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Class, e.Property, e.Err)
}

func (e *PropertyError) Unwrap() error { return e.Err }
