package livelink

import "errors"

var (
	ErrServerNotRunning     = errors.New("server is not running")
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrInvalidMessage       = errors.New("invalid message")
	ErrUnknownEntity        = errors.New("unknown entity")
	ErrNotArchetype         = errors.New("asset is not an archetype")
)
