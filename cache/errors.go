package cache

import "errors"

var (
	// ErrNotConnected is returned when an operation is attempted on an
	// engine whose Connect has not been called or has failed.
	ErrNotConnected = errors.New("cache not connected")

	// ErrInvalidValue is returned when a value cannot be serialized for
	// the cache backend.
	ErrInvalidValue = errors.New("invalid cache value")
)
