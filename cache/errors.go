package cache

import "errors"

var (
	// ErrInvalidCapacity is returned by constructors given a non-positive capacity.
	ErrInvalidCapacity = errors.New("cache: capacity must be > 0")
	// ErrNilLoader is returned by constructors that require a Loader.
	ErrNilLoader = errors.New("cache: nil Loader")

	// ErrNilKey is the panic value for a nil key.
	ErrNilKey = errors.New("cache: nil key")
	// ErrNilValue is the panic value for a nil value.
	ErrNilValue = errors.New("cache: nil value")
)
