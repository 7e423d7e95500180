package entity

import (
	"errors"
	"fmt"
)

// Error vocabulary shared by the runtime managers. The dispatch layer
// and the HTTP transport classify failures with errors.Is / errors.As
// against these values.
var (
	// ErrNotFound is returned when an operation references an entity
	// that does not exist (never created, or already removed).
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyPresent is returned when attaching a singleton
	// component that the entity already carries.
	ErrAlreadyPresent = errors.New("component already present")
)

// LoadError reports that a mesh or script asset failed to load or
// parse. The attach operation that triggered the load is rolled back
// completely: no component is recorded and no resource record exists.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
