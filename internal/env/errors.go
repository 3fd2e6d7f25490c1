package env

import "fmt"

var (
	// ErrNotFound is returned when a location has no content.
	ErrNotFound = fmt.Errorf("not found")

	// ErrResolution is returned when a path cannot be resolved against its base.
	ErrResolution = fmt.Errorf("cannot resolve location")

	// ErrRejectedByClient is returned when the editor refuses an edit.
	ErrRejectedByClient = fmt.Errorf("edit rejected by client")

	// ErrMalformedInput is returned when a command argument cannot be decoded.
	ErrMalformedInput = fmt.Errorf("malformed input")

	// ErrUnsupported is returned by hosts that lack a capability.
	ErrUnsupported = fmt.Errorf("not supported by this host")
)
