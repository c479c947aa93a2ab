package db

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an operation references a schedule ID that does
// not exist.
var ErrNotFound = errors.New("no scheduled ticket found with that ID")

// ValidationError rejects user-supplied schedule fields before any row is
// written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SchemaError means the persisted schema version cannot be handled by this
// build. It is fatal: the caller must refuse to operate rather than risk data
// loss.
type SchemaError struct {
	Found     int
	Supported int
	Oldest    int
}

func (e *SchemaError) Error() string {
	if e.Found > e.Supported {
		return fmt.Sprintf(
			"database schema version %d is newer than the supported version %d; upgrade the plugin",
			e.Found, e.Supported)
	}
	return fmt.Sprintf(
		"database schema version %d is too old to upgrade automatically (oldest upgradable is %d); migrate manually",
		e.Found, e.Oldest)
}
