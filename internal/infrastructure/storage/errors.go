package storage

import "errors"

var (
	// ErrUnsupportedDriver is returned for drivers other than postgres and sqlite.
	ErrUnsupportedDriver = errors.New("storage: unsupported driver")
	// ErrInvalidTable rejects table names that are not plain identifiers.
	ErrInvalidTable = errors.New("storage: invalid table name")
	// ErrNotFound is returned when no document has the requested number.
	ErrNotFound = errors.New("storage: document not found")
)
