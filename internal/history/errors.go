package history

import "errors"

var (
	// ErrLookupMiss is returned by Build for a not-found lookup result.
	ErrLookupMiss = errors.New("history: lookup result is not found")
	// ErrDuplicateRecord is returned by Insert when a record with the same id is already stored.
	ErrDuplicateRecord = errors.New("history: duplicate record id")
	// ErrInvalidRecord is returned by Insert for a record without an id.
	ErrInvalidRecord = errors.New("history: record has no id")
	// ErrPersistFailed wraps any failure to save history to the backing location.
	// The in-memory history has already been updated when it is returned.
	ErrPersistFailed = errors.New("history: persist failed")
)
