// Package sentinel holds the facts stores and the archive report about
// resources. Services translate them into domain errors; input validation
// failures belong in pkg/domain-errors instead.
package sentinel

import "errors"

var (
	// ErrNotFound: no such record, file or revocation entry.
	ErrNotFound = errors.New("not found")
	// ErrConflict: the primary key of a new record is already present.
	ErrConflict = errors.New("conflict")
	// ErrAlreadyUsed: a uniqueness key is taken (active dni+course, archive file name, login identifier).
	ErrAlreadyUsed = errors.New("already used")
	// ErrInvalidState: the operation cannot apply as asked, such as revoking with a non-positive TTL.
	ErrInvalidState = errors.New("invalid state")
	// ErrUnavailable: a backing service cannot be reached.
	ErrUnavailable = errors.New("unavailable")
)
