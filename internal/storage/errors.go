// Package storage defines the sentinel errors shared by the persistence
// engines in its subpackages.
package storage

import "errors"

// ErrUnavailable indicates the underlying store failed for a transient
// reason. Callers may safely retry; nothing was committed.
var ErrUnavailable = errors.New("store unavailable")

// ErrConflict indicates a concurrent transaction touched the same records
// and the operation was retried past its limit.
var ErrConflict = errors.New("concurrency conflict")
