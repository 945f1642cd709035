// Package storeerr defines the error kinds raised across the record store,
// predicate, query, and transaction layers: comparable sentinel errors,
// returned as-is (unwrapped) by those layers.
package storeerr

import "errors"

var (
	// ErrNotFound is raised by get/mutation on an unknown or deleted rid.
	ErrNotFound = errors.New("storeerr: not found")
	// ErrDuplicate is raised by create when the supplied id is already in use.
	ErrDuplicate = errors.New("storeerr: duplicate id")
	// ErrKeyMissing is raised reading an absent attribute off a live view.
	ErrKeyMissing = errors.New("storeerr: key missing")
	// ErrBadPredicate is raised for a predicate leaf with an empty attribute
	// path, or a Raw jq expression that fails to parse or compile.
	ErrBadPredicate = errors.New("storeerr: bad predicate")
	// ErrBadOrdering is raised when limit/offset are negative.
	ErrBadOrdering = errors.New("storeerr: bad ordering")
	// ErrTransactionClosed is raised by any operation on a transaction after
	// it has committed or rolled back.
	ErrTransactionClosed = errors.New("storeerr: transaction closed")
)

// Is reports whether err wraps target, a thin re-export of errors.Is kept
// here so callers that only import storeerr don't need a second import for
// the one function they need.
func Is(err, target error) bool { return errors.Is(err, target) }
