package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicateNumber means the per-round numbering invariant was
	// violated. It indicates a bug in the allocation path and must never be
	// retried with a fresh number.
	ErrDuplicateNumber = errors.New("duplicate ticket number")
	ErrNoOpenRound     = errors.New("no open round")
)
