package raffle

import "errors"

var (
	// ErrBusy means a draw is already in flight. Expected; the operator
	// retries after the current candidate is decided.
	ErrBusy = errors.New("draw already in progress")
	// ErrEmpty means no active tickets remain to draw from. Terminal for
	// the round until new registrations arrive.
	ErrEmpty = errors.New("no active tickets")
	// ErrStaleCandidate means the decision referenced a candidate that is
	// no longer presented or whose status changed since presentation.
	// Recoverable by requesting a fresh draw.
	ErrStaleCandidate = errors.New("candidate is no longer available")
	ErrTicketNotFound = errors.New("ticket not found")
	ErrRateLimited    = errors.New("rate limited")
)
