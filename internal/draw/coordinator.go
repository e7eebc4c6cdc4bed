// Package draw owns the single in-flight draw window of the raffle.
//
// A draw is in flight from the moment it is granted until the operator's
// decision is recorded (or the draw found no candidate and ended itself).
// Exclusivity here is about presentation, not storage: two concurrently
// announced candidates would corrupt the audience-facing narrative, so a
// second caller is turned away immediately instead of queueing.
package draw

import (
	"sync"

	"github.com/google/uuid"
)

// Coordinator is a named, non-blocking lock keyed by round id. It is
// acquired with TryBegin and released exactly once per acquisition with
// End, including on error paths. An abandoned candidate is a valid,
// indefinitely-held state; there is no TTL.
type Coordinator struct {
	mu        sync.Mutex
	inFlight  bool
	drawID    string
	roundID   int64
	number    int
	presented bool
}

func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// TryBegin acquires the in-flight marker for a draw in the given round.
// It never blocks: callers finding the marker held get ok=false.
func (c *Coordinator) TryBegin(roundID int64) (drawID string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight {
		return "", false
	}

	c.inFlight = true
	c.drawID = uuid.NewString()
	c.roundID = roundID
	c.number = 0
	c.presented = false

	return c.drawID, true
}

// Present records the candidate ticket of the acquired draw. Must only be
// called between a successful TryBegin and End.
func (c *Coordinator) Present(number int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.inFlight {
		return
	}

	c.number = number
	c.presented = true
}

// Candidate returns the currently presented candidate, if any.
func (c *Coordinator) Candidate() (roundID int64, number int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.inFlight || !c.presented {
		return 0, 0, false
	}

	return c.roundID, c.number, true
}

// InFlight reports whether a draw window is currently held.
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.inFlight
}

// End releases the in-flight marker and discards the candidate. Safe to
// call when nothing is in flight.
func (c *Coordinator) End() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inFlight = false
	c.drawID = ""
	c.roundID = 0
	c.number = 0
	c.presented = false
}
