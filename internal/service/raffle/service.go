// Package raffle implements the ticket lifecycle state machine: sequential
// registration, the draw / operator-decision loop, moderation deletes, and
// round archival.
package raffle

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirinyoku/raffle-go/internal/domain"
	"github.com/kirinyoku/raffle-go/internal/draw"
	"github.com/kirinyoku/raffle-go/internal/repository"
	redisrepo "github.com/kirinyoku/raffle-go/internal/repository/redis"
)

// TicketStore is the write-side contract durable storage must satisfy.
// Every method is independently atomic: no caller may observe a partially
// applied write of another.
type TicketStore interface {
	// Register allocates the next number of the open round and inserts the
	// ticket as one unit. A duplicate number is an invariant breach
	// (repository.ErrDuplicateNumber), never silently renumbered.
	Register(ctx context.Context, ownerID, ownerLabel, proofRef string) (*domain.Ticket, error)
	AnyByNumber(ctx context.Context, number int) (*domain.Ticket, error)
	SetStatus(ctx context.Context, number int, status domain.TicketStatus, comment string) error
	// RandomActive picks uniformly among all active tickets of the open
	// round; repository.ErrNotFound when none remain.
	RandomActive(ctx context.Context) (*domain.Ticket, error)
}

// RoundStore is the round-level storage contract.
type RoundStore interface {
	Open(ctx context.Context) (*domain.Round, error)
	// Archive atomically copies every ticket of the open round into
	// history, clears the working set, closes the round and opens a new
	// empty one.
	Archive(ctx context.Context) (int64, *domain.Round, error)
}

// Announcer relays audience-facing texts. Fire-and-forget: a failed
// announcement never rolls back the state change it described.
type Announcer interface {
	Announce(ctx context.Context, kind, text string) error
}

// DrawOutcome describes a granted draw: the id of the draw window and the
// candidate presented to the operator. The candidate ticket is still
// active; nothing is mutated until the operator decides.
type DrawOutcome struct {
	DrawID string
	Ticket *domain.Ticket
}

type Service struct {
	tickets     TicketStore
	rounds      RoundStore
	coordinator *draw.Coordinator
	announcer   Announcer
	limiter     *redisrepo.SlidingWindowLimiter
	cache       *redisrepo.Cache
}

func New(
	tickets TicketStore,
	rounds RoundStore,
	coordinator *draw.Coordinator,
	announcer Announcer,
	limiter *redisrepo.SlidingWindowLimiter,
	cache *redisrepo.Cache,
) *Service {
	return &Service{
		tickets:     tickets,
		rounds:      rounds,
		coordinator: coordinator,
		announcer:   announcer,
		limiter:     limiter,
		cache:       cache,
	}
}

// Register stores a new active ticket for the submitted proof and returns
// it with its assigned number.
//
// Returns:
//   - error: raffle.ErrRateLimited when the owner submits too fast.
func (s *Service) Register(
	ctx context.Context,
	ownerID, ownerLabel, proofRef string,
) (*domain.Ticket, error) {
	const op = "service.raffle.Register"

	if s.limiter != nil {
		ok, _, retry, err := s.limiter.Allow(ctx, "owner:"+ownerID)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		if !ok {
			return nil, fmt.Errorf("%s: retry in %s: %w", op, retry, ErrRateLimited)
		}
	}

	t, err := s.tickets.Register(ctx, ownerID, ownerLabel, proofRef)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.invalidate(ctx, t)
	s.announce(ctx, "registered",
		fmt.Sprintf("ticket #%d registered to %s", t.Number, ownerDisplay(t)))

	return t, nil
}

// RequestDraw tries to open the draw window and present a uniformly
// selected active ticket. The candidate is not mutated; it stays active
// until the operator confirms or rejects it.
//
// Returns:
//   - error: raffle.ErrBusy if a draw is already in flight.
//   - error: raffle.ErrEmpty if no active tickets remain (the window is
//     released before returning).
func (s *Service) RequestDraw(ctx context.Context) (*DrawOutcome, error) {
	const op = "service.raffle.RequestDraw"

	round, err := s.rounds.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	drawID, ok := s.coordinator.TryBegin(round.ID)
	if !ok {
		return nil, fmt.Errorf("%s:%w", op, ErrBusy)
	}

	t, err := s.tickets.RandomActive(ctx)
	if err != nil {
		// The empty-pool draw is a self-terminating in-flight window.
		s.coordinator.End()
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrEmpty)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.coordinator.Present(t.Number)
	s.announce(ctx, "drawn",
		fmt.Sprintf("draw %s: ticket #%d (%s) is up for decision", drawID, t.Number, ownerDisplay(t)))

	return &DrawOutcome{DrawID: drawID, Ticket: t}, nil
}

// ConfirmWinner records the presented candidate as the winner. The ticket
// leaves the active pool as rejected: legitimately awarded, ineligible for
// further draws, and distinct from a moderation delete.
//
// Returns:
//   - error: raffle.ErrStaleCandidate if the number does not match the
//     presented candidate or its status changed since presentation. The
//     draw window is released either way.
func (s *Service) ConfirmWinner(ctx context.Context, number int) (*domain.Ticket, error) {
	const op = "service.raffle.ConfirmWinner"

	t, err := s.takeCandidate(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := s.tickets.SetStatus(ctx, number, domain.TicketRejected, ""); err != nil {
		s.coordinator.End()
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.coordinator.End()
	t.Status = domain.TicketRejected
	t.Comment = ""

	s.invalidate(ctx, t)
	s.announce(ctx, "winner",
		fmt.Sprintf("winner: ticket #%d (%s)", t.Number, ownerDisplay(t)))

	return t, nil
}

// RejectCandidate marks the presented candidate rejected with the given
// reason, then immediately requests the next draw so the raffle advances
// without extra operator steps.
//
// Returns:
//   - *DrawOutcome: the chained draw's candidate; nil when the pool is
//     exhausted or another caller took the window first.
//   - error: raffle.ErrStaleCandidate as for ConfirmWinner.
func (s *Service) RejectCandidate(ctx context.Context, number int, reason string) (*DrawOutcome, error) {
	const op = "service.raffle.RejectCandidate"

	t, err := s.takeCandidate(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := s.tickets.SetStatus(ctx, number, domain.TicketRejected, reason); err != nil {
		s.coordinator.End()
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	// The prior draw must be fully ended before the chained one begins.
	s.coordinator.End()
	t.Status = domain.TicketRejected
	t.Comment = reason

	s.invalidate(ctx, t)
	s.announce(ctx, "rejected",
		fmt.Sprintf("ticket #%d rejected: %s", t.Number, reason))

	next, err := s.RequestDraw(ctx)
	if err != nil {
		if errors.Is(err, ErrEmpty) || errors.Is(err, ErrBusy) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return next, nil
}

// DeleteTicket is the moderation path, independent of the draw process.
// Deleting the presented candidate leaves the window open; the pending
// decision then fails with ErrStaleCandidate and the operator re-draws.
//
// Returns:
//   - error: raffle.ErrTicketNotFound if the number is absent from the
//     open round.
func (s *Service) DeleteTicket(ctx context.Context, number int, reason string) (*domain.Ticket, error) {
	const op = "service.raffle.DeleteTicket"

	t, err := s.tickets.AnyByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrTicketNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := s.tickets.SetStatus(ctx, number, domain.TicketDeleted, reason); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	t.Status = domain.TicketDeleted
	t.Comment = reason

	s.invalidate(ctx, t)
	s.announce(ctx, "deleted",
		fmt.Sprintf("ticket #%d removed: %s", t.Number, reason))

	return t, nil
}

// ArchiveRound snapshots the open round into history and opens a fresh
// one. An in-flight draw is force-ended and its candidate discarded,
// since archival wipes the ticket state it referenced.
func (s *Service) ArchiveRound(ctx context.Context) (int64, *domain.Round, error) {
	const op = "service.raffle.ArchiveRound"

	s.coordinator.End()

	archivedID, next, err := s.rounds.Archive(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("%s:%w", op, err)
	}

	s.announce(ctx, "archived",
		fmt.Sprintf("round %d archived, round %d is open", archivedID, next.ID))

	return archivedID, next, nil
}

// takeCandidate validates a decision against the presented candidate and,
// on any validation failure, releases the draw window so the raffle can
// never lock up behind a stale decision.
func (s *Service) takeCandidate(ctx context.Context, number int) (*domain.Ticket, error) {
	_, candidate, ok := s.coordinator.Candidate()
	if !ok {
		return nil, ErrStaleCandidate
	}

	if candidate != number {
		s.coordinator.End()
		return nil, ErrStaleCandidate
	}

	t, err := s.tickets.AnyByNumber(ctx, number)
	if err != nil {
		s.coordinator.End()
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrStaleCandidate
		}
		return nil, err
	}

	if t.Status != domain.TicketActive {
		s.coordinator.End()
		return nil, ErrStaleCandidate
	}

	return t, nil
}

func (s *Service) invalidate(ctx context.Context, t *domain.Ticket) {
	if s.cache == nil {
		return
	}
	_ = s.cache.InvalidateTicket(ctx, t.RoundID, t.Number, t.OwnerID)
}

func (s *Service) announce(ctx context.Context, kind, text string) {
	if s.announcer == nil {
		return
	}
	_ = s.announcer.Announce(ctx, kind, text)
}

func ownerDisplay(t *domain.Ticket) string {
	if t.OwnerLabel != "" {
		return t.OwnerLabel
	}
	return t.OwnerID
}
