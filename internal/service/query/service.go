// Package query is the read side of the raffle: owner ticket lists,
// ticket lookups and round history, served through a short-TTL cache.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirinyoku/raffle-go/internal/domain"
	redisx "github.com/kirinyoku/raffle-go/internal/redis"
	"github.com/kirinyoku/raffle-go/internal/repository"
	redisrepo "github.com/kirinyoku/raffle-go/internal/repository/redis"
)

// TicketReader is the read-only ticket storage contract.
type TicketReader interface {
	ActiveByNumber(ctx context.Context, number int) (*domain.Ticket, error)
	AnyByNumber(ctx context.Context, number int) (*domain.Ticket, error)
	ActiveNumbersByOwner(ctx context.Context, ownerID string) ([]int, error)
	NextNumber(ctx context.Context) (int, error)
}

// RoundReader is the read-only round storage contract.
type RoundReader interface {
	Open(ctx context.Context) (*domain.Round, error)
	List(ctx context.Context) ([]domain.Round, error)
	ArchivedTickets(ctx context.Context, roundID int64) ([]domain.ArchivedTicket, error)
}

type Config struct {
	OwnerTicketsTTL time.Duration
	TicketViewTTL   time.Duration
}

type Service struct {
	tickets TicketReader
	rounds  RoundReader
	cache   *redisrepo.Cache
	cfg     Config
}

func New(tickets TicketReader, rounds RoundReader, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.OwnerTicketsTTL <= 0 {
		cfg.OwnerTicketsTTL = 15 * time.Second
	}

	if cfg.TicketViewTTL <= 0 {
		cfg.TicketViewTTL = 15 * time.Second
	}

	return &Service{
		tickets: tickets,
		rounds:  rounds,
		cache:   cache,
		cfg:     cfg,
	}
}

// ActiveTickets lists the owner's active ticket numbers in the open
// round, ascending. Cache keys carry the round id, so archival rotates
// them without explicit invalidation.
func (s *Service) ActiveTickets(ctx context.Context, ownerID string) ([]int, error) {
	const op = "service.query.ActiveTickets"

	round, err := s.rounds.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	load := func(ctx context.Context) ([]int, error) {
		return s.tickets.ActiveNumbersByOwner(ctx, ownerID)
	}

	var numbers []int
	if s.cache != nil {
		numbers, err = redisrepo.GetOrSetJSON(
			ctx,
			s.cache,
			redisx.KeyOwnerTickets(round.ID, ownerID),
			s.cfg.OwnerTicketsTTL,
			load,
		)
	} else {
		numbers, err = load(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return numbers, nil
}

// LookupActive returns the ticket only while it is still active.
//
// Returns:
//   - error: query.ErrTicketNotFound if the number is absent from the open
//     round or the ticket is no longer active.
func (s *Service) LookupActive(ctx context.Context, number int) (*domain.Ticket, error) {
	const op = "service.query.LookupActive"

	t, err := s.lookup(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if t.Status != domain.TicketActive {
		return nil, fmt.Errorf("%s:%w", op, ErrTicketNotFound)
	}

	return t, nil
}

// LookupAny returns the ticket of the open round regardless of status.
//
// Returns:
//   - error: query.ErrTicketNotFound if the number is absent from the open
//     round (archived tickets are reachable only via ArchivedTickets).
func (s *Service) LookupAny(ctx context.Context, number int) (*domain.Ticket, error) {
	const op = "service.query.LookupAny"

	t, err := s.lookup(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return t, nil
}

// NextNumber reports the number the next registration would receive.
func (s *Service) NextNumber(ctx context.Context) (int, error) {
	const op = "service.query.NextNumber"

	n, err := s.tickets.NextNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	return n, nil
}

// Rounds lists all rounds, the open one first.
func (s *Service) Rounds(ctx context.Context) ([]domain.Round, error) {
	const op = "service.query.Rounds"

	rounds, err := s.rounds.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return rounds, nil
}

// ArchivedTickets returns the immutable history of one archived round.
//
// Returns:
//   - error: query.ErrRoundNotFound if the round has no archived tickets.
func (s *Service) ArchivedTickets(ctx context.Context, roundID int64) ([]domain.ArchivedTicket, error) {
	const op = "service.query.ArchivedTickets"

	tickets, err := s.rounds.ArchivedTickets(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if len(tickets) == 0 {
		return nil, fmt.Errorf("%s:%w", op, ErrRoundNotFound)
	}

	return tickets, nil
}

func (s *Service) lookup(ctx context.Context, number int) (*domain.Ticket, error) {
	round, err := s.rounds.Open(ctx)
	if err != nil {
		return nil, err
	}

	load := func(ctx context.Context) (domain.Ticket, error) {
		t, err := s.tickets.AnyByNumber(ctx, number)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.Ticket{}, ErrTicketNotFound
			}
			return domain.Ticket{}, err
		}
		return *t, nil
	}

	var t domain.Ticket
	if s.cache != nil {
		t, err = redisrepo.GetOrSetJSON(
			ctx,
			s.cache,
			redisx.KeyTicketView(round.ID, number),
			s.cfg.TicketViewTTL,
			load,
		)
	} else {
		t, err = load(ctx)
	}
	if err != nil {
		return nil, err
	}

	return &t, nil
}
