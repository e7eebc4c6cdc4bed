// Package memory is a mutex-guarded in-memory implementation of the
// raffle storage contracts. It backs service and transport tests that
// need the exact postgres semantics without a database, and keeps the
// same sentinel errors as the real repositories.
package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/kirinyoku/raffle-go/internal/domain"
	"github.com/kirinyoku/raffle-go/internal/repository"
)

type Store struct {
	mu      sync.Mutex
	rounds  []domain.Round
	tickets map[int]*domain.Ticket // open round working set, by number
	archive map[int64][]domain.ArchivedTicket
	lastID  int64
}

// New returns a store with one open round, mirroring the schema bootstrap
// of the postgres store.
func New() *Store {
	s := &Store{
		tickets: make(map[int]*domain.Ticket),
		archive: make(map[int64][]domain.ArchivedTicket),
	}
	s.openRound()
	return s
}

func (s *Store) openRound() *domain.Round {
	s.rounds = append(s.rounds, domain.Round{
		ID:        int64(len(s.rounds)) + 1,
		CreatedAt: time.Now(),
	})
	return &s.rounds[len(s.rounds)-1]
}

func (s *Store) open() *domain.Round {
	return &s.rounds[len(s.rounds)-1]
}

func (s *Store) Register(
	_ context.Context,
	ownerID, ownerLabel, proofRef string,
) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := 1
	for n := range s.tickets {
		if n >= next {
			next = n + 1
		}
	}

	s.lastID++
	t := &domain.Ticket{
		ID:         s.lastID,
		RoundID:    s.open().ID,
		Number:     next,
		OwnerID:    ownerID,
		OwnerLabel: ownerLabel,
		ProofRef:   proofRef,
		Status:     domain.TicketActive,
	}
	s.tickets[next] = t

	cp := *t
	return &cp, nil
}

func (s *Store) NextNumber(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := 1
	for n := range s.tickets {
		if n >= next {
			next = n + 1
		}
	}
	return next, nil
}

func (s *Store) ActiveByNumber(_ context.Context, number int) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[number]
	if !ok || t.Status != domain.TicketActive {
		return nil, repository.ErrNotFound
	}

	cp := *t
	return &cp, nil
}

func (s *Store) AnyByNumber(_ context.Context, number int) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[number]
	if !ok {
		return nil, repository.ErrNotFound
	}

	cp := *t
	return &cp, nil
}

func (s *Store) ActiveNumbersByOwner(_ context.Context, ownerID string) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var numbers []int
	for n, t := range s.tickets {
		if t.OwnerID == ownerID && t.Status == domain.TicketActive {
			numbers = append(numbers, n)
		}
	}
	sort.Ints(numbers)

	return numbers, nil
}

func (s *Store) SetStatus(
	_ context.Context,
	number int,
	status domain.TicketStatus,
	comment string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[number]
	if !ok {
		return repository.ErrNotFound
	}

	t.Status = status
	t.Comment = comment

	return nil
}

func (s *Store) RandomActive(context.Context) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var active []*domain.Ticket
	for _, t := range s.tickets {
		if t.Status == domain.TicketActive {
			active = append(active, t)
		}
	}

	if len(active) == 0 {
		return nil, repository.ErrNotFound
	}

	cp := *active[rand.Intn(len(active))]
	return &cp, nil
}

func (s *Store) Open(context.Context) (*domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *s.open()
	return &cp, nil
}

func (s *Store) Archive(context.Context) (int64, *domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	closed := s.open()
	now := time.Now()
	closed.ArchivedAt = &now

	var history []domain.ArchivedTicket
	for _, t := range s.tickets {
		history = append(history, domain.ArchivedTicket{Ticket: *t, ArchivedAt: now})
	}
	sort.Slice(history, func(i, j int) bool { return history[i].Number < history[j].Number })
	s.archive[closed.ID] = history
	s.tickets = make(map[int]*domain.Ticket)

	next := s.openRound()
	cp := *next

	return closed.ID, &cp, nil
}

func (s *Store) List(context.Context) ([]domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Round, len(s.rounds))
	for i := range s.rounds {
		out[len(s.rounds)-1-i] = s.rounds[i]
	}

	return out, nil
}

func (s *Store) ArchivedTickets(_ context.Context, roundID int64) ([]domain.ArchivedTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]domain.ArchivedTicket(nil), s.archive[roundID]...), nil
}
