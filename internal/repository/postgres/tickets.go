package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kirinyoku/raffle-go/internal/domain"
	"github.com/kirinyoku/raffle-go/internal/repository"
)

// registerRetries bounds retry attempts after serialization failures of
// the concurrent-registration path.
const registerRetries = 3

type TicketRepo struct {
	pool  DB
	store *Store
	db    DB
}

// With returns a copy of the repo bound to an external transaction.
func (r *TicketRepo) With(db DB) *TicketRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *TicketRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const ticketColumns = `id, round_id, ticket_number, owner_id, owner_label, proof_ref, status, comment`

// qualified variant for queries that join rounds
const ticketColumnsT = `t.id, t.round_id, t.ticket_number, t.owner_id, t.owner_label, t.proof_ref, t.status, t.comment`

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var t domain.Ticket
	err := row.Scan(
		&t.ID, &t.RoundID, &t.Number, &t.OwnerID,
		&t.OwnerLabel, &t.ProofRef, &t.Status, &t.Comment,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Register allocates the next ticket number of the open round and inserts
// the ticket as one atomic unit. Allocation is max(existing)+1 computed
// inside the same serializable statement that inserts, so concurrent
// registrations can never observe the same maximum; a lost race surfaces
// as a serialization failure (retried here) or as the unique-index
// violation mapped to repository.ErrDuplicateNumber (never retried).
//
// Returns:
//   - *domain.Ticket: the inserted ticket with its assigned number.
//   - error: repository.ErrNoOpenRound if no round is accepting tickets.
//   - error: repository.ErrDuplicateNumber on a numbering invariant breach.
func (r *TicketRepo) Register(
	ctx context.Context,
	ownerID, ownerLabel, proofRef string,
) (*domain.Ticket, error) {
	const op = "postgres.TicketRepo.Register"

	if r.db != nil {
		t, err := r.registerCore(ctx, r.db, ownerID, ownerLabel, proofRef)
		if err != nil {
			return nil, wrapRegisterErr(op, err)
		}
		return t, nil
	}

	var ticket *domain.Ticket

	for attempt := 0; ; attempt++ {
		err := r.store.RunTx(ctx, func(ctx context.Context, tx DB) error {
			t, err := r.registerCore(ctx, tx, ownerID, ownerLabel, proofRef)
			if err != nil {
				return err
			}
			ticket = t
			return nil
		})
		if err == nil {
			return ticket, nil
		}
		if IsRetryable(err) && attempt < registerRetries {
			continue
		}
		return nil, wrapRegisterErr(op, err)
	}
}

func (r *TicketRepo) registerCore(
	ctx context.Context,
	db DB,
	ownerID, ownerLabel, proofRef string,
) (*domain.Ticket, error) {
	row := db.QueryRow(ctx,
		`INSERT INTO tickets (round_id, ticket_number, owner_id, owner_label, proof_ref, status)
		 SELECT r.id, COALESCE(MAX(t.ticket_number), 0) + 1, $1, $2, $3, 'active'
		   FROM rounds r
		   LEFT JOIN tickets t ON t.round_id = r.id
		  WHERE r.archived_at IS NULL
		  GROUP BY r.id
		 RETURNING `+ticketColumns,
		ownerID, ownerLabel, proofRef,
	)
	return scanTicket(row)
}

func wrapRegisterErr(op string, err error) error {
	// The insert-select produces zero rows only when no open round exists.
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s:%w", op, repository.ErrNoOpenRound)
	}
	return wrapDBErr(op, err)
}

// NextNumber returns the number the next registration would receive. It is
// advisory: the authoritative allocation happens inside Register.
func (r *TicketRepo) NextNumber(ctx context.Context) (int, error) {
	const op = "postgres.TicketRepo.NextNumber"

	var next int
	err := r.handle().QueryRow(ctx,
		`SELECT COALESCE(MAX(t.ticket_number), 0) + 1
		   FROM rounds r
		   LEFT JOIN tickets t ON t.round_id = r.id
		  WHERE r.archived_at IS NULL`,
	).Scan(&next)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%s:%w", op, repository.ErrNoOpenRound)
		}
		return 0, wrapDBErr(op, err)
	}

	return next, nil
}

// ActiveByNumber returns the ticket only while its status is still active.
//
// Returns:
//   - error: repository.ErrNotFound if the number is absent from the open
//     round or the ticket is no longer active.
func (r *TicketRepo) ActiveByNumber(ctx context.Context, number int) (*domain.Ticket, error) {
	const op = "postgres.TicketRepo.ActiveByNumber"

	row := r.handle().QueryRow(ctx,
		`SELECT `+ticketColumnsT+`
		   FROM tickets t
		   JOIN rounds r ON r.id = t.round_id AND r.archived_at IS NULL
		  WHERE t.ticket_number = $1 AND t.status = 'active'`,
		number,
	)

	t, err := scanTicket(row)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}

// AnyByNumber returns the ticket of the open round regardless of status.
func (r *TicketRepo) AnyByNumber(ctx context.Context, number int) (*domain.Ticket, error) {
	const op = "postgres.TicketRepo.AnyByNumber"

	row := r.handle().QueryRow(ctx,
		`SELECT `+ticketColumnsT+`
		   FROM tickets t
		   JOIN rounds r ON r.id = t.round_id AND r.archived_at IS NULL
		  WHERE t.ticket_number = $1`,
		number,
	)

	t, err := scanTicket(row)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}

// ActiveNumbersByOwner lists the owner's active ticket numbers ascending.
func (r *TicketRepo) ActiveNumbersByOwner(ctx context.Context, ownerID string) ([]int, error) {
	const op = "postgres.TicketRepo.ActiveNumbersByOwner"

	rows, err := r.handle().Query(ctx,
		`SELECT t.ticket_number
		   FROM tickets t
		   JOIN rounds r ON r.id = t.round_id AND r.archived_at IS NULL
		  WHERE t.owner_id = $1 AND t.status = 'active'
		  ORDER BY t.ticket_number`,
		ownerID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	var numbers []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, wrapDBErr(op, err)
		}
		numbers = append(numbers, n)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return numbers, nil
}

// SetStatus overwrites status and comment of a ticket in the open round.
// Idempotent when applied with the same status.
//
// Returns:
//   - error: repository.ErrNotFound if the number is absent from the open
//     round.
func (r *TicketRepo) SetStatus(
	ctx context.Context,
	number int,
	status domain.TicketStatus,
	comment string,
) error {
	const op = "postgres.TicketRepo.SetStatus"

	tag, err := r.handle().Exec(ctx,
		`UPDATE tickets t
		    SET status = $2, comment = $3
		   FROM rounds r
		  WHERE r.id = t.round_id AND r.archived_at IS NULL
		    AND t.ticket_number = $1`,
		number, string(status), comment,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// RandomActive selects one active ticket of the open round uniformly.
//
// Returns:
//   - error: repository.ErrNotFound if no active tickets remain.
func (r *TicketRepo) RandomActive(ctx context.Context) (*domain.Ticket, error) {
	const op = "postgres.TicketRepo.RandomActive"

	row := r.handle().QueryRow(ctx,
		`SELECT `+ticketColumnsT+`
		   FROM tickets t
		   JOIN rounds r ON r.id = t.round_id AND r.archived_at IS NULL
		  WHERE t.status = 'active'
		  ORDER BY random()
		  LIMIT 1`,
	)

	t, err := scanTicket(row)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}
