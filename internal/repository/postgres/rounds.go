package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kirinyoku/raffle-go/internal/domain"
	"github.com/kirinyoku/raffle-go/internal/repository"
)

type RoundRepo struct {
	pool  DB
	store *Store
	db    DB
}

// With returns a copy of the repo bound to an external transaction.
func (r *RoundRepo) With(db DB) *RoundRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *RoundRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Open returns the round currently accepting tickets.
//
// Returns:
//   - error: repository.ErrNoOpenRound if initialization never ran.
func (r *RoundRepo) Open(ctx context.Context) (*domain.Round, error) {
	const op = "postgres.RoundRepo.Open"

	var rd domain.Round
	err := r.handle().QueryRow(ctx,
		`SELECT id, created_at, archived_at
		   FROM rounds
		  WHERE archived_at IS NULL`,
	).Scan(&rd.ID, &rd.CreatedAt, &rd.ArchivedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s:%w", op, repository.ErrNoOpenRound)
		}
		return nil, wrapDBErr(op, err)
	}

	return &rd, nil
}

// EnsureOpen creates the first round when the table is empty, so exactly
// one open round exists after startup.
func (r *RoundRepo) EnsureOpen(ctx context.Context) (*domain.Round, error) {
	const op = "postgres.RoundRepo.EnsureOpen"

	var rd *domain.Round
	err := r.store.RunTx(ctx, func(ctx context.Context, tx DB) error {
		got, err := r.With(tx).Open(ctx)
		if err == nil {
			rd = got
			return nil
		}
		if !errors.Is(err, repository.ErrNoOpenRound) {
			return err
		}

		var created domain.Round
		if err := tx.QueryRow(ctx,
			`INSERT INTO rounds DEFAULT VALUES RETURNING id, created_at, archived_at`,
		).Scan(&created.ID, &created.CreatedAt, &created.ArchivedAt); err != nil {
			return err
		}
		rd = &created
		return nil
	})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return rd, nil
}

// Archive closes the open round and opens a fresh one in a single
// transaction: every ticket (any status) is copied into tickets_archive
// tagged with the round id and one shared archive timestamp, the working
// set is cleared, archived_at is stamped, and a new empty round is
// created. Registrations and status updates serialize against it, so a
// mixed pre/post-reset state is never observable.
//
// Returns:
//   - int64: id of the archived round.
//   - *domain.Round: the freshly opened round.
func (r *RoundRepo) Archive(ctx context.Context) (int64, *domain.Round, error) {
	const op = "postgres.RoundRepo.Archive"

	var (
		archivedID int64
		next       domain.Round
	)

	err := r.store.RunTx(ctx, func(ctx context.Context, tx DB) error {
		if err := tx.QueryRow(ctx,
			`SELECT id FROM rounds WHERE archived_at IS NULL`,
		).Scan(&archivedID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return repository.ErrNoOpenRound
			}
			return err
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO tickets_archive
			        (round_id, ticket_number, owner_id, owner_label, proof_ref, status, comment, archived_at)
			 SELECT round_id, ticket_number, owner_id, owner_label, proof_ref, status, comment, now()
			   FROM tickets
			  WHERE round_id = $1`,
			archivedID,
		); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM tickets WHERE round_id = $1`, archivedID,
		); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE rounds SET archived_at = now() WHERE id = $1`, archivedID,
		); err != nil {
			return err
		}

		return tx.QueryRow(ctx,
			`INSERT INTO rounds DEFAULT VALUES RETURNING id, created_at, archived_at`,
		).Scan(&next.ID, &next.CreatedAt, &next.ArchivedAt)
	})
	if err != nil {
		return 0, nil, wrapDBErr(op, err)
	}

	return archivedID, &next, nil
}

// List returns all rounds, newest first.
func (r *RoundRepo) List(ctx context.Context) ([]domain.Round, error) {
	const op = "postgres.RoundRepo.List"

	rows, err := r.handle().Query(ctx,
		`SELECT id, created_at, archived_at FROM rounds ORDER BY id DESC`,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	var rounds []domain.Round
	for rows.Next() {
		var rd domain.Round
		if err := rows.Scan(&rd.ID, &rd.CreatedAt, &rd.ArchivedAt); err != nil {
			return nil, wrapDBErr(op, err)
		}
		rounds = append(rounds, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return rounds, nil
}

// ArchivedTickets returns the immutable history of one archived round,
// ordered by ticket number.
func (r *RoundRepo) ArchivedTickets(ctx context.Context, roundID int64) ([]domain.ArchivedTicket, error) {
	const op = "postgres.RoundRepo.ArchivedTickets"

	rows, err := r.handle().Query(ctx,
		`SELECT id, round_id, ticket_number, owner_id, owner_label, proof_ref, status, comment, archived_at
		   FROM tickets_archive
		  WHERE round_id = $1
		  ORDER BY ticket_number`,
		roundID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	var tickets []domain.ArchivedTicket
	for rows.Next() {
		var t domain.ArchivedTicket
		if err := rows.Scan(
			&t.ID, &t.RoundID, &t.Number, &t.OwnerID, &t.OwnerLabel,
			&t.ProofRef, &t.Status, &t.Comment, &t.ArchivedAt,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return tickets, nil
}
