package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirinyoku/raffle-go/internal/repository"
)

// IsRetryable reports whether the error is a serialization or deadlock
// failure that is safe to retry with a fresh transaction.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return true
		}
	}

	return false
}

// wrapDBErr maps common pgx errors to repository-level sentinels and wraps
// them with the operation name.
func wrapDBErr(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	var pge *pgconn.PgError
	if errors.As(err, &pge) {
		// unique_violation on (round_id, ticket_number)
		if pge.Code == "23505" {
			return fmt.Errorf("%s:%w", op, repository.ErrDuplicateNumber)
		}
	}

	return fmt.Errorf("%s:%w", op, err)
}
