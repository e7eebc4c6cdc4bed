package postgres

import (
	"context"
	"fmt"
)

// Applied at startup. Kept as idempotent DDL so a fresh database is usable
// without a separate migration step.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS rounds (
    id          BIGSERIAL PRIMARY KEY,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    archived_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS tickets (
    id            BIGSERIAL PRIMARY KEY,
    round_id      BIGINT NOT NULL REFERENCES rounds(id),
    ticket_number INT    NOT NULL,
    owner_id      TEXT   NOT NULL,
    owner_label   TEXT   NOT NULL DEFAULT '',
    proof_ref     TEXT   NOT NULL,
    status        TEXT   NOT NULL DEFAULT 'active',
    comment       TEXT   NOT NULL DEFAULT '',
    UNIQUE (round_id, ticket_number)
);

CREATE INDEX IF NOT EXISTS tickets_owner_idx ON tickets (owner_id) WHERE status = 'active';

CREATE TABLE IF NOT EXISTS tickets_archive (
    id            BIGSERIAL PRIMARY KEY,
    round_id      BIGINT      NOT NULL,
    ticket_number INT         NOT NULL,
    owner_id      TEXT        NOT NULL,
    owner_label   TEXT        NOT NULL DEFAULT '',
    proof_ref     TEXT        NOT NULL,
    status        TEXT        NOT NULL,
    comment       TEXT        NOT NULL DEFAULT '',
    archived_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS tickets_archive_round_idx ON tickets_archive (round_id, ticket_number);
`

// InitSchema creates the raffle tables if they do not exist yet.
func (s *Store) InitSchema(ctx context.Context) error {
	const op = "postgres.Store.InitSchema"

	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}
