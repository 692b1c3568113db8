package postgres

import (
	"context"
	"fmt"
)

const verifiedNumberIndex = "account_phones_verified_number_key"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id         TEXT PRIMARY KEY,
		username   TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS account_phones (
		account_id TEXT NOT NULL REFERENCES accounts (id) ON DELETE CASCADE,
		number     TEXT NOT NULL,
		verified   BOOLEAN NOT NULL DEFAULT false,
		PRIMARY KEY (account_id, number, verified)
	)`,
	`CREATE INDEX IF NOT EXISTS account_phones_number_idx ON account_phones (number)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ` + verifiedNumberIndex + ` ON account_phones (number) WHERE verified`,
}

// EnsureSchema creates the tables and indexes the store uses. It is safe to
// run on every start.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: ensure schema: %w", err)
		}
	}
	return nil
}
