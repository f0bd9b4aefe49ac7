package postgres

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS term (
		id   BIGSERIAL PRIMARY KEY,
		text TEXT NOT NULL UNIQUE,
		slug TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS variant (
		id          BIGSERIAL PRIMARY KEY,
		termid      BIGINT NOT NULL REFERENCES term(id) ON DELETE CASCADE,
		text        TEXT NOT NULL,
		slug        TEXT NOT NULL,
		explanation TEXT NOT NULL DEFAULT '',
		UNIQUE (termid, text)
	)`,
	`CREATE TABLE IF NOT EXISTS definition (
		id     BIGSERIAL PRIMARY KEY,
		termid BIGINT NOT NULL REFERENCES term(id) ON DELETE CASCADE,
		text   TEXT NOT NULL,
		source TEXT NOT NULL
	)`,
	// Definitions can outgrow a btree row, so uniqueness is on the digest.
	`CREATE UNIQUE INDEX IF NOT EXISTS definition_termid_text_md5
		ON definition (termid, md5(text))`,
}

// EnsureSchema creates the glossary tables when absent. It is a bootstrap
// step, not a migration system.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
