// Package sqlite implements the relational glossary store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/JakeFAU/glossary-harvester/internal/glossary"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS Term (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	text TEXT NOT NULL UNIQUE,
	slug TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS Variant (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	termId      INTEGER NOT NULL REFERENCES Term(id) ON DELETE CASCADE,
	text        TEXT NOT NULL,
	slug        TEXT NOT NULL,
	explanation TEXT NOT NULL DEFAULT '',
	UNIQUE (termId, text)
);
CREATE TABLE IF NOT EXISTS Definition (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	termId INTEGER NOT NULL REFERENCES Term(id) ON DELETE CASCADE,
	text   TEXT NOT NULL,
	source TEXT NOT NULL,
	UNIQUE (termId, text)
)`

// Store is a glossary.Store backed by a single SQLite connection.
type Store struct {
	db *sql.DB
}

var _ glossary.Store = (*Store)(nil)

// Open opens the database at path; an empty path opens an in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: the pipeline is a single writer and :memory: databases
	// are per connection.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &Store{db: db}, nil
}

// EnsureSchema creates the glossary tables when absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Close releases the connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

// Begin opens a transaction for one record.
func (s *Store) Begin(ctx context.Context) (glossary.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin sqlite tx: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// ListTerms pages through terms by ascending id.
func (s *Store) ListTerms(ctx context.Context, afterID int64, limit int) ([]glossary.Term, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, slug FROM Term WHERE id > ? ORDER BY id LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list terms: %w", err)
	}
	defer rows.Close()

	var out []glossary.Term
	for rows.Next() {
		var t glossary.Term
		if err := rows.Scan(&t.ID, &t.Text, &t.Slug); err != nil {
			return nil, fmt.Errorf("scan term: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// LoadAggregate reads a term with its variants and definitions.
func (s *Store) LoadAggregate(ctx context.Context, termID int64) (glossary.Aggregate, error) {
	var agg glossary.Aggregate
	err := s.db.QueryRowContext(ctx, `SELECT id, text, slug FROM Term WHERE id = ?`, termID).
		Scan(&agg.Term.ID, &agg.Term.Text, &agg.Term.Slug)
	if errors.Is(err, sql.ErrNoRows) {
		return agg, glossary.ErrNotFound
	}
	if err != nil {
		return agg, fmt.Errorf("load term: %w", err)
	}

	if agg.Variants, err = s.loadVariants(ctx, termID); err != nil {
		return agg, err
	}
	if agg.Definitions, err = s.loadDefinitions(ctx, termID); err != nil {
		return agg, err
	}
	return agg, nil
}

func (s *Store) loadVariants(ctx context.Context, termID int64) ([]glossary.Variant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, termId, text, slug, explanation FROM Variant WHERE termId = ? ORDER BY id`, termID)
	if err != nil {
		return nil, fmt.Errorf("load variants: %w", err)
	}
	defer rows.Close()

	var out []glossary.Variant
	for rows.Next() {
		var v glossary.Variant
		if err := rows.Scan(&v.ID, &v.TermID, &v.Text, &v.Slug, &v.Explanation); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) loadDefinitions(ctx context.Context, termID int64) ([]glossary.Definition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, termId, text, source FROM Definition WHERE termId = ? ORDER BY id`, termID)
	if err != nil {
		return nil, fmt.Errorf("load definitions: %w", err)
	}
	defer rows.Close()

	var out []glossary.Definition
	for rows.Next() {
		var d glossary.Definition
		if err := rows.Scan(&d.ID, &d.TermID, &d.Text, &d.Source); err != nil {
			return nil, fmt.Errorf("scan definition: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Tx is one record's SQLite transaction.
type Tx struct {
	tx *sql.Tx
}

var _ glossary.Tx = (*Tx)(nil)

// FindTermByText matches canonical term text exactly.
func (t *Tx) FindTermByText(ctx context.Context, text string) (glossary.Term, error) {
	var term glossary.Term
	err := t.tx.QueryRowContext(ctx, `SELECT id, text, slug FROM Term WHERE text = ?`, text).
		Scan(&term.ID, &term.Text, &term.Slug)
	return term, lookupErr("find term", err)
}

// FindTermByAnyText matches canonical term text against any of texts.
func (t *Tx) FindTermByAnyText(ctx context.Context, texts []string) (glossary.Term, error) {
	if len(texts) == 0 {
		return glossary.Term{}, glossary.ErrNotFound
	}
	args := make([]any, len(texts))
	for i, v := range texts {
		args[i] = v
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(texts)), ",")
	query := fmt.Sprintf(`SELECT id, text, slug FROM Term WHERE text IN (%s) ORDER BY id LIMIT 1`, placeholders)

	var term glossary.Term
	err := t.tx.QueryRowContext(ctx, query, args...).Scan(&term.ID, &term.Text, &term.Slug)
	return term, lookupErr("find term", err)
}

// InsertTerm inserts a term and returns its id.
func (t *Tx) InsertTerm(ctx context.Context, text, slug string) (int64, error) {
	return t.insert(ctx, "insert term", `INSERT INTO Term (text, slug) VALUES (?, ?)`, text, slug)
}

// FindVariant returns the id of (termID, text).
func (t *Tx) FindVariant(ctx context.Context, termID int64, text string) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, `SELECT id FROM Variant WHERE termId = ? AND text = ?`, termID, text).Scan(&id)
	return id, lookupErr("find variant", err)
}

// InsertVariant inserts a variant and returns its id.
func (t *Tx) InsertVariant(ctx context.Context, v glossary.Variant) (int64, error) {
	return t.insert(ctx, "insert variant",
		`INSERT INTO Variant (termId, text, slug, explanation) VALUES (?, ?, ?, ?)`,
		v.TermID, v.Text, v.Slug, v.Explanation)
}

// FindDefinition returns the id of (termID, text).
func (t *Tx) FindDefinition(ctx context.Context, termID int64, text string) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, `SELECT id FROM Definition WHERE termId = ? AND text = ?`, termID, text).Scan(&id)
	return id, lookupErr("find definition", err)
}

// InsertDefinition inserts a definition and returns its id.
func (t *Tx) InsertDefinition(ctx context.Context, d glossary.Definition) (int64, error) {
	return t.insert(ctx, "insert definition",
		`INSERT INTO Definition (termId, text, source) VALUES (?, ?, ?)`,
		d.TermID, d.Text, d.Source)
}

// Commit commits the transaction.
func (t *Tx) Commit(_ context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit sqlite tx: %w", err)
	}
	return nil
}

// Rollback discards the transaction.
func (t *Tx) Rollback(_ context.Context) error {
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback sqlite tx: %w", err)
	}
	return nil
}

func (t *Tx) insert(ctx context.Context, op, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classify(op, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: last insert id: %w", op, err)
	}
	return id, nil
}

func lookupErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return glossary.ErrNotFound
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// classify maps SQLite constraint failures onto glossary.ErrConstraint.
func classify(op string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%s: %w: %w", op, glossary.ErrConstraint, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
