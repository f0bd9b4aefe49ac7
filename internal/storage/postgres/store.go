// Package postgres provides the Postgres-backed relational glossary store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/glossary-harvester/internal/glossary"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Config controls the Postgres connection pool.
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// DSN renders the connection string for cfg.
func (c Config) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}

type pool interface {
	Begin(context.Context) (pgx.Tx, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// Store is a glossary.Store backed by a pgx pool.
type Store struct {
	pool pool
}

var _ glossary.Store = (*Store)(nil)

// NewStore connects to Postgres using cfg.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Host == "" || cfg.Database == "" {
		return nil, fmt.Errorf("%w: postgres host and database are required", glossary.ErrConfiguration)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: p}, nil
}

// NewStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewStoreWithPool(p pool) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: p}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// Ping checks that a pooled connection answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Begin opens a transaction for one record.
func (s *Store) Begin(ctx context.Context) (glossary.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin postgres tx: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// ListTerms pages through terms by ascending id.
func (s *Store) ListTerms(ctx context.Context, afterID int64, limit int) ([]glossary.Term, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, text, slug
		FROM term
		WHERE id > $1
		ORDER BY id
		LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list terms: %w", err)
	}
	defer rows.Close()

	var terms []glossary.Term
	for rows.Next() {
		var t glossary.Term
		if err := rows.Scan(&t.ID, &t.Text, &t.Slug); err != nil {
			return nil, fmt.Errorf("scan term row: %w", err)
		}
		terms = append(terms, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list terms: %w", err)
	}
	return terms, nil
}

// LoadAggregate reads a term with its variants and definitions.
func (s *Store) LoadAggregate(ctx context.Context, termID int64) (glossary.Aggregate, error) {
	var agg glossary.Aggregate
	err := s.pool.QueryRow(ctx, `SELECT id, text, slug FROM term WHERE id = $1`, termID).
		Scan(&agg.Term.ID, &agg.Term.Text, &agg.Term.Slug)
	if errors.Is(err, pgx.ErrNoRows) {
		return agg, glossary.ErrNotFound
	}
	if err != nil {
		return agg, fmt.Errorf("load term: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, termid, text, slug, explanation
		FROM variant
		WHERE termid = $1
		ORDER BY id`, termID)
	if err != nil {
		return agg, fmt.Errorf("load variants: %w", err)
	}
	agg.Variants, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (glossary.Variant, error) {
		var v glossary.Variant
		err := row.Scan(&v.ID, &v.TermID, &v.Text, &v.Slug, &v.Explanation)
		return v, err
	})
	if err != nil {
		return agg, fmt.Errorf("scan variant rows: %w", err)
	}

	rows, err = s.pool.Query(ctx, `
		SELECT id, termid, text, source
		FROM definition
		WHERE termid = $1
		ORDER BY id`, termID)
	if err != nil {
		return agg, fmt.Errorf("load definitions: %w", err)
	}
	agg.Definitions, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (glossary.Definition, error) {
		var d glossary.Definition
		err := row.Scan(&d.ID, &d.TermID, &d.Text, &d.Source)
		return d, err
	})
	if err != nil {
		return agg, fmt.Errorf("scan definition rows: %w", err)
	}
	return agg, nil
}

// Tx is one record's Postgres transaction.
type Tx struct {
	tx pgx.Tx
}

var _ glossary.Tx = (*Tx)(nil)

// FindTermByText matches canonical term text exactly.
func (t *Tx) FindTermByText(ctx context.Context, text string) (glossary.Term, error) {
	var term glossary.Term
	err := t.tx.QueryRow(ctx, `SELECT id, text, slug FROM term WHERE text = $1`, text).
		Scan(&term.ID, &term.Text, &term.Slug)
	return term, lookupErr("find term", err)
}

// FindTermByAnyText matches canonical term text against any of texts.
func (t *Tx) FindTermByAnyText(ctx context.Context, texts []string) (glossary.Term, error) {
	if len(texts) == 0 {
		return glossary.Term{}, glossary.ErrNotFound
	}
	var term glossary.Term
	err := t.tx.QueryRow(ctx, `
		SELECT id, text, slug
		FROM term
		WHERE text = ANY($1)
		ORDER BY id
		LIMIT 1`, texts).Scan(&term.ID, &term.Text, &term.Slug)
	return term, lookupErr("find term", err)
}

// InsertTerm inserts a term and returns its id.
func (t *Tx) InsertTerm(ctx context.Context, text, slug string) (int64, error) {
	return t.insert(ctx, "insert term",
		`INSERT INTO term (text, slug) VALUES ($1, $2) RETURNING id`, text, slug)
}

// FindVariant returns the id of (termID, text).
func (t *Tx) FindVariant(ctx context.Context, termID int64, text string) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `SELECT id FROM variant WHERE termid = $1 AND text = $2`, termID, text).Scan(&id)
	return id, lookupErr("find variant", err)
}

// InsertVariant inserts a variant and returns its id.
func (t *Tx) InsertVariant(ctx context.Context, v glossary.Variant) (int64, error) {
	return t.insert(ctx, "insert variant",
		`INSERT INTO variant (termid, text, slug, explanation) VALUES ($1, $2, $3, $4) RETURNING id`,
		v.TermID, v.Text, v.Slug, v.Explanation)
}

// FindDefinition returns the id of (termID, text). The md5 predicate lets
// the lookup use definition_termid_text_md5.
func (t *Tx) FindDefinition(ctx context.Context, termID int64, text string) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`SELECT id FROM definition WHERE termid = $1 AND md5(text) = md5($2) AND text = $2`,
		termID, text).Scan(&id)
	return id, lookupErr("find definition", err)
}

// InsertDefinition inserts a definition and returns its id.
func (t *Tx) InsertDefinition(ctx context.Context, d glossary.Definition) (int64, error) {
	return t.insert(ctx, "insert definition",
		`INSERT INTO definition (termid, text, source) VALUES ($1, $2, $3) RETURNING id`,
		d.TermID, d.Text, d.Source)
}

// Commit commits the transaction.
func (t *Tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit postgres tx: %w", err)
	}
	return nil
}

// Rollback discards the transaction.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil {
		return fmt.Errorf("rollback postgres tx: %w", err)
	}
	return nil
}

func (t *Tx) insert(ctx context.Context, op, query string, args ...any) (int64, error) {
	var id int64
	if err := t.tx.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, classify(op, err)
	}
	return id, nil
}

func lookupErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return glossary.ErrNotFound
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// classify maps unique and foreign-key violations onto glossary.ErrConstraint.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == pgUniqueViolation || pgErr.Code == pgForeignKeyViolation) {
		return fmt.Errorf("%s: %w: %w", op, glossary.ErrConstraint, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
