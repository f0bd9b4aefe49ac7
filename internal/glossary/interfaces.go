package glossary

import (
	"context"
	"io"
)

// Tx is the relational unit of work for a single record. Implementations own
// one connection for the lifetime of the transaction.
type Tx interface {
	FindTermByText(ctx context.Context, text string) (Term, error)
	// FindTermByAnyText matches canonical Term text against any of texts and
	// returns the lowest id.
	FindTermByAnyText(ctx context.Context, texts []string) (Term, error)
	InsertTerm(ctx context.Context, text, slug string) (int64, error)
	FindVariant(ctx context.Context, termID int64, text string) (int64, error)
	InsertVariant(ctx context.Context, v Variant) (int64, error)
	FindDefinition(ctx context.Context, termID int64, text string) (int64, error)
	InsertDefinition(ctx context.Context, d Definition) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store is the relational source of truth.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	EnsureSchema(ctx context.Context) error
	ListTerms(ctx context.Context, afterID int64, limit int) ([]Term, error)
	LoadAggregate(ctx context.Context, termID int64) (Aggregate, error)
	Close() error
}

// IndexStore holds IndexDocuments keyed by term id.
type IndexStore interface {
	// Get returns ErrIndexNotFound when no document exists for id.
	Get(ctx context.Context, id string) (IndexDocument, error)
	Create(ctx context.Context, doc IndexDocument) error
	Update(ctx context.Context, doc IndexDocument) error
	EnsureSchema(ctx context.Context) error
	Close() error
}

// Publisher pushes notices to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Queue serializes records from concurrent producers to a single consumer.
type Queue interface {
	Enqueue(ctx context.Context, rec Record) error
	Dequeue(ctx context.Context) (Record, error)
}

// Searcher is implemented by index stores that answer free-text queries.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]IndexDocument, error)
}
