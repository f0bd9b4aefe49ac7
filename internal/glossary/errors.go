package glossary

import "errors"

var (
	// ErrConfiguration marks missing or invalid connection settings.
	ErrConfiguration = errors.New("configuration error")
	// ErrConstraint marks a relational uniqueness or foreign-key violation.
	ErrConstraint = errors.New("storage constraint violation")
	// ErrNotFound is returned by relational lookups that match nothing.
	ErrNotFound = errors.New("not found")
	// ErrIndexNotFound is returned by IndexStore.Get for an absent document.
	ErrIndexNotFound = errors.New("index document not found")
	// ErrIndexTransport marks an unreachable or failing index store.
	ErrIndexTransport = errors.New("index transport failure")
	// ErrIndexSync is returned when a record committed but was not indexed.
	ErrIndexSync = errors.New("record accepted but not indexed")
	// ErrEmptyTerm rejects records without a term.
	ErrEmptyTerm = errors.New("record term is empty")
	// ErrEmptyDefinition rejects records without a definition.
	ErrEmptyDefinition = errors.New("record definition is empty")
	// ErrQueueClosed is returned by a drained, closed Queue.
	ErrQueueClosed = errors.New("queue closed")
)
