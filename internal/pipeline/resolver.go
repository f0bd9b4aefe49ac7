package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/glossary-harvester/internal/glossary"
)

// LookupScope selects which strings the TermResolver matches against
// canonical Term text.
type LookupScope string

const (
	// LookupTerm matches the candidate term text only.
	LookupTerm LookupScope = "term"
	// LookupVariants matches the candidate term text and every incoming
	// variant string. A variant equal to another term's canonical text merges
	// the record into that term.
	LookupVariants LookupScope = "variants"
)

// ParseLookupScope validates a configured scope. Empty means LookupTerm.
func ParseLookupScope(s string) (LookupScope, error) {
	switch LookupScope(s) {
	case "", LookupTerm:
		return LookupTerm, nil
	case LookupVariants:
		return LookupVariants, nil
	default:
		return "", fmt.Errorf("unknown lookup scope %q", s)
	}
}

// TermResolver finds or creates the canonical Term for a record.
type TermResolver struct {
	scope LookupScope
}

// NewTermResolver builds a resolver for the given scope.
func NewTermResolver(scope LookupScope) TermResolver {
	if scope == "" {
		scope = LookupTerm
	}
	return TermResolver{scope: scope}
}

// Resolve returns the canonical Term for text, inserting it together with its
// self-variant when absent. Under LookupVariants the returned Term may carry
// a different text than the one asked for.
func (r TermResolver) Resolve(
	ctx context.Context,
	tx glossary.Tx,
	text string,
	variants []string,
) (glossary.Term, bool, error) {
	term, err := r.lookup(ctx, tx, text, variants)
	switch {
	case err == nil:
		return term, false, nil
	case !errors.Is(err, glossary.ErrNotFound):
		return glossary.Term{}, false, fmt.Errorf("lookup term %q: %w", text, err)
	}

	slug := glossary.Slugify(text)
	id, err := tx.InsertTerm(ctx, text, slug)
	if err != nil {
		return glossary.Term{}, false, fmt.Errorf("insert term %q: %w", text, err)
	}
	if _, err := tx.InsertVariant(ctx, glossary.Variant{TermID: id, Text: text, Slug: slug}); err != nil {
		return glossary.Term{}, false, fmt.Errorf("insert self variant %q: %w", text, err)
	}
	return glossary.Term{ID: id, Text: text, Slug: slug}, true, nil
}

func (r TermResolver) lookup(
	ctx context.Context,
	tx glossary.Tx,
	text string,
	variants []string,
) (glossary.Term, error) {
	if r.scope == LookupVariants && len(variants) > 0 {
		return tx.FindTermByAnyText(ctx, glossary.Union([]string{text}, variants...))
	}
	return tx.FindTermByText(ctx, text)
}
