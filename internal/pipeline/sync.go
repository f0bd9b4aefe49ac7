package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/glossary-harvester/internal/glossary"
)

// IndexSynchronizer projects a term sighting into its IndexDocument.
type IndexSynchronizer struct {
	index glossary.IndexStore
}

// NewIndexSynchronizer wraps an index store.
func NewIndexSynchronizer(index glossary.IndexStore) IndexSynchronizer {
	return IndexSynchronizer{index: index}
}

// Sync creates the document on first sighting or merges into it. Every call
// counts as one sighting: DefinitionCount grows by one even when the
// definition text is already in the document. Reports whether the document
// was created.
func (s IndexSynchronizer) Sync(
	ctx context.Context,
	termID int64,
	term string,
	variants []string,
	definition string,
) (bool, error) {
	id := glossary.DocumentID(termID)
	doc, err := s.index.Get(ctx, id)
	if errors.Is(err, glossary.ErrIndexNotFound) {
		doc = glossary.IndexDocument{
			ID:              id,
			Term:            term,
			Variants:        glossary.Union([]string{term}, variants...),
			Definitions:     glossary.Union(nil, definition),
			DefinitionCount: 1,
			ContainsVideo:   false,
			Slug:            glossary.Slugify(term),
		}
		if err := s.index.Create(ctx, doc); err != nil {
			return false, fmt.Errorf("create index document %s: %w", id, err)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("get index document %s: %w", id, err)
	}

	doc.Variants = glossary.Union(doc.Variants, append([]string{term}, variants...)...)
	doc.Definitions = glossary.Union(doc.Definitions, definition)
	doc.DefinitionCount++
	if err := s.index.Update(ctx, doc); err != nil {
		return false, fmt.Errorf("update index document %s: %w", id, err)
	}
	return false, nil
}
