package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/glossary-harvester/internal/glossary"
)

// VariantRegistrar links variant strings to their owning term.
type VariantRegistrar struct{}

// Ensure inserts the variant unless (termID, text) already exists.
func (VariantRegistrar) Ensure(
	ctx context.Context,
	tx glossary.Tx,
	termID int64,
	note glossary.VariantNote,
) (bool, error) {
	_, err := tx.FindVariant(ctx, termID, note.Variant)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, glossary.ErrNotFound):
		return false, fmt.Errorf("lookup variant %q: %w", note.Variant, err)
	}
	_, err = tx.InsertVariant(ctx, glossary.Variant{
		TermID:      termID,
		Text:        note.Variant,
		Slug:        glossary.Slugify(note.Variant),
		Explanation: note.Explanation,
	})
	if err != nil {
		return false, fmt.Errorf("insert variant %q: %w", note.Variant, err)
	}
	return true, nil
}
