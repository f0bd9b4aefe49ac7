package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/glossary-harvester/internal/glossary"
)

// DefinitionRegistrar records (term, definition, source) facts without storing
// the same definition text twice under one term.
type DefinitionRegistrar struct{}

// Register inserts the definition unless (termID, text) already exists. The
// source of an existing row is left untouched.
func (DefinitionRegistrar) Register(
	ctx context.Context,
	tx glossary.Tx,
	termID int64,
	text string,
	source string,
) (bool, error) {
	_, err := tx.FindDefinition(ctx, termID, text)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, glossary.ErrNotFound):
		return false, fmt.Errorf("lookup definition: %w", err)
	}
	if _, err := tx.InsertDefinition(ctx, glossary.Definition{TermID: termID, Text: text, Source: source}); err != nil {
		return false, fmt.Errorf("insert definition: %w", err)
	}
	return true, nil
}
