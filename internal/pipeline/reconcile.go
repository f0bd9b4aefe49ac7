package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/JakeFAU/glossary-harvester/internal/glossary"
)

const defaultReconcileBatch = 200

// ReconcileStats summarizes a Reconciler run.
type ReconcileStats struct {
	Scanned   int
	Created   int
	Updated   int
	Unchanged int
}

// Reconciler rebuilds index documents from relational truth. It is used to
// repair terms whose records committed but were never indexed.
type Reconciler struct {
	store     glossary.Store
	index     glossary.IndexStore
	batchSize int
	logger    *zap.Logger
}

// NewReconciler constructs a Reconciler. batchSize <= 0 uses a default.
func NewReconciler(store glossary.Store, index glossary.IndexStore, batchSize int, logger *zap.Logger) *Reconciler {
	if batchSize <= 0 {
		batchSize = defaultReconcileBatch
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{store: store, index: index, batchSize: batchSize, logger: logger}
}

// Run walks every term in id order. It stops at the first index failure so
// the run can be repeated once the index is reachable again.
func (r *Reconciler) Run(ctx context.Context) (ReconcileStats, error) {
	var stats ReconcileStats
	var after int64
	for {
		terms, err := r.store.ListTerms(ctx, after, r.batchSize)
		if err != nil {
			return stats, fmt.Errorf("list terms after %d: %w", after, err)
		}
		if len(terms) == 0 {
			return stats, nil
		}
		for _, term := range terms {
			if err := ctx.Err(); err != nil {
				return stats, fmt.Errorf("reconcile canceled: %w", err)
			}
			result, err := r.ReconcileTerm(ctx, term.ID)
			if err != nil {
				return stats, err
			}
			stats.Scanned++
			switch result {
			case ReconcileCreated:
				stats.Created++
			case ReconcileUpdated:
				stats.Updated++
			default:
				stats.Unchanged++
			}
			after = term.ID
		}
		r.logger.Info("reconcile batch done", zap.Int64("after_id", after), zap.Int("scanned", stats.Scanned))
	}
}

// ReconcileResult reports what ReconcileTerm did to one document.
type ReconcileResult int

// ReconcileTerm results.
const (
	ReconcileUnchanged ReconcileResult = iota
	ReconcileCreated
	ReconcileUpdated
)

func (r ReconcileResult) String() string {
	switch r {
	case ReconcileCreated:
		return "created"
	case ReconcileUpdated:
		return "updated"
	default:
		return "unchanged"
	}
}

// ReconcileTerm makes the document for termID a superset of the relational
// aggregate. A missing document is created with DefinitionCount equal to the
// number of Definition rows; an existing counter is only ever raised.
func (r *Reconciler) ReconcileTerm(ctx context.Context, termID int64) (ReconcileResult, error) {
	agg, err := r.store.LoadAggregate(ctx, termID)
	if err != nil {
		return ReconcileUnchanged, fmt.Errorf("load aggregate %d: %w", termID, err)
	}
	variants := make([]string, 0, len(agg.Variants))
	for _, v := range agg.Variants {
		variants = append(variants, v.Text)
	}
	definitions := make([]string, 0, len(agg.Definitions))
	for _, d := range agg.Definitions {
		definitions = append(definitions, d.Text)
	}
	rowCount := int32(len(agg.Definitions))

	id := glossary.DocumentID(termID)
	doc, err := r.index.Get(ctx, id)
	if errors.Is(err, glossary.ErrIndexNotFound) {
		doc = glossary.IndexDocument{
			ID:              id,
			Term:            agg.Term.Text,
			Variants:        glossary.Union([]string{agg.Term.Text}, variants...),
			Definitions:     glossary.Union(nil, definitions...),
			DefinitionCount: rowCount,
			Slug:            agg.Term.Slug,
		}
		if err := r.index.Create(ctx, doc); err != nil {
			return ReconcileUnchanged, fmt.Errorf("create index document %s: %w", id, err)
		}
		return ReconcileCreated, nil
	}
	if err != nil {
		return ReconcileUnchanged, fmt.Errorf("get index document %s: %w", id, err)
	}

	merged := doc
	merged.Variants = glossary.Union(doc.Variants, append([]string{agg.Term.Text}, variants...)...)
	merged.Definitions = glossary.Union(doc.Definitions, definitions...)
	merged.DefinitionCount = max(doc.DefinitionCount, rowCount)
	if slices.Equal(merged.Variants, doc.Variants) &&
		slices.Equal(merged.Definitions, doc.Definitions) &&
		merged.DefinitionCount == doc.DefinitionCount {
		return ReconcileUnchanged, nil
	}
	if err := r.index.Update(ctx, merged); err != nil {
		return ReconcileUnchanged, fmt.Errorf("update index document %s: %w", id, err)
	}
	return ReconcileUpdated, nil
}
