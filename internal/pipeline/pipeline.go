package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/glossary-harvester/internal/glossary"
	"github.com/JakeFAU/glossary-harvester/internal/metrics"
)

// Config controls Pipeline behavior.
type Config struct {
	LookupScope LookupScope
}

// Pipeline is the per-record transaction boundary.
type Pipeline struct {
	store       glossary.Store
	resolver    TermResolver
	definitions DefinitionRegistrar
	variants    VariantRegistrar
	sync        IndexSynchronizer
	logger      *zap.Logger
}

// New constructs a Pipeline over injected store handles.
func New(store glossary.Store, index glossary.IndexStore, cfg Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:    store,
		resolver: NewTermResolver(cfg.LookupScope),
		sync:     NewIndexSynchronizer(index),
		logger:   logger,
	}
}

// Process reconciles rec and returns it unchanged on success.
func (p *Pipeline) Process(ctx context.Context, rec glossary.Record) (glossary.Record, error) {
	if _, err := p.Apply(ctx, rec); err != nil {
		return glossary.Record{}, err
	}
	return rec, nil
}

// Apply reconciles rec and reports what changed. A relational failure rolls
// back every write for rec and skips the index. An index failure after a
// successful commit is returned wrapped in glossary.ErrIndexSync with the
// committed Outcome.
func (p *Pipeline) Apply(ctx context.Context, rec glossary.Record) (glossary.Outcome, error) {
	rec = rec.Normalize()
	if err := rec.Validate(); err != nil {
		metrics.ObserveRecord(metrics.OutcomeRejected)
		return glossary.Outcome{}, fmt.Errorf("validate record: %w", err)
	}

	out, term, err := p.commit(ctx, rec)
	if err != nil {
		metrics.ObserveRecord(metrics.OutcomeRejected)
		p.logger.Warn("record rolled back", zap.String("term", rec.Term), zap.Error(err))
		return glossary.Outcome{}, err
	}
	metrics.ObserveWrites(out.TermCreated, out.DefinitionCreated, out.VariantsCreated)

	variants := glossary.Union([]string{rec.Term}, rec.VariantTexts()...)
	created, err := p.sync.Sync(ctx, out.TermID, term.Text, variants, rec.Definition)
	if err != nil {
		metrics.ObserveIndexSync(metrics.SyncFailed)
		metrics.ObserveRecord(metrics.OutcomeUnindexed)
		p.logger.Error("index sync failed",
			zap.Int64("term_id", out.TermID),
			zap.String("term", rec.Term),
			zap.Error(err),
		)
		return out, fmt.Errorf("%w: term %d: %w", glossary.ErrIndexSync, out.TermID, err)
	}
	out.DocumentCreated = created
	if created {
		metrics.ObserveIndexSync(metrics.SyncCreated)
	} else {
		metrics.ObserveIndexSync(metrics.SyncMerged)
	}
	metrics.ObserveRecord(metrics.OutcomeAccepted)

	p.logger.Debug("record accepted",
		zap.String("term", rec.Term),
		zap.Int64("term_id", out.TermID),
		zap.Bool("term_created", out.TermCreated),
		zap.Bool("definition_created", out.DefinitionCreated),
		zap.Int("variants_created", out.VariantsCreated),
	)
	return out, nil
}

// commit runs the relational writes for rec in one transaction and returns
// the canonical Term the record resolved to.
func (p *Pipeline) commit(ctx context.Context, rec glossary.Record) (out glossary.Outcome, term glossary.Term, err error) {
	tx, err := p.store.Begin(ctx)
	if err != nil {
		return out, term, fmt.Errorf("begin transaction: %w", err)
	}
	done := false
	defer func() {
		if done {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			p.logger.Warn("rollback failed", zap.String("term", rec.Term), zap.Error(rbErr))
		}
	}()

	term, out.TermCreated, err = p.resolver.Resolve(ctx, tx, rec.Term, rec.VariantTexts())
	if err != nil {
		return glossary.Outcome{}, glossary.Term{}, err
	}
	out.TermID = term.ID

	out.DefinitionCreated, err = p.definitions.Register(ctx, tx, out.TermID, rec.Definition, rec.Source)
	if err != nil {
		return glossary.Outcome{}, glossary.Term{}, err
	}

	// The record's own term text is always a variant of the term it resolved
	// to, which differs from it only under LookupVariants.
	notes := append([]glossary.VariantNote{{Variant: rec.Term}}, rec.Variants...)
	for _, note := range notes {
		created, err := p.variants.Ensure(ctx, tx, out.TermID, note)
		if err != nil {
			return glossary.Outcome{}, glossary.Term{}, err
		}
		if created {
			out.VariantsCreated++
		}
	}

	done = true
	if err := tx.Commit(ctx); err != nil {
		return glossary.Outcome{}, glossary.Term{}, fmt.Errorf("commit record: %w", err)
	}
	return out, term, nil
}
