// Package worker drains the record queue into the reconciliation pipeline.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/glossary-harvester/internal/glossary"
)

// DefaultReindexTopic receives notices for records that committed without
// reaching the index.
const DefaultReindexTopic = "glossary-reindex"

// Applier reconciles one record.
type Applier interface {
	Apply(ctx context.Context, rec glossary.Record) (glossary.Outcome, error)
}

// Config controls Worker behavior.
type Config struct {
	ReindexTopic string
}

// Stats counts records handled by a Worker.
type Stats struct {
	Processed int64
	Failed    int64
	Unindexed int64
}

// Worker is the single consumer in front of a Pipeline.
type Worker struct {
	queue     glossary.Queue
	pipeline  Applier
	publisher glossary.Publisher
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time

	processed atomic.Int64
	failed    atomic.Int64
	unindexed atomic.Int64
}

// New constructs a Worker. publisher may be nil, in which case unindexed
// records are only logged.
func New(
	queue glossary.Queue,
	pipeline Applier,
	publisher glossary.Publisher,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.ReindexTopic == "" {
		cfg.ReindexTopic = DefaultReindexTopic
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:     queue,
		pipeline:  pipeline,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run blocks, consuming records until the context finishes or the queue is
// closed and drained.
func (w *Worker) Run(ctx context.Context) error {
	for {
		rec, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, glossary.ErrQueueClosed) {
				w.logger.Info("queue drained", zap.Int64("processed", w.processed.Load()))
				return nil
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued record", zap.String("term", rec.Term), zap.String("source", rec.Source))
		_ = w.Handle(ctx, rec)
	}
}

// Handle runs one record through the pipeline. Records that commit but miss
// the index are announced on the reindex topic.
func (w *Worker) Handle(ctx context.Context, rec glossary.Record) error {
	out, err := w.pipeline.Apply(ctx, rec)
	switch {
	case err == nil:
		w.processed.Add(1)
		return nil
	case errors.Is(err, glossary.ErrIndexSync):
		w.processed.Add(1)
		w.unindexed.Add(1)
		w.logger.Warn("record committed without index",
			zap.Int64("term_id", out.TermID),
			zap.String("term", rec.Term),
			zap.Error(err),
		)
		if pubErr := w.publishReindex(ctx, out.TermID, rec.Term, err); pubErr != nil {
			w.logger.Error("reindex notice failed", zap.Int64("term_id", out.TermID), zap.Error(pubErr))
		}
		return err
	default:
		w.failed.Add(1)
		w.logger.Error("record rejected",
			zap.String("term", rec.Term),
			zap.String("source", rec.Source),
			zap.Error(err),
		)
		return err
	}
}

func (w *Worker) publishReindex(ctx context.Context, termID int64, term string, cause error) error {
	if w.publisher == nil {
		return nil
	}
	notice := glossary.ReindexNotice{
		TermID: termID,
		Term:   term,
		Reason: cause.Error(),
		At:     w.now(),
	}
	msgID, err := w.publisher.Publish(ctx, w.cfg.ReindexTopic, notice)
	if err != nil {
		return fmt.Errorf("publish reindex notice: %w", err)
	}
	w.logger.Info("reindex notice published",
		zap.Int64("term_id", termID),
		zap.String("topic", w.cfg.ReindexTopic),
		zap.String("message_id", msgID),
	)
	return nil
}

// Stats returns a snapshot of the worker counters.
func (w *Worker) Stats() Stats {
	return Stats{
		Processed: w.processed.Load(),
		Failed:    w.failed.Load(),
		Unindexed: w.unindexed.Load(),
	}
}
