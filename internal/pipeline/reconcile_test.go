package pipeline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/glossary-harvester/internal/glossary"
	"github.com/JakeFAU/glossary-harvester/internal/pipeline"
)

func TestReconcilerRepairsMissingDocuments(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	indexed := h.pipeline(pipeline.LookupTerm)
	ram, err := indexed.Apply(ctx, ramRecord)
	require.NoError(t, err)
	_, err = indexed.Apply(ctx, ramRecord)
	require.NoError(t, err)

	offline := pipeline.New(h.store, brokenIndex{}, pipeline.Config{}, zap.NewNop())
	cache, err := offline.Apply(ctx, glossary.Record{Term: "Cache", Definition: "Memória rápida."})
	require.ErrorIs(t, err, glossary.ErrIndexSync)

	r := pipeline.NewReconciler(h.store, h.index, 1, zap.NewNop())
	stats, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, pipeline.ReconcileStats{Scanned: 2, Created: 1, Unchanged: 1}, stats)

	doc := h.doc(t, cache.TermID)
	assert.Equal(t, []string{"Cache"}, doc.Variants)
	assert.Equal(t, []string{"Memória rápida."}, doc.Definitions)
	assert.Equal(t, int32(1), doc.DefinitionCount)
	assert.Equal(t, "cache", doc.Slug)

	// The sighting counter already exceeds the row count and is kept.
	assert.Equal(t, int32(2), h.doc(t, ram.TermID).DefinitionCount)

	stats, err = r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, pipeline.ReconcileStats{Scanned: 2, Unchanged: 2}, stats)
}

func TestReconcileTermRestoresDroppedFields(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	out, err := h.pipeline(pipeline.LookupTerm).Apply(ctx, ramRecord)
	require.NoError(t, err)

	stale := h.doc(t, out.TermID)
	stale.Variants = []string{"Memória RAM"}
	stale.Definitions = nil
	stale.DefinitionCount = 0
	require.NoError(t, h.index.Update(ctx, stale))

	r := pipeline.NewReconciler(h.store, h.index, 0, nil)
	result, err := r.ReconcileTerm(ctx, out.TermID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.ReconcileUpdated, result)

	doc := h.doc(t, out.TermID)
	assert.Equal(t, []string{"Memória RAM", "RAM"}, doc.Variants)
	assert.Equal(t, []string{"Memória volátil de acesso aleatório."}, doc.Definitions)
	assert.Equal(t, int32(1), doc.DefinitionCount)
}

func TestReconcileTermMissingAggregate(t *testing.T) {
	h := newHarness(t)
	r := pipeline.NewReconciler(h.store, h.index, 0, nil)
	_, err := r.ReconcileTerm(context.Background(), 99)
	assert.ErrorIs(t, err, glossary.ErrNotFound)
}

func TestReconcilerStopsOnIndexFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.pipeline(pipeline.LookupTerm).Apply(ctx, ramRecord)
	require.NoError(t, err)

	r := pipeline.NewReconciler(h.store, brokenIndex{}, 10, nil)
	stats, err := r.Run(ctx)
	assert.ErrorIs(t, err, glossary.ErrIndexTransport)
	assert.Zero(t, stats.Scanned)
}
