package pipeline_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/glossary-harvester/internal/glossary"
	"github.com/JakeFAU/glossary-harvester/internal/index/bleve"
	"github.com/JakeFAU/glossary-harvester/internal/pipeline"
	"github.com/JakeFAU/glossary-harvester/internal/storage/sqlite"
)

type harness struct {
	store *sqlite.Store
	index *bleve.Store
}

func newHarness(t *testing.T) harness {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.Open(ctx, "")
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(ctx))
	t.Cleanup(func() { _ = store.Close() })

	index, err := bleve.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	return harness{store: store, index: index}
}

func (h harness) pipeline(scope pipeline.LookupScope) *pipeline.Pipeline {
	return pipeline.New(h.store, h.index, pipeline.Config{LookupScope: scope}, zap.NewNop())
}

func (h harness) doc(t *testing.T, id int64) glossary.IndexDocument {
	t.Helper()
	doc, err := h.index.Get(context.Background(), glossary.DocumentID(id))
	require.NoError(t, err)
	return doc
}

func (h harness) aggregate(t *testing.T, id int64) glossary.Aggregate {
	t.Helper()
	agg, err := h.store.LoadAggregate(context.Background(), id)
	require.NoError(t, err)
	return agg
}

func variantTexts(vs []glossary.Variant) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Text)
	}
	return out
}

// brokenIndex fails every call with a transport error.
type brokenIndex struct {
	glossary.IndexStore
}

func (brokenIndex) Get(context.Context, string) (glossary.IndexDocument, error) {
	return glossary.IndexDocument{}, fmt.Errorf("%w: connection refused", glossary.ErrIndexTransport)
}

func (brokenIndex) Create(context.Context, glossary.IndexDocument) error {
	return fmt.Errorf("%w: connection refused", glossary.ErrIndexTransport)
}

func (brokenIndex) Update(context.Context, glossary.IndexDocument) error {
	return fmt.Errorf("%w: connection refused", glossary.ErrIndexTransport)
}

// failingStore hands out transactions that reject one variant text.
type failingStore struct {
	glossary.Store
	failOn string
}

func (s failingStore) Begin(ctx context.Context) (glossary.Tx, error) {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return failingTx{Tx: tx, failOn: s.failOn}, nil
}

type failingTx struct {
	glossary.Tx
	failOn string
}

func (t failingTx) InsertVariant(ctx context.Context, v glossary.Variant) (int64, error) {
	if v.Text == t.failOn {
		return 0, fmt.Errorf("insert variant: %w", glossary.ErrConstraint)
	}
	return t.Tx.InsertVariant(ctx, v)
}

var ramRecord = glossary.Record{
	Term:       "Memória RAM",
	Definition: "Memória volátil de acesso aleatório.",
	Source:     "ditech",
	Variants:   []glossary.VariantNote{{Variant: "RAM", Explanation: "sigla"}},
}

func TestApplyFirstSighting(t *testing.T) {
	h := newHarness(t)
	out, err := h.pipeline(pipeline.LookupTerm).Apply(context.Background(), ramRecord)
	require.NoError(t, err)

	assert.True(t, out.TermCreated)
	assert.True(t, out.DefinitionCreated)
	assert.Equal(t, 1, out.VariantsCreated)
	assert.True(t, out.DocumentCreated)

	agg := h.aggregate(t, out.TermID)
	assert.Equal(t, "memoria-ram", agg.Term.Slug)
	assert.Equal(t, []string{"Memória RAM", "RAM"}, variantTexts(agg.Variants))
	assert.Equal(t, "sigla", agg.Variants[1].Explanation)
	require.Len(t, agg.Definitions, 1)
	assert.Equal(t, "ditech", agg.Definitions[0].Source)

	doc := h.doc(t, out.TermID)
	assert.Equal(t, glossary.IndexDocument{
		ID:              glossary.DocumentID(out.TermID),
		Term:            "Memória RAM",
		Variants:        []string{"Memória RAM", "RAM"},
		Definitions:     []string{"Memória volátil de acesso aleatório."},
		DefinitionCount: 1,
		Slug:            "memoria-ram",
	}, doc)
}

func TestApplyIsIdempotentButCountsSightings(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.pipeline(pipeline.LookupTerm)

	first, err := p.Apply(ctx, ramRecord)
	require.NoError(t, err)
	second, err := p.Apply(ctx, ramRecord)
	require.NoError(t, err)

	assert.Equal(t, first.TermID, second.TermID)
	assert.False(t, second.TermCreated)
	assert.False(t, second.DefinitionCreated)
	assert.Zero(t, second.VariantsCreated)
	assert.False(t, second.DocumentCreated)

	agg := h.aggregate(t, first.TermID)
	assert.Len(t, agg.Variants, 2)
	assert.Len(t, agg.Definitions, 1)

	doc := h.doc(t, first.TermID)
	assert.Len(t, doc.Definitions, 1)
	assert.Equal(t, int32(2), doc.DefinitionCount)
	assert.Equal(t, []string{"Memória RAM", "RAM"}, doc.Variants)
}

func TestApplyMergesNewDefinitionsAndVariants(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.pipeline(pipeline.LookupTerm)

	first, err := p.Apply(ctx, ramRecord)
	require.NoError(t, err)

	second, err := p.Apply(ctx, glossary.Record{
		Term:       "Memória RAM",
		Definition: "Memória principal do computador.",
		Source:     "juliobattisti",
		Variants:   []glossary.VariantNote{{Variant: "RAM"}, {Variant: "Random Access Memory"}},
	})
	require.NoError(t, err)
	assert.True(t, second.DefinitionCreated)
	assert.Equal(t, 1, second.VariantsCreated)

	agg := h.aggregate(t, first.TermID)
	assert.Equal(t, []string{"Memória RAM", "RAM", "Random Access Memory"}, variantTexts(agg.Variants))
	assert.Len(t, agg.Definitions, 2)

	doc := h.doc(t, first.TermID)
	assert.Equal(t, []string{"Memória RAM", "RAM", "Random Access Memory"}, doc.Variants)
	assert.Equal(t, []string{"Memória volátil de acesso aleatório.", "Memória principal do computador."}, doc.Definitions)
	assert.Equal(t, int32(2), doc.DefinitionCount)
}

func TestApplyWithoutVariantsBootstrapsSelfVariant(t *testing.T) {
	h := newHarness(t)
	out, err := h.pipeline(pipeline.LookupTerm).Apply(context.Background(), glossary.Record{
		Term:       "  Cache ",
		Definition: "Área de armazenamento temporário.",
		Source:     "douglasgaspar",
	})
	require.NoError(t, err)
	assert.Zero(t, out.VariantsCreated)

	assert.Equal(t, []string{"Cache"}, variantTexts(h.aggregate(t, out.TermID).Variants))
	doc := h.doc(t, out.TermID)
	assert.Equal(t, "Cache", doc.Term)
	assert.Equal(t, []string{"Cache"}, doc.Variants)
	assert.Equal(t, "cache", doc.Slug)
}

func TestApplyRollsBackOnRelationalFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	first, err := h.pipeline(pipeline.LookupTerm).Apply(ctx, glossary.Record{
		Term:       "Firewall",
		Definition: "Barreira de proteção de rede.",
		Source:     "ditech",
	})
	require.NoError(t, err)
	before := h.doc(t, first.TermID)

	// The new definition is inserted before the second variant fails, so the
	// rollback has to discard it.
	p := pipeline.New(failingStore{Store: h.store, failOn: "Boom"}, h.index, pipeline.Config{}, zap.NewNop())
	_, err = p.Apply(ctx, glossary.Record{
		Term:       "Firewall",
		Definition: "Filtro de pacotes entre redes.",
		Source:     "juliobattisti",
		Variants:   []glossary.VariantNote{{Variant: "Parede de fogo"}, {Variant: "Boom"}},
	})
	require.ErrorIs(t, err, glossary.ErrConstraint)
	assert.NotErrorIs(t, err, glossary.ErrIndexSync)

	agg := h.aggregate(t, first.TermID)
	require.Len(t, agg.Definitions, 1)
	assert.Equal(t, "Barreira de proteção de rede.", agg.Definitions[0].Text)
	assert.Equal(t, []string{"Firewall"}, variantTexts(agg.Variants))

	terms, err := h.store.ListTerms(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, terms, 1)

	assert.Equal(t, before, h.doc(t, first.TermID))
}

func TestApplyRollsBackNewTerm(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := pipeline.New(failingStore{Store: h.store, failOn: "Boom"}, h.index, pipeline.Config{}, zap.NewNop())

	_, err := p.Apply(ctx, glossary.Record{
		Term:       "Firewall",
		Definition: "Barreira de proteção de rede.",
		Variants:   []glossary.VariantNote{{Variant: "Parede de fogo"}, {Variant: "Boom"}},
	})
	require.ErrorIs(t, err, glossary.ErrConstraint)

	terms, err := h.store.ListTerms(ctx, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, terms)

	n, err := h.index.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestApplyKeepsRowsWhenIndexUnreachable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := pipeline.New(h.store, brokenIndex{}, pipeline.Config{}, zap.NewNop())

	out, err := p.Apply(ctx, ramRecord)
	require.Error(t, err)
	assert.ErrorIs(t, err, glossary.ErrIndexSync)
	assert.ErrorIs(t, err, glossary.ErrIndexTransport)
	assert.NotZero(t, out.TermID)
	assert.True(t, out.TermCreated)
	assert.False(t, out.DocumentCreated)

	agg := h.aggregate(t, out.TermID)
	assert.Len(t, agg.Definitions, 1)
	assert.Len(t, agg.Variants, 2)

	_, err = p.Process(ctx, ramRecord)
	assert.ErrorIs(t, err, glossary.ErrIndexSync)
}

func TestLookupScope(t *testing.T) {
	ctx := context.Background()
	long := glossary.Record{Term: "Random Access Memory", Definition: "Memória de acesso aleatório."}
	short := glossary.Record{
		Term:       "RAM",
		Definition: "Sigla de Random Access Memory.",
		Variants:   []glossary.VariantNote{{Variant: "Random Access Memory"}},
	}

	t.Run("term", func(t *testing.T) {
		h := newHarness(t)
		p := h.pipeline(pipeline.LookupTerm)
		a, err := p.Apply(ctx, long)
		require.NoError(t, err)
		b, err := p.Apply(ctx, short)
		require.NoError(t, err)
		assert.NotEqual(t, a.TermID, b.TermID)
		assert.True(t, b.TermCreated)
	})

	t.Run("variants", func(t *testing.T) {
		h := newHarness(t)
		p := h.pipeline(pipeline.LookupVariants)
		a, err := p.Apply(ctx, long)
		require.NoError(t, err)
		b, err := p.Apply(ctx, short)
		require.NoError(t, err)
		assert.Equal(t, a.TermID, b.TermID)
		assert.False(t, b.TermCreated)

		agg := h.aggregate(t, a.TermID)
		assert.Equal(t, "Random Access Memory", agg.Term.Text)
		assert.ElementsMatch(t, []string{"Random Access Memory", "RAM"}, variantTexts(agg.Variants))
		assert.Len(t, agg.Definitions, 2)

		doc := h.doc(t, a.TermID)
		assert.Equal(t, "Random Access Memory", doc.Term)
		assert.Contains(t, doc.Variants, "RAM")
		assert.Equal(t, int32(2), doc.DefinitionCount)
	})

	t.Run("variants first document uses canonical text", func(t *testing.T) {
		h := newHarness(t)
		offline := pipeline.New(h.store, brokenIndex{}, pipeline.Config{LookupScope: pipeline.LookupVariants}, zap.NewNop())
		a, err := offline.Apply(ctx, long)
		require.ErrorIs(t, err, glossary.ErrIndexSync)

		b, err := h.pipeline(pipeline.LookupVariants).Apply(ctx, short)
		require.NoError(t, err)
		require.Equal(t, a.TermID, b.TermID)
		assert.True(t, b.DocumentCreated)

		doc := h.doc(t, a.TermID)
		assert.Equal(t, "Random Access Memory", doc.Term)
		assert.Equal(t, "random-access-memory", doc.Slug)
		assert.ElementsMatch(t, []string{"Random Access Memory", "RAM"}, doc.Variants)
		assert.Equal(t, []string{"Sigla de Random Access Memory."}, doc.Definitions)
		assert.Equal(t, int32(1), doc.DefinitionCount)
	})
}

func TestApplyRejectsInvalidRecords(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.pipeline(pipeline.LookupTerm)

	_, err := p.Apply(ctx, glossary.Record{Term: "   ", Definition: "x"})
	assert.ErrorIs(t, err, glossary.ErrEmptyTerm)

	_, err = p.Apply(ctx, glossary.Record{Term: "Cache", Definition: ""})
	assert.ErrorIs(t, err, glossary.ErrEmptyDefinition)

	terms, err := h.store.ListTerms(ctx, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, terms)
}

func TestProcessReturnsRecord(t *testing.T) {
	h := newHarness(t)
	got, err := h.pipeline(pipeline.LookupTerm).Process(context.Background(), ramRecord)
	require.NoError(t, err)
	assert.Equal(t, ramRecord, got)
}

func TestParseLookupScope(t *testing.T) {
	for in, want := range map[string]pipeline.LookupScope{
		"":         pipeline.LookupTerm,
		"term":     pipeline.LookupTerm,
		"variants": pipeline.LookupVariants,
	} {
		got, err := pipeline.ParseLookupScope(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := pipeline.ParseLookupScope("fuzzy")
	assert.Error(t, err)
}
