// Package bleve implements the glossary index store on an embedded bleve index.
//
// Searchable fields are indexed through the document mapping; the canonical
// JSON of each document is kept in the index's internal key space so Get can
// return exactly what was written, including set ordering.
package bleve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/pt"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/JakeFAU/glossary-harvester/internal/glossary"
)

const internalPrefix = "doc:"

// Store is a glossary.IndexStore backed by bleve.
type Store struct {
	mu     sync.RWMutex
	index  bleve.Index
	closed bool
}

var (
	_ glossary.IndexStore = (*Store)(nil)
	_ glossary.Searcher   = (*Store)(nil)
)

// Open opens the index at path, creating it when missing. An empty path
// builds an in-memory index.
func Open(path string) (*Store, error) {
	indexMapping := newMapping()

	var (
		idx bleve.Index
		err error
	)
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o750); mkErr != nil {
			return nil, fmt.Errorf("create index directory: %w", mkErr)
		}
		idx, err = bleve.Open(path)
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open bleve index: %w", err)
	}
	return &Store{index: idx}, nil
}

func newMapping() *mapping.IndexMappingImpl {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = pt.AnalyzerName

	kw := bleve.NewTextFieldMapping()
	kw.Analyzer = keyword.Name

	count := bleve.NewNumericFieldMapping()

	video := bleve.NewBooleanFieldMapping()
	video.Index = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("term", text)
	doc.AddFieldMappingsAt("variants", text)
	doc.AddFieldMappingsAt("definitions", text)
	doc.AddFieldMappingsAt("slug", kw)
	doc.AddFieldMappingsAt("categories", kw)
	doc.AddFieldMappingsAt("definitionCount", count)
	doc.AddFieldMappingsAt("containsVideo", video)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = pt.AnalyzerName
	return m
}

// EnsureSchema is a no-op; the mapping is applied when the index is created.
func (s *Store) EnsureSchema(context.Context) error { return nil }

// Get returns the stored document or glossary.ErrIndexNotFound.
func (s *Store) Get(_ context.Context, id string) (glossary.IndexDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return glossary.IndexDocument{}, fmt.Errorf("%w: index closed", glossary.ErrIndexTransport)
	}
	raw, err := s.index.GetInternal([]byte(internalPrefix + id))
	if err != nil {
		return glossary.IndexDocument{}, fmt.Errorf("%w: read document %s: %w", glossary.ErrIndexTransport, id, err)
	}
	if len(raw) == 0 {
		return glossary.IndexDocument{}, glossary.ErrIndexNotFound
	}
	var doc glossary.IndexDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return glossary.IndexDocument{}, fmt.Errorf("decode document %s: %w", id, err)
	}
	return doc, nil
}

// Create writes a new document; it fails if one already exists for doc.ID.
func (s *Store) Create(ctx context.Context, doc glossary.IndexDocument) error {
	if _, err := s.Get(ctx, doc.ID); err == nil {
		return fmt.Errorf("create document %s: already exists", doc.ID)
	} else if !errors.Is(err, glossary.ErrIndexNotFound) {
		return err
	}
	return s.write(doc)
}

// Update replaces an existing document.
func (s *Store) Update(ctx context.Context, doc glossary.IndexDocument) error {
	if _, err := s.Get(ctx, doc.ID); err != nil {
		return fmt.Errorf("update document %s: %w", doc.ID, err)
	}
	return s.write(doc)
}

func (s *Store) write(doc glossary.IndexDocument) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", doc.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: index closed", glossary.ErrIndexTransport)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("encode document %s: %w", doc.ID, err)
	}

	batch := s.index.NewBatch()
	if err := batch.Index(doc.ID, fields); err != nil {
		return fmt.Errorf("index document %s: %w", doc.ID, err)
	}
	batch.SetInternal([]byte(internalPrefix+doc.ID), raw)
	if err := s.index.Batch(batch); err != nil {
		return fmt.Errorf("%w: write document %s: %w", glossary.ErrIndexTransport, doc.ID, err)
	}
	return nil
}

// Search matches text against term, variants and definitions.
func (s *Store) Search(ctx context.Context, text string, limit int) ([]glossary.IndexDocument, error) {
	if limit <= 0 {
		limit = 10
	}
	q := bleve.NewDisjunctionQuery(
		fieldMatch(text, "term", 3),
		fieldMatch(text, "variants", 2),
		fieldMatch(text, "definitions", 1),
	)
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)

	s.mu.RLock()
	result, err := s.index.SearchInContext(ctx, req)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", text, err)
	}

	docs := make([]glossary.IndexDocument, 0, len(result.Hits))
	for _, hit := range result.Hits {
		doc, err := s.Get(ctx, hit.ID)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func fieldMatch(text, field string, boost float64) query.Query {
	m := bleve.NewMatchQuery(text)
	m.SetField(field)
	m.SetBoost(boost)
	return m
}

// Count reports the number of indexed documents.
func (s *Store) Count() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, err := s.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// Close releases the index.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close bleve index: %w", err)
	}
	return nil
}
