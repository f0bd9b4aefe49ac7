// Package typesense implements the glossary index store on a Typesense node
// through the typesense-go client.
package typesense

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/typesense/typesense-go/v3/typesense"
	"github.com/typesense/typesense-go/v3/typesense/api"
	"github.com/typesense/typesense-go/v3/typesense/api/pointer"

	"github.com/JakeFAU/glossary-harvester/internal/glossary"
)

const (
	// DefaultCollection is the glossary collection name.
	DefaultCollection = "glossary"
	// DefaultQueryCollection receives popular-query analytics.
	DefaultQueryCollection = "glossary_queries"
	// DefaultModel is the auto-embedding model configured on the collection.
	DefaultModel = "openai/text-embedding-3-small"

	searchFields = "term,variants,definitions,embedding"
)

// Config describes how to reach a Typesense node.
type Config struct {
	Protocol          string
	Host              string
	Port              int
	APIKey            string
	Collection        string
	QueryCollection   string
	ConnectionTimeout time.Duration
	EmbeddingModel    string
	EmbeddingAPIKey   string
}

// BaseURL renders protocol://host:port.
func (c Config) BaseURL() string {
	u := url.URL{
		Scheme: c.Protocol,
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
	}
	return u.String()
}

// Client is a glossary.IndexStore backed by one Typesense node.
type Client struct {
	cfg Config
	ts  *typesense.Client
}

var (
	_ glossary.IndexStore = (*Client)(nil)
	_ glossary.Searcher   = (*Client)(nil)
)

// New validates cfg and builds a client. No request is made.
func New(cfg Config) (*Client, error) {
	if cfg.Host == "" || cfg.Port == 0 || cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: typesense host, port and api key are required", glossary.ErrConfiguration)
	}
	if cfg.Protocol == "" {
		cfg.Protocol = "http"
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.QueryCollection == "" {
		cfg.QueryCollection = DefaultQueryCollection
	}
	if cfg.ConnectionTimeout <= 0 {
		cfg.ConnectionTimeout = 2 * time.Second
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultModel
	}

	ts := typesense.NewClient(
		typesense.WithServer(cfg.BaseURL()),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(cfg.ConnectionTimeout),
	)
	return &Client{cfg: cfg, ts: ts}, nil
}

// Collection returns the configured collection name.
func (c *Client) Collection() string { return c.cfg.Collection }

// Get fetches the document with the given id.
func (c *Client) Get(ctx context.Context, id string) (glossary.IndexDocument, error) {
	raw, err := c.ts.Collection(c.cfg.Collection).Document(id).Retrieve(ctx)
	if err != nil {
		return glossary.IndexDocument{}, classify("retrieve document "+id, err)
	}
	var doc glossary.IndexDocument
	if err := convert(raw, &doc); err != nil {
		return glossary.IndexDocument{}, fmt.Errorf("%w: decode document %s: %w", glossary.ErrIndexTransport, id, err)
	}
	return doc, nil
}

// Create inserts a new document.
func (c *Client) Create(ctx context.Context, doc glossary.IndexDocument) error {
	_, err := c.ts.Collection(c.cfg.Collection).Documents().Create(ctx, doc, &api.DocumentIndexParameters{})
	if err != nil {
		return classify("create document "+doc.ID, err)
	}
	return nil
}

// Update replaces the fields of an existing document.
func (c *Client) Update(ctx context.Context, doc glossary.IndexDocument) error {
	_, err := c.ts.Collection(c.cfg.Collection).Document(doc.ID).Update(ctx, doc, &api.DocumentIndexParameters{})
	if err != nil {
		return classify("update document "+doc.ID, err)
	}
	return nil
}

// Search runs a hybrid keyword and semantic query over the collection.
func (c *Client) Search(ctx context.Context, text string, limit int) ([]glossary.IndexDocument, error) {
	if limit <= 0 {
		limit = 10
	}
	result, err := c.ts.Collection(c.cfg.Collection).Documents().Search(ctx, &api.SearchCollectionParams{
		Q:             pointer.String(text),
		QueryBy:       pointer.String(searchFields),
		ExcludeFields: pointer.String("embedding"),
		PerPage:       pointer.Int(limit),
	})
	if err != nil {
		return nil, classify("search", err)
	}
	if result.Hits == nil {
		return []glossary.IndexDocument{}, nil
	}
	docs := make([]glossary.IndexDocument, 0, len(*result.Hits))
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		var doc glossary.IndexDocument
		if err := convert(*hit.Document, &doc); err != nil {
			return nil, fmt.Errorf("%w: decode search hit: %w", glossary.ErrIndexTransport, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Close is a no-op; the typesense client holds no resources of its own.
func (c *Client) Close() error { return nil }

// classify maps typesense-go errors onto the glossary index taxonomy: 404 is
// ErrIndexNotFound, 5xx and anything that never got a response is
// ErrIndexTransport, other statuses stay plain errors.
func classify(op string, err error) error {
	var herr *typesense.HTTPError
	if errors.As(err, &herr) {
		switch {
		case herr.Status == http.StatusNotFound:
			return fmt.Errorf("%w: typesense %s: %w", glossary.ErrIndexNotFound, op, err)
		case herr.Status >= http.StatusInternalServerError:
			return fmt.Errorf("%w: typesense %s: %w", glossary.ErrIndexTransport, op, err)
		default:
			return fmt.Errorf("typesense %s: %w", op, err)
		}
	}
	return fmt.Errorf("%w: typesense %s: %w", glossary.ErrIndexTransport, op, err)
}

func isStatus(err error, status int) bool {
	var herr *typesense.HTTPError
	return errors.As(err, &herr) && herr.Status == status
}

// convert moves a value between the glossary types and typesense-go's
// generic maps and generated api structs through their shared JSON form.
func convert(in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
