package typesense

import (
	"context"
	"fmt"
	"net/http"

	"github.com/typesense/typesense-go/v3/typesense/api"
)

type field struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Optional bool   `json:"optional,omitempty"`
	Facet    bool   `json:"facet,omitempty"`
	Index    *bool  `json:"index,omitempty"`
	Embed    *embed `json:"embed,omitempty"`
}

type embed struct {
	From        []string    `json:"from"`
	ModelConfig modelConfig `json:"model_config"`
}

type modelConfig struct {
	ModelName string `json:"model_name"`
	APIKey    string `json:"api_key,omitempty"`
}

type collectionSchema struct {
	Name   string  `json:"name"`
	Fields []field `json:"fields"`
}

type analyticsRule struct {
	Name   string          `json:"name"`
	Type   string          `json:"type"`
	Params analyticsParams `json:"params"`
}

type analyticsParams struct {
	Source struct {
		Collections []string `json:"collections"`
	} `json:"source"`
	Destination struct {
		Collection string `json:"collection"`
	} `json:"destination"`
	Limit int `json:"limit"`
}

func (c *Client) glossarySchema() collectionSchema {
	off := false
	return collectionSchema{
		Name: c.cfg.Collection,
		Fields: []field{
			{Name: "term", Type: "string"},
			{Name: "variants", Type: "string[]"},
			{Name: "definitions", Type: "string[]"},
			{Name: "definitionCount", Type: "int32"},
			{Name: "containsVideo", Type: "bool", Optional: true, Index: &off},
			{Name: "categories", Type: "string[]", Optional: true, Facet: true},
			{Name: "slug", Type: "string"},
			{
				Name: "embedding",
				Type: "float[]",
				Embed: &embed{
					From:        []string{"term", "variants", "definitions"},
					ModelConfig: modelConfig{ModelName: c.cfg.EmbeddingModel, APIKey: c.cfg.EmbeddingAPIKey},
				},
			},
		},
	}
}

func (c *Client) querySchema() collectionSchema {
	return collectionSchema{
		Name: c.cfg.QueryCollection,
		Fields: []field{
			{Name: "q", Type: "string"},
			{Name: "count", Type: "int32"},
		},
	}
}

func (c *Client) popularQueriesRule() analyticsRule {
	rule := analyticsRule{
		Name: c.cfg.Collection + "_popular_queries",
		Type: "popular_queries",
	}
	rule.Params.Source.Collections = []string{c.cfg.Collection}
	rule.Params.Destination.Collection = c.cfg.QueryCollection
	rule.Params.Limit = 1000
	return rule
}

// EnsureSchema creates the glossary collection and the query-log collection
// when they do not exist yet, then upserts the popular-queries analytics rule.
func (c *Client) EnsureSchema(ctx context.Context) error {
	for _, schema := range []collectionSchema{c.glossarySchema(), c.querySchema()} {
		if err := c.ensureCollection(ctx, schema); err != nil {
			return fmt.Errorf("ensure collection %s: %w", schema.Name, err)
		}
	}

	rule := c.popularQueriesRule()
	var upsert api.AnalyticsRuleUpsertSchema
	if err := convert(rule, &upsert); err != nil {
		return fmt.Errorf("encode analytics rule %s: %w", rule.Name, err)
	}
	if _, err := c.ts.Analytics().Rules().Upsert(ctx, rule.Name, &upsert); err != nil {
		return fmt.Errorf("ensure analytics rule %s: %w", rule.Name, classify("upsert analytics rule", err))
	}
	return nil
}

func (c *Client) ensureCollection(ctx context.Context, schema collectionSchema) error {
	_, err := c.ts.Collection(schema.Name).Retrieve(ctx)
	if err == nil {
		return nil
	}
	if !isStatus(err, http.StatusNotFound) {
		return classify("retrieve collection", err)
	}

	// api.Field.Embed is an anonymous generated struct, so the schema is
	// written as JSON-tagged types and converted.
	var create api.CollectionSchema
	if err := convert(schema, &create); err != nil {
		return fmt.Errorf("encode collection schema: %w", err)
	}
	_, err = c.ts.Collections().Create(ctx, &create)
	if err != nil && !isStatus(err, http.StatusConflict) {
		return classify("create collection", err)
	}
	return nil
}
