package glossary

import (
	"strconv"
	"strings"
	"time"
)

// VariantNote is an alternate surface form carried by an incoming record.
type VariantNote struct {
	Variant     string `json:"variant"`
	Explanation string `json:"explanation"`
}

// Record is one glossary entry as emitted by a producer.
type Record struct {
	Term       string        `json:"term"`
	Definition string        `json:"definition"`
	Source     string        `json:"source"`
	Variants   []VariantNote `json:"variants"`
}

// Normalize trims every field and drops blank variants. Variants is never nil
// afterwards.
func (r Record) Normalize() Record {
	out := Record{
		Term:       strings.TrimSpace(r.Term),
		Definition: strings.TrimSpace(r.Definition),
		Source:     strings.TrimSpace(r.Source),
		Variants:   make([]VariantNote, 0, len(r.Variants)),
	}
	for _, v := range r.Variants {
		text := strings.TrimSpace(v.Variant)
		if text == "" {
			continue
		}
		out.Variants = append(out.Variants, VariantNote{
			Variant:     text,
			Explanation: strings.TrimSpace(v.Explanation),
		})
	}
	return out
}

// Validate checks the input contract the pipeline relies on.
func (r Record) Validate() error {
	if r.Term == "" {
		return ErrEmptyTerm
	}
	if r.Definition == "" {
		return ErrEmptyDefinition
	}
	return nil
}

// VariantTexts returns the variant strings in record order.
func (r Record) VariantTexts() []string {
	out := make([]string, 0, len(r.Variants))
	for _, v := range r.Variants {
		out = append(out, v.Variant)
	}
	return out
}

// Term is the canonical headword row.
type Term struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
	Slug string `json:"slug"`
}

// Variant links an alternate surface form to its owning Term.
type Variant struct {
	ID          int64  `json:"id"`
	TermID      int64  `json:"term_id"`
	Text        string `json:"text"`
	Slug        string `json:"slug"`
	Explanation string `json:"explanation,omitempty"`
}

// Definition is one recorded explanation of a Term.
type Definition struct {
	ID     int64  `json:"id"`
	TermID int64  `json:"term_id"`
	Text   string `json:"text"`
	Source string `json:"source"`
}

// Aggregate is everything the relational store knows about one Term.
type Aggregate struct {
	Term        Term
	Variants    []Variant
	Definitions []Definition
}

// IndexDocument is the denormalized search projection of a Term. Variants and
// Definitions are sets; DefinitionCount counts sightings, not distinct texts.
type IndexDocument struct {
	ID              string   `json:"id"`
	Term            string   `json:"term"`
	Variants        []string `json:"variants"`
	Definitions     []string `json:"definitions"`
	DefinitionCount int32    `json:"definitionCount"`
	ContainsVideo   bool     `json:"containsVideo"`
	Categories      []string `json:"categories,omitempty"`
	Slug            string   `json:"slug"`
}

// DocumentID returns the index key for a term id.
func DocumentID(termID int64) string {
	return strconv.FormatInt(termID, 10)
}

// Outcome reports what Pipeline.Process changed for one record.
type Outcome struct {
	TermID            int64
	TermCreated       bool
	DefinitionCreated bool
	VariantsCreated   int
	DocumentCreated   bool
}

// ReindexNotice is published when a record committed relationally but its
// index document could not be written.
type ReindexNotice struct {
	TermID int64     `json:"term_id"`
	Term   string    `json:"term"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}
