package sources

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/glossary-harvester/internal/glossary"
)

// ExtractDitech reads a single term page. The heading holds the term, with an
// optional "(Variant)" suffix; the first paragraph reads "Label: definition",
// where the label may itself name a variant.
func ExtractDitech(sel *goquery.Selection, pageURL string) []glossary.Record {
	title := Capitalize(firstText(sel.Find("h1.header-post-title-class").First()))
	if title == "" {
		return []glossary.Record{}
	}

	var variants []glossary.VariantNote
	term := title
	if head, inner, ok := SplitParenthetical(title); ok {
		term = Capitalize(head)
		variants = addVariant(variants, term, Capitalize(inner))
	}

	body := CleanText(sel.Find(".entry-content p").First().Text())
	parts := strings.Split(body, ": ")
	definition := body
	if len(parts) > 1 {
		definition = strings.TrimSpace(strings.Join(parts[1:], ": "))
		label := Capitalize(parts[0])
		if head, inner, ok := SplitParenthetical(label); ok {
			variants = addVariant(variants, term, Capitalize(head))
			variants = addVariant(variants, term, Capitalize(inner))
		} else {
			variants = addVariant(variants, term, label)
		}
	}
	if definition == "" {
		return []glossary.Record{}
	}

	return []glossary.Record{{
		Term:       term,
		Definition: definition,
		Source:     pageURL,
		Variants:   variants,
	}}
}
