package sources

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/glossary-harvester/internal/glossary"
)

// julioHeaderParagraphs is the number of introductory bold paragraphs that
// precede the glossary entries.
const julioHeaderParagraphs = 2

// ExtractJulioBattisti reads the single dictionary page where every entry is
// a paragraph "<strong>Term -</strong> definition".
func ExtractJulioBattisti(sel *goquery.Selection, pageURL string) []glossary.Record {
	records := []glossary.Record{}
	sel.Find("#conteudo_cont p:has(strong)").Each(func(i int, p *goquery.Selection) {
		if i < julioHeaderParagraphs {
			return
		}
		strong := p.Find("strong").First()
		label := Capitalize(trimSeparators(strong.Text()))

		var variants []glossary.VariantNote
		term := label
		if head, inner, ok := SplitParenthetical(label); ok {
			term = Capitalize(head)
			variants = addVariant(variants, term, Capitalize(inner))
		}

		definition := Capitalize(trimSeparators(ownText(p)))
		if head, inner, ok := SplitParenthetical(definition); ok {
			definition = Capitalize(head)
			variants = addVariant(variants, term, Capitalize(inner))
		}
		if term == "" || definition == "" {
			return
		}
		records = append(records, glossary.Record{
			Term:       term,
			Definition: definition,
			Source:     pageURL,
			Variants:   variants,
		})
	})
	return records
}
