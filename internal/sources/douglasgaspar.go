package sources

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/glossary-harvester/internal/glossary"
)

var dashSeparators = []string{" – ", " — ", " - "}

// ExtractDouglasGaspar reads the blog post glossary where each list item is
// "Term (<em>Variant</em>) – definition".
func ExtractDouglasGaspar(sel *goquery.Selection, pageURL string) []glossary.Record {
	records := []glossary.Record{}
	sel.Find(".content li").Each(func(_ int, li *goquery.Selection) {
		text := CleanText(li.Text())
		if text == "" {
			return
		}
		head, rest, ok := cutDash(text)
		if !ok {
			return
		}
		term := Capitalize(StripParentheticals(head))
		definition := Capitalize(trimSeparators(rest))
		if term == "" || definition == "" {
			return
		}

		var variants []glossary.VariantNote
		if em := li.Find("em").First(); em.Length() > 0 {
			variants = addVariant(variants, term, CleanText(em.Text()))
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

func cutDash(s string) (before, after string, found bool) {
	best := -1
	sep := ""
	for _, d := range dashSeparators {
		if i := strings.Index(s, d); i >= 0 && (best < 0 || i < best) {
			best, sep = i, d
		}
	}
	if best < 0 {
		return s, "", false
	}
	return s[:best], s[best+len(sep):], true
}
