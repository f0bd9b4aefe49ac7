// Package sources turns public glossary web pages into glossary records.
//
// Each Site pairs a start URL with a pure Extract function over the parsed
// page. Extractors never touch the network, so they are tested against static
// HTML; the Crawler does the fetching.
package sources

import (
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/glossary-harvester/internal/glossary"
)

// Extractor maps one parsed page to the records it contains.
type Extractor func(sel *goquery.Selection, pageURL string) []glossary.Record

// Site describes one glossary source.
type Site struct {
	Name           string
	StartURL       string
	AllowedDomains []string
	// LinkSelector, when set, marks anchors on the start page that lead to
	// one term page each. Extract then runs on those pages only.
	LinkSelector string
	Extract      Extractor
}

var registry = map[string]Site{
	"ditech": {
		Name:           "ditech",
		StartURL:       "https://www.dictech.com.br/dicionario/termos-tecnicos/informatica/",
		AllowedDomains: []string{"dictech.com.br", "www.dictech.com.br"},
		LinkSelector:   "#content li > a[href]",
		Extract:        ExtractDitech,
	},
	"juliobattisti": {
		Name:           "juliobattisti",
		StartURL:       "https://www.juliobattisti.com.br/tutoriais/keniareis/dicionarioinfo001.asp",
		AllowedDomains: []string{"juliobattisti.com.br", "www.juliobattisti.com.br"},
		Extract:        ExtractJulioBattisti,
	},
	"douglasgaspar": {
		Name:           "douglasgaspar",
		StartURL:       "https://douglasgaspar.wordpress.com/2020/03/17/glossario-com-termos-de-ti-informatica-e-programacao/",
		AllowedDomains: []string{"douglasgaspar.wordpress.com"},
		Extract:        ExtractDouglasGaspar,
	},
}

// Names lists the built-in sites in alphabetical order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Lookup resolves site names. An empty list selects every built-in site.
func Lookup(names []string) ([]Site, error) {
	if len(names) == 0 {
		names = Names()
	}
	sites := make([]Site, 0, len(names))
	for _, name := range names {
		site, ok := registry[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown site %q (known: %s)", name, strings.Join(Names(), ", "))
		}
		sites = append(sites, site)
	}
	return sites, nil
}

// addVariant appends v unless it is blank, equals term, or is already present.
func addVariant(notes []glossary.VariantNote, term, v string) []glossary.VariantNote {
	if v == "" || v == term {
		return notes
	}
	for _, n := range notes {
		if n.Variant == v {
			return notes
		}
	}
	return append(notes, glossary.VariantNote{Variant: v})
}
