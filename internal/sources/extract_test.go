package sources

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/glossary-harvester/internal/glossary"
)

func parse(t *testing.T, html string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc.Selection
}

func TestExtractDitech(t *testing.T) {
	tests := []struct {
		name string
		html string
		want []glossary.Record
	}{
		{
			name: "heading with parenthetical variant",
			html: `<h1 class="header-post-title-class"> RANDOM ACCESS MEMORY (RAM) </h1>
				<div class="entry-content"><p>Random Access Memory: memória de acesso aleatório.</p><p>ignored</p></div>`,
			want: []glossary.Record{{
				Term:       "Random access memory",
				Definition: "memória de acesso aleatório.",
				Source:     "https://ditech/ram",
				Variants:   []glossary.VariantNote{{Variant: "Ram"}},
			}},
		},
		{
			name: "label names a different variant",
			html: `<h1 class="header-post-title-class">Firewall</h1>
				<div class="entry-content"><p>Parede de fogo (Fw): barreira de proteção: filtra pacotes.</p></div>`,
			want: []glossary.Record{{
				Term:       "Firewall",
				Definition: "barreira de proteção: filtra pacotes.",
				Source:     "https://ditech/ram",
				Variants:   []glossary.VariantNote{{Variant: "Parede de fogo"}, {Variant: "Fw"}},
			}},
		},
		{
			name: "paragraph without label",
			html: `<h1 class="header-post-title-class">Cache</h1>
				<div class="entry-content"><p>Memória rápida.</p></div>`,
			want: []glossary.Record{{
				Term:       "Cache",
				Definition: "Memória rápida.",
				Source:     "https://ditech/ram",
			}},
		},
		{
			name: "label equal to term is not a variant",
			html: `<h1 class="header-post-title-class">Cache</h1>
				<div class="entry-content"><p><strong>CACHE</strong>: memória rápida.</p></div>`,
			want: []glossary.Record{{
				Term:       "Cache",
				Definition: "memória rápida.",
				Source:     "https://ditech/ram",
			}},
		},
		{
			name: "missing heading",
			html: `<div class="entry-content"><p>x</p></div>`,
			want: []glossary.Record{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractDitech(parse(t, tt.html), "https://ditech/ram")
			assert.Equal(t, tt.want, got)
		})
	}
}

const julioPage = `<div id="conteudo_cont">
	<p><strong>Dicionário de informática</strong></p>
	<p><strong>Letra A</strong></p>
	<p><strong>Algoritmo - </strong>sequência finita de instruções.</p>
	<p><strong>Backup (Cópia de segurança) - </strong>cópia dos dados (BKP)</p>
	<p><strong> - </strong>sem termo</p>
	<p>sem negrito</p>
</div>`

func TestExtractJulioBattisti(t *testing.T) {
	got := ExtractJulioBattisti(parse(t, julioPage), "https://julio")
	assert.Equal(t, []glossary.Record{
		{
			Term:       "Algoritmo",
			Definition: "Sequência finita de instruções.",
			Source:     "https://julio",
		},
		{
			Term:       "Backup",
			Definition: "Cópia dos dados",
			Source:     "https://julio",
			Variants:   []glossary.VariantNote{{Variant: "Cópia de segurança"}, {Variant: "Bkp"}},
		},
	}, got)
}

const douglasPage = `<div class="content"><ul>
	<li>API (<em>Application Programming Interface</em>) – conjunto de rotinas e padrões.</li>
	<li>Bug – ERRO no código.</li>
	<li>Sem separador</li>
	<li></li>
	<li>Deploy – </li>
</ul></div>`

func TestExtractDouglasGaspar(t *testing.T) {
	got := ExtractDouglasGaspar(parse(t, douglasPage), "https://douglas")
	assert.Equal(t, []glossary.Record{
		{
			Term:       "Api",
			Definition: "Conjunto de rotinas e padrões.",
			Source:     "https://douglas",
			Variants:   []glossary.VariantNote{{Variant: "Application Programming Interface"}},
		},
		{
			Term:       "Bug",
			Definition: "Erro no código.",
			Source:     "https://douglas",
		},
	}, got)
}

func TestExtractorsReturnEmptyOnForeignPages(t *testing.T) {
	sel := parse(t, `<html><body><p>nothing here</p></body></html>`)
	for _, site := range registry {
		got := site.Extract(sel, "https://elsewhere")
		assert.NotNil(t, got, site.Name)
		assert.Empty(t, got, site.Name)
	}
}
