package sources

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	trailingParen = regexp.MustCompile(`^(.*)\(([^)]*)\)$`)
	anyParen      = regexp.MustCompile(`\([^)]*\)`)
	spaces        = regexp.MustCompile(`\s+`)
	lower         = cases.Lower(language.BrazilianPortuguese)
)

// Capitalize upper-cases the first letter of s and lower-cases the rest.
// Surrounding whitespace is removed and inner runs of whitespace collapse.
func Capitalize(s string) string {
	s = CleanText(s)
	if s == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + lower.String(s[size:])
}

// CleanText trims s and collapses whitespace runs, including non-breaking
// spaces, into single spaces.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

// SplitParenthetical splits "Head (Inner)" into its parts. ok is false when s
// does not end in a parenthesized group.
func SplitParenthetical(s string) (head, inner string, ok bool) {
	m := trailingParen.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return strings.TrimSpace(s), "", false
	}
	return strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), true
}

// StripParentheticals removes every parenthesized group from s.
func StripParentheticals(s string) string {
	return CleanText(anyParen.ReplaceAllString(s, ""))
}

// ownText returns the concatenated direct text children of sel.
func ownText(sel *goquery.Selection) string {
	var b strings.Builder
	sel.Contents().Each(func(_ int, c *goquery.Selection) {
		if n := c.Get(0); n != nil && n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
	})
	return b.String()
}

// firstText returns the first non-blank text node beneath sel.
func firstText(sel *goquery.Selection) string {
	for _, n := range sel.Nodes {
		if t := firstTextNode(n); t != "" {
			return t
		}
	}
	return ""
}

func firstTextNode(n *html.Node) string {
	if n.Type == html.TextNode {
		return strings.TrimSpace(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := firstTextNode(c); t != "" {
			return t
		}
	}
	return ""
}

// trimSeparators removes leading and trailing dashes, colons and spaces.
func trimSeparators(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == ':' || r == '-' || r == '–' || r == '—'
	})
}
