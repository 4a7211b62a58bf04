package wikipedia

import (
	"bytes"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/ppiankov/scimap/internal/model"
	"github.com/ppiankov/scimap/internal/upstream"
)

// Biography extraction methods
const (
	MethodDOM         = "dom"
	MethodReadability = "readability"
)

const (
	maxScanned      = 15
	maxParagraphs   = 5
	maxFallback     = 3
	minParagraphLen = 50
)

var contentSelectors = []string{
	".mw-parser-output > p",
	"#mw-content-text p",
	".mw-body-content p",
}

var infoboxKeys = map[string]string{
	"born":        "birth",
	"birth_date":  "birth",
	"birth":       "birth",
	"died":        "death",
	"death_date":  "death",
	"death":       "death",
	"nationality": "nationality",
	"citizenship": "nationality",
	"occupation":  "fields",
	"fields":      "fields",
	"field":       "fields",
	"education":   "education",
	"alma_mater":  "education",
	"known_for":   "known_for",
}

// Parse extracts a biography from an article page
func Parse(body []byte, pageURL string, scrapedAt time.Time) (*model.Biography, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "parse article html")
	}

	pageTitle := upstream.PageTitle(pageURL)
	title := collapse(doc.Find("h1.firstHeading").First().Text())
	if title == "" {
		title = upstream.DisplayTitle(pageTitle)
	}

	bio := &model.Biography{
		URL:           pageURL,
		Title:         title,
		PageTitle:     pageTitle,
		Infobox:       parseInfobox(doc),
		ScrapedAt:     scrapedAt,
		RawHTMLLength: len(body),
		Method:        MethodDOM,
	}

	for _, sel := range contentSelectors {
		if bio.Paragraphs = paragraphs(doc.Find(sel)); len(bio.Paragraphs) > 0 {
			return bio, nil
		}
	}

	bio.Paragraphs = readableParagraphs(body, pageURL)
	bio.Method = MethodReadability
	return bio, nil
}

func paragraphs(sel *goquery.Selection) []string {
	var out []string
	sel.EachWithBreak(func(i int, p *goquery.Selection) bool {
		if i >= maxScanned {
			return false
		}
		if text := nodeText(p); utf8.RuneCountInString(text) > minParagraphLen {
			out = append(out, text)
		}
		return len(out) < maxParagraphs
	})
	return out
}

func readableParagraphs(body []byte, pageURL string) []string {
	parsed, _ := url.Parse(pageURL)
	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil {
		return nil
	}

	var out []string
	for _, block := range strings.Split(article.TextContent, "\n\n") {
		if text := collapse(block); utf8.RuneCountInString(text) > minParagraphLen {
			out = append(out, text)
		}
		if len(out) >= maxFallback {
			break
		}
	}
	return out
}

func parseInfobox(doc *goquery.Document) map[string]string {
	out := make(map[string]string)
	table := doc.Find("table.infobox, table.biography").First()

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		th := row.Find("th").First()
		td := row.Find("td").First()
		if th.Length() == 0 || td.Length() == 0 {
			return
		}

		key := strings.ToLower(collapse(th.Text()))
		key = strings.ReplaceAll(strings.ReplaceAll(key, ":", ""), " ", "_")
		field, ok := infoboxKeys[key]
		if !ok {
			return
		}
		if _, seen := out[field]; seen {
			return
		}
		if value := nodeText(td); value != "" {
			out[field] = value
		}
	})
	return out
}

// nodeText concatenates the visible text under sel, leaving out citation
// markers, styles and scripts
func nodeText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		walk(n, &b)
	}
	return collapse(b.String())
}

func walk(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Style, atom.Script:
			return
		case atom.Sup:
			if hasClass(n, "reference") {
				return
			}
		case atom.Br:
			b.WriteByte(' ')
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, b)
	}
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key == "class" {
			for _, c := range strings.Fields(attr.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
