// Package parsers extracts articles, forum posts and comments from fetched pages.
package parsers

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"trustmed/internal/models"
)

// Parser errors.
var (
	ErrContentTooShort = errors.New("content too short")
	ErrInvalidHTML     = errors.New("invalid html")
)

// Boilerplate elements removed before text extraction.
const strippedSelectors = "script, style, nav, footer, header, aside, iframe, noscript, form"

// Content roots, tried in order.
var contentRoots = []string{
	"article",
	"main",
	"div[class*='content'], div[class*='article']",
	"#content",
}

// ArticleParser extracts readable article text from HTML.
type ArticleParser struct {
	minContentChars   int
	minParagraphChars int
}

// NewArticleParser creates a parser that rejects pages with less than
// minContentChars of text and drops blocks of minParagraphChars or less.
func NewArticleParser(minContentChars, minParagraphChars int) *ArticleParser {
	return &ArticleParser{
		minContentChars:   minContentChars,
		minParagraphChars: minParagraphChars,
	}
}

// Parse returns the title and body of an article page.
func (p *ArticleParser) Parse(html, pageURL string) (*models.ScrapedPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHTML, err)
	}

	title := extractTitle(doc)

	doc.Find(strippedSelectors).Remove()

	root := doc.Find("body")
	for _, sel := range contentRoots {
		if found := doc.Find(sel).First(); found.Length() > 0 {
			root = found
			break
		}
	}

	var paragraphs []string

	root.Find("p, h1, h2, h3, li").Each(func(_ int, s *goquery.Selection) {
		text := collapseSpaces(s.Text())
		if len([]rune(text)) > p.minParagraphChars {
			paragraphs = append(paragraphs, text)
		}
	})

	content := strings.Join(paragraphs, "\n\n")
	if len([]rune(content)) < p.minContentChars {
		return nil, fmt.Errorf("%w: %d chars from %s", ErrContentTooShort, len([]rune(content)), pageURL)
	}

	return &models.ScrapedPage{
		Title:      title,
		URL:        pageURL,
		Content:    content,
		Paragraphs: len(paragraphs),
	}, nil
}

func extractTitle(doc *goquery.Document) string {
	if h1 := collapseSpaces(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}

	if t := collapseSpaces(doc.Find("title").First().Text()); t != "" {
		return t
	}

	return "Untitled"
}

// ExtractLinks returns absolute, deduplicated links from html whose URL
// contains any of patterns. An empty pattern list keeps every link.
func ExtractLinks(html, baseURL string, patterns []string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHTML, err)
	}

	seen := make(map[string]bool)

	var links []string

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")

		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}

		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}

		abs.Fragment = ""
		link := abs.String()

		if seen[link] || !MatchesAny(link, patterns) {
			return
		}

		seen[link] = true
		links = append(links, link)
	})

	return links, nil
}

// MatchesAny reports whether link contains one of patterns.
func MatchesAny(link string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}

	for _, p := range patterns {
		if strings.Contains(link, p) {
			return true
		}
	}

	return false
}

// PageStats summarises how scrapable a page is.
type PageStats struct {
	Title      string
	TextLength int
	Paragraphs int
	HasArticle bool
	HasMain    bool
}

// InspectPage reports the amount of readable text on a page.
func InspectPage(html string) (PageStats, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return PageStats{}, fmt.Errorf("%w: %w", ErrInvalidHTML, err)
	}

	stats := PageStats{
		Title:      extractTitle(doc),
		HasArticle: doc.Find("article").Length() > 0,
		HasMain:    doc.Find("main").Length() > 0,
	}

	doc.Find(strippedSelectors).Remove()

	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		text := collapseSpaces(s.Text())
		if text == "" {
			return
		}

		stats.Paragraphs++
		stats.TextLength += len([]rune(text))
	})

	return stats, nil
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
