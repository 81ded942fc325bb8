package normalizer

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"trustmed/internal/models"
	"trustmed/pkg/metadata"
	"trustmed/pkg/utils"
)

// Placeholders used when a record is missing a value.
const (
	UntitledArticle = "Untitled"
	UnknownSource   = "Unknown Source"
	UnknownURL      = "Unknown URL"
	NoSelftext      = "(No selftext provided.)"
	NoComments      = "No comments captured."
	EmptyComment    = "(empty comment)"
)

// Transformer turns collected records into upload-ready text.
type Transformer struct {
	noise []string
}

// NewTransformer creates a transformer dropping lines that contain any of
// the noise patterns (case-insensitive).
func NewTransformer(noisePatterns []string) *Transformer {
	noise := make([]string, 0, len(noisePatterns))
	for _, p := range noisePatterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			noise = append(noise, p)
		}
	}

	return &Transformer{noise: noise}
}

// CleanArticle strips the collector header, drops noise lines, collapses
// blank runs and NFC-normalizes the text.
func (t *Transformer) CleanArticle(raw string) string {
	if header, body := metadata.Extract(raw); header != nil {
		raw = body
	}

	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	lines = t.removeNoise(lines)
	lines = collapseBlankLines(lines)

	return norm.NFC.String(strings.TrimSpace(strings.Join(lines, "\n")))
}

func (t *Transformer) removeNoise(lines []string) []string {
	cleaned := make([]string, 0, len(lines))

	for _, line := range lines {
		lower := strings.ToLower(strings.TrimSpace(line))
		if t.isNoise(lower) {
			continue
		}

		cleaned = append(cleaned, line)
	}

	return cleaned
}

func (t *Transformer) isNoise(lower string) bool {
	for _, p := range t.noise {
		if strings.Contains(lower, p) {
			return true
		}
	}

	return false
}

func collapseBlankLines(lines []string) []string {
	cleaned := make([]string, 0, len(lines))
	previousBlank := false

	for _, line := range lines {
		stripped := strings.TrimRight(line, " \t")
		if stripped == "" {
			if !previousBlank {
				cleaned = append(cleaned, "")
			}

			previousBlank = true

			continue
		}

		cleaned = append(cleaned, stripped)
		previousBlank = false
	}

	return cleaned
}

// ArticleHeader builds the header block of an authoritative document.
func ArticleHeader(a models.Article) metadata.Header {
	title := orDefault(a.Title, UntitledArticle)
	source := orDefault(a.Source, UnknownSource)
	url := orDefault(a.URL, UnknownURL)

	return metadata.Header{}.
		Add(metadata.KeyTitle, title).
		Add(metadata.KeySource, source).
		Add(metadata.KeyURL, url).
		Add(metadata.KeyCanonicalURL, url).
		Add(metadata.KeyFilename, a.Filename).
		AddIf(metadata.KeyCollected, a.CollectedAt).
		AddIf(metadata.KeyTopic, a.Topic)
}

// ArticleDocument renders a cleaned article with its header.
func (t *Transformer) ArticleDocument(a models.Article, cleanedBody string) string {
	return metadata.Render(ArticleHeader(a), cleanedBody)
}

// ThreadHeader builds the header block of a forum document.
func ThreadHeader(th models.Thread) metadata.Header {
	return metadata.Header{}.
		Add(metadata.KeyThreadID, th.ID).
		Add(metadata.KeySubreddit, th.Subreddit).
		Add(metadata.KeyTitle, th.Title).
		Add(metadata.KeyAuthor, th.Author).
		Add(metadata.KeyCreatedUTC, th.CreatedUTC).
		Add(metadata.KeyScore, strconv.Itoa(th.Score)).
		Add(metadata.KeyNumComments, strconv.Itoa(th.NumComments)).
		Add(metadata.KeyURL, th.URL).
		Add(metadata.KeyCanonicalURL, th.URL).
		Add(metadata.KeyCollected, th.CollectedAt)
}

// ThreadDocument renders a thread as header, post text and a numbered
// list of its top-level comments.
func (t *Transformer) ThreadDocument(th models.Thread) string {
	body := SanitizeBlock(th.Selftext)
	if body == "" {
		body = NoSelftext
	}

	var b strings.Builder

	b.WriteString(ThreadHeader(th).String())
	b.WriteString("\n\n")
	b.WriteString(body)
	b.WriteString("\n\n---\n## Comments\n")

	if len(th.Comments) == 0 {
		b.WriteString(NoComments)
		b.WriteString("\n")

		return b.String()
	}

	for i, c := range th.Comments {
		text := SanitizeBlock(c.Body)
		if text == "" {
			text = EmptyComment
		}

		fmt.Fprintf(&b, "%d. u/%s [score=%d, created=%s]: %s\n", i+1, c.Author, c.Score, c.CreatedUTC, text)
	}

	return b.String()
}

// SanitizeBlock collapses all whitespace to single spaces and NFC-normalizes.
func SanitizeBlock(text string) string {
	return norm.NFC.String(utils.NormalizeWhitespace(text))
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}

	return v
}
