// Package utils provides text and timing helpers shared by the collectors,
// the normalizer and the knowledge base syncer.
package utils

import (
	"regexp"
	"strings"

	"github.com/mattn/go-runewidth"
)

var (
	nonSlugChars     = regexp.MustCompile(`[^a-z0-9]+`)
	nonFilenameChars = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	filenameSpaces   = regexp.MustCompile(`[-\s]+`)
)

// NormalizeWhitespace replaces runs of whitespace with a single space.
func NormalizeWhitespace(str string) string {
	return strings.Join(strings.Fields(str), " ")
}

// Slugify lowercases text and joins alphanumeric runs with "-".
// Empty results become "unknown".
func Slugify(text string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(text)), "-")
	slug = strings.Trim(slug, "-")

	if slug == "" {
		return "unknown"
	}

	return slug
}

// SanitizeFilename keeps letters, digits, '_' and '-', turns separators into
// '_' and caps the result at maxLength runes.
func SanitizeFilename(text string, maxLength int) string {
	text = nonFilenameChars.ReplaceAllString(text, "")
	text = filenameSpaces.ReplaceAllString(text, "_")

	if r := []rune(text); len(r) > maxLength {
		text = string(r[:maxLength])
	}

	return strings.Trim(text, "_")
}

// WordCount counts whitespace separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// TruncateDisplay shortens str to fit width terminal cells, adding "...".
func TruncateDisplay(str string, width int) string {
	return runewidth.Truncate(str, width, "...")
}
