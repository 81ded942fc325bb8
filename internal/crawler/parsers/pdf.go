package parsers

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"trustmed/internal/models"
)

// ParsePDF extracts the plain text of a local PDF document. The file name
// without extension is used as the title.
func ParsePDF(path string, minContentChars int) (*models.ScrapedPage, error) {
	f, rdr, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	defer f.Close()

	b, err := rdr.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf text %s: %w", path, err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, b); err != nil {
		return nil, fmt.Errorf("failed to read pdf buffer %s: %w", path, err)
	}

	var paragraphs []string

	for _, block := range strings.Split(buf.String(), "\n") {
		if text := collapseSpaces(block); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}

	content := strings.Join(paragraphs, "\n\n")
	if len([]rune(content)) < minContentChars {
		return nil, fmt.Errorf("%w: %d chars from %s", ErrContentTooShort, len([]rune(content)), path)
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	return &models.ScrapedPage{
		Title:      strings.ReplaceAll(title, "_", " "),
		URL:        "file://" + filepath.ToSlash(path),
		Content:    content,
		Paragraphs: len(paragraphs),
	}, nil
}
