// Package metadata renders and parses the key/value header block that starts
// every collected and upload-ready document, and hashes document bodies.
package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// RuleWidth is the width of the line that closes a header block.
const RuleWidth = 79

// minRuleWidth is how many '=' a line needs to be read as a header rule.
const minRuleWidth = 10

// Header field names.
const (
	KeyTitle        = "Title"
	KeySource       = "Source"
	KeyURL          = "URL"
	KeyCanonicalURL = "Canonical URL"
	KeyFilename     = "Filename"
	KeyCollected    = "Collected"
	KeyTopic        = "Topic"
	KeyThreadID     = "Thread ID"
	KeySubreddit    = "Subreddit"
	KeyAuthor       = "Author"
	KeyCreatedUTC   = "Created UTC"
	KeyScore        = "Score"
	KeyNumComments  = "Num Comments"
)

// Metadata errors.
var (
	ErrNoHeaderBlock = errors.New("no header block found")
	ErrHashMismatch  = errors.New("hash mismatch")
)

// Field is one "Key: Value" header line.
type Field struct {
	Key   string
	Value string
}

// Header is an ordered list of fields.
type Header []Field

// Add appends a field and returns the header.
func (h Header) Add(key, value string) Header {
	return append(h, Field{Key: key, Value: value})
}

// AddIf appends a field only when value is not empty.
func (h Header) AddIf(key, value string) Header {
	if value == "" {
		return h
	}

	return h.Add(key, value)
}

// Get returns the first value stored under key.
func (h Header) Get(key string) string {
	for _, f := range h {
		if f.Key == key {
			return f.Value
		}
	}

	return ""
}

// Has reports whether key is present.
func (h Header) Has(key string) bool {
	for _, f := range h {
		if f.Key == key {
			return true
		}
	}

	return false
}

// Rule returns the closing line of a header block.
func Rule() string {
	return strings.Repeat("=", RuleWidth)
}

// String renders the header lines followed by the rule.
func (h Header) String() string {
	var b strings.Builder

	for _, f := range h {
		fmt.Fprintf(&b, "%s: %s\n", f.Key, f.Value)
	}

	b.WriteString(Rule())

	return b.String()
}

// Render joins header and body with one blank line and a trailing newline.
func Render(h Header, body string) string {
	return h.String() + "\n\n" + strings.TrimSpace(body) + "\n"
}

// Extract splits content into its header and the remaining body. Content
// without a header block is returned unchanged with a nil header.
func Extract(content string) (Header, string) {
	lines := strings.Split(content, "\n")

	var header Header

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if isRule(trimmed) {
			if len(header) == 0 {
				return nil, content
			}

			body := strings.Join(lines[i+1:], "\n")

			return header, strings.Trim(body, "\n")
		}

		if trimmed == "" {
			continue
		}

		key, value, ok := strings.Cut(trimmed, ":")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, content
		}

		header = header.Add(strings.TrimSpace(key), strings.TrimSpace(value))
	}

	return nil, content
}

func isRule(line string) bool {
	return len(line) >= minRuleWidth && strings.Trim(line, "=") == ""
}

// CalculateHash computes the SHA-256 hash of the content.
func CalculateHash(content string) string {
	hash := sha256.Sum256([]byte(content))

	return hex.EncodeToString(hash[:])
}

// Verify checks content against a previously calculated hash.
func Verify(content, expected string) error {
	if calculated := CalculateHash(content); calculated != expected {
		return fmt.Errorf("%w: expected %s, got %s", ErrHashMismatch, expected, calculated)
	}

	return nil
}
