// Package validator checks upload-ready documents before they are sent to
// the knowledge base bucket.
package validator

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"trustmed/internal/config"
	"trustmed/internal/models"
	"trustmed/pkg/metadata"
)

// Validation errors.
var (
	ErrMissingHeader = errors.New("header block is missing")
	ErrMissingField  = errors.New("required header field is missing")
	ErrBodyTooShort  = errors.New("document body is too short")
	ErrNoiseLine     = errors.New("boilerplate line left in body")
	ErrIntegrity     = errors.New("integrity check failed")
)

// Required header fields per document type.
var requiredFields = map[string][]string{
	models.DocumentAuthoritative: {
		metadata.KeyTitle, metadata.KeySource, metadata.KeyURL, metadata.KeyCanonicalURL, metadata.KeyFilename,
	},
	models.DocumentForum: {
		metadata.KeyThreadID, metadata.KeySubreddit, metadata.KeyTitle, metadata.KeyURL, metadata.KeyCanonicalURL,
	},
}

// ValidationError represents a validation error with context.
type ValidationError struct {
	Path    string
	Field   string
	Message string
	Err     error
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Path, e.Field, e.Message)
	}

	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func (e ValidationError) Unwrap() error {
	return e.Err
}

// ValidationResult contains validation results.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []string
	Stats    ValidationStats
	IsValid  bool
}

// ValidationStats contains validation statistics.
type ValidationStats struct {
	TotalDocs     int
	ValidDocs     int
	InvalidDocs   int
	MissingFields int
	ShortBodies   int
	NoiseLines    int
}

func newResult() *ValidationResult {
	return &ValidationResult{IsValid: true, Errors: []ValidationError{}, Warnings: []string{}}
}

// DocumentValidator validates rendered upload documents.
type DocumentValidator struct {
	minBodyChars int
	noise        []string
}

// NewDocumentValidator creates a validator from the prepare settings.
func NewDocumentValidator(cfg config.PrepareConfig) *DocumentValidator {
	noise := make([]string, 0, len(cfg.NoisePatterns))
	for _, p := range cfg.NoisePatterns {
		noise = append(noise, strings.ToLower(p))
	}

	return &DocumentValidator{minBodyChars: cfg.MinBodyChars, noise: noise}
}

// ValidateDocument checks a single document of the given type.
func (v *DocumentValidator) ValidateDocument(docPath, docType, content string) *ValidationResult {
	result := newResult()
	result.Stats.TotalDocs = 1

	fail := func(field, msg string, err error) {
		result.IsValid = false
		result.Errors = append(result.Errors, ValidationError{Path: docPath, Field: field, Message: msg, Err: err})
	}

	header, body := metadata.Extract(content)
	if header == nil {
		fail("", "no header block found", ErrMissingHeader)
		result.Stats.InvalidDocs = 1

		return result
	}

	for _, key := range requiredFields[docType] {
		if header.Get(key) == "" {
			fail(key, "required field is empty", ErrMissingField)
			result.Stats.MissingFields++
		}
	}

	if v.minBodyChars > 0 && len([]rune(strings.TrimSpace(body))) < v.minBodyChars {
		fail("", fmt.Sprintf("body has %d characters, minimum %d", len([]rune(body)), v.minBodyChars), ErrBodyTooShort)
		result.Stats.ShortBodies++
	}

	if docType == models.DocumentAuthoritative {
		for _, line := range strings.Split(body, "\n") {
			if v.isNoise(line) {
				fail("", fmt.Sprintf("noise line %q", truncate(line, 60)), ErrNoiseLine)
				result.Stats.NoiseLines++
			}
		}
	}

	if docType == models.DocumentForum && !strings.Contains(body, "## Comments") {
		result.Warnings = append(result.Warnings, docPath+": comments section missing")
	}

	if result.IsValid {
		result.Stats.ValidDocs = 1
	} else {
		result.Stats.InvalidDocs = 1
	}

	return result
}

// ValidateIntegrity compares content with a previously recorded hash.
func (v *DocumentValidator) ValidateIntegrity(docPath, content, expectedHash string) *ValidationResult {
	result := newResult()
	result.Stats.TotalDocs = 1

	if err := metadata.Verify(content, expectedHash); err != nil {
		result.IsValid = false
		result.Errors = append(result.Errors, ValidationError{Path: docPath, Message: err.Error(), Err: ErrIntegrity})
		result.Stats.InvalidDocs = 1

		return result
	}

	result.Stats.ValidDocs = 1

	return result
}

// ValidateDir validates every .txt document below the authoritative and
// forums folders of an upload root.
func (v *DocumentValidator) ValidateDir(root string) (*ValidationResult, error) {
	result := newResult()

	dirs := map[string]string{
		models.DocumentAuthoritative: filepath.Join(root, "authoritative"),
		models.DocumentForum:         filepath.Join(root, "forums"),
	}

	for _, docType := range []string{models.DocumentAuthoritative, models.DocumentForum} {
		dir := dirs[docType]

		err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return filepath.SkipDir
				}

				return err
			}

			if d.IsDir() || filepath.Ext(p) != ".txt" {
				return nil
			}

			data, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", p, err)
			}

			rel, _ := filepath.Rel(root, p)
			result.Merge(v.ValidateDocument(filepath.ToSlash(rel), docType, string(data)))

			return nil
		})
		if err != nil {
			return result, err
		}
	}

	return result, nil
}

func (v *DocumentValidator) isNoise(line string) bool {
	lower := strings.ToLower(strings.TrimSpace(line))
	if lower == "" {
		return false
	}

	for _, p := range v.noise {
		if strings.Contains(lower, p) {
			return true
		}
	}

	return false
}

// Merge folds other into r.
func (r *ValidationResult) Merge(other *ValidationResult) {
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.IsValid = r.IsValid && other.IsValid

	r.Stats.TotalDocs += other.Stats.TotalDocs
	r.Stats.ValidDocs += other.Stats.ValidDocs
	r.Stats.InvalidDocs += other.Stats.InvalidDocs
	r.Stats.MissingFields += other.Stats.MissingFields
	r.Stats.ShortBodies += other.Stats.ShortBodies
	r.Stats.NoiseLines += other.Stats.NoiseLines
}

// Err returns the first validation error, or nil.
func (r *ValidationResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}

	return r.Errors[0]
}

// String returns string representation of validation result.
func (r *ValidationResult) String() string {
	status := "✅ VALID"
	if !r.IsValid {
		status = "❌ INVALID"
	}

	return fmt.Sprintf(
		"%s | Total: %d | Valid: %d | Invalid: %d | Warnings: %d",
		status,
		r.Stats.TotalDocs,
		r.Stats.ValidDocs,
		r.Stats.InvalidDocs,
		len(r.Warnings),
	)
}

// PrintErrors prints validation errors in readable format.
func (r *ValidationResult) PrintErrors() {
	if len(r.Errors) == 0 {
		return
	}

	fmt.Println("❌ Validation Errors:")

	for _, err := range r.Errors {
		fmt.Printf("  %s\n", err.Error())
	}
}

// PrintWarnings prints validation warnings.
func (r *ValidationResult) PrintWarnings() {
	if len(r.Warnings) == 0 {
		return
	}

	fmt.Println("⚠️  Validation Warnings:")

	for _, warn := range r.Warnings {
		fmt.Printf("  %s\n", warn)
	}
}

func truncate(s string, maxLen int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= maxLen {
		return string(r)
	}

	return string(r[:maxLen]) + "..."
}
