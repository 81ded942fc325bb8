package normalizer

import (
	"errors"
	"strings"

	"trustmed/internal/models"
)

// Validation errors.
var (
	ErrMissingFilename = errors.New("article metadata missing filename")
	ErrUnsafeFilename  = errors.New("article filename escapes its directory")
	ErrEmptyThread     = errors.New("thread has neither title nor text")
	ErrUnsafeThreadID  = errors.New("thread id is not a plain file name")
)

// Validator checks collected records before they are rendered.
type Validator struct{}

// NewValidator creates a new validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateArticle checks an article metadata entry.
func (v *Validator) ValidateArticle(a models.Article) error {
	if strings.TrimSpace(a.Filename) == "" {
		return ErrMissingFilename
	}

	if strings.ContainsAny(a.Filename, `/\`) || a.Filename == "." || a.Filename == ".." {
		return ErrUnsafeFilename
	}

	return nil
}

// ValidateThread checks a forum thread.
func (v *Validator) ValidateThread(t models.Thread) error {
	if strings.TrimSpace(t.Title) == "" && strings.TrimSpace(t.Selftext) == "" {
		return ErrEmptyThread
	}

	if strings.ContainsAny(t.ID, `/\`) || t.ID == "." || t.ID == ".." {
		return ErrUnsafeThreadID
	}

	return nil
}
