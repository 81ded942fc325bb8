package validator

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"trustmed/internal/config"
	"trustmed/internal/models"
	"trustmed/pkg/metadata"
)

func createTestValidator(t *testing.T) *DocumentValidator {
	t.Helper()

	return NewDocumentValidator(config.PrepareConfig{
		MinBodyChars:  20,
		NoisePatterns: []string{"Thank you for subscribing"},
	})
}

func articleDoc(body string) string {
	h := metadata.Header{}.
		Add(metadata.KeyTitle, "Diabetes").
		Add(metadata.KeySource, "CDC").
		Add(metadata.KeyURL, "https://cdc.gov/diabetes").
		Add(metadata.KeyCanonicalURL, "https://cdc.gov/diabetes").
		Add(metadata.KeyFilename, "CDC_Diabetes.txt")

	return metadata.Render(h, body)
}

func TestValidateDocument(t *testing.T) {
	v := createTestValidator(t)

	tests := []struct {
		name    string
		docType string
		content string
		wantErr error
	}{
		{"valid article", models.DocumentAuthoritative, articleDoc("Diabetes affects how the body turns food into energy."), nil},
		{"no header", models.DocumentAuthoritative, "just some text without a header", ErrMissingHeader},
		{"short body", models.DocumentAuthoritative, articleDoc("Too short."), ErrBodyTooShort},
		{"noise left", models.DocumentAuthoritative, articleDoc("Diabetes affects the body.\nTHANK YOU FOR SUBSCRIBING!"), ErrNoiseLine},
		{"forum missing fields", models.DocumentForum, articleDoc("A forum body that is long enough.\n\n---\n## Comments\nNo comments captured."), ErrMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.ValidateDocument("doc.txt", tt.docType, tt.content)

			if tt.wantErr == nil {
				if !result.IsValid {
					t.Fatalf("expected valid, got %v", result.Errors)
				}

				return
			}

			if result.IsValid {
				t.Fatal("expected invalid result")
			}

			if !errors.Is(result.Err(), tt.wantErr) {
				t.Errorf("Err() = %v, want %v", result.Err(), tt.wantErr)
			}
		})
	}
}

func TestValidateIntegrity(t *testing.T) {
	v := createTestValidator(t)
	content := articleDoc("Diabetes affects how the body turns food into energy.")

	if r := v.ValidateIntegrity("doc.txt", content, metadata.CalculateHash(content)); !r.IsValid {
		t.Errorf("ValidateIntegrity() = %v, want valid", r.Errors)
	}

	r := v.ValidateIntegrity("doc.txt", content+"x", metadata.CalculateHash(content))
	if r.IsValid || !errors.Is(r.Err(), ErrIntegrity) {
		t.Errorf("ValidateIntegrity() = %v, want %v", r.Err(), ErrIntegrity)
	}
}

func TestValidateDir(t *testing.T) {
	root := t.TempDir()
	authDir := filepath.Join(root, "authoritative", "cdc")

	if err := os.MkdirAll(authDir, 0755); err != nil {
		t.Fatal(err)
	}

	good := articleDoc("Diabetes affects how the body turns food into energy.")
	if err := os.WriteFile(filepath.Join(authDir, "good.txt"), []byte(good), 0644); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(authDir, "bad.txt"), []byte("no header"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(authDir, "notes.md"), []byte("ignored"), 0644); err != nil {
		t.Fatal(err)
	}

	v := createTestValidator(t)

	result, err := v.ValidateDir(root)
	if err != nil {
		t.Fatalf("ValidateDir failed: %v", err)
	}

	if result.Stats.TotalDocs != 2 || result.Stats.ValidDocs != 1 || result.Stats.InvalidDocs != 1 {
		t.Errorf("stats = %+v", result.Stats)
	}

	if !strings.Contains(result.String(), "INVALID") {
		t.Errorf("String() = %q", result.String())
	}

	if !strings.Contains(result.Errors[0].Error(), "authoritative/cdc/bad.txt") {
		t.Errorf("error path = %q", result.Errors[0].Error())
	}
}
