package normalizer

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"trustmed/internal/config"
	"trustmed/internal/crawler"
	"trustmed/internal/dataset"
	"trustmed/internal/logger"
	"trustmed/internal/manifest"
	"trustmed/internal/models"
	"trustmed/pkg/metadata"
)

func writeFixtures(t *testing.T, root string) (string, string, string) {
	t.Helper()

	articlesDir := filepath.Join(root, "raw", "authoritative")
	metadataPath := filepath.Join(articlesDir, "articles_metadata.json")

	articles := []models.Article{
		{Title: "Diabetes Basics", Source: "CDC", URL: "https://cdc.gov/diabetes", Filename: "CDC_Diabetes_Basics.txt", CollectedAt: "2025-01-01T00:00:00Z", Topic: "diabetes"},
		{Title: "Gone", Source: "CDC", URL: "https://cdc.gov/gone", Filename: "CDC_Gone.txt"},
		{Title: "Noise", Source: "Mayo Clinic", URL: "https://mayoclinic.org/noise", Filename: "Mayo_Clinic_Noise.txt"},
		{Title: "No file name"},
	}

	if err := crawler.SaveJSON(articles, metadataPath); err != nil {
		t.Fatal(err)
	}

	raw := metadata.Render(metadata.Header{}.Add(metadata.KeyTitle, "Diabetes Basics"),
		"Diabetes is a chronic condition.\n\n\n\nThank you for subscribing!\nIt affects blood sugar.")

	if err := os.WriteFile(filepath.Join(articlesDir, "CDC_Diabetes_Basics.txt"), []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(articlesDir, "Mayo_Clinic_Noise.txt"), []byte("From Mayo Clinic to your inbox\n"), 0644); err != nil {
		t.Fatal(err)
	}

	forumFile := filepath.Join(root, "raw", "reddit", "diabetes_threads_combined.json")
	threads := []models.Thread{
		{ID: "abc", Subreddit: "diabetes", Title: "Newly diagnosed", URL: "https://www.reddit.com/r/diabetes/comments/abc/", Selftext: "Any tips?"},
		{Subreddit: "Type 1 Diabetes", Title: "No id"},
		{ID: "empty", Subreddit: "diabetes"},
	}

	if err := dataset.Save(forumFile, threads); err != nil {
		t.Fatal(err)
	}

	return metadataPath, articlesDir, forumFile
}

func TestProcessor_Run(t *testing.T) {
	root := t.TempDir()
	metadataPath, articlesDir, forumFile := writeFixtures(t, root)

	cfg := config.PrepareConfig{
		OutputDir:     filepath.Join(root, "to_upload"),
		ManifestFile:  "manifest.json",
		NoisePatterns: config.DefaultNoisePatterns,
	}

	p := NewProcessor(cfg, logger.NewNop())

	stats, err := p.Run(metadataPath, articlesDir, []string{forumFile, filepath.Join(root, "missing.json")})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.Articles != 1 || stats.Threads != 2 {
		t.Errorf("stats = %+v, want 1 article and 2 threads", stats)
	}

	if stats.MissingFiles != 2 || stats.EmptyArticles != 1 || stats.Rejected != 2 {
		t.Errorf("stats = %+v", stats)
	}

	doc, err := os.ReadFile(filepath.Join(cfg.OutputDir, "authoritative", "cdc", "CDC_Diabetes_Basics.txt"))
	if err != nil {
		t.Fatalf("article not written: %v", err)
	}

	header, body := metadata.Extract(string(doc))
	if header.Get(metadata.KeyCanonicalURL) != "https://cdc.gov/diabetes" || header.Get(metadata.KeyTopic) != "diabetes" {
		t.Errorf("header = %v", header)
	}

	if body != "Diabetes is a chronic condition.\n\nIt affects blood sugar." {
		t.Errorf("body = %q", body)
	}

	if strings.Count(string(doc), metadata.Rule()) != 1 {
		t.Error("collector header should not be carried into the upload document")
	}

	if _, err := os.Stat(filepath.Join(cfg.OutputDir, "forums", "type-1-diabetes", "thread-1.txt")); err != nil {
		t.Errorf("fallback thread id not used: %v", err)
	}

	entries, err := manifest.Load(p.ManifestPath())
	if err != nil {
		t.Fatalf("manifest not written: %v", err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}

	want := "authoritative/cdc/CDC_Diabetes_Basics.txt,forums/diabetes/abc.txt,forums/type-1-diabetes/thread-1.txt"
	if got := strings.Join(keys, ","); got != want {
		t.Errorf("manifest keys = %s, want %s", got, want)
	}

	if entries[1].Type != models.DocumentForum || entries[1].ThreadID != "abc" || entries[1].Source != "diabetes" {
		t.Errorf("forum entry = %+v", entries[1])
	}
}

func TestProcessor_MissingMetadata(t *testing.T) {
	root := t.TempDir()
	p := NewProcessor(config.PrepareConfig{OutputDir: root, ManifestFile: "manifest.json"}, logger.NewNop())

	_, err := p.Run(filepath.Join(root, "none.json"), root, nil)
	if !errors.Is(err, ErrMetadataMissing) {
		t.Errorf("Run() error = %v, want %v", err, ErrMetadataMissing)
	}
}
