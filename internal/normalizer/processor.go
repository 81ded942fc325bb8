// Package normalizer turns collected articles and forum threads into the
// upload-ready text documents and the manifest that describes them.
package normalizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"trustmed/internal/config"
	"trustmed/internal/dataset"
	"trustmed/internal/logger"
	"trustmed/internal/manifest"
	"trustmed/internal/models"
	"trustmed/internal/validator"
	"trustmed/pkg/utils"
)

// Upload sub-directories per document type.
const (
	AuthoritativeDir = "authoritative"
	ForumsDir        = "forums"
)

// ErrMetadataMissing is returned when the article metadata list does not exist.
var ErrMetadataMissing = errors.New("article metadata file missing")

// Stats counts what a prepare run produced.
type Stats struct {
	Articles        int
	Threads         int
	MissingFiles    int
	EmptyArticles   int
	Rejected        int
	InvalidDocs     int
	ManifestEntries int
}

// Processor writes the upload directory and its manifest.
type Processor struct {
	validator   *Validator
	transformer *Transformer
	docs        *validator.DocumentValidator
	manifest    *manifest.Builder
	log         *logger.Logger
	outputDir   string
	manifestTo  string
}

// NewProcessor creates a processor for the prepare settings.
func NewProcessor(cfg config.PrepareConfig, log *logger.Logger) *Processor {
	return &Processor{
		validator:   NewValidator(),
		transformer: NewTransformer(cfg.NoisePatterns),
		docs:        validator.NewDocumentValidator(cfg),
		manifest:    manifest.NewBuilder(),
		log:         log,
		outputDir:   cfg.OutputDir,
		manifestTo:  filepath.Join(cfg.OutputDir, cfg.ManifestFile),
	}
}

// ManifestPath returns where the manifest is written.
func (p *Processor) ManifestPath() string {
	return p.manifestTo
}

// Run prepares articles and forum threads, then writes the manifest.
func (p *Processor) Run(metadataPath, articlesDir string, forumFiles []string) (*Stats, error) {
	stats := &Stats{}

	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return stats, fmt.Errorf("failed to create output dir: %w", err)
	}

	if err := p.manifest.Reset(p.manifestTo); err != nil {
		return stats, err
	}

	if err := p.ProcessArticles(metadataPath, articlesDir, stats); err != nil {
		return stats, err
	}

	for _, f := range forumFiles {
		if err := p.ProcessForumFile(f, stats); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				p.log.Warn("Missing forum file", "path", f)
				stats.MissingFiles++

				continue
			}

			return stats, err
		}
	}

	if err := p.manifest.Write(p.manifestTo); err != nil {
		return stats, err
	}

	stats.ManifestEntries = p.manifest.Len()

	return stats, nil
}

// ProcessArticles cleans every article listed in the metadata file.
func (p *Processor) ProcessArticles(metadataPath, articlesDir string, stats *Stats) error {
	data, err := os.ReadFile(metadataPath)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrMetadataMissing, metadataPath)
	}

	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}

	var articles []models.Article
	if err := json.Unmarshal(data, &articles); err != nil {
		return fmt.Errorf("failed to parse metadata: %w", err)
	}

	for i, a := range articles {
		if err := p.validator.ValidateArticle(a); err != nil {
			p.log.Warn("Skipping article", "index", i, "error", err)
			stats.Rejected++

			continue
		}

		raw, err := os.ReadFile(filepath.Join(articlesDir, a.Filename))
		if err != nil {
			p.log.Warn("Missing article file", "file", a.Filename)
			stats.MissingFiles++

			continue
		}

		body := p.transformer.CleanArticle(string(raw))
		if body == "" {
			p.log.Warn("Skipping empty article", "file", a.Filename)
			stats.EmptyArticles++

			continue
		}

		key := path.Join(AuthoritativeDir, utils.Slugify(orDefault(a.Source, UnknownSource)), a.Filename)

		if err := p.write(key, models.DocumentAuthoritative, p.transformer.ArticleDocument(a, body), stats); err != nil {
			return err
		}

		if err := p.manifest.Add(models.ManifestEntry{
			Key:          key,
			Type:         models.DocumentAuthoritative,
			CanonicalURL: a.URL,
			Title:        a.Title,
			Source:       a.Source,
			CollectedAt:  a.CollectedAt,
			Topic:        a.Topic,
		}); err != nil {
			p.log.Warn("Duplicate article key", "key", key)
			continue
		}

		stats.Articles++
	}

	return nil
}

// ProcessForumFile writes one document per thread of a thread file.
func (p *Processor) ProcessForumFile(threadFile string, stats *Stats) error {
	threads, err := dataset.ReadThreads(threadFile)
	if err != nil {
		return err
	}

	written := 0

	for _, th := range threads {
		if err := p.validator.ValidateThread(th); err != nil {
			p.log.Warn("Skipping thread", "id", th.ID, "error", err)
			stats.Rejected++

			continue
		}

		id := th.ID
		if id == "" {
			id = fmt.Sprintf("thread-%d", written)
		}

		key := path.Join(ForumsDir, utils.Slugify(th.Subreddit), id+".txt")

		if err := p.write(key, models.DocumentForum, p.transformer.ThreadDocument(th), stats); err != nil {
			return err
		}

		if err := p.manifest.Add(models.ManifestEntry{
			Key:          key,
			Type:         models.DocumentForum,
			CanonicalURL: th.URL,
			Title:        th.Title,
			Source:       th.Subreddit,
			CollectedAt:  th.CollectedAt,
			ThreadID:     th.ID,
		}); err != nil {
			p.log.Debug("Thread already prepared", "key", key)
			continue
		}

		written++
		stats.Threads++
	}

	p.log.Info("Forum file prepared", "file", threadFile, "threads", written)

	return nil
}

func (p *Processor) write(key, docType, content string, stats *Stats) error {
	if result := p.docs.ValidateDocument(key, docType, content); !result.IsValid {
		stats.InvalidDocs++
		p.log.Warn("Document failed validation", "key", key, "error", result.Err())
	}

	dst := filepath.Join(p.outputDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(dst), err)
	}

	if err := os.WriteFile(dst, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}

	return nil
}
