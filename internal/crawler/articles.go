package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocolly/colly"

	"trustmed/internal/config"
	"trustmed/internal/crawler/parsers"
	"trustmed/internal/logger"
	"trustmed/internal/models"
	"trustmed/pkg/metadata"
	"trustmed/pkg/utils"
)

// Article collector errors.
var (
	ErrDuplicateArticle = errors.New("duplicate article")
	ErrTargetReached    = errors.New("article target reached")
)

// maxTitleChars caps the title part of article filenames.
const maxTitleChars = 100

// ArticleStats counts what happened during a collection run.
type ArticleStats struct {
	Saved      int
	Duplicates int
	TooShort   int
	Failed     int
	Discovered int
}

// ArticleCollector scrapes authoritative article pages into text files and
// keeps the metadata list in sync after every saved article.
type ArticleCollector struct {
	client    *Client
	pacer     *Pacer
	log       *logger.Logger
	now       func() time.Time
	cfg       config.ArticlesConfig
	articles  []models.Article
	filenames map[string]bool
	timeout   time.Duration
}

// NewArticleCollector creates a collector writing into cfg.OutputDir.
func NewArticleCollector(client *Client, pacer *Pacer, cfg config.ArticlesConfig, log *logger.Logger) *ArticleCollector {
	return &ArticleCollector{
		client:    client,
		pacer:     pacer,
		log:       log,
		now:       time.Now,
		cfg:       cfg,
		filenames: make(map[string]bool),
		timeout:   30 * time.Second,
	}
}

// MetadataPath is the JSON list describing every saved article.
func (ac *ArticleCollector) MetadataPath() string {
	return filepath.Join(ac.cfg.OutputDir, ac.cfg.MetadataFile)
}

// Articles returns the articles known to the collector.
func (ac *ArticleCollector) Articles() []models.Article {
	return ac.articles
}

// LoadExisting reads a previous metadata list so reruns skip known articles.
func (ac *ArticleCollector) LoadExisting() error {
	data, err := os.ReadFile(ac.MetadataPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}

	var existing []models.Article
	if err := json.Unmarshal(data, &existing); err != nil {
		return fmt.Errorf("failed to parse metadata: %w", err)
	}

	for _, a := range existing {
		ac.client.URLManager().MarkSeen(a.URL)
		ac.filenames[a.Filename] = true
	}

	ac.articles = existing
	ac.log.Info("Loaded existing articles", "count", len(existing))

	return nil
}

// Run collects from each source until the per-source and global targets are met.
func (ac *ArticleCollector) Run(ctx context.Context, sources []config.ArticleSource) (ArticleStats, error) {
	var stats ArticleStats

	for _, src := range sources {
		if ac.targetReached() {
			break
		}

		ac.log.Info("Collecting source", "source", src.Name)

		if err := ac.collectSource(ctx, src, &stats); err != nil {
			if errors.Is(err, ErrTargetReached) {
				break
			}

			return stats, err
		}
	}

	return stats, nil
}

func (ac *ArticleCollector) collectSource(ctx context.Context, src config.ArticleSource, stats *ArticleStats) error {
	saved := 0

	limitReached := func() bool {
		return src.MaxArticles > 0 && saved >= src.MaxArticles
	}

	for _, path := range src.Files {
		if limitReached() {
			return nil
		}

		page, err := ac.client.CrawlArticleFromFile(path, ac.cfg.MinContentChars)
		if ac.handle(src, page, err, stats) {
			saved++
		}

		if ac.targetReached() {
			return ErrTargetReached
		}
	}

	urls := append([]string(nil), src.URLs...)
	if len(src.DiscoveryURLs) > 0 {
		found := ac.DiscoverLinks(ctx, src)
		stats.Discovered += len(found)
		urls = append(urls, found...)
	}

	for _, url := range urls {
		if err := ctx.Err(); err != nil {
			return err
		}

		if limitReached() {
			return nil
		}

		if ac.client.URLManager().Seen(url) {
			stats.Duplicates++
			continue
		}

		page, err := ac.client.CrawlArticle(ctx, url)
		if ac.handle(src, page, err, stats) {
			saved++
		}

		if ac.targetReached() {
			return ErrTargetReached
		}

		if err := ac.pacer.Wait(ctx); err != nil {
			return err
		}
	}

	return nil
}

// handle saves a crawled page and updates stats. It reports whether the
// article was saved.
func (ac *ArticleCollector) handle(src config.ArticleSource, page *models.ScrapedPage, err error, stats *ArticleStats) bool {
	if err != nil {
		if errors.Is(err, parsers.ErrContentTooShort) {
			stats.TooShort++
			ac.log.Debug("Skipping short article", "error", err)

			return false
		}

		stats.Failed++
		ac.log.Warn("Failed to collect article", "source", src.Name, "error", err)

		return false
	}

	article, err := ac.SaveArticle(src, page)
	if err != nil {
		if errors.Is(err, ErrDuplicateArticle) {
			stats.Duplicates++
			return false
		}

		stats.Failed++
		ac.log.Error("Failed to save article", "url", page.URL, "error", err)

		return false
	}

	stats.Saved++
	ac.log.Info(fmt.Sprintf("[%d] ✓ %s", len(ac.articles), utils.TruncateDisplay(article.Title, 60)))

	return true
}

// SaveArticle writes the article text with its header block and appends it
// to the metadata list. Articles are unique by URL and by filename.
func (ac *ArticleCollector) SaveArticle(src config.ArticleSource, page *models.ScrapedPage) (*models.Article, error) {
	filename := ArticleFilename(src.Name, page.Title)

	if ac.filenames[filename] {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateArticle, filename)
	}

	if !ac.client.URLManager().MarkSeen(page.URL) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateArticle, page.URL)
	}

	collected := ac.now().UTC().Format(time.RFC3339)

	header := metadata.Header{}.
		Add(metadata.KeyTitle, page.Title).
		Add(metadata.KeySource, src.Name).
		Add(metadata.KeyURL, page.URL).
		Add(metadata.KeyCollected, collected)

	if err := os.MkdirAll(ac.cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	path := filepath.Join(ac.cfg.OutputDir, filename)
	if err := os.WriteFile(path, []byte(metadata.Render(header, page.Content)), 0644); err != nil {
		return nil, fmt.Errorf("failed to write article: %w", err)
	}

	article := models.Article{
		Title:       page.Title,
		Source:      src.Name,
		URL:         page.URL,
		Filename:    filename,
		Filepath:    path,
		Topic:       src.Topic,
		WordCount:   utils.WordCount(page.Content),
		CollectedAt: collected,
	}

	ac.filenames[filename] = true
	ac.articles = append(ac.articles, article)

	if err := SaveJSON(ac.articles, ac.MetadataPath()); err != nil {
		return nil, err
	}

	return &article, nil
}

// DiscoverLinks visits the discovery pages of a source and returns the
// article links matching its patterns.
func (ac *ArticleCollector) DiscoverLinks(ctx context.Context, src config.ArticleSource) []string {
	c := colly.NewCollector(
		colly.UserAgent(ac.client.Scraper().UserAgent()),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(ac.timeout)

	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Delay:       ac.pacer.min,
		RandomDelay: ac.pacer.max - ac.pacer.min,
	}); err != nil {
		ac.log.Warn("Invalid limit rule", "error", err)
	}

	seen := make(map[string]bool)

	var links []string

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" || seen[link] || !parsers.MatchesAny(link, src.LinkPatterns) {
			return
		}

		seen[link] = true
		links = append(links, link)
	})

	c.OnResponse(func(r *colly.Response) {
		ac.client.URLManager().RecordAttempt(r.Request.URL.String(), true, nil, r.StatusCode, 0)
	})

	c.OnError(func(r *colly.Response, err error) {
		ac.client.URLManager().RecordAttempt(r.Request.URL.String(), false, err, r.StatusCode, 0)
		ac.log.Warn("Discovery page failed", "url", r.Request.URL.String(), "status", r.StatusCode, "error", err)
	})

	for _, u := range src.DiscoveryURLs {
		if ctx.Err() != nil {
			break
		}

		if err := c.Visit(u); err != nil {
			ac.log.Warn("Failed to visit discovery page", "url", u, "error", err)
		}
	}

	c.Wait()

	ac.log.Info("Discovered article links", "source", src.Name, "count", len(links))

	return links
}

func (ac *ArticleCollector) targetReached() bool {
	return ac.cfg.Target > 0 && len(ac.articles) >= ac.cfg.Target
}

// ArticleFilename builds "<Source>_<Title>.txt" with a filesystem-safe title.
func ArticleFilename(source, title string) string {
	name := utils.SanitizeFilename(title, maxTitleChars)
	if name == "" {
		name = "Untitled"
	}

	return strings.ReplaceAll(source, " ", "_") + "_" + name + ".txt"
}
