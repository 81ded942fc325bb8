package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"trustmed/internal/crawler/parsers"
	"trustmed/internal/models"
)

// Client composes the scraper, the article parser and the URL manager.
type Client struct {
	scraper    *Scraper
	parser     *parsers.ArticleParser
	urlManager *URLManager
}

// NewClient creates a new crawler client with default dependencies.
func NewClient() *Client {
	return &Client{
		scraper:    NewScraper(),
		parser:     parsers.NewArticleParser(500, 20),
		urlManager: NewURLManager(),
	}
}

// NewClientWithDeps creates a new crawler client with injected dependencies.
func NewClientWithDeps(scraper *Scraper, parser *parsers.ArticleParser, urlManager *URLManager) *Client {
	if urlManager == nil {
		urlManager = NewURLManager()
	}

	return &Client{
		scraper:    scraper,
		parser:     parser,
		urlManager: urlManager,
	}
}

// URLManager returns the manager tracking visited URLs.
func (c *Client) URLManager() *URLManager {
	return c.urlManager
}

// Scraper returns the underlying scraper.
func (c *Client) Scraper() *Scraper {
	return c.scraper
}

// CrawlArticle fetches and parses an article page.
func (c *Client) CrawlArticle(ctx context.Context, url string) (*models.ScrapedPage, error) {
	content, status, duration, err := c.scraper.FetchWithMetrics(ctx, url, nil)
	c.urlManager.RecordAttempt(url, err == nil, err, status, duration)

	if err != nil {
		return nil, fmt.Errorf("failed to scrape URL: %w", err)
	}

	page, err := c.parser.Parse(content, url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse article: %w", err)
	}

	return page, nil
}

// CrawlArticleFromFile reads a local text or PDF document.
func (c *Client) CrawlArticleFromFile(path string, minContentChars int) (*models.ScrapedPage, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return parsers.ParsePDF(path, minContentChars)
	}

	content, _, _, err := c.scraper.ReadLocalFileWithMetrics(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read local file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".html") || strings.EqualFold(filepath.Ext(path), ".htm") {
		return c.parser.Parse(content, "file://"+filepath.ToSlash(path))
	}

	content = strings.TrimSpace(content)
	if len([]rune(content)) < minContentChars {
		return nil, fmt.Errorf("%w: %s", parsers.ErrContentTooShort, path)
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	return &models.ScrapedPage{
		Title:      strings.ReplaceAll(title, "_", " "),
		URL:        "file://" + filepath.ToSlash(path),
		Content:    content,
		Paragraphs: strings.Count(content, "\n\n") + 1,
	}, nil
}

// CrawlLinks fetches a page and returns the links matching patterns.
func (c *Client) CrawlLinks(ctx context.Context, url string, patterns []string) ([]string, error) {
	content, status, duration, err := c.scraper.FetchWithMetrics(ctx, url, nil)
	c.urlManager.RecordAttempt(url, err == nil, err, status, duration)

	if err != nil {
		return nil, fmt.Errorf("failed to scrape URL: %w", err)
	}

	return parsers.ExtractLinks(content, url, patterns)
}

// CrawlListing fetches one page of a Reddit JSON listing.
func (c *Client) CrawlListing(ctx context.Context, url string) ([]parsers.Post, string, error) {
	content, status, duration, err := c.scraper.FetchWithMetrics(ctx, url, jsonHeaders)
	c.urlManager.RecordAttempt(url, err == nil, err, status, duration)

	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch listing: %w", err)
	}

	return parsers.ParseListing([]byte(content))
}

// CrawlComments fetches the comments of a thread.
func (c *Client) CrawlComments(ctx context.Context, url string, limit, depth int) ([]models.Comment, error) {
	content, status, duration, err := c.scraper.FetchWithMetrics(ctx, url, jsonHeaders)
	c.urlManager.RecordAttempt(url, err == nil, err, status, duration)

	if err != nil {
		return nil, fmt.Errorf("failed to fetch comments: %w", err)
	}

	return parsers.ParseComments([]byte(content), limit, depth)
}

// CrawlForumHTML fetches a rendered subreddit page and parses its posts.
func (c *Client) CrawlForumHTML(ctx context.Context, url string) ([]parsers.Post, error) {
	content, status, duration, err := c.scraper.FetchWithMetrics(ctx, url, nil)
	c.urlManager.RecordAttempt(url, err == nil, err, status, duration)

	if err != nil {
		return nil, fmt.Errorf("failed to fetch forum page: %w", err)
	}

	return parsers.ParseRedditHTML(content)
}

var jsonHeaders = map[string]string{"Accept": "application/json"}

// SaveJSON writes v as indented JSON, creating parent directories.
func SaveJSON(v any, outputPath string) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(outputPath, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}
