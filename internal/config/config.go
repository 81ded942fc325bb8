// Package config provides configuration management for the collection pipeline.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrNoSources                = errors.New("at least one article source or forum area is required")
	ErrSourceMissingName        = errors.New("name is required")
	ErrSourceMissingURLOrFile   = errors.New("at least one of urls, discovery_urls or files is required")
	ErrAreaMissingSubreddits    = errors.New("at least one subreddit is required")
	ErrInvalidMaxAttempts       = errors.New("retry.max_attempts must be at least 1")
	ErrInvalidInitialDelay      = errors.New("retry.initial_delay_ms must be non-negative")
	ErrInvalidBackoffMultiplier = errors.New("retry.backoff_multiplier must be >= 1.0")
	ErrInvalidTimeout           = errors.New("retry.timeout_sec must be at least 1")
	ErrInvalidDelay             = errors.New("delay.min_ms must be non-negative and not exceed delay.max_ms")
	ErrMissingOutputDir         = errors.New("output directory is required")
	ErrInvalidMinContent        = errors.New("articles.min_content_chars must be non-negative")
	ErrInvalidConcurrency       = errors.New("upload.concurrency must be non-negative")
	ErrMissingBucket            = errors.New("upload.bucket is required")
	ErrMissingKnowledgeBaseID   = errors.New("knowledge_base.id is required")
	ErrMissingDataSourceID      = errors.New("knowledge_base.data_source_id is required")
	ErrInvalidPollInterval      = errors.New("knowledge_base.poll_seconds must be at least 1")
	ErrInvalidLogLevel          = errors.New("logging.level must be one of: debug, info, warn, error")
)

// Default values applied when a field is left empty.
const (
	DefaultRegion          = "us-east-1"
	DefaultModelARN        = "arn:aws:bedrock:us-east-1::foundation-model/meta.llama3-8b-instruct-v1:0"
	DefaultUploadDir       = "to_upload"
	DefaultManifestFile    = "manifest.json"
	DefaultArticlesDir     = "data/raw/authoritative"
	DefaultForumsDir       = "data/raw/reddit"
	DefaultMetadataFile    = "articles_metadata.json"
	DefaultRedditBaseURL   = "https://www.reddit.com"
	DefaultMinContentChars = 500
	DefaultPollSeconds     = 15
	DefaultJudgeModelID    = "meta.llama3-8b-instruct-v1:0"
)

// DefaultEvalMetrics are the scores computed when evaluation.metrics is empty.
var DefaultEvalMetrics = []string{"faithfulness", "answer_relevancy", "context_precision", "context_recall"}

// DefaultNoisePatterns are boilerplate lines dropped from scraped articles.
var DefaultNoisePatterns = []string{
	"there is a problem with",
	"from mayo clinic to your inbox",
	"sign up for free and stay up to date",
	"thank you for subscribing",
	"sorry something went wrong",
	"errorinclude a valid email address",
	"erroremail field is required",
}

// Config represents the complete pipeline configuration.
type Config struct {
	Collector     CollectorConfig     `yaml:"collector"`
	Prepare       PrepareConfig       `yaml:"prepare"`
	Upload        UploadConfig        `yaml:"upload"`
	KnowledgeBase KnowledgeBaseConfig `yaml:"knowledge_base"`
	Evaluation    EvaluationConfig    `yaml:"evaluation"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// CollectorConfig contains scraping settings shared by the article and forum collectors.
type CollectorConfig struct {
	Retry        RetryPolicy    `yaml:"retry"`
	Delay        DelayPolicy    `yaml:"delay"`
	UserAgents   []string       `yaml:"user_agents"`
	BufferSizeKb int            `yaml:"buffer_size_kb"`
	Articles     ArticlesConfig `yaml:"articles"`
	Forums       ForumsConfig   `yaml:"forums"`
}

// ArticlesConfig describes the authoritative article collection.
type ArticlesConfig struct {
	OutputDir         string          `yaml:"output_dir"`
	MetadataFile      string          `yaml:"metadata_file"`
	Target            int             `yaml:"target"`
	MinContentChars   int             `yaml:"min_content_chars"`
	MinParagraphChars int             `yaml:"min_paragraph_chars"`
	Sources           []ArticleSource `yaml:"sources"`
}

// ArticleSource represents one medical publisher.
type ArticleSource struct {
	Name          string   `yaml:"name"`
	Topic         string   `yaml:"topic"`
	URLs          []string `yaml:"urls"`
	DiscoveryURLs []string `yaml:"discovery_urls"`
	LinkPatterns  []string `yaml:"link_patterns"`
	Files         []string `yaml:"files"`
	MaxArticles   int      `yaml:"max_articles"`
	Enabled       bool     `yaml:"enabled"`
}

// IsLocal returns true if this source only reads local files.
func (s *ArticleSource) IsLocal() bool {
	return len(s.Files) > 0 && len(s.URLs) == 0 && len(s.DiscoveryURLs) == 0
}

// ForumsConfig describes the forum thread collection.
type ForumsConfig struct {
	OutputDir            string      `yaml:"output_dir"`
	BaseURL              string      `yaml:"base_url"`
	ListingLimit         int         `yaml:"listing_limit"`
	SearchLimit          int         `yaml:"search_limit"`
	MaxSearchTerms       int         `yaml:"max_search_terms"`
	CommentLimit         int         `yaml:"comment_limit"`
	BackfillCommentLimit int         `yaml:"backfill_comment_limit"`
	ReplyDepth           int         `yaml:"reply_depth"`
	SaveEvery            int         `yaml:"save_every"`
	PageDelayMs          int         `yaml:"page_delay_ms"`
	Areas                []ForumArea `yaml:"areas"`
}

// ForumArea groups the subreddits and search terms for one disease area.
type ForumArea struct {
	Name        string   `yaml:"name"`
	Subreddits  []string `yaml:"subreddits"`
	SearchTerms []string `yaml:"search_terms"`
	Target      int      `yaml:"target"`
	Enabled     bool     `yaml:"enabled"`
}

// RetryPolicy defines retry behavior.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	TimeoutSec        int     `yaml:"timeout_sec"`
	RateLimitWaitSec  int     `yaml:"rate_limit_wait_sec"`
	ForbiddenWaitSec  int     `yaml:"forbidden_wait_sec"`
}

// DelayPolicy is the random politeness delay between requests.
type DelayPolicy struct {
	MinMs int `yaml:"min_ms"`
	MaxMs int `yaml:"max_ms"`
}

// PrepareConfig controls how raw data is turned into upload documents.
type PrepareConfig struct {
	OutputDir     string   `yaml:"output_dir"`
	ManifestFile  string   `yaml:"manifest_file"`
	ForumFiles    []string `yaml:"forum_files"`
	NoisePatterns []string `yaml:"noise_patterns"`
	MinBodyChars  int      `yaml:"min_body_chars"`
}

// UploadConfig defines the object storage target.
type UploadConfig struct {
	SourceDir   string `yaml:"source_dir"`
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	Region      string `yaml:"region"`
	Concurrency int    `yaml:"concurrency"`
}

// KnowledgeBaseConfig identifies the managed knowledge base.
type KnowledgeBaseConfig struct {
	ID              string `yaml:"id"`
	DataSourceID    string `yaml:"data_source_id"`
	ModelARN        string `yaml:"model_arn"`
	Region          string `yaml:"region"`
	NumberOfResults int    `yaml:"number_of_results"`
	PollSeconds     int    `yaml:"poll_seconds"`
}

// EvaluationConfig controls the offline evaluation run.
type EvaluationConfig struct {
	Dataset      string   `yaml:"dataset"`
	JudgeModelID string   `yaml:"judge_model_id"`
	OutputDir    string   `yaml:"output_dir"`
	Metrics      []string `yaml:"metrics"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level"`
	ShowProgress bool   `yaml:"show_progress"`
}

// LoadConfig loads configuration from YAML file.
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// DefaultConfigPath is read when a command is given no -config flag.
const DefaultConfigPath = "configs/trustmed.yaml"

// LoadConfigOrDefault loads path. With an empty path it reads
// DefaultConfigPath when that file exists and otherwise returns a config
// holding only the defaults. It returns the path actually read.
func LoadConfigOrDefault(path string) (*Config, string, error) {
	if path == "" {
		if _, err := os.Stat(DefaultConfigPath); errors.Is(err, os.ErrNotExist) {
			cfg := &Config{}
			cfg.ApplyDefaults()

			return cfg, "(defaults)", nil
		}

		path = DefaultConfigPath
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, path, err
	}

	return cfg, path, nil
}

// SaveConfig saves configuration to YAML file.
func (c *Config) SaveConfig(filepath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyDefaults fills zero values with the pipeline defaults.
func (c *Config) ApplyDefaults() {
	col := &c.Collector
	if col.Retry.MaxAttempts == 0 {
		col.Retry.MaxAttempts = 3
	}
	if col.Retry.BackoffMultiplier == 0 {
		col.Retry.BackoffMultiplier = 2.0
	}
	if col.Retry.TimeoutSec == 0 {
		col.Retry.TimeoutSec = 30
	}
	if col.Retry.MaxDelayMs == 0 {
		col.Retry.MaxDelayMs = 30000
	}
	if col.Retry.RateLimitWaitSec == 0 {
		col.Retry.RateLimitWaitSec = 5
	}
	if col.Retry.ForbiddenWaitSec == 0 {
		col.Retry.ForbiddenWaitSec = 3
	}
	if col.BufferSizeKb == 0 {
		col.BufferSizeKb = 4096
	}

	if col.Articles.OutputDir == "" {
		col.Articles.OutputDir = DefaultArticlesDir
	}
	if col.Articles.MetadataFile == "" {
		col.Articles.MetadataFile = DefaultMetadataFile
	}
	if col.Articles.MinContentChars == 0 {
		col.Articles.MinContentChars = DefaultMinContentChars
	}
	if col.Articles.MinParagraphChars == 0 {
		col.Articles.MinParagraphChars = 20
	}

	f := &col.Forums
	if f.OutputDir == "" {
		f.OutputDir = DefaultForumsDir
	}
	if f.BaseURL == "" {
		f.BaseURL = DefaultRedditBaseURL
	}
	if f.ListingLimit == 0 {
		f.ListingLimit = 100
	}
	if f.SearchLimit == 0 {
		f.SearchLimit = 50
	}
	if f.MaxSearchTerms == 0 {
		f.MaxSearchTerms = 3
	}
	if f.CommentLimit == 0 {
		f.CommentLimit = 20
	}
	if f.BackfillCommentLimit == 0 {
		f.BackfillCommentLimit = 30
	}
	if f.ReplyDepth == 0 {
		f.ReplyDepth = 3
	}
	if f.SaveEvery == 0 {
		f.SaveEvery = 25
	}
	if f.PageDelayMs == 0 {
		f.PageDelayMs = 2000
	}

	if c.Prepare.OutputDir == "" {
		c.Prepare.OutputDir = DefaultUploadDir
	}
	if c.Prepare.ManifestFile == "" {
		c.Prepare.ManifestFile = DefaultManifestFile
	}
	if len(c.Prepare.NoisePatterns) == 0 {
		c.Prepare.NoisePatterns = append([]string(nil), DefaultNoisePatterns...)
	}

	if c.Upload.SourceDir == "" {
		c.Upload.SourceDir = c.Prepare.OutputDir
	}
	if c.Upload.Region == "" {
		c.Upload.Region = DefaultRegion
	}
	if c.Upload.Concurrency == 0 {
		c.Upload.Concurrency = 5
	}

	if c.KnowledgeBase.Region == "" {
		c.KnowledgeBase.Region = DefaultRegion
	}
	if c.KnowledgeBase.ModelARN == "" {
		c.KnowledgeBase.ModelARN = DefaultModelARN
	}
	if c.KnowledgeBase.PollSeconds == 0 {
		c.KnowledgeBase.PollSeconds = DefaultPollSeconds
	}

	if c.Evaluation.OutputDir == "" {
		c.Evaluation.OutputDir = "eval"
	}
	if c.Evaluation.JudgeModelID == "" {
		c.Evaluation.JudgeModelID = DefaultJudgeModelID
	}
	if len(c.Evaluation.Metrics) == 0 {
		c.Evaluation.Metrics = append([]string(nil), DefaultEvalMetrics...)
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	col := c.Collector

	if len(col.Articles.Sources) == 0 && len(col.Forums.Areas) == 0 {
		return ErrNoSources
	}

	for i, src := range col.Articles.Sources {
		if src.Name == "" {
			return fmt.Errorf("%w: articles.sources[%d]", ErrSourceMissingName, i)
		}

		if len(src.URLs) == 0 && len(src.DiscoveryURLs) == 0 && len(src.Files) == 0 {
			return fmt.Errorf("%w: articles.sources[%d]", ErrSourceMissingURLOrFile, i)
		}
	}

	for i, area := range col.Forums.Areas {
		if area.Name == "" {
			return fmt.Errorf("%w: forums.areas[%d]", ErrSourceMissingName, i)
		}

		if len(area.Subreddits) == 0 {
			return fmt.Errorf("%w: forums.areas[%d]", ErrAreaMissingSubreddits, i)
		}
	}

	if col.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	if col.Retry.InitialDelayMs < 0 {
		return ErrInvalidInitialDelay
	}

	if col.Retry.BackoffMultiplier < 1.0 {
		return ErrInvalidBackoffMultiplier
	}

	if col.Retry.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}

	if col.Delay.MinMs < 0 || (col.Delay.MaxMs > 0 && col.Delay.MinMs > col.Delay.MaxMs) {
		return ErrInvalidDelay
	}

	if col.Articles.MinContentChars < 0 {
		return ErrInvalidMinContent
	}

	if col.Articles.OutputDir == "" || col.Forums.OutputDir == "" || c.Prepare.OutputDir == "" {
		return ErrMissingOutputDir
	}

	if c.Upload.Concurrency < 0 {
		return ErrInvalidConcurrency
	}

	if c.KnowledgeBase.PollSeconds < 1 {
		return ErrInvalidPollInterval
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	return nil
}

// ValidateUpload checks the settings the uploader cannot run without.
func (u *UploadConfig) ValidateUpload() error {
	if u.Bucket == "" {
		return ErrMissingBucket
	}

	if u.SourceDir == "" {
		return ErrMissingOutputDir
	}

	return nil
}

// ValidateSync checks the settings an ingestion job needs.
func (k *KnowledgeBaseConfig) ValidateSync() error {
	if k.ID == "" {
		return ErrMissingKnowledgeBaseID
	}

	if k.DataSourceID == "" {
		return ErrMissingDataSourceID
	}

	return nil
}

// EnabledArticleSources returns only enabled article sources.
func (c *Config) EnabledArticleSources() []ArticleSource {
	var enabled []ArticleSource

	for _, src := range c.Collector.Articles.Sources {
		if src.Enabled {
			enabled = append(enabled, src)
		}
	}

	return enabled
}

// EnabledForumAreas returns only enabled forum areas.
func (c *Config) EnabledForumAreas() []ForumArea {
	var enabled []ForumArea

	for _, area := range c.Collector.Forums.Areas {
		if area.Enabled {
			enabled = append(enabled, area)
		}
	}

	return enabled
}

// ForumArea looks up an area by name, case-insensitively.
func (c *Config) ForumArea(name string) (ForumArea, bool) {
	for _, area := range c.Collector.Forums.Areas {
		if strings.EqualFold(area.Name, name) {
			return area, true
		}
	}

	return ForumArea{}, false
}

// GetRetryDelay calculates exponential backoff delay for attempt number.
func (rp *RetryPolicy) GetRetryDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delayMs := float64(rp.InitialDelayMs)
	for i := 1; i < attempt; i++ {
		delayMs *= rp.BackoffMultiplier
	}

	if int(delayMs) > rp.MaxDelayMs {
		delayMs = float64(rp.MaxDelayMs)
	}

	return time.Duration(int(delayMs)) * time.Millisecond
}

// GetRateLimitDelay is the wait after a 429 on the given attempt (1-based).
func (rp *RetryPolicy) GetRateLimitDelay(attempt int) time.Duration {
	return time.Duration(attempt*rp.RateLimitWaitSec) * time.Second
}

// GetForbiddenDelay is the wait after a 403 on the given attempt (1-based).
func (rp *RetryPolicy) GetForbiddenDelay(attempt int) time.Duration {
	return time.Duration(attempt*rp.ForbiddenWaitSec) * time.Second
}

// GetTimeout returns the timeout duration.
func (rp *RetryPolicy) GetTimeout() time.Duration {
	return time.Duration(rp.TimeoutSec) * time.Second
}

// MetadataPath returns where the article metadata list lives.
func (c *Config) MetadataPath() string {
	return filepath.Join(c.Collector.Articles.OutputDir, c.Collector.Articles.MetadataFile)
}

// ManifestPath returns where prepare writes the manifest.
func (c *Config) ManifestPath() string {
	return filepath.Join(c.Prepare.OutputDir, c.Prepare.ManifestFile)
}

// ForumFilePaths returns the thread files prepare should read. Bare file
// names resolve inside the forum output dir; without any configured files
// the combined file of every enabled area is used.
func (c *Config) ForumFilePaths() []string {
	dir := c.Collector.Forums.OutputDir

	if len(c.Prepare.ForumFiles) == 0 {
		var paths []string
		for _, area := range c.EnabledForumAreas() {
			paths = append(paths, filepath.Join(dir, area.Name+"_threads_combined.json"))
		}

		return paths
	}

	paths := make([]string, 0, len(c.Prepare.ForumFiles))
	for _, f := range c.Prepare.ForumFiles {
		if filepath.Base(f) == f {
			f = filepath.Join(dir, f)
		}

		paths = append(paths, f)
	}

	return paths
}

// ForumOutputPath follows structure: {output_dir}/{area}_threads_{stamp}.json.
func (c *Config) ForumOutputPath(area string, at time.Time) string {
	name := fmt.Sprintf("%s_threads_%s.json", area, at.Format("20060102_150405"))
	return filepath.Join(c.Collector.Forums.OutputDir, name)
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{ArticleSources: %d, ForumAreas: %d, MaxAttempts: %d, Upload: %s}",
		len(c.Collector.Articles.Sources),
		len(c.Collector.Forums.Areas),
		c.Collector.Retry.MaxAttempts,
		c.Prepare.OutputDir,
	)
}
