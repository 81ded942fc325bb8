package chat

import (
	"context"
	"fmt"

	"trustmed/internal/cache"
	"trustmed/internal/config"
	"trustmed/internal/kb"
	"trustmed/internal/logger"
	"trustmed/internal/manifest"
	"trustmed/internal/metrics"
	"trustmed/internal/storage"
)

// App bundles a configured server with the resources it owns.
type App struct {
	Server   *Server
	Answerer *kb.Answerer
	Metrics  *metrics.Collector
	cache    cache.Cache
}

// Close releases the answer cache.
func (a *App) Close() error {
	if a.cache == nil {
		return nil
	}

	return a.cache.Close()
}

// NewApp wires the knowledge base client, manifest, cache and metrics into a
// chat server. Missing knowledge base settings are not fatal: the server
// starts and reports them in the chat.
func NewApp(ctx context.Context, cfg *config.ServerConfig, log *logger.Logger) (*App, error) {
	awsCfg, err := storage.LoadAWSConfig(ctx, cfg.Region)
	if err != nil {
		return nil, err
	}

	index, err := manifest.LoadIndex(cfg.ManifestPath, cfg.ContentPrefix)
	if err != nil {
		log.Warn("Manifest unreadable, citations will show object names", "path", cfg.ManifestPath, "error", err)
		index = manifest.NewIndex(nil, cfg.ContentPrefix)
	}

	log.Info(fmt.Sprintf("Loaded %d manifest keys from %s", index.Len(), cfg.ManifestPath))

	if missing := cfg.MissingSettings(); len(missing) > 0 {
		log.Warn("Knowledge base not configured", "missing", missing)
	}

	collector := metrics.NewCollector("trustmed")

	breaker := kb.DefaultBreakerConfig()
	if cfg.BreakerThreshold > 0 {
		breaker.FailureThreshold = cfg.BreakerThreshold
	}

	answerer := kb.NewAnswerer(kb.NewRuntimeClient(awsCfg), kb.Settings{
		KnowledgeBaseID: cfg.KnowledgeBaseID,
		ModelARN:        cfg.ModelARN,
		NumberOfResults: cfg.NumberOfResults,
	}, index, log).WithBreaker(breaker).WithMetrics(collector)

	answerCache, err := newCache(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	if answerCache != nil {
		answerer.WithCache(answerCache, cfg.CacheTTL)
	}

	server := NewServer(answerer, Options{
		Welcome:        LoadWelcome(cfg.WelcomeFile),
		AllowedOrigins: cfg.AllowedOrigins,
		RequestTimeout: cfg.RequestTimeout,
		Metrics:        collector,
	}, log)

	return &App{
		Server:   server,
		Answerer: answerer,
		Metrics:  collector,
		cache:    answerCache,
	}, nil
}

func newCache(ctx context.Context, cfg *config.ServerConfig, log *logger.Logger) (cache.Cache, error) {
	if cfg.RedisURL != "" {
		c, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}

		log.Info("Answer cache: redis")

		return c, nil
	}

	if cfg.CacheSize <= 0 {
		return nil, nil
	}

	log.Info(fmt.Sprintf("Answer cache: in-memory (%d entries)", cfg.CacheSize))

	return cache.NewMemory(cfg.CacheSize), nil
}
