// Package main provides the articles command-line tool for collecting authoritative medical articles.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"trustmed/internal/config"
	"trustmed/internal/crawler"
	"trustmed/internal/crawler/parsers"
	"trustmed/internal/logger"
)

func main() {
	configFile := flag.String("config", "", "Path to YAML configuration file (default configs/trustmed.yaml)")
	source := flag.String("source", "", "Only collect the named source (overrides enabled flags)")
	target := flag.Int("target", 0, "Total number of articles to collect (overrides config)")
	showUsage := flag.Bool("help", false, "Show usage information")

	flag.Parse()

	if *showUsage {
		printUsage()
		os.Exit(0)
	}

	cfg, path, err := config.LoadConfigOrDefault(*configFile)
	if err != nil {
		log.Fatalf("❌ Failed to load config %s: %v\n", path, err)
	}

	fmt.Printf("✅ Configuration loaded from %s: %s\n\n", path, cfg)

	if *target > 0 {
		cfg.Collector.Articles.Target = *target
	}

	sources := cfg.EnabledArticleSources()
	if *source != "" {
		sources = nil

		for _, src := range cfg.Collector.Articles.Sources {
			if strings.EqualFold(src.Name, *source) {
				sources = append(sources, src)
			}
		}
	}

	if len(sources) == 0 {
		log.Fatal("❌ No article sources to collect. Enable a source in the config or pass -source")
	}

	lg := logger.NewLogger(cfg.Logging.Level)
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scraper := crawler.NewScraperWithConfig(&cfg.Collector)
	parser := parsers.NewArticleParser(cfg.Collector.Articles.MinContentChars, cfg.Collector.Articles.MinParagraphChars)
	client := crawler.NewClientWithDeps(scraper, parser, nil)
	pacer := crawler.NewPacer(cfg.Collector.Delay)

	collector := crawler.NewArticleCollector(client, pacer, cfg.Collector.Articles, lg)
	if err := collector.LoadExisting(); err != nil {
		log.Fatalf("❌ Failed to load existing metadata: %v\n", err)
	}

	fmt.Println("📰 TrustMed Article Collector")
	fmt.Printf("Sources: %d | Target: %d | Output: %s\n", len(sources), cfg.Collector.Articles.Target, cfg.Collector.Articles.OutputDir)
	fmt.Printf("Already collected: %d\n\n", len(collector.Articles()))

	stats, err := collector.Run(ctx, sources)
	if err != nil {
		fmt.Printf("⚠️  Collection stopped early: %v\n", err)
	}

	client.URLManager().LogAttemptSummary(lg)

	fmt.Println("\n----------------------------------------------------------------")
	fmt.Println("📊 Summary")
	fmt.Printf("  Saved:       %d\n", stats.Saved)
	fmt.Printf("  Discovered:  %d\n", stats.Discovered)
	fmt.Printf("  Duplicates:  %d\n", stats.Duplicates)
	fmt.Printf("  Too short:   %d\n", stats.TooShort)
	fmt.Printf("  Failed:      %d\n", stats.Failed)
	fmt.Printf("  Total:       %d\n", len(collector.Articles()))
	fmt.Printf("  Metadata:    %s\n", collector.MetadataPath())

	if err != nil {
		os.Exit(1)
	}

	fmt.Println("\n✨ Article collection complete!")
}

func printUsage() {
	fmt.Println("Usage: ./bin/articles [OPTIONS]")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  ./bin/articles -config configs/trustmed.yaml")
	fmt.Println("  ./bin/articles -source CDC -target 50")
}
