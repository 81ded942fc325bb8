// Package main provides the forums command-line tool for collecting patient forum threads.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trustmed/internal/config"
	"trustmed/internal/crawler"
	"trustmed/internal/logger"
	"trustmed/internal/models"
)

func main() {
	configFile := flag.String("config", "", "Path to YAML configuration file (default configs/trustmed.yaml)")
	area := flag.String("area", "", "Collect a single disease area (default: every enabled area)")
	backfill := flag.String("backfill", "", "Thread JSON file whose threads should get their comments fetched")

	flag.Parse()

	cfg, path, err := config.LoadConfigOrDefault(*configFile)
	if err != nil {
		log.Fatalf("❌ Failed to load config %s: %v\n", path, err)
	}

	fmt.Printf("✅ Configuration loaded from %s: %s\n\n", path, cfg)

	lg := logger.NewLogger(cfg.Logging.Level)
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scraper := crawler.NewScraperWithConfig(&cfg.Collector)
	client := crawler.NewClientWithDeps(scraper, nil, nil)
	pacer := crawler.NewPacer(cfg.Collector.Delay)

	if *backfill != "" {
		runBackfill(ctx, client, pacer, cfg, lg, *backfill)
		return
	}

	areas := cfg.EnabledForumAreas()
	if *area != "" {
		a, ok := cfg.ForumArea(*area)
		if !ok {
			log.Fatalf("❌ Unknown area: %s\n", *area)
		}

		areas = []config.ForumArea{a}
	}

	if len(areas) == 0 {
		log.Fatal("❌ No forum areas to collect. Enable an area in the config or pass -area")
	}

	fmt.Println("💬 TrustMed Forum Collector")
	fmt.Printf("Areas: %d | Base URL: %s | Output: %s\n", len(areas), cfg.Collector.Forums.BaseURL, cfg.Collector.Forums.OutputDir)

	failed := 0

	for i, a := range areas {
		fmt.Printf("\n----------------------------------------------------------------\n")
		fmt.Printf("📦 Area %d/%d: %s (%d subreddits, target %d)\n", i+1, len(areas), a.Name, len(a.Subreddits), a.Target)

		collector := crawler.NewForumCollector(client, pacer, cfg.Collector.Forums, lg)

		threads, err := collector.CollectArea(ctx, a)
		if err != nil {
			fmt.Printf("⚠️  Area interrupted: %v\n", err)
		}

		if len(threads) == 0 {
			fmt.Println("⚠️  No threads collected")
			failed++

			if ctx.Err() != nil {
				break
			}

			continue
		}

		outputPath := cfg.ForumOutputPath(a.Name, time.Now())
		if err := collector.Save(outputPath); err != nil {
			fmt.Printf("❌ Save failed: %v\n", err)
			failed++

			continue
		}

		comments := 0
		for _, t := range threads {
			comments += models.CountComments(t.Comments)
		}

		fmt.Printf("✅ Saved %d threads (%d comments) to: %s\n", len(threads), comments, outputPath)

		if ctx.Err() != nil {
			break
		}
	}

	client.URLManager().LogAttemptSummary(lg)

	if failed > 0 {
		fmt.Printf("\n⚠️  %d area(s) produced no output\n", failed)
		os.Exit(1)
	}

	fmt.Println("\n✨ Forum collection complete! Run ./bin/combine to merge the area files.")
}

func runBackfill(ctx context.Context, client *crawler.Client, pacer *crawler.Pacer, cfg *config.Config, lg *logger.Logger, path string) {
	fmt.Printf("🧵 Backfilling comments in: %s\n", path)

	stats, err := crawler.NewCommentBackfill(client, pacer, cfg.Collector.Forums, lg).Run(ctx, path)
	if err != nil {
		log.Fatalf("❌ Backfill failed: %v\n", err)
	}

	fmt.Println("\n----------------------------------------------------------------")
	fmt.Println("📊 Summary")
	fmt.Printf("  Threads without comments: %d\n", stats.Candidates)
	fmt.Printf("  Updated:                  %d\n", stats.Updated)
	fmt.Printf("  Failed:                   %d\n", stats.Failed)
	fmt.Printf("  Comments added:           %d\n", stats.Comments)
}
