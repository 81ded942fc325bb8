// Package main provides the synckb command-line tool for starting a knowledge base ingestion job.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trustmed/internal/config"
	"trustmed/internal/kb"
	"trustmed/internal/logger"
	"trustmed/internal/storage"
)

func main() {
	configFile := flag.String("config", "", "Path to YAML configuration file (optional)")
	kbID := flag.String("kb-id", os.Getenv("BEDROCK_KB_ID"), "Knowledge Base ID (default: BEDROCK_KB_ID env var)")
	dataSourceID := flag.String("data-source-id", os.Getenv("BEDROCK_DATA_SOURCE_ID"), "Data Source ID attached to the KB (default: BEDROCK_DATA_SOURCE_ID env var)")
	region := flag.String("region", os.Getenv("AWS_REGION"), "AWS region for Bedrock (default: AWS_REGION env var)")
	wait := flag.Bool("wait", false, "Poll the ingestion job until it finishes")
	pollSeconds := flag.Int("poll-seconds", 0, "Delay between status checks when -wait is set")

	flag.Parse()

	cfg, path, err := config.LoadConfigOrDefault(*configFile)
	if err != nil {
		log.Fatalf("❌ Failed to load config %s: %v\n", path, err)
	}

	k := cfg.KnowledgeBase
	if *kbID != "" {
		k.ID = *kbID
	}
	if *dataSourceID != "" {
		k.DataSourceID = *dataSourceID
	}
	if *region != "" {
		k.Region = *region
	}
	if *pollSeconds > 0 {
		k.PollSeconds = *pollSeconds
	}

	lg := logger.NewLogger(cfg.Logging.Level)
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := storage.LoadAWSConfig(ctx, k.Region)
	if err != nil {
		log.Fatalf("❌ %v\n", err)
	}

	syncer := kb.NewSyncer(kb.NewIngestionClient(awsCfg), k.ID, k.DataSourceID, lg)

	job, err := syncer.Start(ctx)
	if err != nil {
		var missing *kb.MissingConfigError
		if errors.As(err, &missing) {
			log.Fatalf("❌ %v (use -kb-id / -data-source-id)\n", err)
		}

		log.Fatalf("❌ Failed to start ingestion job: %v\n", err)
	}

	fmt.Printf("🚀 Started ingestion job %s (status: %s)\n", job.ID, job.Status)

	if !*wait {
		return
	}

	fmt.Printf("⏳ Waiting for job %s (polling every %ds)...\n", job.ID, k.PollSeconds)

	job, err = syncer.Wait(ctx, job.ID, time.Duration(k.PollSeconds)*time.Second)
	if job != nil {
		fmt.Printf("📊 %s\n", job)
	}

	if err != nil {
		log.Fatalf("❌ %v\n", err)
	}

	fmt.Printf("✅ Job %s completed successfully.\n", job.ID)
}
