// Package main provides the unified worker command that combines preparing, uploading and syncing the knowledge base.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trustmed/internal/config"
	"trustmed/internal/dataset"
	"trustmed/internal/kb"
	"trustmed/internal/logger"
	"trustmed/internal/normalizer"
	"trustmed/internal/storage"
	"trustmed/internal/validator"
)

func main() {
	// 1. Define Command-Line Flags
	// ---------------------------
	configFile := flag.String("config", "", "Path to YAML configuration file (default configs/trustmed.yaml)")
	bucket := flag.String("bucket", os.Getenv("TRUSTMED_BUCKET"), "Destination S3 bucket (overrides config)")
	kbID := flag.String("kb-id", os.Getenv("BEDROCK_KB_ID"), "Knowledge Base ID (overrides config)")
	dataSourceID := flag.String("data-source-id", os.Getenv("BEDROCK_DATA_SOURCE_ID"), "Data Source ID (overrides config)")
	combine := flag.Bool("combine", true, "Merge the forum thread files of every enabled area first")
	skipSync := flag.Bool("skip-sync", false, "Stop after the upload")
	force := flag.Bool("force", false, "Upload every file even when unchanged")
	wait := flag.Bool("wait", true, "Wait for the ingestion job to finish")

	flag.Parse()

	cfg, path, err := config.LoadConfigOrDefault(*configFile)
	if err != nil {
		fmt.Printf("❌ Failed to load config %s: %v\n", path, err)
		os.Exit(1)
	}

	if *bucket != "" {
		cfg.Upload.Bucket = *bucket
	}
	if *kbID != "" {
		cfg.KnowledgeBase.ID = *kbID
	}
	if *dataSourceID != "" {
		cfg.KnowledgeBase.DataSourceID = *dataSourceID
	}

	// Initialize Logger
	log := logger.NewLogger(cfg.Logging.Level)
	defer log.Sync()

	if err := cfg.Upload.ValidateUpload(); err != nil {
		log.Error(fmt.Sprintf("❌ %v", err))
		os.Exit(1)
	}

	if !*skipSync {
		if err := cfg.KnowledgeBase.ValidateSync(); err != nil {
			log.Error(fmt.Sprintf("❌ %v (use -skip-sync to only upload)", err))
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("🚀 Starting TrustMed Worker Pipeline")
	log.Info(fmt.Sprintf("📍 Config: %s", path))
	log.Info(fmt.Sprintf("🎯 Target: s3://%s/%s", cfg.Upload.Bucket, cfg.Upload.Prefix))

	startTime := time.Now()

	// 2. Combine forum files
	// ----------------------
	if *combine {
		log.Info("Phase 1: Combining forum threads...")

		for _, area := range cfg.EnabledForumAreas() {
			result, err := dataset.Combine(cfg.Collector.Forums.OutputDir, area.Name)
			if err != nil {
				log.Warn(fmt.Sprintf("⚠️  Combine skipped for %s: %v", area.Name, err))
				continue
			}

			log.Info(fmt.Sprintf("✅ %s: %d threads from %d files", area.Name, len(result.Threads), len(result.Files)))
		}
	}

	// 3. Processing (Prepare & Validate)
	// ----------------------------------
	log.Info("Phase 2: Preparing upload documents...")

	processStart := time.Now()

	stats, err := normalizer.NewProcessor(cfg.Prepare, log).Run(cfg.MetadataPath(), cfg.Collector.Articles.OutputDir, cfg.ForumFilePaths())
	if err != nil {
		log.Error(fmt.Sprintf("❌ Prepare failed: %v", err))
		os.Exit(1)
	}

	log.Info(fmt.Sprintf("✅ Wrote %d articles and %d threads in %v", stats.Articles, stats.Threads, time.Since(processStart)))

	validation, err := validator.NewDocumentValidator(cfg.Prepare).ValidateDir(cfg.Prepare.OutputDir)
	if err != nil {
		log.Error(fmt.Sprintf("❌ Validation failed: %v", err))
		os.Exit(1)
	}

	log.Info(validation.String())

	if !validation.IsValid {
		validation.PrintErrors()
		os.Exit(1)
	}

	// 4. Synchronization (Uploader)
	// -----------------------------
	log.Info("Phase 3: Uploading to S3...")

	client, err := storage.NewS3Client(ctx, cfg.Upload.Region)
	if err != nil {
		log.Error(fmt.Sprintf("❌ %v", err))
		os.Exit(1)
	}

	upload, err := storage.NewUploader(client, cfg.Upload.Bucket, cfg.Upload.Prefix, log).
		WithConcurrency(cfg.Upload.Concurrency).
		WithForce(*force).
		Upload(ctx, cfg.Upload.SourceDir)
	if err != nil {
		log.Error(fmt.Sprintf("❌ Upload failed: %v", err))
		os.Exit(1)
	}

	log.Info(fmt.Sprintf("✅ %s", upload))

	// 5. Ingestion (Knowledge Base sync)
	// ----------------------------------
	var job *kb.Job

	if !*skipSync && upload.Uploaded > 0 {
		log.Info("Phase 4: Syncing knowledge base...")

		awsCfg, err := storage.LoadAWSConfig(ctx, cfg.KnowledgeBase.Region)
		if err != nil {
			log.Error(fmt.Sprintf("❌ %v", err))
			os.Exit(1)
		}

		syncer := kb.NewSyncer(kb.NewIngestionClient(awsCfg), cfg.KnowledgeBase.ID, cfg.KnowledgeBase.DataSourceID, log)

		job, err = syncer.Start(ctx)
		if err != nil {
			log.Error(fmt.Sprintf("❌ Failed to start ingestion job: %v", err))
			os.Exit(1)
		}

		if *wait {
			job, err = syncer.Wait(ctx, job.ID, time.Duration(cfg.KnowledgeBase.PollSeconds)*time.Second)
			if err != nil {
				log.Error(fmt.Sprintf("❌ %v", err))
				os.Exit(1)
			}
		}
	} else if upload.Uploaded == 0 {
		log.Info("ℹ️  Nothing changed, ingestion job not started")
	}

	// 6. Final Report
	// ---------------
	log.Info("✨ Pipeline Complete!")
	fmt.Println("\n------------------------------------------------")
	fmt.Printf("📊 Summary Report\n")
	fmt.Println("------------------------------------------------")
	fmt.Printf("Documents: %d articles, %d threads\n", stats.Articles, stats.Threads)
	fmt.Printf("Upload: %s\n", upload)

	if job != nil {
		fmt.Printf("Ingestion: %s\n", job)
	}

	fmt.Printf("Total Duration: %v\n", time.Since(startTime))

	if len(upload.Errors) > 0 {
		fmt.Printf("⚠️  Errors encountered: %d\n", len(upload.Errors))

		for _, e := range upload.Errors {
			fmt.Printf("  - %v\n", e)
		}
	}

	fmt.Println("------------------------------------------------")
}
