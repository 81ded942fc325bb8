// Package main provides the uploader command-line tool for pushing prepared documents to S3.
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
	"trustmed/internal/logger"
	"trustmed/internal/storage"
)

func main() {
	configFile := flag.String("config", "", "Path to YAML configuration file (optional)")
	source := flag.String("source", "", "Directory to upload (default: prepare output dir)")
	bucket := flag.String("bucket", os.Getenv("TRUSTMED_BUCKET"), "Destination S3 bucket")
	prefix := flag.String("prefix", "", "Optional S3 key prefix, e.g. 'trustmed-ai/'")
	region := flag.String("region", os.Getenv("AWS_REGION"), "AWS region for the S3 client")
	force := flag.Bool("force", false, "Upload every file even when the stored hash matches")
	concurrency := flag.Int("concurrency", 0, "Number of parallel uploads (overrides config)")

	flag.Parse()

	cfg, path, err := config.LoadConfigOrDefault(*configFile)
	if err != nil {
		log.Fatalf("❌ Failed to load config %s: %v\n", path, err)
	}

	up := cfg.Upload
	if *source != "" {
		up.SourceDir = *source
	}
	if *bucket != "" {
		up.Bucket = *bucket
	}
	if *prefix != "" {
		up.Prefix = *prefix
	}
	if *region != "" {
		up.Region = *region
	}
	if *concurrency > 0 {
		up.Concurrency = *concurrency
	}

	if err := up.ValidateUpload(); err != nil {
		fmt.Printf("❌ %v (pass -bucket or set upload.bucket)\n", err)
		flag.PrintDefaults()
		os.Exit(1)
	}

	lg := logger.NewLogger(cfg.Logging.Level)
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lg.Info(fmt.Sprintf("🚀 Uploading %s to s3://%s/%s (region %s)", up.SourceDir, up.Bucket, up.Prefix, up.Region))

	client, err := storage.NewS3Client(ctx, up.Region)
	if err != nil {
		log.Fatalf("❌ %v\n", err)
	}

	start := time.Now()

	result, err := storage.NewUploader(client, up.Bucket, up.Prefix, lg).
		WithConcurrency(up.Concurrency).
		WithForce(*force).
		Upload(ctx, up.SourceDir)
	if err != nil {
		log.Fatalf("❌ Upload failed: %v\n", err)
	}

	for _, uploadErr := range result.Errors {
		fmt.Printf("  ❌ %v\n", uploadErr)
	}

	fmt.Printf("\n📊 [summary] %s (%v)\n", result, time.Since(start).Round(time.Millisecond))

	if result.Failed > 0 {
		os.Exit(1)
	}

	fmt.Println("✅ Upload complete. Run ./bin/synckb to start an ingestion job.")
}
