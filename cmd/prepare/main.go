// Package main provides the prepare command-line tool that turns collected data into upload documents.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"trustmed/internal/config"
	"trustmed/internal/logger"
	"trustmed/internal/normalizer"
	"trustmed/internal/validator"
)

func main() {
	configFile := flag.String("config", "", "Path to YAML configuration file (default configs/trustmed.yaml)")
	output := flag.String("output", "", "Upload directory (overrides config)")
	validateOnly := flag.Bool("validate-only", false, "Only validate an existing upload directory")
	showValidation := flag.Bool("validate", true, "Validate the written documents")

	flag.Parse()

	cfg, path, err := config.LoadConfigOrDefault(*configFile)
	if err != nil {
		log.Fatalf("❌ Failed to load config %s: %v\n", path, err)
	}

	if *output != "" {
		cfg.Prepare.OutputDir = *output
	}

	lg := logger.NewLogger(cfg.Logging.Level)
	defer lg.Sync()

	if !*validateOnly {
		fmt.Println("🧹 TrustMed Prepare")
		fmt.Printf("Articles: %s\n", cfg.MetadataPath())
		fmt.Printf("Forum files: %d\n", len(cfg.ForumFilePaths()))
		fmt.Printf("Output: %s\n\n", cfg.Prepare.OutputDir)

		processor := normalizer.NewProcessor(cfg.Prepare, lg)

		stats, err := processor.Run(cfg.MetadataPath(), cfg.Collector.Articles.OutputDir, cfg.ForumFilePaths())
		if err != nil {
			log.Fatalf("❌ Prepare failed: %v\n", err)
		}

		fmt.Println("----------------------------------------------------------------")
		fmt.Println("📊 Summary")
		fmt.Printf("  Articles written:  %d\n", stats.Articles)
		fmt.Printf("  Threads written:   %d\n", stats.Threads)
		fmt.Printf("  Missing files:     %d\n", stats.MissingFiles)
		fmt.Printf("  Empty articles:    %d\n", stats.EmptyArticles)
		fmt.Printf("  Rejected records:  %d\n", stats.Rejected)
		fmt.Printf("  Manifest entries:  %d (%s)\n", stats.ManifestEntries, processor.ManifestPath())
	}

	if !*showValidation && !*validateOnly {
		fmt.Println("\n✨ Prepare complete!")
		return
	}

	fmt.Println("\n🔍 Validating upload documents...")

	result, err := validator.NewDocumentValidator(cfg.Prepare).ValidateDir(cfg.Prepare.OutputDir)
	if err != nil {
		log.Fatalf("❌ Validation failed: %v\n", err)
	}

	result.PrintWarnings()
	result.PrintErrors()
	fmt.Printf("%s\n", result)

	if !result.IsValid {
		os.Exit(1)
	}

	fmt.Println("\n✨ Prepare complete!")
}
