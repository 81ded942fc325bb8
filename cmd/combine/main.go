// Package main provides the combine command-line tool for merging forum thread files per area.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"trustmed/internal/config"
	"trustmed/internal/dataset"
)

func main() {
	configFile := flag.String("config", "", "Path to YAML configuration file (default configs/trustmed.yaml)")
	area := flag.String("area", "", "Combine a single area (default: every enabled area)")
	dir := flag.String("dir", "", "Directory holding the thread files (overrides config)")

	flag.Parse()

	cfg, path, err := config.LoadConfigOrDefault(*configFile)
	if err != nil {
		log.Fatalf("❌ Failed to load config %s: %v\n", path, err)
	}

	if *dir == "" {
		*dir = cfg.Collector.Forums.OutputDir
	}

	var areas []string
	if *area != "" {
		areas = []string{*area}
	} else {
		for _, a := range cfg.EnabledForumAreas() {
			areas = append(areas, a.Name)
		}
	}

	if len(areas) == 0 {
		log.Fatal("❌ No areas to combine")
	}

	fmt.Printf("🔗 Combining thread files in: %s\n", *dir)

	failed := 0

	for _, name := range areas {
		fmt.Printf("\n📦 Area: %s\n", name)

		result, err := dataset.Combine(*dir, name)
		if err != nil {
			fmt.Printf("❌ Combine failed: %v\n", err)
			failed++

			continue
		}

		for _, f := range result.Unreadable {
			fmt.Printf("⚠️  Could not read: %s\n", f)
		}

		fmt.Printf("✅ %d files, %d unique threads, %d duplicates dropped\n",
			len(result.Files), len(result.Threads), result.Duplicates)
		fmt.Printf("💾 Saved to: %s\n", dataset.CombinedPath(*dir, name))
	}

	if failed > 0 {
		os.Exit(1)
	}

	fmt.Println("\n✨ Combine complete!")
}
