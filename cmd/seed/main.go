// Package main provides the seed command-line tool that writes demonstration
// forum threads, so the prepare and upload steps can run without live scraping.
package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"trustmed/internal/config"
	"trustmed/internal/dataset"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
)

func logInfo(msg string) {
	fmt.Printf("%s[SEEDER]%s %s\n", colorGreen, colorReset, msg)
}

func logWarn(msg string) {
	fmt.Printf("%s[SEEDER]%s %s\n", colorYellow, colorReset, msg)
}

func logError(msg string) {
	fmt.Printf("%s[SEEDER]%s %s\n", colorRed, colorReset, msg)
}

func main() {
	configFile := flag.String("config", "", "Path to YAML configuration file (optional)")
	outDir := flag.String("out-dir", "", "Directory for the sample files (default: forums output dir)")
	areas := flag.String("areas", strings.Join(dataset.SampleAreas(), ","), "Comma separated areas to generate")
	count := flag.Int("count", 50, "Threads per area")
	seed := flag.Uint64("seed", 0, "Random seed (0 uses the current time)")

	flag.Parse()

	cfg, path, err := config.LoadConfigOrDefault(*configFile)
	if err != nil {
		logError(fmt.Sprintf("Failed to load config %s: %v", path, err))
		os.Exit(1)
	}

	dir := *outDir
	if dir == "" {
		dir = cfg.Collector.Forums.OutputDir
	}

	if *seed == 0 {
		*seed = uint64(time.Now().UnixNano())
	}

	rng := rand.New(rand.NewPCG(*seed, *seed))
	now := time.Now()
	failed := 0

	logInfo(fmt.Sprintf("Generating %d threads per area into %s (seed %d)", *count, dir, *seed))

	for _, area := range strings.Split(*areas, ",") {
		area = strings.TrimSpace(area)
		if area == "" {
			continue
		}

		threads, err := dataset.SampleThreads(area, *count, rng, now)
		if err != nil {
			logWarn(err.Error())
			failed++

			continue
		}

		out := dataset.SamplePath(dir, area)
		if err := dataset.Save(out, threads); err != nil {
			logError(fmt.Sprintf("Failed to save %s: %v", out, err))
			failed++

			continue
		}

		logInfo(fmt.Sprintf("%s: %d threads -> %s", area, len(threads), out))
	}

	if failed > 0 {
		os.Exit(1)
	}

	logInfo("===========================================")
	logInfo("Seeding complete! Run ./bin/combine next.")
	logInfo("===========================================")
}
