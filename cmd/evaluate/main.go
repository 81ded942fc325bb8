// Package main provides the evaluate command-line tool that scores knowledge
// base answers with an LLM judge and writes a JSON and markdown report.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"trustmed/internal/config"
	"trustmed/internal/eval"
	"trustmed/internal/formatter"
	"trustmed/internal/kb"
	"trustmed/internal/logger"
	"trustmed/internal/manifest"
	"trustmed/internal/storage"
)

func main() {
	configFile := flag.String("config", "", "Path to YAML configuration file (optional)")
	datasetFile := flag.String("dataset", "", "YAML evaluation dataset (overrides evaluation.dataset)")
	outDir := flag.String("out", "", "Report directory (overrides evaluation.output_dir)")
	judgeModel := flag.String("judge-model", "", "Bedrock model ID used as judge (overrides evaluation.judge_model_id)")
	metricList := flag.String("metrics", "", "Comma separated metrics (overrides evaluation.metrics)")
	limit := flag.Int("limit", 0, "Only evaluate the first N questions")

	flag.Parse()

	cfg, path, err := config.LoadConfigOrDefault(*configFile)
	if err != nil {
		log.Fatalf("❌ Failed to load config %s: %v\n", path, err)
	}

	ev := cfg.Evaluation
	if *datasetFile != "" {
		ev.Dataset = *datasetFile
	}
	if *outDir != "" {
		ev.OutputDir = *outDir
	}
	if *judgeModel != "" {
		ev.JudgeModelID = *judgeModel
	}
	if *metricList != "" {
		ev.Metrics = nil
		for _, m := range strings.Split(*metricList, ",") {
			if m = strings.TrimSpace(m); m != "" {
				ev.Metrics = append(ev.Metrics, m)
			}
		}
	}

	if ev.Dataset == "" {
		log.Fatal("❌ No dataset given. Pass -dataset or set evaluation.dataset")
	}

	k := cfg.KnowledgeBase
	if v := os.Getenv("BEDROCK_KB_ID"); v != "" {
		k.ID = v
	}
	if v := os.Getenv("BEDROCK_MODEL_ARN"); v != "" {
		k.ModelARN = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		k.Region = v
	}

	lg := logger.NewLogger(cfg.Logging.Level)
	defer lg.Sync()

	items, err := eval.LoadDataset(ev.Dataset)
	if err != nil {
		log.Fatalf("❌ %v\n", err)
	}

	if *limit > 0 && *limit < len(items) {
		items = items[:*limit]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := storage.LoadAWSConfig(ctx, k.Region)
	if err != nil {
		log.Fatalf("❌ %v\n", err)
	}

	index, err := manifest.LoadIndex(cfg.ManifestPath(), cfg.Upload.Prefix)
	if err != nil {
		lg.Warn("Manifest unreadable, citations will show object names", "error", err)
		index = manifest.NewIndex(nil, cfg.Upload.Prefix)
	}

	answerer := kb.NewAnswerer(kb.NewRuntimeClient(awsCfg), kb.Settings{
		KnowledgeBaseID: k.ID,
		ModelARN:        k.ModelARN,
		NumberOfResults: k.NumberOfResults,
	}, index, lg)

	judge := eval.NewJudge(eval.NewConverseClient(awsCfg), ev.JudgeModelID)

	evaluator, err := eval.NewEvaluator(answerer, judge, ev.Metrics, lg)
	if err != nil {
		log.Fatalf("❌ %v\n", err)
	}

	fmt.Println("🧪 TrustMed AI Evaluation")
	fmt.Printf("Dataset: %s (%d questions)\n", ev.Dataset, len(items))
	fmt.Printf("Judge: %s\n", ev.JudgeModelID)
	fmt.Printf("Metrics: %s\n\n", strings.Join(ev.Metrics, ", "))

	report, err := evaluator.Run(ctx, items)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("❌ Evaluation failed: %v\n", err)
	}

	if err != nil {
		fmt.Println("⚠️  Interrupted, writing partial report")
	}

	jsonPath, mdPath, saveErr := report.Save(ev.OutputDir)
	if saveErr != nil {
		log.Fatalf("❌ %v\n", saveErr)
	}

	printSummary(report)

	fmt.Printf("\n💾 Report: %s\n💾 Markdown: %s\n", jsonPath, mdPath)

	if report.Failed > 0 {
		fmt.Printf("⚠️  %d question(s) failed\n", report.Failed)
	}
}

func printSummary(report *eval.Report) {
	metrics := append([]string(nil), report.Metrics...)
	sort.Strings(metrics)

	rows := make([][]string, 0, len(metrics))
	for _, m := range metrics {
		mean := "n/a"
		if report.Counts[m] > 0 {
			mean = fmt.Sprintf("%.3f", report.Means[m])
		}

		rows = append(rows, []string{m, mean, fmt.Sprint(report.Counts[m])})
	}

	fmt.Println("\n----------------------------------------------------------------")
	fmt.Println("📊 Summary")
	fmt.Println(formatter.Table([]string{"Metric", "Mean", "Graded"}, rows))
}
