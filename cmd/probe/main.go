// Package main provides the probe command-line tool that checks how easily
// candidate article sources can be scraped.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"trustmed/internal/config"
	"trustmed/internal/crawler"
	"trustmed/internal/crawler/parsers"
	"trustmed/internal/formatter"
	"trustmed/pkg/utils"
)

// candidate is a named page to probe.
type candidate struct {
	name string
	url  string
}

var defaultCandidates = []candidate{
	{"MedicalNewsToday", "https://www.medicalnewstoday.com/articles/317483"},
	{"MedlinePlus", "https://medlineplus.gov/diabetestype2.html"},
	{"CDC", "https://www.cdc.gov/diabetes/basics/type2.html"},
	{"Medical Xpress", "https://medicalxpress.com/search/?search=diabetes"},
	{"News-Medical", "https://www.news-medical.net/health/What-is-Diabetes.aspx"},
	{"WHO", "https://www.who.int/news-room/fact-sheets/detail/diabetes"},
	{"Medscape", "https://www.medscape.com/viewarticle/diabetes"},
	{"BMJ", "https://www.bmj.com/search/diabetes"},
}

func main() {
	configFile := flag.String("config", "", "Probe the first URL of every configured article source")
	delay := flag.Duration("delay", time.Second, "Pause between requests")
	minParagraphs := flag.Int("min-paragraphs", 5, "Paragraph count a page needs to be considered easy to scrape")

	flag.Usage = func() {
		fmt.Println("Usage: ./bin/probe [OPTIONS] [URL...]")
		fmt.Println()
		flag.PrintDefaults()
	}

	flag.Parse()

	cfg := &config.Config{}
	candidates := defaultCandidates

	if *configFile != "" {
		loaded, err := config.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("❌ Failed to load config: %v\n", err)
		}

		cfg = loaded
		candidates = fromSources(cfg.Collector.Articles.Sources)
	}

	if flag.NArg() > 0 {
		candidates = fromArgs(flag.Args())
	}

	cfg.ApplyDefaults()
	cfg.Collector.Retry.MaxAttempts = 1
	cfg.Collector.Retry.TimeoutSec = 10

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scraper := crawler.NewScraperWithConfig(&cfg.Collector)

	fmt.Println("Testing medical websites for scrapability...")
	fmt.Println()

	rows := make([][]string, 0, len(candidates))
	easy := 0

	for i, c := range candidates {
		if ctx.Err() != nil {
			break
		}

		if i > 0 {
			if err := utils.SleepContext(ctx, *delay); err != nil {
				break
			}
		}

		fmt.Printf("⏳ Testing %s...\n", c.name)

		row, ok := probe(ctx, scraper, c, *minParagraphs)
		if ok {
			easy++
		}

		rows = append(rows, row)
	}

	fmt.Println()
	fmt.Println(formatter.Table(
		[]string{"Source", "Status", "Text length", "Paragraphs", "Article", "Title", "Time", "Result"},
		rows,
	))
	fmt.Printf("\n📊 %d/%d sources look easy to scrape\n", easy, len(rows))
}

func probe(ctx context.Context, scraper *crawler.Scraper, c candidate, minParagraphs int) ([]string, bool) {
	content, status, duration, err := scraper.FetchWithMetrics(ctx, c.url, nil)
	elapsed := fmt.Sprintf("%.2fs", duration.Seconds())

	if err != nil {
		code := "-"
		if status > 0 {
			code = fmt.Sprint(status)
		}

		fmt.Printf("  ❌ Error: %v\n", err)

		return []string{c.name, code, "-", "-", "-", "-", elapsed, "error"}, false
	}

	stats, err := parsers.InspectPage(content)
	if err != nil {
		fmt.Printf("  ❌ Error: %v\n", err)
		return []string{c.name, fmt.Sprint(status), "-", "-", "-", "-", elapsed, "unparsable"}, false
	}

	ok := stats.Paragraphs >= minParagraphs

	result := "hard"
	if ok {
		result = "easy"
	}

	container := "-"
	switch {
	case stats.HasArticle:
		container = "article"
	case stats.HasMain:
		container = "main"
	}

	fmt.Printf("  ✅ Status: %d | Text length: %d | Paragraphs: %d\n", status, stats.TextLength, stats.Paragraphs)

	return []string{
		c.name,
		fmt.Sprint(status),
		fmt.Sprint(stats.TextLength),
		fmt.Sprint(stats.Paragraphs),
		container,
		formatter.Truncate(stats.Title, 40),
		elapsed,
		result,
	}, ok
}

func fromSources(sources []config.ArticleSource) []candidate {
	var out []candidate

	for _, src := range sources {
		urls := src.URLs
		if len(urls) == 0 {
			urls = src.DiscoveryURLs
		}

		if len(urls) == 0 {
			continue
		}

		out = append(out, candidate{name: src.Name, url: urls[0]})
	}

	return out
}

func fromArgs(args []string) []candidate {
	out := make([]candidate, 0, len(args))

	for _, raw := range args {
		name := raw
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			name = strings.TrimPrefix(u.Host, "www.")
		}

		out = append(out, candidate{name: name, url: raw})
	}

	return out
}
