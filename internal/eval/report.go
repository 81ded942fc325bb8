package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"trustmed/internal/formatter"
)

// ItemResult holds the answer and grades for one question.
type ItemResult struct {
	Question  string             `json:"question"`
	Reference string             `json:"reference,omitempty"`
	Answer    string             `json:"answer,omitempty"`
	Contexts  []string           `json:"contexts,omitempty"`
	Scores    map[string]float64 `json:"scores"`
	Reasons   map[string]string  `json:"reasons,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// Report is the outcome of an evaluation run.
type Report struct {
	GeneratedAt string             `json:"generated_at"`
	Metrics     []string           `json:"metrics"`
	Items       []ItemResult       `json:"items"`
	Means       map[string]float64 `json:"means"`
	Counts      map[string]int     `json:"counts"`
	Failed      int                `json:"failed"`
}

// summarize computes per-metric means over the items that were graded.
func (r *Report) summarize() {
	sums := map[string]float64{}
	r.Counts = map[string]int{}
	r.Means = map[string]float64{}
	r.Failed = 0

	for _, item := range r.Items {
		if item.Error != "" {
			r.Failed++
			continue
		}

		for m, s := range item.Scores {
			sums[m] += s
			r.Counts[m]++
		}
	}

	for m, sum := range sums {
		r.Means[m] = sum / float64(r.Counts[m])
	}
}

// Markdown renders the report as a markdown document with aligned tables.
func (r *Report) Markdown() string {
	var b strings.Builder

	b.WriteString("# TrustMed AI evaluation\n\n")
	fmt.Fprintf(&b, "Generated: %s | Items: %d | Failed: %d\n\n", r.GeneratedAt, len(r.Items), r.Failed)

	b.WriteString("## Summary\n\n")

	rows := make([][]string, 0, len(r.Metrics))
	for _, m := range r.Metrics {
		mean := "n/a"
		if n := r.Counts[m]; n > 0 {
			mean = fmt.Sprintf("%.3f", r.Means[m])
		}

		rows = append(rows, []string{m, mean, fmt.Sprintf("%d", r.Counts[m])})
	}

	b.WriteString(formatter.Table([]string{"Metric", "Mean", "Graded"}, rows))
	b.WriteString("\n\n## Questions\n\n")

	header := append([]string{"#", "Question"}, r.Metrics...)
	rows = rows[:0]

	for i, item := range r.Items {
		row := []string{fmt.Sprintf("%d", i+1), formatter.Truncate(item.Question, 60)}

		for _, m := range r.Metrics {
			switch score, ok := item.Scores[m]; {
			case item.Error != "":
				row = append(row, "error")
			case ok:
				row = append(row, fmt.Sprintf("%.2f", score))
			default:
				row = append(row, "-")
			}
		}

		rows = append(rows, row)
	}

	b.WriteString(formatter.Table(header, rows))
	b.WriteString("\n")

	if failures := r.failures(); len(failures) > 0 {
		b.WriteString("\n## Errors\n\n")
		for _, f := range failures {
			b.WriteString("- " + f + "\n")
		}
	}

	return formatter.FormatMarkdown(b.String())
}

func (r *Report) failures() []string {
	var out []string

	for i, item := range r.Items {
		if item.Error != "" {
			out = append(out, fmt.Sprintf("%d. %s: %s", i+1, item.Question, item.Error))
		}
	}

	return out
}

// Save writes report.json and report.md into dir and returns their paths.
func (r *Report) Save(dir string) (string, string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal report: %w", err)
	}

	jsonPath := filepath.Join(dir, "report.json")
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return "", "", fmt.Errorf("failed to write report: %w", err)
	}

	mdPath := filepath.Join(dir, "report.md")
	if err := os.WriteFile(mdPath, []byte(r.Markdown()), 0644); err != nil {
		return "", "", fmt.Errorf("failed to write report: %w", err)
	}

	return jsonPath, mdPath, nil
}
