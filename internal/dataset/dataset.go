// Package dataset reads, writes and merges the forum thread files produced by
// the collectors.
package dataset

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"trustmed/internal/models"
)

// ErrNoFiles indicates that no thread files matched.
var ErrNoFiles = errors.New("no thread files found")

// csvHeader is the column order of thread summaries.
var csvHeader = []string{
	"id", "title", "author", "subreddit", "created_utc", "score",
	"num_comments", "url", "selftext", "upvote_ratio", "num_collected_comments",
}

// ReadThreads loads a JSON array of threads.
func ReadThreads(path string) ([]models.Thread, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var threads []models.Thread
	if err := json.Unmarshal(data, &threads); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return threads, nil
}

// WriteThreads saves threads as an indented JSON array.
func WriteThreads(path string, threads []models.Thread) error {
	if threads == nil {
		threads = []models.Thread{}
	}

	data, err := json.MarshalIndent(threads, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// WriteCSV saves one summary row per thread.
func WriteCSV(path string, threads []models.Thread) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, t := range threads {
		s := t.Summary()

		row := []string{
			s.ID,
			s.Title,
			s.Author,
			s.Subreddit,
			s.CreatedUTC,
			strconv.Itoa(s.Score),
			strconv.Itoa(s.NumComments),
			s.URL,
			s.Selftext,
			strconv.FormatFloat(s.UpvoteRatio, 'f', -1, 64),
			strconv.Itoa(s.NumCollectedComments),
		}

		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Flush()

	return w.Error()
}

// CSVPath returns the CSV sibling of a JSON thread file.
func CSVPath(jsonPath string) string {
	return strings.TrimSuffix(jsonPath, filepath.Ext(jsonPath)) + ".csv"
}

// Save writes the JSON file and its CSV summary.
func Save(jsonPath string, threads []models.Thread) error {
	if err := WriteThreads(jsonPath, threads); err != nil {
		return err
	}

	return WriteCSV(CSVPath(jsonPath), threads)
}

// CombinedPath is where Combine writes the merged file of an area.
func CombinedPath(dir, area string) string {
	return filepath.Join(dir, area+"_threads_combined.json")
}

// SourceFiles lists the per-run thread files of an area, oldest name first.
// Incremental and combined files are skipped.
func SourceFiles(dir, area string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, area+"_threads_*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list thread files: %w", err)
	}

	var files []string

	for _, m := range matches {
		base := filepath.Base(m)
		if strings.Contains(base, "incremental") || strings.Contains(base, "combined") {
			continue
		}

		files = append(files, m)
	}

	sort.Strings(files)

	return files, nil
}

// CombineResult summarises a merge.
type CombineResult struct {
	Files      []string
	Threads    []models.Thread
	Duplicates int
	Unreadable []string
}

// Combine merges the thread files of an area, keeping the first copy of each
// thread ID, and writes the combined JSON and CSV.
func Combine(dir, area string) (*CombineResult, error) {
	files, err := SourceFiles(dir, area)
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s in %s", ErrNoFiles, area, dir)
	}

	result := &CombineResult{Files: files}
	seen := make(map[string]bool)

	for _, file := range files {
		threads, err := ReadThreads(file)
		if err != nil {
			result.Unreadable = append(result.Unreadable, file)
			continue
		}

		for _, t := range threads {
			if t.ID == "" {
				continue
			}

			if seen[t.ID] {
				result.Duplicates++
				continue
			}

			seen[t.ID] = true
			result.Threads = append(result.Threads, t)
		}
	}

	if err := Save(CombinedPath(dir, area), result.Threads); err != nil {
		return result, err
	}

	return result, nil
}
