// Package main provides the markdown formatter command-line tool that aligns
// the tables of evaluation reports and other markdown files.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"trustmed/internal/formatter"
)

func main() {
	targetPath := flag.String("path", "eval", "Path to file or directory to format")
	write := flag.Bool("write", false, "Write changes to file (default: false, dry-run)")

	flag.Parse()

	fmt.Printf("📂 Scanning path: %s\n", *targetPath)

	if *write {
		fmt.Println("✍️  Write mode ENABLED (files will be modified)")
	} else {
		fmt.Println("👀 Dry-run mode (no changes will be written)")
	}

	fmt.Println()

	count := 0
	changed := 0
	failures := 0

	err := filepath.WalkDir(*targetPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			fmt.Printf("❌ Error accessing path %s: %v\n", path, err)
			failures++

			return nil
		}

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != *targetPath {
				return filepath.SkipDir
			}

			return nil
		}

		if strings.ToLower(filepath.Ext(path)) != ".md" {
			return nil
		}

		count++

		wasChanged, procErr := processFile(path, *write)

		switch {
		case procErr != nil:
			fmt.Printf("❌ Failed to process %s: %v\n", path, procErr)
			failures++
		case wasChanged && *write:
			changed++
			fmt.Printf("✅ Formatted: %s\n", path)
		case wasChanged:
			changed++
			fmt.Printf("📝 Would format: %s\n", path)
		}

		return nil
	})
	if err != nil {
		log.Fatalf("❌ Walk failed: %v\n", err)
	}

	fmt.Printf("\n📊 Markdown files: %d | Changed: %d | Errors: %d\n", count, changed, failures)

	if failures > 0 {
		os.Exit(1)
	}
}

func processFile(path string, write bool) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	original := string(data)
	formatted := formatter.FormatMarkdown(original)

	if formatted == original {
		return false, nil
	}

	if !write {
		return true, nil
	}

	return true, os.WriteFile(path, []byte(formatted), 0644)
}
