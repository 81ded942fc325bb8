// Package eval scores knowledge base answers offline: it replays a dataset of
// questions, collects answers and retrieved contexts, and asks a judge model
// to grade each one.
package eval

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Dataset errors.
var (
	ErrEmptyDataset    = errors.New("dataset has no items")
	ErrMissingQuestion = errors.New("question is required")
)

// Item is one evaluation case. Answer and Contexts may be recorded ahead of
// time; when both are present the knowledge base is not queried.
type Item struct {
	Question  string   `yaml:"question" json:"question"`
	Reference string   `yaml:"reference,omitempty" json:"reference,omitempty"`
	Answer    string   `yaml:"answer,omitempty" json:"answer,omitempty"`
	Contexts  []string `yaml:"contexts,omitempty" json:"contexts,omitempty"`
}

// Recorded reports whether the item carries its own answer and contexts.
func (i Item) Recorded() bool {
	return strings.TrimSpace(i.Answer) != "" && len(i.Contexts) > 0
}

// LoadDataset reads a YAML list of items.
func LoadDataset(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	var items []Item
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}

	if len(items) == 0 {
		return nil, ErrEmptyDataset
	}

	for i := range items {
		items[i].Question = strings.TrimSpace(items[i].Question)
		if items[i].Question == "" {
			return nil, fmt.Errorf("%w: item[%d]", ErrMissingQuestion, i)
		}
	}

	return items, nil
}
