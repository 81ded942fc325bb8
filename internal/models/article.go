// Package models defines data structures shared by the collectors, normalizer and chat.
package models

// Article represents one authoritative document saved by the article collector.
type Article struct {
	Title       string `json:"title"`
	Source      string `json:"source"`
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	Filepath    string `json:"filepath,omitempty"`
	Topic       string `json:"topic,omitempty"`
	WordCount   int    `json:"word_count"`
	CollectedAt string `json:"collected_at"`
}

// ScrapedPage is the parsed form of an article page before it is saved.
type ScrapedPage struct {
	Title      string
	URL        string
	Content    string
	Paragraphs int
}
