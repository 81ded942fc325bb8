package models

// Document types stored in the manifest.
const (
	DocumentAuthoritative = "authoritative"
	DocumentForum         = "forum"
)

// ManifestEntry describes one uploaded document so citations can be shown
// with a readable title and the canonical page instead of the object URI.
type ManifestEntry struct {
	Key          string `json:"key"`
	Type         string `json:"type"`
	CanonicalURL string `json:"canonical_url"`
	Title        string `json:"title"`
	Source       string `json:"source"`
	CollectedAt  string `json:"collected_at,omitempty"`
	Topic        string `json:"topic,omitempty"`
	ThreadID     string `json:"thread_id,omitempty"`
}
