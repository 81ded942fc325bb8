// Package manifest records which upload object belongs to which source page
// so citations can point at the original article or thread.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"trustmed/internal/models"
)

// ErrDuplicateKey is returned when two documents map to the same object key.
var ErrDuplicateKey = errors.New("duplicate manifest key")

// Builder accumulates entries while the upload directory is prepared.
type Builder struct {
	mu      sync.Mutex
	entries map[string]models.ManifestEntry
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{entries: make(map[string]models.ManifestEntry)}
}

// Reset drops accumulated entries and removes a previous manifest file.
func (b *Builder) Reset(manifestPath string) error {
	b.mu.Lock()
	b.entries = make(map[string]models.ManifestEntry)
	b.mu.Unlock()

	if err := os.Remove(manifestPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove manifest: %w", err)
	}

	return nil
}

// Add records an entry. Keys use forward slashes relative to the upload root.
func (b *Builder) Add(entry models.ManifestEntry) error {
	entry.Key = filepath.ToSlash(entry.Key)

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.entries[entry.Key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, entry.Key)
	}

	b.entries[entry.Key] = entry

	return nil
}

// Len returns the number of entries.
func (b *Builder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.entries)
}

// Entries returns the entries sorted by key.
func (b *Builder) Entries() []models.ManifestEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]models.ManifestEntry, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })

	return out
}

// Write stores the sorted entries as indented JSON.
func (b *Builder) Write(manifestPath string) error {
	data, err := json.MarshalIndent(b.Entries(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(manifestPath), 0755); err != nil {
		return fmt.Errorf("failed to create manifest dir: %w", err)
	}

	if err := os.WriteFile(manifestPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return nil
}

// Load reads a manifest file.
func Load(manifestPath string) ([]models.ManifestEntry, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var entries []models.ManifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	return entries, nil
}

// Index resolves object keys and URIs back to manifest entries.
type Index struct {
	byKey map[string]models.ManifestEntry
}

// NewIndex indexes entries by key and, when prefix is set, by prefix + key.
func NewIndex(entries []models.ManifestEntry, prefix string) *Index {
	idx := &Index{byKey: make(map[string]models.ManifestEntry, len(entries)*2)}
	prefix = strings.Trim(prefix, "/")

	for _, e := range entries {
		key := strings.TrimLeft(e.Key, "/")
		idx.byKey[key] = e

		if prefix != "" {
			idx.byKey[prefix+"/"+key] = e
		}
	}

	return idx
}

// LoadIndex reads a manifest and indexes it. A missing file yields an
// empty index.
func LoadIndex(manifestPath, prefix string) (*Index, error) {
	entries, err := Load(manifestPath)
	if errors.Is(err, os.ErrNotExist) {
		return NewIndex(nil, prefix), nil
	}

	if err != nil {
		return nil, err
	}

	return NewIndex(entries, prefix), nil
}

// Len returns the number of indexed keys.
func (idx *Index) Len() int {
	return len(idx.byKey)
}

// Lookup finds the entry for an object key or an s3://bucket/key URI.
func (idx *Index) Lookup(keyOrURI string) (models.ManifestEntry, bool) {
	if idx == nil {
		return models.ManifestEntry{}, false
	}

	e, ok := idx.byKey[ObjectKey(keyOrURI)]

	return e, ok
}

// ObjectKey strips the scheme and bucket from an S3 URI and returns the key.
func ObjectKey(keyOrURI string) string {
	u, err := url.Parse(keyOrURI)
	if err == nil && u.Scheme != "" && u.Host != "" {
		return strings.TrimLeft(u.Path, "/")
	}

	return strings.TrimLeft(keyOrURI, "/")
}

// BaseName returns the file name of an object key or URI.
func BaseName(keyOrURI string) string {
	return path.Base(ObjectKey(keyOrURI))
}
