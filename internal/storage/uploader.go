package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"trustmed/internal/logger"
	"trustmed/pkg/metadata"
)

// Uploader errors.
var (
	ErrMissingBucket = errors.New("bucket is required")
	ErrNoFiles       = errors.New("no files to upload")
)

const (
	defaultConcurrency = 5
	defaultContentType = "text/plain"

	// HashMetadataKey is the user metadata key holding the body's SHA-256.
	HashMetadataKey = "sha256"
)

// Uploader pushes every file below a directory to a bucket.
type Uploader struct {
	client      Client
	bucket      string
	prefix      string
	concurrency int
	force       bool
	logger      *logger.Logger
}

// NewUploader creates a new uploader instance.
func NewUploader(client Client, bucket, prefix string, log *logger.Logger) *Uploader {
	return &Uploader{
		client:      client,
		bucket:      bucket,
		prefix:      strings.Trim(prefix, "/"),
		concurrency: defaultConcurrency,
		logger:      log,
	}
}

// WithConcurrency sets how many uploads run at once.
func (u *Uploader) WithConcurrency(n int) *Uploader {
	if n > 0 {
		u.concurrency = n
	}

	return u
}

// WithForce uploads objects even when the stored hash matches.
func (u *Uploader) WithForce(force bool) *Uploader {
	u.force = force
	return u
}

// UploadResult contains the results of an upload operation.
type UploadResult struct {
	Errors   []error
	Bucket   string
	Prefix   string
	Uploaded int
	Skipped  int
	Failed   int
}

// String summarises the run.
func (r *UploadResult) String() string {
	prefix := r.Prefix
	if prefix == "" {
		prefix = "(root)"
	}

	return fmt.Sprintf("Uploaded: %d | Skipped: %d | Failed: %d | Bucket: %s | Prefix: %s",
		r.Uploaded, r.Skipped, r.Failed, r.Bucket, prefix)
}

// ObjectKey maps a path relative to the upload root to its object key.
func ObjectKey(prefix, rel string) string {
	rel = filepath.ToSlash(rel)

	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return rel
	}

	return prefix + "/" + rel
}

// ContentType guesses the content type from the file extension.
func ContentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}

	return defaultContentType
}

// ListFiles returns the regular files below root as slash-separated
// relative paths, sorted.
func ListFiles(root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}

		files = append(files, filepath.ToSlash(rel))

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	sort.Strings(files)

	return files, nil
}

// Upload sends every file below root to the bucket.
func (u *Uploader) Upload(ctx context.Context, root string) (*UploadResult, error) {
	if u.bucket == "" {
		return nil, ErrMissingBucket
	}

	files, err := ListFiles(root)
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFiles, root)
	}

	result := &UploadResult{Bucket: u.bucket, Prefix: u.prefix}

	u.logger.Info(fmt.Sprintf("Starting upload of %d files...", len(files)))

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, u.concurrency)
	)

	for _, rel := range files {
		wg.Add(1)

		go func(rel string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			uploaded, err := u.uploadFile(ctx, root, rel)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err != nil:
				u.logger.Error(fmt.Sprintf("Failed to upload %s: %v", rel, err))
				result.Errors = append(result.Errors, err)
				result.Failed++
			case uploaded:
				result.Uploaded++
			default:
				result.Skipped++
			}

			total := result.Uploaded + result.Skipped + result.Failed
			if total%25 == 0 || total == len(files) {
				u.logger.Info(fmt.Sprintf("Upload progress: %d/%d", total, len(files)))
			}
		}(rel)
	}

	wg.Wait()

	return result, nil
}

// uploadFile puts one object and reports whether it was sent.
func (u *Uploader) uploadFile(ctx context.Context, root, rel string) (bool, error) {
	body, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", rel, err)
	}

	key := ObjectKey(u.prefix, rel)
	hash := metadata.CalculateHash(string(body))

	if !u.force {
		unchanged, err := u.unchanged(ctx, key, hash)
		if err != nil {
			return false, err
		}

		if unchanged {
			u.logger.Debug("Unchanged object", "key", key)
			return false, nil
		}
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(ContentType(rel)),
		Metadata:    map[string]string{HashMetadataKey: hash},
	})
	if err != nil {
		return false, fmt.Errorf("failed to put s3://%s/%s: %w", u.bucket, key, err)
	}

	u.logger.Debug("Uploaded", "key", key)

	return true, nil
}

func (u *Uploader) unchanged(ctx context.Context, key, hash string) (bool, error) {
	out, err := u.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}

		if IsForbidden(err) {
			u.logger.Debug("Cannot head object, uploading anyway", "key", key, "error", err)
			return false, nil
		}

		return false, fmt.Errorf("failed to head s3://%s/%s: %w", u.bucket, key, err)
	}

	return out.Metadata[HashMetadataKey] == hash, nil
}
