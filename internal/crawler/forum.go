package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"trustmed/internal/config"
	"trustmed/internal/crawler/parsers"
	"trustmed/internal/dataset"
	"trustmed/internal/logger"
	"trustmed/internal/models"
)

// listingSorts are the subreddit listings collected before searching.
var listingSorts = []string{"hot", "top"}

// maxListingPages bounds pagination of a single listing.
const maxListingPages = 10

// ForumCollector gathers threads for a disease area from public Reddit JSON listings.
type ForumCollector struct {
	client *Client
	pacer  *Pacer
	log    *logger.Logger
	cfg    config.ForumsConfig
	now    func() time.Time

	threads []models.Thread
	seen    map[string]bool
}

// NewForumCollector creates a collector using the forum settings.
func NewForumCollector(client *Client, pacer *Pacer, cfg config.ForumsConfig, log *logger.Logger) *ForumCollector {
	return &ForumCollector{
		client: client,
		pacer:  pacer,
		log:    log,
		cfg:    cfg,
		now:    time.Now,
		seen:   make(map[string]bool),
	}
}

// Threads returns the threads collected so far.
func (fc *ForumCollector) Threads() []models.Thread {
	return fc.threads
}

// CollectArea walks the hot and top listings of every subreddit, then the
// search terms, until the area target is reached.
func (fc *ForumCollector) CollectArea(ctx context.Context, area config.ForumArea) ([]models.Thread, error) {
	start := len(fc.threads)

	full := func() bool {
		return area.Target > 0 && len(fc.threads)-start >= area.Target
	}

	for _, sub := range area.Subreddits {
		for _, sort := range listingSorts {
			if full() {
				break
			}

			if err := fc.collectListing(ctx, sub, sort, full); err != nil {
				if ctx.Err() != nil {
					return fc.threads[start:], err
				}

				fc.log.Warn("Listing failed", "subreddit", sub, "sort", sort, "error", err)
			}
		}

		terms := area.SearchTerms
		if fc.cfg.MaxSearchTerms > 0 && len(terms) > fc.cfg.MaxSearchTerms {
			terms = terms[:fc.cfg.MaxSearchTerms]
		}

		for _, term := range terms {
			if full() {
				break
			}

			if err := fc.collectSearch(ctx, sub, term, full); err != nil {
				if ctx.Err() != nil {
					return fc.threads[start:], err
				}

				fc.log.Warn("Search failed", "subreddit", sub, "term", term, "error", err)
			}
		}
	}

	collected := fc.threads[start:]

	fc.log.Info("Area collected", "area", area.Name, "threads", len(collected))

	return collected, nil
}

func (fc *ForumCollector) collectListing(ctx context.Context, sub, sort string, full func() bool) error {
	after := ""

	for page := 0; page < maxListingPages && !full(); page++ {
		posts, next, err := fc.client.CrawlListing(ctx, fc.ListingURL(sub, sort, after))
		if err != nil {
			return err
		}

		fc.addPosts(ctx, sub, posts, full)

		if next == "" || len(posts) == 0 {
			return nil
		}

		after = next

		if err := fc.pacer.WaitFor(ctx, time.Duration(fc.cfg.PageDelayMs)*time.Millisecond); err != nil {
			return err
		}
	}

	return nil
}

func (fc *ForumCollector) collectSearch(ctx context.Context, sub, term string, full func() bool) error {
	posts, _, err := fc.client.CrawlListing(ctx, fc.SearchURL(sub, term))
	if err != nil {
		return err
	}

	fc.addPosts(ctx, sub, posts, full)

	return fc.pacer.Wait(ctx)
}

// addPosts converts unseen posts to threads and fetches their top-level
// comments. It stops once the area is full, leaving later posts unseen.
func (fc *ForumCollector) addPosts(ctx context.Context, sub string, posts []parsers.Post, full func() bool) {
	for _, p := range posts {
		if full() {
			return
		}

		if p.ID == "" || fc.seen[p.ID] {
			continue
		}

		fc.seen[p.ID] = true

		thread := parsers.PostToThread(p, fc.cfg.BaseURL, fc.now())

		if p.NumComments > 0 && fc.cfg.CommentLimit > 0 {
			comments, err := fc.client.CrawlComments(ctx, fc.CommentsURL(sub, p.ID), fc.cfg.CommentLimit, 0)
			if err != nil {
				fc.log.Debug("Comments unavailable", "thread", p.ID, "error", err)
			} else {
				thread.Comments = comments
			}
		}

		fc.threads = append(fc.threads, thread)

		if p.NumComments > 0 && fc.cfg.CommentLimit > 0 {
			if err := fc.pacer.Wait(ctx); err != nil {
				return
			}
		}
	}
}

// Save writes the collected threads to path and its CSV sibling.
func (fc *ForumCollector) Save(path string) error {
	return dataset.Save(path, fc.threads)
}

// ListingURL builds {base}/r/{sub}/{sort}.json?limit=N[&after=cursor].
func (fc *ForumCollector) ListingURL(sub, sort, after string) string {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(fc.cfg.ListingLimit))

	if sort == "top" {
		q.Set("t", "year")
	}

	if after != "" {
		q.Set("after", after)
	}

	return fmt.Sprintf("%s/r/%s/%s.json?%s", fc.base(), sub, sort, q.Encode())
}

// SearchURL builds a subreddit-restricted relevance search URL.
func (fc *ForumCollector) SearchURL(sub, term string) string {
	q := url.Values{}
	q.Set("q", term)
	q.Set("restrict_sr", "1")
	q.Set("limit", fmt.Sprint(fc.cfg.SearchLimit))
	q.Set("sort", "relevance")

	return fmt.Sprintf("%s/r/%s/search.json?%s", fc.base(), sub, q.Encode())
}

// CommentsURL builds the comments URL of a post.
func (fc *ForumCollector) CommentsURL(sub, id string) string {
	return fmt.Sprintf("%s/r/%s/comments/%s.json?limit=%d", fc.base(), sub, id, fc.cfg.CommentLimit)
}

func (fc *ForumCollector) base() string {
	return strings.TrimRight(fc.cfg.BaseURL, "/")
}

// BackfillStats summarizes a comment backfill run.
type BackfillStats struct {
	Candidates int
	Updated    int
	Failed     int
	Comments   int
}

// CommentBackfill adds nested comments to threads that were saved without any.
type CommentBackfill struct {
	client *Client
	pacer  *Pacer
	log    *logger.Logger
	cfg    config.ForumsConfig
}

// NewCommentBackfill creates a backfill runner.
func NewCommentBackfill(client *Client, pacer *Pacer, cfg config.ForumsConfig, log *logger.Logger) *CommentBackfill {
	return &CommentBackfill{client: client, pacer: pacer, log: log, cfg: cfg}
}

// NeedsComments reports whether a thread should be backfilled.
func NeedsComments(t models.Thread) bool {
	return len(t.Comments) == 0 && t.NumCollectedComments == 0 && t.URL != ""
}

// ThreadCommentsID returns the post id from a thread URL, falling back to
// the thread id.
func ThreadCommentsID(t models.Thread) string {
	if _, rest, ok := strings.Cut(t.URL, "/comments/"); ok {
		if id, _, _ := strings.Cut(rest, "/"); id != "" {
			return id
		}
	}

	return t.ID
}

// Run backfills the threads stored in path, saving progress every SaveEvery
// threads and once more at the end.
func (cb *CommentBackfill) Run(ctx context.Context, path string) (BackfillStats, error) {
	var stats BackfillStats

	threads, err := dataset.ReadThreads(path)
	if err != nil {
		return stats, err
	}

	processed := 0

	for i := range threads {
		if !NeedsComments(threads[i]) {
			continue
		}

		stats.Candidates++

		if err := ctx.Err(); err != nil {
			break
		}

		id := ThreadCommentsID(threads[i])
		u := fmt.Sprintf("%s/comments/%s.json?limit=%d&depth=%d",
			strings.TrimRight(cb.cfg.BaseURL, "/"), id, cb.cfg.BackfillCommentLimit, cb.cfg.ReplyDepth)

		comments, err := cb.client.CrawlComments(ctx, u, cb.cfg.BackfillCommentLimit, cb.cfg.ReplyDepth)
		if err != nil {
			stats.Failed++
			cb.log.Warn("Backfill failed", "thread", id, "error", err)
		} else {
			threads[i].Comments = comments
			threads[i].NumCollectedComments = models.CountComments(comments)
			stats.Updated++
			stats.Comments += threads[i].NumCollectedComments
		}

		processed++
		if cb.cfg.SaveEvery > 0 && processed%cb.cfg.SaveEvery == 0 {
			if err := cb.save(path, threads); err != nil {
				return stats, err
			}

			cb.log.Info("Progress saved", "processed", processed)
		}

		if err := cb.pacer.Wait(ctx); err != nil {
			break
		}
	}

	if err := cb.save(path, threads); err != nil {
		return stats, err
	}

	return stats, nil
}

func (cb *CommentBackfill) save(path string, threads []models.Thread) error {
	if err := dataset.WriteThreads(path, threads); err != nil {
		return err
	}

	csvPath := dataset.CSVPath(path)
	if _, err := os.Stat(csvPath); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return dataset.WriteCSV(csvPath, threads)
}
