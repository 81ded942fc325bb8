package parsers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"trustmed/internal/models"
)

// ErrUnexpectedPayload indicates JSON that is not a Reddit listing.
var ErrUnexpectedPayload = errors.New("unexpected reddit payload")

// DeletedAuthor is used when a post or comment has no author.
const DeletedAuthor = "[deleted]"

// Listing is the envelope Reddit wraps every collection in.
type Listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string  `json:"after"`
		Children []Thing `json:"children"`
	} `json:"data"`
}

// Thing is a typed Reddit object (t1 comment, t3 post, more, ...).
type Thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Post is the subset of a t3 object the collector keeps.
type Post struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	CreatedUTC  float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	Permalink   string  `json:"permalink"`
	URL         string  `json:"url"`
	Selftext    string  `json:"selftext"`
	UpvoteRatio float64 `json:"upvote_ratio"`
}

type rawComment struct {
	Author     string          `json:"author"`
	Body       string          `json:"body"`
	Score      int             `json:"score"`
	CreatedUTC float64         `json:"created_utc"`
	Replies    json.RawMessage `json:"replies"`
}

// ParseListing decodes a listing page and returns its posts and the cursor
// for the next page ("" when there is none).
func ParseListing(data []byte) ([]Post, string, error) {
	var listing Listing
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrUnexpectedPayload, err)
	}

	if listing.Kind != "" && listing.Kind != "Listing" {
		return nil, "", fmt.Errorf("%w: kind %q", ErrUnexpectedPayload, listing.Kind)
	}

	posts := make([]Post, 0, len(listing.Data.Children))

	for _, child := range listing.Data.Children {
		if child.Kind != "t3" {
			continue
		}

		var p Post
		if err := json.Unmarshal(child.Data, &p); err != nil {
			return nil, "", fmt.Errorf("%w: post: %w", ErrUnexpectedPayload, err)
		}

		posts = append(posts, p)
	}

	return posts, listing.Data.After, nil
}

// ParseComments decodes a comments page (a two element array of listings,
// the post and its comments). At most limit top-level comments are kept and
// replies are followed up to depth levels; depth 0 keeps no replies.
func ParseComments(data []byte, limit, depth int) ([]models.Comment, error) {
	var pages []Listing
	if err := json.Unmarshal(data, &pages); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedPayload, err)
	}

	if len(pages) < 2 {
		return nil, nil
	}

	return extractComments(pages[1].Data.Children, limit, 0, depth)
}

func extractComments(children []Thing, limit, level, maxDepth int) ([]models.Comment, error) {
	if limit > 0 && len(children) > limit {
		children = children[:limit]
	}

	var comments []models.Comment

	for _, child := range children {
		if child.Kind != "t1" {
			continue
		}

		var rc rawComment
		if err := json.Unmarshal(child.Data, &rc); err != nil {
			return nil, fmt.Errorf("%w: comment: %w", ErrUnexpectedPayload, err)
		}

		c := models.Comment{
			Author:     orDeleted(rc.Author),
			Body:       rc.Body,
			Score:      rc.Score,
			CreatedUTC: FormatEpoch(rc.CreatedUTC),
		}

		if level < maxDepth {
			replies, err := parseReplies(rc.Replies, level+1, maxDepth)
			if err != nil {
				return nil, err
			}

			c.Replies = replies
		}

		comments = append(comments, c)
	}

	return comments, nil
}

// parseReplies handles the replies field, which is "" when empty and a
// listing object otherwise.
func parseReplies(raw json.RawMessage, level, maxDepth int) ([]models.Comment, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == `""` || trimmed == "null" {
		return nil, nil
	}

	var listing Listing
	if err := json.Unmarshal(raw, &listing); err != nil {
		return nil, fmt.Errorf("%w: replies: %w", ErrUnexpectedPayload, err)
	}

	return extractComments(listing.Data.Children, 0, level, maxDepth)
}

// PostToThread maps a raw post into the stored thread shape.
func PostToThread(p Post, baseURL string, collectedAt time.Time) models.Thread {
	link := p.URL
	if p.Permalink != "" {
		link = strings.TrimRight(baseURL, "/") + p.Permalink
	}

	return models.Thread{
		ID:          p.ID,
		Title:       p.Title,
		Author:      orDeleted(p.Author),
		Subreddit:   p.Subreddit,
		CreatedUTC:  FormatEpoch(p.CreatedUTC),
		Score:       p.Score,
		NumComments: p.NumComments,
		URL:         link,
		Selftext:    p.Selftext,
		UpvoteRatio: p.UpvoteRatio,
		Comments:    []models.Comment{},
		CollectedAt: collectedAt.UTC().Format(time.RFC3339),
	}
}

// FormatEpoch renders epoch seconds as RFC 3339 in UTC.
func FormatEpoch(sec float64) string {
	if sec <= 0 {
		return ""
	}

	return time.Unix(int64(sec), 0).UTC().Format(time.RFC3339)
}

func orDeleted(author string) string {
	if author == "" {
		return DeletedAuthor
	}

	return author
}
