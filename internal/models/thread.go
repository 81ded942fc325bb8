package models

// Thread represents a forum thread with the comments captured for it.
type Thread struct {
	ID                   string    `json:"id"`
	Title                string    `json:"title"`
	Author               string    `json:"author"`
	Subreddit            string    `json:"subreddit"`
	CreatedUTC           string    `json:"created_utc"`
	Score                int       `json:"score"`
	NumComments          int       `json:"num_comments"`
	URL                  string    `json:"url"`
	Selftext             string    `json:"selftext"`
	UpvoteRatio          float64   `json:"upvote_ratio"`
	Comments             []Comment `json:"comments"`
	NumCollectedComments int       `json:"num_collected_comments,omitempty"`
	CollectedAt          string    `json:"collected_at"`
}

// Comment is a single forum reply. Replies are only populated when the
// collector was asked for nested comments.
type Comment struct {
	Author     string    `json:"author"`
	Body       string    `json:"body"`
	Score      int       `json:"score"`
	CreatedUTC string    `json:"created_utc"`
	Replies    []Comment `json:"replies,omitempty"`
}

// CountComments counts comments including nested replies.
func CountComments(comments []Comment) int {
	n := 0
	for _, c := range comments {
		n += 1 + CountComments(c.Replies)
	}

	return n
}

// ThreadSummary is the flat CSV view of a thread.
type ThreadSummary struct {
	ID                   string
	Title                string
	Author               string
	Subreddit            string
	CreatedUTC           string
	Score                int
	NumComments          int
	NumCollectedComments int
	URL                  string
	Selftext             string
	UpvoteRatio          float64
}

// SummaryTextLimit caps the selftext carried into CSV summaries.
const SummaryTextLimit = 500

// Summary flattens a thread for the CSV export.
func (t *Thread) Summary() ThreadSummary {
	text := t.Selftext
	if r := []rune(text); len(r) > SummaryTextLimit {
		text = string(r[:SummaryTextLimit])
	}

	return ThreadSummary{
		ID:                   t.ID,
		Title:                t.Title,
		Author:               t.Author,
		Subreddit:            t.Subreddit,
		CreatedUTC:           t.CreatedUTC,
		Score:                t.Score,
		NumComments:          t.NumComments,
		NumCollectedComments: CountComments(t.Comments),
		URL:                  t.URL,
		Selftext:             text,
		UpvoteRatio:          t.UpvoteRatio,
	}
}
