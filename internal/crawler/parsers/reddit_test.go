package parsers

import (
	"errors"
	"testing"
	"time"
)

const listingJSON = `{
  "kind": "Listing",
  "data": {
    "after": "t3_next",
    "children": [
      {"kind": "t3", "data": {"id": "abc", "title": "Newly diagnosed", "author": "", "subreddit": "diabetes",
        "created_utc": 1700000000, "score": 12, "num_comments": 4, "permalink": "/r/diabetes/comments/abc/newly/",
        "selftext": "Any tips?", "upvote_ratio": 0.93}},
      {"kind": "t5", "data": {"id": "ignored"}}
    ]
  }
}`

const commentsJSON = `[
  {"kind": "Listing", "data": {"children": [{"kind": "t3", "data": {"id": "abc"}}]}},
  {"kind": "Listing", "data": {"children": [
    {"kind": "t1", "data": {"author": "a", "body": "top one", "score": 3, "created_utc": 1700000100,
      "replies": {"kind": "Listing", "data": {"children": [
        {"kind": "t1", "data": {"author": "b", "body": "reply", "score": 1, "created_utc": 1700000200,
          "replies": {"kind": "Listing", "data": {"children": [
            {"kind": "t1", "data": {"author": "c", "body": "deep", "score": 0, "created_utc": 1700000300, "replies": ""}}
          ]}}}}
      ]}}}},
    {"kind": "t1", "data": {"author": "", "body": "top two", "score": 2, "created_utc": 1700000400, "replies": ""}},
    {"kind": "more", "data": {"count": 10}},
    {"kind": "t1", "data": {"author": "d", "body": "top three", "score": 1, "created_utc": 1700000500, "replies": ""}}
  ]}}
]`

func TestParseListing(t *testing.T) {
	posts, after, err := ParseListing([]byte(listingJSON))
	if err != nil {
		t.Fatalf("ParseListing failed: %v", err)
	}

	if after != "t3_next" {
		t.Errorf("after = %q, want t3_next", after)
	}

	if len(posts) != 1 {
		t.Fatalf("len(posts) = %d, want 1", len(posts))
	}

	th := PostToThread(posts[0], "https://www.reddit.com/", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))

	if th.URL != "https://www.reddit.com/r/diabetes/comments/abc/newly/" {
		t.Errorf("URL = %q", th.URL)
	}

	if th.Author != DeletedAuthor {
		t.Errorf("Author = %q, want %q", th.Author, DeletedAuthor)
	}

	if th.CreatedUTC != "2023-11-14T22:13:20Z" {
		t.Errorf("CreatedUTC = %q", th.CreatedUTC)
	}

	if th.CollectedAt != "2025-01-02T03:04:05Z" {
		t.Errorf("CollectedAt = %q", th.CollectedAt)
	}

	if th.Comments == nil {
		t.Error("Comments should be an empty slice, not nil")
	}
}

func TestParseListing_Invalid(t *testing.T) {
	_, _, err := ParseListing([]byte(`{"kind": "t3"}`))
	if !errors.Is(err, ErrUnexpectedPayload) {
		t.Errorf("ParseListing error = %v, want %v", err, ErrUnexpectedPayload)
	}
}

func TestParseComments(t *testing.T) {
	tests := []struct {
		name        string
		limit       int
		depth       int
		wantTop     int
		wantReplies int
		wantDeep    bool
	}{
		{"flat", 20, 0, 3, 0, false},
		{"limit counts raw children", 2, 0, 2, 0, false},
		{"one level", 30, 1, 3, 1, false},
		{"three levels", 30, 3, 3, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comments, err := ParseComments([]byte(commentsJSON), tt.limit, tt.depth)
			if err != nil {
				t.Fatalf("ParseComments failed: %v", err)
			}

			if len(comments) != tt.wantTop {
				t.Fatalf("len(comments) = %d, want %d", len(comments), tt.wantTop)
			}

			if got := len(comments[0].Replies); got != tt.wantReplies {
				t.Errorf("len(replies) = %d, want %d", got, tt.wantReplies)
			}

			hasDeep := len(comments[0].Replies) > 0 && len(comments[0].Replies[0].Replies) > 0
			if hasDeep != tt.wantDeep {
				t.Errorf("deep reply present = %v, want %v", hasDeep, tt.wantDeep)
			}

			if comments[1].Author != DeletedAuthor {
				t.Errorf("Author = %q, want %q", comments[1].Author, DeletedAuthor)
			}
		})
	}
}

func TestParseComments_SinglePage(t *testing.T) {
	comments, err := ParseComments([]byte(`[{"kind":"Listing","data":{"children":[]}}]`), 10, 0)
	if err != nil || comments != nil {
		t.Errorf("ParseComments() = %v, %v, want nil, nil", comments, err)
	}
}

func TestParseRedditHTML_Shreddit(t *testing.T) {
	html := `<html><body>
<shreddit-post id="t3_xyz" post-title="Metformin side effects" author="user1" subreddit-prefixed-name="r/diabetes_t2"
  permalink="/r/diabetes_t2/comments/xyz/metformin/" score="42" comment-count="7">
  <div slot="text-body"><p>Started   last week.</p></div>
</shreddit-post>
<shreddit-post id="t3_notitle"></shreddit-post>
</body></html>`

	posts, err := ParseRedditHTML(html)
	if err != nil {
		t.Fatalf("ParseRedditHTML failed: %v", err)
	}

	if len(posts) != 1 {
		t.Fatalf("len(posts) = %d, want 1", len(posts))
	}

	p := posts[0]
	if p.ID != "xyz" || p.Subreddit != "diabetes_t2" || p.Score != 42 || p.NumComments != 7 {
		t.Errorf("post = %+v", p)
	}

	if p.Selftext != "Started last week." {
		t.Errorf("Selftext = %q", p.Selftext)
	}
}

func TestParseRedditHTML_Legacy(t *testing.T) {
	html := `<html><body>
<div data-testid="post-container" id="t3_old1">
  <a href="/r/hypertension/">r/hypertension</a>
  <a href="/user/bob/">u/bob</a>
  <h3>Home BP monitor advice</h3>
  <button aria-label="upvote">1,204</button>
  <a data-click-id="body" href="/r/hypertension/comments/old1/home_bp/">link</a>
  <a href="/r/hypertension/comments/old1/home_bp/">15 comments</a>
</div>
</body></html>`

	posts, err := ParseRedditHTML(html)
	if err != nil {
		t.Fatalf("ParseRedditHTML failed: %v", err)
	}

	if len(posts) != 1 {
		t.Fatalf("len(posts) = %d, want 1", len(posts))
	}

	p := posts[0]
	if p.ID != "old1" || p.Title != "Home BP monitor advice" || p.Author != "bob" {
		t.Errorf("post = %+v", p)
	}

	if p.Score != 1204 || p.NumComments != 15 || p.Subreddit != "hypertension" {
		t.Errorf("post counts = %+v", p)
	}

	if p.Permalink != "/r/hypertension/comments/old1/home_bp/" {
		t.Errorf("Permalink = %q", p.Permalink)
	}
}
