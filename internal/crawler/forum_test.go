package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"trustmed/internal/config"
	"trustmed/internal/dataset"
	"trustmed/internal/logger"
	"trustmed/internal/models"
)

func listing(after string, ids ...string) string {
	children := make([]string, 0, len(ids))
	for _, id := range ids {
		children = append(children, fmt.Sprintf(
			`{"kind":"t3","data":{"id":%q,"title":"Post %s","author":"user_%s","subreddit":"diabetes",`+
				`"created_utc":1700000000,"score":5,"num_comments":2,"permalink":"/r/diabetes/comments/%s/post/",`+
				`"selftext":"text %s","upvote_ratio":0.9}}`, id, id, id, id, id))
	}

	return fmt.Sprintf(`{"kind":"Listing","data":{"after":%q,"children":[%s]}}`, after, strings.Join(children, ","))
}

const commentPage = `[
 {"kind":"Listing","data":{"children":[]}},
 {"kind":"Listing","data":{"children":[
  {"kind":"t1","data":{"author":"a","body":"first","score":1,"created_utc":1700000100,
   "replies":{"kind":"Listing","data":{"children":[
    {"kind":"t1","data":{"author":"b","body":"nested","score":1,"created_utc":1700000200,"replies":""}}]}}}},
  {"kind":"t1","data":{"author":"c","body":"second","score":1,"created_utc":1700000300,"replies":""}}
 ]}}
]`

type redditStub struct {
	mu       sync.Mutex
	requests []string
}

func (rs *redditStub) handler(w http.ResponseWriter, r *http.Request) {
	rs.mu.Lock()
	rs.requests = append(rs.requests, r.URL.RequestURI())
	rs.mu.Unlock()

	switch {
	case r.URL.Path == "/r/diabetes/hot.json" && r.URL.Query().Get("after") == "":
		fmt.Fprint(w, listing("t3_b", "a1", "a2"))
	case r.URL.Path == "/r/diabetes/hot.json":
		fmt.Fprint(w, listing("", "a2", "a3"))
	case r.URL.Path == "/r/diabetes/top.json":
		fmt.Fprint(w, listing("", "a1", "a4"))
	case r.URL.Path == "/r/diabetes/search.json":
		fmt.Fprint(w, listing("", "s"+r.URL.Query().Get("q")))
	case strings.Contains(r.URL.Path, "/comments/"):
		fmt.Fprint(w, commentPage)
	default:
		http.NotFound(w, r)
	}
}

func (rs *redditStub) count(prefix string) int {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	n := 0

	for _, r := range rs.requests {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}

	return n
}

func testForumsConfig(base string) config.ForumsConfig {
	return config.ForumsConfig{
		BaseURL:              base,
		ListingLimit:         100,
		SearchLimit:          50,
		MaxSearchTerms:       2,
		CommentLimit:         20,
		BackfillCommentLimit: 30,
		ReplyDepth:           3,
		SaveEvery:            2,
		PageDelayMs:          2000,
	}
}

func TestForumCollector_CollectArea(t *testing.T) {
	stub := &redditStub{}
	server := httptest.NewServer(http.HandlerFunc(stub.handler))
	defer server.Close()

	var delays []time.Duration

	pacer := NewPacer(config.DelayPolicy{}).WithSleep(recordSleeps(&delays))
	fc := NewForumCollector(newTestClient(), pacer, testForumsConfig(server.URL), logger.NewNop())

	area := config.ForumArea{
		Name:        "diabetes",
		Subreddits:  []string{"diabetes"},
		SearchTerms: []string{"metformin", "a1c", "insulin"},
	}

	threads, err := fc.CollectArea(context.Background(), area)
	if err != nil {
		t.Fatalf("CollectArea failed: %v", err)
	}

	var ids []string
	for _, th := range threads {
		ids = append(ids, th.ID)
	}

	want := "a1,a2,a3,a4,smetformin,sa1c"
	if got := strings.Join(ids, ","); got != want {
		t.Errorf("thread ids = %s, want %s", got, want)
	}

	if stub.count("/r/diabetes/search.json") != 2 {
		t.Errorf("search requests = %d, want 2", stub.count("/r/diabetes/search.json"))
	}

	if got := len(threads[0].Comments); got != 2 {
		t.Errorf("len(comments) = %d, want 2", got)
	}

	if len(threads[0].Comments[0].Replies) != 0 {
		t.Error("collector comments should not include replies")
	}

	if threads[0].URL != server.URL+"/r/diabetes/comments/a1/post/" {
		t.Errorf("URL = %q", threads[0].URL)
	}

	pageDelay := false

	for _, d := range delays {
		if d == 2*time.Second {
			pageDelay = true
		}
	}

	if !pageDelay {
		t.Errorf("delays = %v, want a 2s page delay", delays)
	}
}

func TestForumCollector_Target(t *testing.T) {
	stub := &redditStub{}
	server := httptest.NewServer(http.HandlerFunc(stub.handler))
	defer server.Close()

	fc := NewForumCollector(newTestClient(), NewPacer(config.DelayPolicy{}).WithSleep(noSleep), testForumsConfig(server.URL), logger.NewNop())

	threads, err := fc.CollectArea(context.Background(), config.ForumArea{
		Name:        "diabetes",
		Subreddits:  []string{"diabetes"},
		SearchTerms: []string{"metformin"},
		Target:      3,
	})
	if err != nil {
		t.Fatalf("CollectArea failed: %v", err)
	}

	if len(threads) != 3 {
		t.Fatalf("len(threads) = %d, want 3", len(threads))
	}

	if stub.count("/r/diabetes/search.json") != 0 {
		t.Error("search should not run once the target is reached")
	}

	path := filepath.Join(t.TempDir(), "diabetes_threads_20250101_000000.json")
	if err := fc.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(dataset.CSVPath(path)); err != nil {
		t.Errorf("CSV summary not written: %v", err)
	}
}

func TestForumCollector_TargetStopsMidPage(t *testing.T) {
	stub := &redditStub{}
	server := httptest.NewServer(http.HandlerFunc(stub.handler))
	defer server.Close()

	fc := NewForumCollector(newTestClient(), NewPacer(config.DelayPolicy{}).WithSleep(noSleep), testForumsConfig(server.URL), logger.NewNop())

	first, err := fc.CollectArea(context.Background(), config.ForumArea{
		Name:       "diabetes",
		Subreddits: []string{"diabetes"},
		Target:     1,
	})
	if err != nil {
		t.Fatalf("CollectArea failed: %v", err)
	}

	if len(first) != 1 || first[0].ID != "a1" {
		t.Fatalf("first area threads = %v, want [a1]", first)
	}

	if got := stub.count("/r/diabetes/comments/"); got != 1 {
		t.Errorf("comment requests = %d, want 1", got)
	}

	second, err := fc.CollectArea(context.Background(), config.ForumArea{
		Name:       "heart_disease",
		Subreddits: []string{"diabetes"},
	})
	if err != nil {
		t.Fatalf("CollectArea failed: %v", err)
	}

	var ids []string
	for _, th := range second {
		ids = append(ids, th.ID)
	}

	if got, want := strings.Join(ids, ","), "a2,a3,a4"; got != want {
		t.Errorf("second area threads = %s, want %s", got, want)
	}

	if got := len(fc.Threads()); got != 4 {
		t.Errorf("len(Threads()) = %d, want 4", got)
	}
}

func TestForumCollector_URLs(t *testing.T) {
	fc := NewForumCollector(nil, nil, testForumsConfig("https://www.reddit.com/"), logger.NewNop())

	tests := []struct {
		got  string
		want string
	}{
		{fc.ListingURL("diabetes", "hot", ""), "https://www.reddit.com/r/diabetes/hot.json?limit=100"},
		{fc.ListingURL("diabetes", "top", "t3_x"), "https://www.reddit.com/r/diabetes/top.json?after=t3_x&limit=100&t=year"},
		{fc.SearchURL("diabetes", "blood sugar"), "https://www.reddit.com/r/diabetes/search.json?limit=50&q=blood+sugar&restrict_sr=1&sort=relevance"},
		{fc.CommentsURL("diabetes", "abc"), "https://www.reddit.com/r/diabetes/comments/abc.json?limit=20"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestCommentBackfill_Run(t *testing.T) {
	stub := &redditStub{}
	server := httptest.NewServer(http.HandlerFunc(stub.handler))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "diabetes_threads_combined.json")

	threads := []models.Thread{
		{ID: "a1", URL: server.URL + "/r/diabetes/comments/a1/post/"},
		{ID: "a2", URL: server.URL + "/r/diabetes/comments/a2/post/", Comments: []models.Comment{{Author: "x", Body: "kept"}}},
		{ID: "a3"},
		{ID: "a4", URL: "https://example.org/no-comments-segment"},
	}

	if err := dataset.Save(path, threads); err != nil {
		t.Fatal(err)
	}

	cb := NewCommentBackfill(newTestClient(), NewPacer(config.DelayPolicy{}).WithSleep(noSleep), testForumsConfig(server.URL), logger.NewNop())

	stats, err := cb.Run(context.Background(), path)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.Candidates != 2 || stats.Updated != 2 || stats.Comments != 6 {
		t.Errorf("stats = %+v", stats)
	}

	if stub.count("/comments/a1.json?limit=30&depth=3") != 1 || stub.count("/comments/a4.json") != 1 {
		t.Errorf("requests = %v", stub.requests)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var got []models.Thread
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}

	if got[0].NumCollectedComments != 3 || len(got[0].Comments[0].Replies) != 1 {
		t.Errorf("thread a1 = %+v", got[0])
	}

	if got[1].Comments[0].Body != "kept" {
		t.Error("threads with comments should be left alone")
	}

	if len(got[2].Comments) != 0 {
		t.Error("threads without URL should be skipped")
	}
}

func TestThreadCommentsID(t *testing.T) {
	tests := []struct {
		thread models.Thread
		want   string
	}{
		{models.Thread{ID: "x", URL: "https://www.reddit.com/r/a/comments/abc/title/"}, "abc"},
		{models.Thread{ID: "x", URL: "https://www.reddit.com/r/a/comments/abc"}, "abc"},
		{models.Thread{ID: "x", URL: "https://example.org/post"}, "x"},
	}

	for _, tt := range tests {
		if got := ThreadCommentsID(tt.thread); got != tt.want {
			t.Errorf("ThreadCommentsID(%q) = %q, want %q", tt.thread.URL, got, tt.want)
		}
	}
}
