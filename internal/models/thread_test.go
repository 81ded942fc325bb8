package models

import (
	"strings"
	"testing"
)

func TestCountComments(t *testing.T) {
	comments := []Comment{
		{Body: "a", Replies: []Comment{{Body: "a1"}, {Body: "a2", Replies: []Comment{{Body: "a2i"}}}}},
		{Body: "b"},
	}

	if got := CountComments(comments); got != 5 {
		t.Errorf("CountComments() = %d, want 5", got)
	}

	if got := CountComments(nil); got != 0 {
		t.Errorf("CountComments(nil) = %d, want 0", got)
	}
}

func TestThread_Summary(t *testing.T) {
	th := Thread{
		ID:       "abc",
		Selftext: strings.Repeat("é", 600),
		Comments: []Comment{{Body: "x", Replies: []Comment{{Body: "y"}}}},
	}

	s := th.Summary()

	if got := len([]rune(s.Selftext)); got != SummaryTextLimit {
		t.Errorf("Summary selftext runes = %d, want %d", got, SummaryTextLimit)
	}

	if s.NumCollectedComments != 2 {
		t.Errorf("NumCollectedComments = %d, want 2", s.NumCollectedComments)
	}
}
