package parsers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	commentsIDPattern = regexp.MustCompile(`/comments/([a-z0-9]+)/`)
	subredditPattern  = regexp.MustCompile(`/r/([^/]+)`)
	numberPattern     = regexp.MustCompile(`\d+`)
)

// ParseRedditHTML extracts posts from a rendered subreddit page. It is the
// fallback when the JSON endpoints are blocked. Both the shreddit-post custom
// element and the older post-container markup are understood.
func ParseRedditHTML(html string) ([]Post, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHTML, err)
	}

	var posts []Post

	doc.Find("shreddit-post").Each(func(_ int, s *goquery.Selection) {
		p := Post{
			ID:          strings.TrimPrefix(s.AttrOr("id", ""), "t3_"),
			Title:       strings.TrimSpace(s.AttrOr("post-title", "")),
			Author:      s.AttrOr("author", ""),
			Subreddit:   strings.TrimPrefix(s.AttrOr("subreddit-prefixed-name", ""), "r/"),
			Permalink:   s.AttrOr("permalink", ""),
			Score:       atoi(s.AttrOr("score", "")),
			NumComments: atoi(s.AttrOr("comment-count", "")),
			Selftext:    collapseSpaces(s.Find("div[slot='text-body']").Text()),
		}

		if p.ID != "" && p.Title != "" {
			posts = append(posts, p)
		}
	})

	if len(posts) > 0 {
		return posts, nil
	}

	seen := make(map[string]bool)

	doc.Find("div[data-testid='post-container'], div[id^='t3_']").Each(func(_ int, s *goquery.Selection) {
		if p, ok := legacyPost(s); ok && !seen[p.ID] {
			seen[p.ID] = true
			posts = append(posts, p)
		}
	})

	return posts, nil
}

func legacyPost(s *goquery.Selection) (Post, bool) {
	link := s.Find("a[data-click-id='body']").First()
	href := link.AttrOr("href", "")

	id := strings.TrimPrefix(s.AttrOr("id", ""), "t3_")
	if id == "" {
		if m := commentsIDPattern.FindStringSubmatch(href); m != nil {
			id = m[1]
		}
	}

	title := collapseSpaces(s.Find("h3").First().Text())
	if title == "" {
		title = collapseSpaces(link.Text())
	}

	if id == "" || title == "" {
		return Post{}, false
	}

	p := Post{
		ID:     id,
		Title:  title,
		Author: strings.TrimPrefix(collapseSpaces(s.Find("a[href*='/user/']").First().Text()), "u/"),
		Score:  firstNumber(s.Find("button[aria-label*='vote'], button[aria-label*='score']").First().Text()),
	}

	p.NumComments = firstNumber(s.Find("a[href*='/comments/']:not([data-click-id='body'])").First().Text())

	text := s.Find("div[data-test-id='post-content']")
	if text.Length() == 0 {
		text = s.Find("div[class*='selftext']")
	}

	p.Selftext = collapseSpaces(text.First().Text())

	if strings.HasPrefix(href, "/") {
		p.Permalink = href
	} else {
		p.URL = href
	}

	if m := subredditPattern.FindStringSubmatch(s.Find("a[href^='/r/']").First().AttrOr("href", "")); m != nil {
		p.Subreddit = m[1]
	}

	return p, true
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}

	return n
}

func firstNumber(s string) int {
	return atoi(numberPattern.FindString(strings.ReplaceAll(s, ",", "")))
}
