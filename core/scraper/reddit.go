// Package scraper fetches text posts from Reddit's public JSON listings.
package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"storyreel/logger"
	"storyreel/model"
)

// Sort orders accepted for subreddit listings.
var Sorts = []string{"hot", "new", "top", "rising", "controversial"}

const (
	maxPageSize    = 100
	maxPages       = 5
	minCommentSize = 20
	maxComments    = 5
)

var subredditPattern = regexp.MustCompile(`/r/([^/?#]+)`)

// Client reads posts from reddit.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a reddit client. Reddit rejects requests without a
// descriptive User-Agent.
func NewClient(userAgent string) *Client {
	return &Client{
		baseURL:   "https://www.reddit.com",
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// SetBaseURL sets the API base URL.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

// ValidSort reports whether sort is a known listing order.
func ValidSort(sort string) bool {
	for _, s := range Sorts {
		if s == sort {
			return true
		}
	}
	return false
}

type listing struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Kind string   `json:"kind"`
			Data postData `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type postData struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Selftext   string  `json:"selftext"`
	Body       string  `json:"body"`
	Score      int     `json:"score"`
	Permalink  string  `json:"permalink"`
	Subreddit  string  `json:"subreddit"`
	CreatedUTC float64 `json:"created_utc"`
	Stickied   bool    `json:"stickied"`
}

func (p postData) toPost() model.Post {
	return model.Post{
		ID:         p.ID,
		Title:      p.Title,
		Text:       p.Selftext,
		Score:      p.Score,
		URL:        p.Permalink,
		Subreddit:  p.Subreddit,
		CreatedUTC: p.CreatedUTC,
	}
}

// Scrape returns up to count text posts from a subreddit or a single post URL.
// Link and image posts are skipped. Unknown sorts fall back to hot.
func (c *Client) Scrape(ctx context.Context, redditURL string, count int, sort string) ([]model.Post, error) {
	if strings.TrimSpace(redditURL) == "" {
		return nil, &model.InputError{Field: "reddit url", Reason: "empty"}
	}
	if count <= 0 {
		return nil, &model.InputError{Field: "num posts", Reason: "must be positive"}
	}
	if strings.Contains(redditURL, "/comments/") {
		post, err := c.post(ctx, redditURL)
		if err != nil {
			return nil, err
		}
		return []model.Post{post}, nil
	}

	m := subredditPattern.FindStringSubmatch(redditURL)
	if m == nil {
		return nil, &model.InputError{Field: "reddit url", Reason: fmt.Sprintf("no subreddit in %q", redditURL)}
	}
	if !ValidSort(sort) {
		sort = "hot"
	}
	return c.subreddit(ctx, m[1], count, sort)
}

func (c *Client) subreddit(ctx context.Context, name string, count int, sort string) ([]model.Post, error) {
	logger.Info("Scraping subreddit",
		logger.String("subreddit", name),
		logger.String("sort", sort),
		logger.Int("count", count))

	var posts []model.Post
	after := ""
	for page := 0; page < maxPages && len(posts) < count; page++ {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(maxPageSize))
		q.Set("raw_json", "1")
		if sort == "top" || sort == "controversial" {
			q.Set("t", "day")
		}
		if after != "" {
			q.Set("after", after)
		}
		var l listing
		if err := c.getJSON(ctx, fmt.Sprintf("%s/r/%s/%s.json?%s", c.baseURL, url.PathEscape(name), sort, q.Encode()), &l); err != nil {
			return nil, err
		}
		for _, child := range l.Data.Children {
			if len(posts) >= count {
				break
			}
			if child.Data.Selftext == "" || child.Data.Stickied {
				continue
			}
			posts = append(posts, child.Data.toPost())
		}
		after = l.Data.After
		if after == "" {
			break
		}
	}
	return posts, nil
}

// post reads one submission with its top comments.
func (c *Client) post(ctx context.Context, postURL string) (model.Post, error) {
	u, err := url.Parse(postURL)
	if err != nil {
		return model.Post{}, &model.InputError{Field: "reddit url", Reason: err.Error()}
	}
	endpoint := c.baseURL + strings.TrimRight(u.Path, "/") + ".json?raw_json=1"

	var listings []listing
	if err := c.getJSON(ctx, endpoint, &listings); err != nil {
		return model.Post{}, err
	}
	if len(listings) == 0 || len(listings[0].Data.Children) == 0 {
		return model.Post{}, &model.ResourceMissingError{Kind: "reddit post", Path: postURL}
	}
	data := listings[0].Data.Children[0].Data
	post := data.toPost()
	if post.Text == "" {
		post.Text = post.Title
	}
	if len(listings) > 1 {
		for _, child := range listings[1].Data.Children {
			if len(post.Comments) >= maxComments {
				break
			}
			if child.Kind == "t1" && len(child.Data.Body) > minCommentSize {
				post.Comments = append(post.Comments, child.Data.Body)
			}
		}
	}
	return post, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("reddit request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &model.ResourceMissingError{Kind: "reddit listing", Path: endpoint}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("reddit returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode reddit response: %w", err)
	}
	return nil
}
