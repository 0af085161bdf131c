package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"log/slog"

	"github.com/threadsight/threadsight/internal/models"
)

const (
	redditBaseURL = "https://www.reddit.com"
	pageSize      = 100
	userAgent     = "threadsight/0.1 (content analysis pipeline)"
)

// RedditFetcher pulls posts from a subreddit's public JSON listing, newest
// first, paging until the window start or the post cap is reached. Each
// accepted post optionally gets its top comments attached for downstream
// annotation context.
type RedditFetcher struct {
	client      *http.Client
	logger      *slog.Logger
	minScore    int
	maxComments int
	baseURL     string
}

// NewRedditFetcher creates a fetcher with the given score floor. Posts below
// minScore are skipped without counting against maxPosts. maxComments caps
// how many top comments are fetched per post; zero disables comment fetching.
func NewRedditFetcher(logger *slog.Logger, minScore, maxComments int) *RedditFetcher {
	return &RedditFetcher{
		client:      &http.Client{Timeout: 30 * time.Second},
		logger:      logger,
		minScore:    minScore,
		maxComments: maxComments,
		baseURL:     redditBaseURL,
	}
}

type redditListing struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Selftext      string  `json:"selftext"`
	Author        string  `json:"author"`
	Score         int     `json:"score"`
	NumComments   int     `json:"num_comments"`
	CreatedUTC    float64 `json:"created_utc"`
	LinkFlairText string  `json:"link_flair_text"`
	Permalink     string  `json:"permalink"`
}

// Fetch implements Fetcher.
func (f *RedditFetcher) Fetch(ctx context.Context, source string, window models.Window, maxPosts int) ([]models.Post, error) {
	var posts []models.Post
	after := ""
	pages := 0

	f.logger.Info("fetching source",
		"source", source,
		"window_start", window.Start.Format(time.RFC3339),
		"window_end", window.End.Format(time.RFC3339),
		"max_posts", maxPosts)

	for {
		listing, err := f.fetchPage(ctx, source, after)
		if err != nil {
			return nil, &FetchError{Source: source, Err: err}
		}
		pages++

		done := false
		for _, child := range listing.Data.Children {
			created := time.Unix(int64(child.Data.CreatedUTC), 0).UTC()

			// Listing is newest-first: everything past the window
			// start is older than we need.
			if created.Before(window.Start) {
				done = true
				break
			}
			if created.After(window.End) {
				continue
			}
			if child.Data.Score < f.minScore {
				continue
			}

			posts = append(posts, models.Post{
				ID:          child.Data.ID,
				Source:      source,
				CreatedAt:   created,
				Title:       child.Data.Title,
				Body:        child.Data.Selftext,
				Author:      child.Data.Author,
				Score:       child.Data.Score,
				NumComments: child.Data.NumComments,
				Flair:       child.Data.LinkFlairText,
				Permalink:   redditBaseURL + child.Data.Permalink,
				Sentiment:   models.NormalizeSentiment(""),
			})

			if len(posts) >= maxPosts {
				done = true
				break
			}
		}

		after = listing.Data.After
		if done || after == "" {
			break
		}
	}

	if f.maxComments > 0 {
		f.attachComments(ctx, source, posts)
	}

	f.logger.Info("fetch complete",
		"source", source,
		"posts", len(posts),
		"pages", pages)

	return posts, nil
}

type redditComment struct {
	ID         string  `json:"id"`
	Author     string  `json:"author"`
	Body       string  `json:"body"`
	Score      int     `json:"score"`
	CreatedUTC float64 `json:"created_utc"`
}

// attachComments loads top comments for each post. A failed comment lookup
// degrades that post to no comments instead of failing the fetch.
func (f *RedditFetcher) attachComments(ctx context.Context, source string, posts []models.Post) {
	for i := range posts {
		comments, err := f.fetchComments(ctx, source, posts[i].ID)
		if err != nil {
			f.logger.Warn("comment fetch failed",
				"source", source,
				"post_id", posts[i].ID,
				"error", err)
			continue
		}
		posts[i].Comments = comments
	}
}

func (f *RedditFetcher) fetchComments(ctx context.Context, source, postID string) ([]models.Comment, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", f.maxComments))
	q.Set("depth", "1")
	q.Set("raw_json", "1")

	endpoint := fmt.Sprintf("%s/r/%s/comments/%s.json?%s", f.baseURL, url.PathEscape(source), url.PathEscape(postID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	// The comments endpoint returns two listings: the post itself, then
	// its comment tree.
	var thread []struct {
		Data struct {
			Children []struct {
				Kind string        `json:"kind"`
				Data redditComment `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&thread); err != nil {
		return nil, fmt.Errorf("decode comment thread: %w", err)
	}
	if len(thread) < 2 {
		return nil, nil
	}

	var comments []models.Comment
	for _, child := range thread[1].Data.Children {
		if child.Kind != "t1" || child.Data.Body == "" {
			continue
		}
		comments = append(comments, models.Comment{
			ID:        child.Data.ID,
			Author:    child.Data.Author,
			Body:      child.Data.Body,
			Score:     child.Data.Score,
			CreatedAt: time.Unix(int64(child.Data.CreatedUTC), 0).UTC(),
		})
		if len(comments) == f.maxComments {
			break
		}
	}

	return comments, nil
}

func (f *RedditFetcher) fetchPage(ctx context.Context, source, after string) (*redditListing, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", pageSize))
	q.Set("raw_json", "1")
	if after != "" {
		q.Set("after", after)
	}

	endpoint := fmt.Sprintf("%s/r/%s/new.json?%s", f.baseURL, url.PathEscape(source), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrSourceUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}

	return &listing, nil
}
