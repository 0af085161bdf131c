package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/threadsight/threadsight/internal/models"
)

// StubFetcher returns deterministic synthetic posts. Used in tests and when
// running the service without network access.
type StubFetcher struct {
	// PostsPerSource caps how many posts are generated per call before
	// maxPosts applies.
	PostsPerSource int
	// Err, when set, is returned instead of posts.
	Err error
}

// Fetch implements Fetcher with evenly spaced posts across the window.
func (s *StubFetcher) Fetch(ctx context.Context, source string, window models.Window, maxPosts int) ([]models.Post, error) {
	if s.Err != nil {
		return nil, &FetchError{Source: source, Err: s.Err}
	}

	n := s.PostsPerSource
	if n == 0 {
		n = 30
	}
	if n > maxPosts {
		n = maxPosts
	}

	span := window.End.Sub(window.Start)
	sentiments := []string{"positive", "neutral", "negative"}

	posts := make([]models.Post, 0, n)
	for i := 0; i < n; i++ {
		created := window.Start.Add(time.Duration(i+1) * span / time.Duration(n+1))
		posts = append(posts, models.Post{
			ID:          fmt.Sprintf("%s-post-%03d", source, i),
			Source:      source,
			CreatedAt:   created,
			Title:       fmt.Sprintf("Discussion thread %d about %s", i, source),
			Body:        fmt.Sprintf("Synthetic body text for post %d.", i),
			Author:      fmt.Sprintf("user%d", i%7),
			Score:       10 + i*3,
			NumComments: i % 12,
			Sentiment:   models.NormalizeSentiment(sentiments[i%3]),
		})
	}

	return posts, nil
}
