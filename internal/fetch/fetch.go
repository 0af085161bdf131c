// Package fetch defines the boundary to the external content source and a
// Reddit listing client implementing it.
package fetch

import (
	"context"
	"errors"
	"fmt"

	"github.com/threadsight/threadsight/internal/models"
)

// ErrRateLimited indicates the upstream source throttled the fetch. The job
// fails; the caller must resubmit later.
var ErrRateLimited = errors.New("source rate limited")

// ErrSourceUnavailable indicates the source does not exist or cannot be
// reached.
var ErrSourceUnavailable = errors.New("source unavailable")

// Fetcher retrieves posts for a source within a time window. Implementations
// apply their own score/comment floors and must return at most maxPosts
// items, newest first.
type Fetcher interface {
	Fetch(ctx context.Context, source string, window models.Window, maxPosts int) ([]models.Post, error)
}

// FetchError wraps a fetch failure with its source for job status reporting.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
