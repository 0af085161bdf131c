package classify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/threadsight/threadsight/internal/llm"
	"github.com/threadsight/threadsight/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func makePosts(n int) []models.Post {
	posts := make([]models.Post, n)
	for i := range posts {
		posts[i] = models.Post{
			ID:        fmt.Sprintf("p%03d", i),
			Title:     fmt.Sprintf("post %d", i),
			CreatedAt: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour),
		}
	}
	return posts
}

func TestRunClassifiesEveryPost(t *testing.T) {
	posts := makePosts(25)
	engine := NewEngine(llm.NewMockClient(), testLogger(), 10, 2)

	result, err := engine.Run(context.Background(), posts, nil, 4)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Categories) != 4 {
		t.Errorf("expected 4 categories, got %d", len(result.Categories))
	}
	if result.Unclassified != 0 {
		t.Errorf("expected no unclassified posts, got %d", result.Unclassified)
	}
	for i, p := range posts {
		if !p.Classified() {
			t.Errorf("post %d not classified", i)
		}
	}
}

func TestRunUsesSuppliedCategories(t *testing.T) {
	mock := llm.NewMockClient()
	mock.DiscoverErr = fmt.Errorf("discovery must not be called")

	posts := makePosts(10)
	supplied := []string{"Gear Reviews", "Trip Reports"}

	engine := NewEngine(mock, testLogger(), 10, 1)
	result, err := engine.Run(context.Background(), posts, supplied, 0)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Categories) != 2 {
		t.Fatalf("expected supplied categories to pass through, got %v", result.Categories)
	}
	for i, p := range posts {
		if p.Category == nil {
			t.Fatalf("post %d not classified", i)
		}
		if *p.Category != supplied[0] && *p.Category != supplied[1] {
			t.Errorf("post %d assigned unknown category %q", i, *p.Category)
		}
	}
}

func TestRunDiscoveryFailureFailsRun(t *testing.T) {
	mock := llm.NewMockClient()
	mock.DiscoverErr = fmt.Errorf("model unavailable")

	engine := NewEngine(mock, testLogger(), 10, 1)
	if _, err := engine.Run(context.Background(), makePosts(5), nil, 3); err == nil {
		t.Fatal("expected error when discovery fails")
	}
}

func TestRunEmptyInput(t *testing.T) {
	engine := NewEngine(llm.NewMockClient(), testLogger(), 10, 1)
	if _, err := engine.Run(context.Background(), nil, nil, 3); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestBatchRetrySucceedsOnSecondAttempt(t *testing.T) {
	posts := makePosts(10)

	mock := llm.NewMockClient()
	// First call for this batch returns a truncated response; the retry
	// succeeds.
	mock.FailBatches[posts[0].ID] = 1

	engine := NewEngine(mock, testLogger(), 10, 1)
	result, err := engine.Run(context.Background(), posts, []string{"A", "B"}, 0)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Unclassified != 0 {
		t.Errorf("expected retry to cover the batch, got %d unclassified", result.Unclassified)
	}
}

func TestBatchFailingTwiceLeavesPostsUnclassified(t *testing.T) {
	posts := makePosts(20)

	mock := llm.NewMockClient()
	// Second batch starts at index 10; both attempts return truncated
	// output covering only its first post.
	mock.FailBatches[posts[10].ID] = 2

	engine := NewEngine(mock, testLogger(), 10, 1)
	result, err := engine.Run(context.Background(), posts, []string{"A", "B", "C"}, 0)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Unclassified != 9 {
		t.Errorf("expected 9 unclassified posts, got %d", result.Unclassified)
	}
	for i := 0; i < 10; i++ {
		if !posts[i].Classified() {
			t.Errorf("post %d in healthy batch not classified", i)
		}
	}
	if !posts[10].Classified() {
		t.Error("covered post in failing batch should keep its assignment")
	}
	for i := 11; i < 20; i++ {
		if posts[i].Classified() {
			t.Errorf("post %d should be unclassified after two failed attempts", i)
		}
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := NewEngine(llm.NewMockClient(), testLogger(), 5, 2)
	if _, err := engine.Run(ctx, makePosts(50), []string{"A", "B"}, 0); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestSamplePostsSpread(t *testing.T) {
	posts := makePosts(300)
	sample := samplePosts(posts, 100)

	if len(sample) != 100 {
		t.Fatalf("expected 100 sampled posts, got %d", len(sample))
	}
	if sample[0].ID != posts[0].ID {
		t.Error("sample should start at the first post")
	}
	if sample[99].ID == posts[99].ID {
		t.Error("sample should span the whole slice, not just its head")
	}

	small := samplePosts(posts[:40], 100)
	if len(small) != 40 {
		t.Fatalf("expected passthrough for small input, got %d", len(small))
	}
}
