package classify

import (
	"context"
	"fmt"
	"testing"

	"github.com/threadsight/threadsight/internal/llm"
	"github.com/threadsight/threadsight/internal/models"
)

func TestAnnotateFillsSummaryAndSentiment(t *testing.T) {
	posts := makePosts(25)
	engine := NewEngine(llm.NewMockClient(), testLogger(), 10, 2)

	if err := engine.Annotate(context.Background(), posts); err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}

	for i, p := range posts {
		if p.Summary == "" {
			t.Errorf("post %d has no summary", i)
		}
		switch p.Sentiment.Bucket {
		case models.SentimentPositive, models.SentimentNeutral, models.SentimentNegative:
		default:
			t.Errorf("post %d has unnormalized sentiment %+v", i, p.Sentiment)
		}
	}
}

func TestAnnotateFailureDegradesWithoutFailingRun(t *testing.T) {
	mock := llm.NewMockClient()
	mock.AnnotateErr = fmt.Errorf("model unavailable")

	posts := makePosts(10)
	engine := NewEngine(mock, testLogger(), 10, 1)

	if err := engine.Annotate(context.Background(), posts); err != nil {
		t.Fatalf("annotation failure should degrade, got: %v", err)
	}
	for i, p := range posts {
		if p.Summary != "" {
			t.Errorf("post %d gained a summary from a failed batch", i)
		}
	}
}

func TestAnnotateEmptyInput(t *testing.T) {
	engine := NewEngine(llm.NewMockClient(), testLogger(), 10, 1)
	if err := engine.Annotate(context.Background(), nil); err != nil {
		t.Fatalf("Annotate on empty input failed: %v", err)
	}
}

func TestAnnotateCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := NewEngine(llm.NewMockClient(), testLogger(), 5, 2)
	if err := engine.Annotate(ctx, makePosts(50)); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
