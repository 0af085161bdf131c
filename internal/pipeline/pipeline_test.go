package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/threadsight/threadsight/internal/classify"
	"github.com/threadsight/threadsight/internal/fetch"
	"github.com/threadsight/threadsight/internal/llm"
	"github.com/threadsight/threadsight/internal/metrics"
	"github.com/threadsight/threadsight/internal/models"
	"github.com/threadsight/threadsight/internal/runstore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testPipeline(t *testing.T, fetcher fetch.Fetcher) (*Pipeline, *runstore.Store) {
	t.Helper()

	store, err := runstore.NewStore(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	collector, err := metrics.NewCollector()
	if err != nil {
		t.Fatalf("NewCollector failed: %v", err)
	}

	client := llm.NewMockClient()
	engine := classify.NewEngine(client, testLogger(), 10, 2)
	p := New(fetcher, client, engine, store, collector, testLogger())
	p.now = func() time.Time { return time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC) }
	return p, store
}

func testJob() models.Job {
	return models.Job{
		ID: "job-1",
		Config: models.JobConfig{
			Source:         "hiking",
			Mode:           models.RunModeNew,
			LookbackDays:   14,
			MaxPosts:       100,
			MinClusterSize: 2,
			NumCategories:  4,
		},
	}
}

func TestExecutePublishesSnapshot(t *testing.T) {
	p, store := testPipeline(t, &fetch.StubFetcher{PostsPerSource: 40})

	dir, err := p.Execute(context.Background(), testJob())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if dir == "" {
		t.Fatal("expected a published directory name")
	}

	snap, err := store.Latest("hiking")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}

	if snap.Metadata.NumPosts != 40 {
		t.Errorf("num posts = %d, want 40", snap.Metadata.NumPosts)
	}
	if snap.Metadata.Unclassified != 0 {
		t.Errorf("unclassified = %d, want 0", snap.Metadata.Unclassified)
	}
	if len(snap.Categories) == 0 || len(snap.Insights) == 0 {
		t.Errorf("expected categories and insights, got %d/%d", len(snap.Categories), len(snap.Insights))
	}
	if snap.Metadata.NumInsights != len(snap.Insights) {
		t.Errorf("metadata insight count %d != %d", snap.Metadata.NumInsights, len(snap.Insights))
	}
	for i, post := range snap.Posts {
		if post.Summary == "" {
			t.Errorf("post %d published without a summary", i)
		}
	}

	want := models.Window{
		Start: time.Date(2026, 8, 6, 12, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
	}
	if !snap.Metadata.Window.Start.Equal(want.Start) || !snap.Metadata.Window.End.Equal(want.End) {
		t.Errorf("window = %+v, want %+v", snap.Metadata.Window, want)
	}
}

func TestExecuteFetchFailureLeavesNoRun(t *testing.T) {
	p, store := testPipeline(t, &fetch.StubFetcher{Err: fetch.ErrRateLimited})

	if _, err := p.Execute(context.Background(), testJob()); !errors.Is(err, fetch.ErrRateLimited) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if _, err := store.Latest("hiking"); !errors.Is(err, runstore.ErrNotFound) {
		t.Errorf("failed run must not publish, got %v", err)
	}
}

func TestExecuteEmptyWindowFails(t *testing.T) {
	p, store := testPipeline(t, &fetch.StubFetcher{PostsPerSource: 5})

	// Post cap of zero yields an empty fetch result.
	job := testJob()
	job.Config.MaxPosts = 0

	if _, err := p.Execute(context.Background(), job); err == nil {
		t.Fatal("expected error when the window yields no posts")
	}
	if _, err := store.Latest("hiking"); !errors.Is(err, runstore.ErrNotFound) {
		t.Errorf("empty run must not publish, got %v", err)
	}
}

func TestExecuteUpdateModeRequiresPriorRun(t *testing.T) {
	p, _ := testPipeline(t, &fetch.StubFetcher{PostsPerSource: 20})

	job := testJob()
	job.Config.Mode = models.RunModeUpdate

	if _, err := p.Execute(context.Background(), job); !errors.Is(err, ErrNoPriorRun) {
		t.Fatalf("expected ErrNoPriorRun, got %v", err)
	}
}

func TestExecuteUpdateModeAfterNewRun(t *testing.T) {
	p, store := testPipeline(t, &fetch.StubFetcher{PostsPerSource: 20})

	if _, err := p.Execute(context.Background(), testJob()); err != nil {
		t.Fatalf("initial run failed: %v", err)
	}

	// Distinct publish timestamp so the directory names differ.
	p.now = func() time.Time { return time.Date(2026, 8, 21, 9, 0, 0, 0, time.UTC) }

	job := testJob()
	job.ID = "job-2"
	job.Config.Mode = models.RunModeUpdate

	if _, err := p.Execute(context.Background(), job); err != nil {
		t.Fatalf("update run failed: %v", err)
	}

	history, err := store.History("hiking")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(history))
	}

	update := history[1]
	priorEnd := history[0].Window.End
	if !update.Window.Start.Equal(priorEnd.Add(-updateOverlap)) {
		t.Errorf("update window start = %v, want prior end minus overlap", update.Window.Start)
	}
}

func TestExecuteWithSuppliedCategories(t *testing.T) {
	p, store := testPipeline(t, &fetch.StubFetcher{PostsPerSource: 20})

	job := testJob()
	job.Config.Categories = []string{"Gear Talk", "Trail Conditions"}

	if _, err := p.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	snap, err := store.Latest("hiking")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	for _, s := range snap.Categories {
		if s.Name != "Gear Talk" && s.Name != "Trail Conditions" {
			t.Errorf("unexpected category %q", s.Name)
		}
	}
	for _, p := range snap.Posts {
		if !p.Classified() {
			continue
		}
		if got := *p.Category; got != "Gear Talk" && got != "Trail Conditions" {
			t.Errorf("post assigned unknown category %q", got)
		}
	}
}

func TestExecuteLogsAndWrapsStageErrors(t *testing.T) {
	p, _ := testPipeline(t, &fetch.StubFetcher{Err: fmt.Errorf("boom")})

	_, err := p.Execute(context.Background(), testJob())
	if err == nil {
		t.Fatal("expected error")
	}
	var fe *fetch.FetchError
	if !errors.As(err, &fe) {
		t.Errorf("expected FetchError in chain, got %v", err)
	}
}
