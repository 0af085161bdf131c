// Package pipeline orchestrates one analysis run end to end: window
// computation, fetch, classification, aggregation, and atomic publication.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/threadsight/threadsight/internal/classify"
	"github.com/threadsight/threadsight/internal/fetch"
	"github.com/threadsight/threadsight/internal/insights"
	"github.com/threadsight/threadsight/internal/llm"
	"github.com/threadsight/threadsight/internal/metrics"
	"github.com/threadsight/threadsight/internal/models"
	"github.com/threadsight/threadsight/internal/runstore"
)

// Pipeline executes analysis runs against a shared fetcher, LLM collaborator,
// and run store. It is safe for concurrent use; each Execute call is
// independent.
type Pipeline struct {
	fetcher fetch.Fetcher
	client  llm.Client
	engine  *classify.Engine
	store   *runstore.Store
	metrics *metrics.Collector
	logger  *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// New assembles a pipeline from its collaborators.
func New(fetcher fetch.Fetcher, client llm.Client, engine *classify.Engine, store *runstore.Store, collector *metrics.Collector, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		fetcher: fetcher,
		client:  client,
		engine:  engine,
		store:   store,
		metrics: collector,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Execute runs one job to completion and returns the published run directory.
// Failures before publication leave no visible state.
func (p *Pipeline) Execute(ctx context.Context, job models.Job) (string, error) {
	cfg := job.Config
	logger := p.logger.With("job_id", job.ID, "source", cfg.Source, "mode", cfg.Mode)

	window, err := ComputeWindow(cfg, p.store, p.now())
	if err != nil {
		return "", err
	}

	logger.Info("run starting",
		"window_start", window.Start.Format(time.RFC3339),
		"window_end", window.End.Format(time.RFC3339),
		"max_posts", cfg.MaxPosts)

	posts, err := p.timedFetch(ctx, cfg.Source, window, cfg.MaxPosts)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	if len(posts) == 0 {
		return "", fmt.Errorf("no posts in window for source %s", cfg.Source)
	}

	if err := p.timedAnnotate(ctx, posts); err != nil {
		return "", fmt.Errorf("annotate: %w", err)
	}

	result, err := p.timedClassify(ctx, posts, cfg)
	if err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}

	stats, categoryInsights, err := p.timedAggregate(ctx, posts, result.Categories, cfg.MinClusterSize)
	if err != nil {
		return "", fmt.Errorf("aggregate: %w", err)
	}

	snap := &models.Snapshot{
		Metadata: models.RunMetadata{
			Source:       cfg.Source,
			Timestamp:    p.now(),
			Window:       window,
			NumPosts:     len(posts),
			Unclassified: result.Unclassified,
			NumInsights:  len(categoryInsights),
		},
		Categories: stats,
		Insights:   categoryInsights,
		Posts:      posts,
	}

	start := time.Now()
	dir, err := p.store.Publish(job.ID, snap)
	if err != nil {
		return "", fmt.Errorf("publish: %w", err)
	}
	p.metrics.ObserveStage("publish", time.Since(start))
	p.metrics.AddPosts(len(posts))

	logger.Info("run published",
		"directory", dir,
		"posts", len(posts),
		"categories", len(stats),
		"insights", len(categoryInsights),
		"unclassified", result.Unclassified)

	return dir, nil
}

func (p *Pipeline) timedFetch(ctx context.Context, source string, window models.Window, maxPosts int) ([]models.Post, error) {
	start := time.Now()
	posts, err := p.fetcher.Fetch(ctx, source, window, maxPosts)
	if err != nil {
		return nil, err
	}
	p.metrics.ObserveStage("fetch", time.Since(start))
	return posts, nil
}

func (p *Pipeline) timedAnnotate(ctx context.Context, posts []models.Post) error {
	start := time.Now()
	if err := p.engine.Annotate(ctx, posts); err != nil {
		return err
	}
	p.metrics.ObserveStage("annotate", time.Since(start))
	return nil
}

func (p *Pipeline) timedClassify(ctx context.Context, posts []models.Post, cfg models.JobConfig) (classify.Result, error) {
	start := time.Now()
	result, err := p.engine.Run(ctx, posts, cfg.Categories, cfg.NumCategories)
	if err != nil {
		return classify.Result{}, err
	}
	p.metrics.ObserveStage("classify", time.Since(start))
	return result, nil
}

func (p *Pipeline) timedAggregate(ctx context.Context, posts []models.Post, categories []string, minClusterSize int) ([]models.CategoryStats, []models.Insight, error) {
	start := time.Now()
	agg := insights.NewAggregator(p.client, p.logger, minClusterSize)
	stats, out, err := agg.Aggregate(ctx, posts, categories)
	if err != nil {
		return nil, nil, err
	}
	p.metrics.ObserveStage("aggregate", time.Since(start))
	return stats, out, nil
}
