// Package classify partitions fetched posts into categories using the LLM
// collaborator: discovery from a sample, then batched classification with
// bounded concurrency.
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/threadsight/threadsight/internal/llm"
	"github.com/threadsight/threadsight/internal/models"
)

const (
	defaultBatchSize     = 10
	defaultWorkers       = 4
	defaultNumCategories = 8
	maxSampleSize        = 100
)

// Engine runs the discovery and classification stages of a pipeline run.
type Engine struct {
	client    llm.Client
	logger    *slog.Logger
	batchSize int
	workers   int
}

// NewEngine creates a classification engine. Zero batchSize or workers fall
// back to defaults.
func NewEngine(client llm.Client, logger *slog.Logger, batchSize, workers int) *Engine {
	if batchSize < 1 {
		batchSize = defaultBatchSize
	}
	if workers < 1 {
		workers = defaultWorkers
	}
	return &Engine{
		client:    client,
		logger:    logger,
		batchSize: batchSize,
		workers:   workers,
	}
}

// Result is the outcome of one classification pass.
type Result struct {
	Categories   []string
	Unclassified int
}

// Run discovers categories (unless the caller supplied them) and classifies
// every post in place. Every post ends with either a category assignment or
// a nil category; the overall pass only fails when discovery fails or the
// context is cancelled.
func (e *Engine) Run(ctx context.Context, posts []models.Post, supplied []string, numCategories int) (Result, error) {
	if len(posts) == 0 {
		return Result{}, fmt.Errorf("no posts to classify")
	}

	categories := supplied
	if len(categories) == 0 {
		var err error
		categories, err = e.discover(ctx, posts, numCategories)
		if err != nil {
			return Result{}, err
		}
	} else {
		e.logger.Info("using caller-supplied categories", "count", len(categories))
	}

	unclassified, err := e.classifyAll(ctx, posts, categories)
	if err != nil {
		return Result{}, err
	}

	e.logger.Info("classification complete",
		"posts", len(posts),
		"categories", len(categories),
		"unclassified", unclassified)

	return Result{Categories: categories, Unclassified: unclassified}, nil
}

// discover derives category names from a sample of at most maxSampleSize
// posts spread evenly across the input.
func (e *Engine) discover(ctx context.Context, posts []models.Post, count int) ([]string, error) {
	if count < 1 {
		count = defaultNumCategories
	}

	sample := samplePosts(posts, maxSampleSize)
	e.logger.Info("discovering categories", "sample_size", len(sample), "requested", count)

	categories, err := e.client.DiscoverCategories(ctx, sample, count)
	if err != nil {
		return nil, fmt.Errorf("discover categories: %w", err)
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("discover categories: empty category list")
	}

	return categories, nil
}

type batchJob struct {
	offset int
	posts  []models.Post
}

type batchResult struct {
	offset       int
	assignments  []llm.Assignment
	unclassified int
	err          error
}

// classifyAll fans batches out to a bounded worker pool and writes the
// assignments back into the posts slice. A batch whose classification fails
// twice leaves its posts unclassified rather than failing the run.
func (e *Engine) classifyAll(ctx context.Context, posts []models.Post, categories []string) (int, error) {
	jobs := make(chan batchJob)
	results := make(chan batchResult)

	var wg sync.WaitGroup
	workers := e.workers
	if n := (len(posts) + e.batchSize - 1) / e.batchSize; n < workers {
		workers = n
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				results <- e.classifyBatch(ctx, job, categories)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for start := 0; start < len(posts); start += e.batchSize {
			end := start + e.batchSize
			if end > len(posts) {
				end = len(posts)
			}
			select {
			case jobs <- batchJob{offset: start, posts: posts[start:end]}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	unclassified := 0
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		for _, a := range res.assignments {
			p := &posts[res.offset+a.Index]
			cat := a.Category
			p.Category = &cat
			p.Confidence = a.Confidence
		}
		unclassified += res.unclassified
	}

	if firstErr != nil {
		return 0, firstErr
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	return unclassified, nil
}

// classifyBatch classifies one batch, retrying once on failure or incomplete
// coverage. Posts still uncovered after the retry stay unclassified.
func (e *Engine) classifyBatch(ctx context.Context, job batchJob, categories []string) batchResult {
	var assignments []llm.Assignment

	for attempt := 0; attempt < 2; attempt++ {
		if err := ctx.Err(); err != nil {
			return batchResult{offset: job.offset, err: err}
		}

		got, err := e.client.ClassifyBatch(ctx, job.posts, categories)
		if err != nil {
			e.logger.Warn("batch classification failed",
				"offset", job.offset,
				"attempt", attempt+1,
				"error", err)
			continue
		}

		assignments = got
		if len(assignments) == len(job.posts) {
			break
		}
		e.logger.Warn("batch classification incomplete",
			"offset", job.offset,
			"attempt", attempt+1,
			"covered", len(assignments),
			"batch", len(job.posts))
	}

	covered := make(map[int]bool, len(assignments))
	valid := assignments[:0]
	for _, a := range assignments {
		if a.Index < 0 || a.Index >= len(job.posts) || covered[a.Index] {
			continue
		}
		covered[a.Index] = true
		valid = append(valid, a)
	}

	return batchResult{
		offset:       job.offset,
		assignments:  valid,
		unclassified: len(job.posts) - len(valid),
	}
}

// samplePosts picks up to limit posts spread evenly across the input so the
// sample reflects the whole window, not just its head.
func samplePosts(posts []models.Post, limit int) []models.Post {
	if len(posts) <= limit {
		return posts
	}

	sample := make([]models.Post, 0, limit)
	step := float64(len(posts)) / float64(limit)
	for i := 0; i < limit; i++ {
		sample = append(sample, posts[int(float64(i)*step)])
	}
	return sample
}
