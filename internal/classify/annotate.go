package classify

import (
	"context"
	"sync"

	"github.com/threadsight/threadsight/internal/llm"
	"github.com/threadsight/threadsight/internal/models"
)

type annotateResult struct {
	offset      int
	annotations []llm.Annotation
	err         error
}

// Annotate fills each post's summary and sentiment from the LLM, in the same
// batches and worker pool bounds as classification. A batch whose annotation
// fails twice keeps its posts' prior values (no summary, neutral sentiment)
// rather than failing the run.
func (e *Engine) Annotate(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	jobs := make(chan batchJob)
	results := make(chan annotateResult)

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
				results <- e.annotateBatch(ctx, job)
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

	annotated := 0
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		for _, a := range res.annotations {
			p := &posts[res.offset+a.Index]
			p.Summary = a.Summary
			if a.Sentiment != "" {
				p.Sentiment = models.NormalizeSentiment(a.Sentiment)
			}
			annotated++
		}
	}

	if firstErr != nil {
		return firstErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.logger.Info("annotation complete",
		"posts", len(posts),
		"annotated", annotated)
	return nil
}

// annotateBatch annotates one batch, retrying once on failure or incomplete
// coverage. Posts still uncovered after the retry keep their defaults.
func (e *Engine) annotateBatch(ctx context.Context, job batchJob) annotateResult {
	var annotations []llm.Annotation

	for attempt := 0; attempt < 2; attempt++ {
		if err := ctx.Err(); err != nil {
			return annotateResult{offset: job.offset, err: err}
		}

		got, err := e.client.AnnotateBatch(ctx, job.posts)
		if err != nil {
			e.logger.Warn("batch annotation failed",
				"offset", job.offset,
				"attempt", attempt+1,
				"error", err)
			continue
		}

		annotations = got
		if len(annotations) == len(job.posts) {
			break
		}
		e.logger.Warn("batch annotation incomplete",
			"offset", job.offset,
			"attempt", attempt+1,
			"covered", len(annotations),
			"batch", len(job.posts))
	}

	covered := make(map[int]bool, len(annotations))
	valid := annotations[:0]
	for _, a := range annotations {
		if a.Index < 0 || a.Index >= len(job.posts) || covered[a.Index] {
			continue
		}
		covered[a.Index] = true
		valid = append(valid, a)
	}

	return annotateResult{offset: job.offset, annotations: valid}
}
