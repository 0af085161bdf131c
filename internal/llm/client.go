// Package llm wraps the language-model collaborator behind a small interface:
// category discovery, per-post annotation, batch classification, and
// narrative synthesis.
package llm

import (
	"context"

	"github.com/threadsight/threadsight/internal/models"
)

// Assignment is one classification result within a batch. Index is the
// zero-based position of the post in the submitted batch.
type Assignment struct {
	Index      int
	Category   string
	Confidence float64
}

// Annotation is one per-post enrichment result within a batch: a one-line
// summary and a sentiment label. Index is the zero-based position of the
// post in the submitted batch.
type Annotation struct {
	Index     int
	Summary   string
	Sentiment string
}

// Client is the language-model collaborator consumed by the categorization
// engine and the insight aggregator.
type Client interface {
	// DiscoverCategories derives count category names from a sample of
	// posts.
	DiscoverCategories(ctx context.Context, sample []models.Post, count int) ([]string, error)

	// AnnotateBatch produces a one-line summary and sentiment label for
	// each post in the batch. A response that omits posts yields a
	// partial result; the caller decides how to handle gaps.
	AnnotateBatch(ctx context.Context, batch []models.Post) ([]Annotation, error)

	// ClassifyBatch assigns each post in the batch to one of the given
	// categories. A response that omits posts yields a partial result;
	// the caller decides how to handle gaps.
	ClassifyBatch(ctx context.Context, batch []models.Post, categories []string) ([]Assignment, error)

	// Summarize produces a narrative insight for a category from its
	// member posts. The result is free text; only non-emptiness is
	// guaranteed by implementations.
	Summarize(ctx context.Context, category string, posts []models.Post) (string, error)
}
