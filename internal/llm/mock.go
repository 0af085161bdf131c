package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/threadsight/threadsight/internal/models"
)

// MockClient provides a deterministic, rule-based implementation of Client
// for tests and for running the service without API credentials. The same
// input always yields the same category partition.
type MockClient struct {
	// DiscoverErr, AnnotateErr, ClassifyErr and SummarizeErr force the
	// corresponding call to fail, for exercising degradation paths.
	DiscoverErr  error
	AnnotateErr  error
	ClassifyErr  error
	SummarizeErr error

	// FailBatches maps a batch fingerprint (first post ID) to how many
	// remaining calls for that batch should return a malformed result.
	FailBatches map[string]int

	mu sync.Mutex
}

// NewMockClient creates a mock LLM collaborator.
func NewMockClient() *MockClient {
	return &MockClient{FailBatches: map[string]int{}}
}

// DiscoverCategories returns generic topical names derived from the sample.
func (m *MockClient) DiscoverCategories(ctx context.Context, sample []models.Post, count int) ([]string, error) {
	if m.DiscoverErr != nil {
		return nil, m.DiscoverErr
	}

	categories := make([]string, 0, count)
	for i := 0; i < count; i++ {
		categories = append(categories, fmt.Sprintf("Topic %c", 'A'+i))
	}
	return categories, nil
}

// AnnotateBatch produces a canned summary and a sentiment label derived from
// hashing each post's ID, so runs over the same posts get the same labels.
func (m *MockClient) AnnotateBatch(ctx context.Context, batch []models.Post) ([]Annotation, error) {
	if m.AnnotateErr != nil {
		return nil, m.AnnotateErr
	}

	labels := []string{"positive", "neutral", "negative"}
	out := make([]Annotation, 0, len(batch))
	for i, p := range batch {
		out = append(out, Annotation{
			Index:     i,
			Summary:   fmt.Sprintf("One-line recap of %q.", p.Title),
			Sentiment: labels[hashID(p.ID)%uint32(len(labels))],
		})
	}
	return out, nil
}

// ClassifyBatch assigns each post by hashing its ID across the categories.
func (m *MockClient) ClassifyBatch(ctx context.Context, batch []models.Post, categories []string) ([]Assignment, error) {
	if m.ClassifyErr != nil {
		return nil, m.ClassifyErr
	}

	if len(batch) > 0 {
		m.mu.Lock()
		remaining, ok := m.FailBatches[batch[0].ID]
		if ok && remaining > 0 {
			m.FailBatches[batch[0].ID] = remaining - 1
		}
		m.mu.Unlock()
		if ok && remaining > 0 {
			// Simulate a truncated response covering only the
			// first post.
			if len(batch) > 1 {
				return []Assignment{{Index: 0, Category: categories[0], Confidence: 0.5}}, nil
			}
			return nil, fmt.Errorf("malformed classification response")
		}
	}

	out := make([]Assignment, 0, len(batch))
	for i, p := range batch {
		cat := int(hashID(p.ID) % uint32(len(categories)))
		out = append(out, Assignment{
			Index:      i,
			Category:   categories[cat],
			Confidence: 0.6 + 0.4*float64(cat)/float64(len(categories)),
		})
	}
	return out, nil
}

func hashID(id string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(id))
	return h.Sum32()
}

// Summarize returns a canned narrative referencing the category stats.
func (m *MockClient) Summarize(ctx context.Context, category string, posts []models.Post) (string, error) {
	if m.SummarizeErr != nil {
		return "", m.SummarizeErr
	}

	var titles []string
	limit := posts
	if len(limit) > 3 {
		limit = limit[:3]
	}
	for _, p := range limit {
		titles = append(titles, p.Title)
	}

	return fmt.Sprintf("%d posts discuss %s. Representative threads: %s.",
		len(posts), category, strings.Join(titles, "; ")), nil
}
