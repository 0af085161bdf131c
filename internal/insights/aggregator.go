// Package insights turns classified posts into per-category statistics and
// narrative insights.
package insights

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/threadsight/threadsight/internal/llm"
	"github.com/threadsight/threadsight/internal/models"
)

const (
	topPostCount = 3

	// failedNarrative is published when synthesis fails for a category so
	// the snapshot stays complete. The statistics block is still accurate.
	failedNarrative = "Narrative generation failed for this category."
)

// Aggregator computes category statistics and synthesizes narratives.
type Aggregator struct {
	client         llm.Client
	logger         *slog.Logger
	minClusterSize int
}

// NewAggregator creates an insight aggregator. Categories with fewer than
// minClusterSize posts get statistics but no narrative.
func NewAggregator(client llm.Client, logger *slog.Logger, minClusterSize int) *Aggregator {
	if minClusterSize < 1 {
		minClusterSize = 1
	}
	return &Aggregator{
		client:         client,
		logger:         logger,
		minClusterSize: minClusterSize,
	}
}

// Aggregate groups classified posts by category and produces the stats and
// insight blocks of a snapshot. Every discovered or supplied category gets a
// stats record, including categories no post was assigned to. Unclassified
// posts are excluded. Output is ordered by descending post count, ties broken
// by category name.
func (a *Aggregator) Aggregate(ctx context.Context, posts []models.Post, categories []string) ([]models.CategoryStats, []models.Insight, error) {
	groups := make(map[string][]models.Post)
	for _, p := range posts {
		if !p.Classified() {
			continue
		}
		groups[*p.Category] = append(groups[*p.Category], p)
	}

	ordered := make([]string, 0, len(categories))
	seen := make(map[string]bool, len(categories))
	for _, c := range categories {
		if seen[c] {
			continue
		}
		seen[c] = true
		ordered = append(ordered, c)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if len(groups[ordered[i]]) != len(groups[ordered[j]]) {
			return len(groups[ordered[i]]) > len(groups[ordered[j]])
		}
		return ordered[i] < ordered[j]
	})

	var stats []models.CategoryStats
	var out []models.Insight

	for _, name := range ordered {
		members := groups[name]
		cs := computeStats(name, members)

		if len(members) < a.minClusterSize {
			cs.InsufficientData = true
			stats = append(stats, cs)
			a.logger.Info("category below cluster threshold, skipping narrative",
				"category", name,
				"posts", len(members),
				"min_cluster_size", a.minClusterSize)
			continue
		}
		stats = append(stats, cs)

		insight := models.Insight{
			ID:              slugify(name),
			Category:        name,
			NumPosts:        len(members),
			AvgSentiment:    cs.AvgSentiment,
			TotalEngagement: cs.AvgEngagement * float64(len(members)),
			TimeRange:       cs.TimeRange,
			TopPosts:        topPosts(members, topPostCount),
		}

		narrative, err := a.client.Summarize(ctx, name, members)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			a.logger.Warn("narrative synthesis failed",
				"category", name,
				"error", err)
			insight.Narrative = failedNarrative
			insight.NarrativeFailed = true
		} else {
			insight.Narrative = narrative
		}

		out = append(out, insight)
	}

	return stats, out, nil
}

func computeStats(name string, members []models.Post) models.CategoryStats {
	cs := models.CategoryStats{Name: name, NumPosts: len(members)}
	if len(members) == 0 {
		return cs
	}

	counts := map[models.SentimentBucket]int{}
	window := models.Window{Start: members[0].CreatedAt, End: members[0].CreatedAt}

	for _, p := range members {
		cs.AvgEngagement += p.Engagement()
		cs.AvgScore += float64(p.Score)
		cs.AvgComments += float64(p.NumComments)
		cs.AvgSentiment += p.Sentiment.Score
		counts[p.Sentiment.Bucket]++
		if p.CreatedAt.Before(window.Start) {
			window.Start = p.CreatedAt
		}
		if p.CreatedAt.After(window.End) {
			window.End = p.CreatedAt
		}
	}

	n := float64(len(members))
	cs.AvgEngagement /= n
	cs.AvgScore /= n
	cs.AvgComments /= n
	cs.AvgSentiment /= n
	cs.DominantBucket = dominantBucket(counts)
	cs.TimeRange = &window

	return cs
}

// dominantBucket picks the most frequent sentiment bucket. Ties resolve
// positive over negative over neutral.
func dominantBucket(counts map[models.SentimentBucket]int) models.SentimentBucket {
	order := []models.SentimentBucket{
		models.SentimentPositive,
		models.SentimentNegative,
		models.SentimentNeutral,
	}

	best := models.SentimentNeutral
	bestCount := -1
	for _, b := range order {
		if counts[b] > bestCount {
			best = b
			bestCount = counts[b]
		}
	}
	return best
}

// topPosts returns the n highest-engagement posts as compact references.
func topPosts(members []models.Post, n int) []models.TopPost {
	ranked := make([]models.Post, len(members))
	copy(ranked, members)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Engagement() > ranked[j].Engagement()
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}

	out := make([]models.TopPost, 0, len(ranked))
	for _, p := range ranked {
		out = append(out, models.TopPost{
			ID:          p.ID,
			Title:       p.Title,
			Score:       p.Score,
			NumComments: p.NumComments,
			Sentiment:   p.Sentiment.Bucket,
			CreatedAt:   p.CreatedAt,
			Permalink:   p.Permalink,
		})
	}
	return out
}

// slugify derives a stable insight identifier from a category name.
func slugify(name string) string {
	var b strings.Builder
	prevDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
