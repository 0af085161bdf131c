package models

import (
	"strconv"
	"strings"
)

// SentimentBucket is the coarse sentiment class of a post.
type SentimentBucket string

const (
	SentimentPositive SentimentBucket = "positive"
	SentimentNeutral  SentimentBucket = "neutral"
	SentimentNegative SentimentBucket = "negative"
)

// Sentiment is the normalized sentiment representation. Upstream systems
// deliver sentiment either as a label ("positive") or a numeric value; both
// are folded into a score in [-1, 1] plus a derived bucket at ingestion so
// downstream aggregation never branches on representation.
type Sentiment struct {
	Score  float64         `json:"score"`
	Bucket SentimentBucket `json:"bucket"`
}

// NormalizeSentiment converts a raw sentiment value into the canonical form.
// Accepted inputs: "positive"/"neutral"/"negative" labels (any case, prefix
// match), or a numeric string in [-1, 1]. Anything else maps to neutral.
func NormalizeSentiment(raw string) Sentiment {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Sentiment{Score: 0, Bucket: SentimentNeutral}
	}

	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return SentimentFromScore(v)
	}

	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "pos"):
		return Sentiment{Score: 1, Bucket: SentimentPositive}
	case strings.HasPrefix(lower, "neg"):
		return Sentiment{Score: -1, Bucket: SentimentNegative}
	default:
		return Sentiment{Score: 0, Bucket: SentimentNeutral}
	}
}

// SentimentFromScore derives the bucket for a numeric score, clamped to [-1, 1].
func SentimentFromScore(score float64) Sentiment {
	score = clampScore(score)
	s := Sentiment{Score: score}
	switch {
	case score > 0.25:
		s.Bucket = SentimentPositive
	case score < -0.25:
		s.Bucket = SentimentNegative
	default:
		s.Bucket = SentimentNeutral
	}
	return s
}

func clampScore(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
