package models

import "time"

// Window is the fetch window covered by a run.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CategoryStats is the per-category aggregate block of a snapshot.
type CategoryStats struct {
	Name             string          `json:"name"`
	NumPosts         int             `json:"num_posts"`
	AvgEngagement    float64         `json:"avg_engagement"`
	AvgScore         float64         `json:"avg_score"`
	AvgComments      float64         `json:"avg_comments"`
	AvgSentiment     float64         `json:"avg_sentiment"`
	DominantBucket   SentimentBucket `json:"dominant_sentiment"`
	TimeRange        *Window         `json:"time_range,omitempty"`
	InsufficientData bool            `json:"insufficient_data,omitempty"`
}

// TopPost is a compact reference to a high-engagement post inside an insight.
type TopPost struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Score       int             `json:"score"`
	NumComments int             `json:"num_comments"`
	Sentiment   SentimentBucket `json:"sentiment"`
	CreatedAt   time.Time       `json:"created_at"`
	Permalink   string          `json:"permalink,omitempty"`
}

// Insight is the synthesized narrative for one category.
type Insight struct {
	ID              string    `json:"id"`
	Category        string    `json:"category"`
	Narrative       string    `json:"narrative"`
	NarrativeFailed bool      `json:"narrative_failed,omitempty"`
	NumPosts        int       `json:"num_posts"`
	AvgSentiment    float64   `json:"avg_sentiment"`
	TotalEngagement float64   `json:"total_engagement"`
	TimeRange       *Window   `json:"time_range,omitempty"`
	TopPosts        []TopPost `json:"top_posts"`
}

// RunMetadata summarizes one run without its payload.
type RunMetadata struct {
	Source       string    `json:"source"`
	Timestamp    time.Time `json:"timestamp"`
	Window       Window    `json:"window"`
	NumPosts     int       `json:"num_posts"`
	Unclassified int       `json:"unclassified"`
	NumInsights  int       `json:"num_insights"`
	Directory    string    `json:"directory"`
}

// Snapshot is the consolidated, queryable document for one run. It is
// immutable once published.
type Snapshot struct {
	Metadata   RunMetadata     `json:"metadata"`
	Categories []CategoryStats `json:"categories"`
	Insights   []Insight       `json:"insights"`
	Posts      []Post          `json:"posts"`
}

// SourceInfo describes a source with at least one published run.
type SourceInfo struct {
	Name      string    `json:"name"`
	NumPosts  int       `json:"num_posts"`
	DateRange Window    `json:"date_range"`
	UpdatedAt time.Time `json:"updated_at"`
}
