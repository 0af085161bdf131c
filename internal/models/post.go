package models

import "time"

// Post is a single content item fetched from a source community.
type Post struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
	Title       string    `json:"title"`
	Body        string    `json:"body,omitempty"`
	Author      string    `json:"author,omitempty"`
	Score       int       `json:"score"`
	NumComments int       `json:"num_comments"`
	Flair       string    `json:"flair,omitempty"`
	Permalink   string    `json:"permalink,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Sentiment   Sentiment `json:"sentiment"`
	Comments    []Comment `json:"comments,omitempty"`

	// Set by classification. A nil Category means the post could not be
	// classified; it stays in the raw record but is excluded from
	// per-category statistics.
	Category   *string `json:"category"`
	Confidence float64 `json:"confidence"`
}

// Comment is a reply attached to a post, kept for classification context.
type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author,omitempty"`
	Body      string    `json:"body"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// Engagement is the combined engagement signal used for ranking and averages.
func (p Post) Engagement() float64 {
	return float64(p.Score + p.NumComments)
}

// Classified reports whether the post received a category assignment.
func (p Post) Classified() bool {
	return p.Category != nil
}

// Excerpt returns at most n runes of the post body for prompt construction.
func (p Post) Excerpt(n int) string {
	runes := []rune(p.Body)
	if len(runes) <= n {
		return p.Body
	}
	return string(runes[:n]) + "..."
}
