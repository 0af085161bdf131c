package llm

import (
	"fmt"
	"strings"

	"github.com/threadsight/threadsight/internal/models"
)

const discoverySystemPrompt = "You are an expert at content categorization and thematic analysis."

const annotateSystemPrompt = "You are a precise content analyst. Summarize each post in one sentence and judge its overall sentiment."

const classifySystemPrompt = "You are a precise text classifier. Analyze each post carefully and assign it to the most appropriate category."

const summarizeSystemPrompt = "You are an expert market insights analyst who transforms community discussions into actionable intelligence. You focus on patterns, sentiment, and practical recommendations."

func buildDiscoveryPrompt(sample []models.Post, count int) string {
	var summaries []string
	for _, p := range sample {
		s := "Title: " + p.Title
		if p.Body != "" {
			s += "\nContent: " + p.Excerpt(200)
		}
		if p.Flair != "" {
			s += "\nFlair: " + p.Flair
		}
		summaries = append(summaries, s)
	}

	return fmt.Sprintf(`You are analyzing posts from an online community to identify the main themes and topics.

Based on the following sample posts, generate %d distinct, meaningful category names that best represent the different types of content.

Requirements:
- Categories should be specific and descriptive (2-4 words each)
- Categories should cover diverse aspects of the content
- Categories should be mutually exclusive where possible
- Use title case (e.g., "Street Style", "Thrift Finds")
- Return ONLY the category names, one per line, no numbering or explanation

Sample Posts:
%s

Generate %d category names:`, count, strings.Join(summaries, "\n\n---\n\n"), count)
}

func buildAnnotatePrompt(batch []models.Post) string {
	var postBlocks []string
	for i, p := range batch {
		block := fmt.Sprintf("POST_%d:\nTitle: %s\n", i+1, p.Title)
		if p.Body != "" {
			block += "Content: " + p.Excerpt(500) + "\n"
		}
		for j, c := range p.Comments {
			if j == 3 {
				break
			}
			block += "Comment: " + c.Body + "\n"
		}
		postBlocks = append(postBlocks, block)
	}

	return fmt.Sprintf(`For each post below, write a one-sentence summary and classify the overall sentiment as positive, neutral, or negative. Consider the comments where provided.

Format: POST_X: <summary> || SENTIMENT: <label>

Example response:
POST_1: Asks for advice on layering clothes for cold-weather hikes. || SENTIMENT: neutral
POST_2: Praises a new trail shoe after six months of heavy use. || SENTIMENT: positive

Posts:
%s

Your annotations:`, strings.Join(postBlocks, "\n\n"))
}

func buildClassifyPrompt(batch []models.Post, categories []string) string {
	var catLines []string
	for i, c := range categories {
		catLines = append(catLines, fmt.Sprintf("%d. %s", i+1, c))
	}

	var postBlocks []string
	for i, p := range batch {
		block := fmt.Sprintf("POST_%d:\nTitle: %s\n", i+1, p.Title)
		if p.Body != "" {
			block += "Content: " + p.Excerpt(300) + "\n"
		}
		if p.Flair != "" {
			block += "Flair: " + p.Flair + "\n"
		}
		postBlocks = append(postBlocks, block)
	}

	return fmt.Sprintf(`Categorize each post into ONE of the following categories:

%s

For each post, respond with ONLY the category number (1-%d) followed by a confidence score (0.0-1.0).
Format: POST_X: <category_number> <confidence>

Example response:
POST_1: 3 0.85
POST_2: 1 0.92

Posts to categorize:
%s

Your categorization:`, strings.Join(catLines, "\n"), len(categories), strings.Join(postBlocks, "\n\n"))
}

func buildSummarizePrompt(category string, posts []models.Post) string {
	var avgScore, avgComments float64
	var pos, neg int
	top := posts[0]
	for _, p := range posts {
		avgScore += float64(p.Score)
		avgComments += float64(p.NumComments)
		switch p.Sentiment.Bucket {
		case models.SentimentPositive:
			pos++
		case models.SentimentNegative:
			neg++
		}
		if p.Score > top.Score {
			top = p
		}
	}
	avgScore /= float64(len(posts))
	avgComments /= float64(len(posts))
	neu := len(posts) - pos - neg

	limit := posts
	if len(limit) > 50 {
		limit = limit[:50]
	}
	var lines []string
	for _, p := range limit {
		line := fmt.Sprintf("- [%s] (↑%d, %d comments) [%s] %s",
			p.CreatedAt.Format("2006-01-02"), p.Score, p.NumComments, p.Sentiment.Bucket, p.Title)
		if p.Body != "" {
			line += "\n  " + p.Excerpt(200)
		}
		lines = append(lines, line)
	}

	return fmt.Sprintf(`Analyze these %d posts in the "%s" category.

Engagement Stats:
- Average Score: %.1f upvotes
- Average Comments: %.1f
Sentiment Distribution:
- Positive: %d
- Neutral: %d
- Negative: %d

Top Post: "%s" (%d score)

Your task:
1. Identify 2-3 main themes across all posts
2. Detect any temporal patterns or trends
3. Assess overall user sentiment
4. Provide 2-3 actionable recommendations

Posts (showing up to 50):
%s`, len(posts), category, avgScore, avgComments, pos, neu, neg, top.Title, top.Score, strings.Join(lines, "\n\n"))
}
