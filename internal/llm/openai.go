package llm

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"log/slog"

	openai "github.com/sashabaranov/go-openai"
	"github.com/threadsight/threadsight/internal/config"
	"github.com/threadsight/threadsight/internal/models"
)

// OpenAIClient implements Client against the OpenAI chat completion API.
type OpenAIClient struct {
	client *openai.Client
	cfg    config.OpenAIConfig
	logger *slog.Logger
}

// NewOpenAIClient creates an OpenAI-backed LLM collaborator.
func NewOpenAIClient(cfg config.OpenAIConfig, logger *slog.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key not configured")
	}

	logger.Info("initialized openai client",
		"model", cfg.Model,
		"temperature", cfg.Temperature)

	return &OpenAIClient{
		client: openai.NewClient(cfg.APIKey),
		cfg:    cfg,
		logger: logger,
	}, nil
}

// DiscoverCategories implements Client.
func (c *OpenAIClient) DiscoverCategories(ctx context.Context, sample []models.Post, count int) ([]string, error) {
	raw, err := c.complete(ctx, discoverySystemPrompt, buildDiscoveryPrompt(sample, count), 0.7)
	if err != nil {
		return nil, fmt.Errorf("category discovery: %w", err)
	}

	categories := parseCategoryList(raw, count)
	if len(categories) == 0 {
		return nil, fmt.Errorf("category discovery returned no usable names")
	}

	c.logger.Info("categories discovered", "count", len(categories))
	return categories, nil
}

// AnnotateBatch implements Client.
func (c *OpenAIClient) AnnotateBatch(ctx context.Context, batch []models.Post) ([]Annotation, error) {
	raw, err := c.complete(ctx, annotateSystemPrompt, buildAnnotatePrompt(batch), c.cfg.Temperature)
	if err != nil {
		return nil, fmt.Errorf("annotate batch: %w", err)
	}

	return parseAnnotations(raw, len(batch))
}

// ClassifyBatch implements Client.
func (c *OpenAIClient) ClassifyBatch(ctx context.Context, batch []models.Post, categories []string) ([]Assignment, error) {
	raw, err := c.complete(ctx, classifySystemPrompt, buildClassifyPrompt(batch, categories), c.cfg.Temperature)
	if err != nil {
		return nil, fmt.Errorf("classify batch: %w", err)
	}

	return parseAssignments(raw, len(batch), categories)
}

// Summarize implements Client.
func (c *OpenAIClient) Summarize(ctx context.Context, category string, posts []models.Post) (string, error) {
	raw, err := c.complete(ctx, summarizeSystemPrompt, buildSummarizePrompt(category, posts), 0.6)
	if err != nil {
		return "", fmt.Errorf("summarize %q: %w", category, err)
	}

	narrative := strings.TrimSpace(raw)
	if narrative == "" {
		return "", fmt.Errorf("summarize %q: empty response", category)
	}

	return narrative, nil
}

// complete issues one chat completion with rate-limit retry. Rate-limit
// responses (429) back off exponentially with jitter, up to three attempts.
func (c *OpenAIClient) complete(ctx context.Context, system, user string, temperature float32) (string, error) {
	const maxRetries = 3
	baseDelay := 1 * time.Second

	timeout := 120
	if c.cfg.Timeout > 0 {
		timeout = c.cfg.Timeout
	}

	var resp openai.ChatCompletionResponse
	var err error

	for attempt := 0; attempt < maxRetries; attempt++ {
		apiCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)

		start := time.Now()
		resp, err = c.client.CreateChatCompletion(apiCtx, openai.ChatCompletionRequest{
			Model:               c.cfg.Model,
			Temperature:         temperature,
			MaxCompletionTokens: c.cfg.MaxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
		})
		cancel()

		c.logger.Debug("openai call complete",
			"attempt", attempt+1,
			"duration_ms", time.Since(start).Milliseconds(),
			"success", err == nil)

		if err == nil {
			break
		}

		if isRateLimit(err) && attempt < maxRetries-1 {
			delay := baseDelay*time.Duration(1<<uint(attempt)) + time.Duration(rand.Intn(500))*time.Millisecond
			c.logger.Warn("rate limited, retrying with backoff",
				"attempt", attempt+1,
				"delay_ms", delay.Milliseconds())
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			continue
		}

		break
	}

	if err != nil {
		return "", fmt.Errorf("openai api call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned from model %s", c.cfg.Model)
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("empty response from model %s (finish_reason: %s)", c.cfg.Model, resp.Choices[0].FinishReason)
	}

	return content, nil
}

func isRateLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "Too Many Requests") ||
		strings.Contains(msg, "Rate limit")
}
