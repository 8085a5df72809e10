// Package openai wraps the embeddings and chat completion endpoints used by
// the full-text indexer.
package openai

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	goopenai "github.com/sashabaranov/go-openai"

	"github.com/sells-group/autotrans-cli/internal/resilience"
)

// Client defines the OpenAI operations used by the indexer.
type Client interface {
	Embed(ctx context.Context, text string) (*EmbedResult, error)
	Chat(ctx context.Context, req ChatRequest) (*ChatResult, error)
}

// EmbedResult is one embedding vector plus its token usage.
type EmbedResult struct {
	Model        string
	Embedding    []float32
	PromptTokens int
}

// ChatRequest is a single-turn completion with an optional system prompt.
type ChatRequest struct {
	Model       string
	System      string
	User        string
	Temperature float32
}

// ChatResult is the first choice of a completion plus usage.
type ChatResult struct {
	Model        string
	Text         string
	InputTokens  int
	OutputTokens int
}

// Config holds client settings.
type Config struct {
	APIKey         string
	BaseURL        string
	EmbeddingModel string
	Dimensions     int
	Retry          resilience.RetryConfig
}

type sdkClient struct {
	client     *goopenai.Client
	model      goopenai.EmbeddingModel
	dimensions int
	retry      resilience.RetryConfig
}

// NewClient creates a client backed by go-openai.
func NewClient(cfg Config) Client {
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	model := cfg.EmbeddingModel
	if model == "" {
		model = string(goopenai.SmallEmbedding3)
	}
	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = resilience.DefaultRetryConfig()
	}
	if retry.ShouldRetry == nil {
		retry.ShouldRetry = isRetryable
	}
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("openai", "request")
	}
	return &sdkClient{
		client:     goopenai.NewClientWithConfig(clientCfg),
		model:      goopenai.EmbeddingModel(model),
		dimensions: cfg.Dimensions,
		retry:      retry,
	}
}

func (c *sdkClient) Embed(ctx context.Context, text string) (*EmbedResult, error) {
	req := goopenai.EmbeddingRequest{
		Input:          []string{text},
		Model:          c.model,
		EncodingFormat: goopenai.EmbeddingEncodingFormatFloat,
	}
	if c.dimensions > 0 && c.model != goopenai.AdaEmbeddingV2 {
		req.Dimensions = c.dimensions
	}

	resp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (goopenai.EmbeddingResponse, error) {
		return c.client.CreateEmbeddings(ctx, req)
	})
	if err != nil {
		return nil, eris.Wrap(describe(err), "openai: create embedding")
	}
	if len(resp.Data) == 0 {
		return nil, eris.New("openai: empty embedding response")
	}
	return &EmbedResult{
		Model:        string(c.model),
		Embedding:    resp.Data[0].Embedding,
		PromptTokens: resp.Usage.PromptTokens,
	}, nil
}

func (c *sdkClient) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	var msgs []goopenai.ChatCompletionMessage
	if req.System != "" {
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: req.System})
	}
	msgs = append(msgs, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: req.User})

	resp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (goopenai.ChatCompletionResponse, error) {
		return c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
			Model:       req.Model,
			Messages:    msgs,
			Temperature: req.Temperature,
		})
	})
	if err != nil {
		return nil, eris.Wrap(describe(err), "openai: chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("openai: empty completion response")
	}
	return &ChatResult{
		Model:        resp.Model,
		Text:         strings.TrimSpace(resp.Choices[0].Message.Content),
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// isRetryable retries rate limits and server errors reported by the API as
// well as transport failures.
func isRetryable(err error) bool {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return resilience.IsTransientHTTPStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return resilience.IsTransientHTTPStatus(reqErr.HTTPStatusCode)
	}
	return resilience.IsTransient(err)
}

func describe(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return eris.Errorf("status %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return eris.Errorf("status %d: %s", reqErr.HTTPStatusCode, strings.TrimSpace(string(reqErr.Body)))
	}
	return err
}
