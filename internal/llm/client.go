package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	defaultTimeout = 60 * time.Second

	maxRetries  = 3
	baseBackoff = 2 * time.Second
	maxBackoff  = 32 * time.Second
)

// ErrAPIKeyNotSet means neither an OpenAI nor an Azure OpenAI key was configured.
var ErrAPIKeyNotSet = errors.New("llm: no API key configured")

// Options control a single generation call. Zero MaxTokens leaves the model
// default in place.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Client produces text from a prompt. Calls are network operations and may
// take seconds; callers bound them with the context.
type Client interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

// GenerateFunc adapts a plain function to Client.
type GenerateFunc func(ctx context.Context, prompt string, opts Options) (string, error)

func (f GenerateFunc) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	return f(ctx, prompt, opts)
}

// Config selects the backing API. When AzureEndpoint is set the client talks
// to an Azure OpenAI deployment, otherwise to api.openai.com.
type Config struct {
	APIKey          string
	AzureEndpoint   string
	AzureAPIKey     string
	AzureAPIVersion string
	Model           string
	Timeout         time.Duration
}

// OpenAI wraps the chat completions API with per-call timeout and retry on
// rate limiting.
type OpenAI struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAI builds a client from config.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	var client openai.Client
	switch {
	case cfg.AzureEndpoint != "" && cfg.AzureAPIKey != "":
		client = openai.NewClient(
			azure.WithEndpoint(cfg.AzureEndpoint, cfg.AzureAPIVersion),
			azure.WithAPIKey(cfg.AzureAPIKey),
		)
	case cfg.APIKey != "":
		client = openai.NewClient(option.WithAPIKey(cfg.APIKey))
	default:
		return nil, ErrAPIKeyNotSet
	}

	return &OpenAI{client: client, model: cfg.Model, timeout: timeout}, nil
}

// Generate runs one chat completion and returns the message content.
func (c *OpenAI) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	model := c.model
	if opts.Model != "" {
		model = opts.Model
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * baseBackoff
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		params := openai.ChatCompletionNewParams{
			Model: shared.ChatModel(model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Temperature: openai.Float(opts.Temperature),
		}
		if opts.MaxTokens > 0 {
			params.MaxTokens = openai.Int(int64(opts.MaxTokens))
		}

		completion, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			lastErr = err
			if isRateLimitError(err) {
				continue
			}
			return "", fmt.Errorf("chat completion: %w", err)
		}
		if len(completion.Choices) == 0 {
			return "", errors.New("no completion choices returned")
		}
		return completion.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("chat completion retries exhausted: %w", lastErr)
}

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

var _ Client = (*OpenAI)(nil)
