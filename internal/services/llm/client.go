package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"dancebreak/internal/logging"
)

const (
	defaultBaseURL     = "https://openrouter.ai/api/v1/chat/completions"
	defaultHTTPTimeout = 60 * time.Second
)

// Config captures the runtime settings required to talk to the LLM.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	Temperature    float64
	MaxTokens      int
	TimeoutSeconds int
}

// Configured reports whether the config carries enough to issue requests.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.Model) != ""
}

func (c Config) normalized() Config {
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	c.Model = strings.TrimSpace(c.Model)
	c.Referer = strings.TrimSpace(c.Referer)
	c.Title = strings.TrimSpace(c.Title)
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	return c
}

func (c Config) timeout() time.Duration {
	if c.TimeoutSeconds > 0 {
		return time.Duration(c.TimeoutSeconds) * time.Second
	}
	return defaultHTTPTimeout
}

// Usage totals the tokens reported by the provider across requests.
type Usage struct {
	Requests         int
	PromptTokens     int
	CompletionTokens int
}

// Client issues JSON-mode requests against an OpenAI-compatible chat
// completion endpoint. It is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	retry      retryPolicy
	logger     *slog.Logger

	mu    sync.Mutex
	usage Usage
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts sets the total number of attempts per request.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) { c.retry.maxAttempts = attempts }
}

// WithRetryBackoff sets the first retry delay and the cap. Equal values give
// a fixed delay between attempts.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retry.baseDelay = baseDelay
		c.retry.maxDelay = maxDelay
	}
}

// WithSleeper replaces the retry sleep, for tests.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) { c.retry.sleeper = sleeper }
}

// WithLogger reports retries and token usage.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs an LLM client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg = cfg.normalized()
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.timeout()},
		retry:      defaultRetryPolicy(),
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Usage returns the running token totals.
func (c *Client) Usage() Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

func (c *Client) recordUsage(u *responseUsage) {
	c.mu.Lock()
	c.usage.Requests++
	if u != nil {
		c.usage.PromptTokens += u.PromptTokens
		c.usage.CompletionTokens += u.CompletionTokens
	}
	c.mu.Unlock()
}

// CompleteJSON sends a system and user prompt in JSON mode and returns the
// raw content of the first non-empty choice.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	switch {
	case systemPrompt == "":
		return "", errors.New("llm complete: system prompt required")
	case userPrompt == "":
		return "", errors.New("llm complete: user prompt required")
	case c.cfg.APIKey == "":
		return "", errors.New("llm complete: api key required")
	}
	req := c.newRequest(systemPrompt, userPrompt)
	req.Temperature = c.cfg.Temperature
	req.MaxTokens = c.cfg.MaxTokens
	return c.do(ctx, req, "llm complete")
}

// HealthCheck asks the model for a fixed JSON reply to prove the key and
// model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return errors.New("llm health: api key required")
	}
	content, err := c.do(ctx, c.newRequest("You must respond with JSON only.", `Respond with {"ok":true}`), "llm health")
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return fmt.Errorf("llm health: parse payload: %w", err)
	}
	if !parsed.OK {
		return errors.New("llm health: unexpected response")
	}
	return nil
}

// do sends req until it yields content or the retry policy gives up.
func (c *Client) do(ctx context.Context, req chatCompletionRequest, op string) (string, error) {
	attempts := c.retry.attempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		content, err := c.roundTrip(ctx, req, op)
		if err == nil {
			return content, nil
		}
		delay, again := c.retry.next(ctx, err, attempt)
		if !again {
			return "", err
		}
		c.logger.Debug("llm request retrying",
			logging.String("op", op),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
		if err := c.retry.sleep(ctx, delay); err != nil {
			return "", err
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("unknown retry failure")
	}
	return "", fmt.Errorf("%s: failed after %d attempts: %w", op, attempts, lastErr)
}

func (c *Client) roundTrip(ctx context.Context, req chatCompletionRequest, op string) (string, error) {
	completion, body, err := c.send(ctx, req)
	if err != nil {
		return "", err
	}
	c.recordUsage(completion.Usage)
	if completion.Usage != nil {
		c.logger.Debug("llm usage",
			logging.String("op", op),
			logging.Int("prompt_tokens", completion.Usage.PromptTokens),
			logging.Int("completion_tokens", completion.Usage.CompletionTokens),
		)
	}
	content, finishReason := completion.content()
	if content != "" {
		return content, nil
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%s: empty choices", op)
	}
	return "", &emptyContentError{Op: op, FinishReason: finishReason, Snippet: summarizePayloadSnippet(string(body))}
}
