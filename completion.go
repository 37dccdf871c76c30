package propulse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Completer sends a prompt to a language model and returns the raw text reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Provider identifies a completion API flavor.
type Provider string

// Supported completion providers.
const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Completion defaults.
const (
	DefaultModel       = "minimax/minimax-m2:free"
	DefaultTemperature = 0.7
	DefaultReferer     = "http://localhost:5000"
	DefaultTitle       = "GeradorDePropostasIA"

	// defaultMaxTokens bounds Anthropic replies, which require an explicit limit.
	defaultMaxTokens = 8192
)

// CompletionConfig configures a Completer. It is read once at startup.
type CompletionConfig struct {
	Provider    Provider
	Model       string
	Temperature float64
	APIKey      string
	BaseURL     string

	// Attribution headers sent with every request (OpenRouter convention).
	Referer string
	Title   string

	// Timeout bounds a single completion call. Zero means no timeout.
	Timeout time.Duration

	// MaxTokens caps the reply length for providers that require it.
	MaxTokens int64
}

// DefaultCompletionConfig returns the configuration defaults. APIKey and
// BaseURL are left empty and must be supplied.
func DefaultCompletionConfig() CompletionConfig {
	return CompletionConfig{
		Provider:    ProviderOpenAI,
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		Referer:     DefaultReferer,
		Title:       DefaultTitle,
		MaxTokens:   defaultMaxTokens,
	}
}

// NewCompleter builds the Completer for cfg.Provider.
// Returns ErrMissingAPIKey, ErrMissingBaseURL or ErrUnsupportedProvider on
// invalid configuration.
func NewCompleter(cfg CompletionConfig) (Completer, error) {
	if cfg.Provider == "" {
		cfg.Provider = ProviderOpenAI
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if isBlank(cfg.APIKey) {
		return nil, ErrMissingAPIKey
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		if isBlank(cfg.BaseURL) {
			return nil, ErrMissingBaseURL
		}
		return newOpenAICompleter(cfg), nil
	case ProviderAnthropic:
		return newAnthropicCompleter(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
}

// ---------------------------------------------------------------------------
// OpenAI-compatible provider
// ---------------------------------------------------------------------------

// openAICompleter talks to any OpenAI-compatible chat completions endpoint
// (OpenRouter by default).
type openAICompleter struct {
	client      openai.Client
	model       string
	temperature float64
	timeout     time.Duration
}

func newOpenAICompleter(cfg CompletionConfig) *openAICompleter {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(0),
	}
	if cfg.Referer != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", cfg.Referer))
	}
	if cfg.Title != "" {
		opts = append(opts, option.WithHeader("X-Title", cfg.Title))
	}

	return &openAICompleter{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
	}
}

// Complete sends the prompt as a single user message.
func (c *openAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := withOptionalTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		return "", newProviderError(err)
	}
	if len(resp.Choices) == 0 || isBlank(resp.Choices[0].Message.Content) {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

// ---------------------------------------------------------------------------
// Anthropic provider
// ---------------------------------------------------------------------------

type anthropicCompleter struct {
	client      anthropic.Client
	model       string
	temperature float64
	maxTokens   int64
	timeout     time.Duration
}

func newAnthropicCompleter(cfg CompletionConfig) *anthropicCompleter {
	opts := []anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(cfg.APIKey),
		anthropicoption.WithMaxRetries(0),
	}
	if !isBlank(cfg.BaseURL) {
		opts = append(opts, anthropicoption.WithBaseURL(cfg.BaseURL))
	}

	return &anthropicCompleter{
		client:      anthropic.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
	}
}

// Complete sends the prompt and concatenates the text blocks of the reply.
func (c *anthropicCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := withOptionalTimeout(ctx, c.timeout)
	defer cancel()

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(c.temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", newProviderError(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if isBlank(sb.String()) {
		return "", ErrEmptyCompletion
	}
	return sb.String(), nil
}

// ---------------------------------------------------------------------------
// Provider errors
// ---------------------------------------------------------------------------

// maxProviderMessage bounds the provider message kept in ProviderError.Error.
const maxProviderMessage = 200

// ProviderError is a failed completion call. Error returns a short summary
// (status and the provider's message) that is safe to show to callers; the
// SDK error with the request URL and raw response body is kept in Detail.
// It matches ErrCompletion.
type ProviderError struct {
	StatusCode int
	Message    string
	Detail     error
}

// newProviderError summarizes an SDK error.
func newProviderError(err error) *ProviderError {
	var oaErr *openai.Error
	var anErr *anthropic.Error
	switch {
	case errors.As(err, &oaErr):
		return &ProviderError{StatusCode: oaErr.StatusCode, Message: providerMessage(oaErr.Message, oaErr.RawJSON()), Detail: err}
	case errors.As(err, &anErr):
		return &ProviderError{StatusCode: anErr.StatusCode, Message: providerMessage("", anErr.RawJSON()), Detail: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &ProviderError{Message: context.DeadlineExceeded.Error(), Detail: err}
	case errors.Is(err, context.Canceled):
		return &ProviderError{Message: context.Canceled.Error(), Detail: err}
	default:
		return &ProviderError{Message: "provider unreachable", Detail: err}
	}
}

func (e *ProviderError) Error() string {
	var sb strings.Builder
	sb.WriteString(ErrCompletion.Error())
	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, ": provider returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	return sb.String()
}

// Is reports ErrCompletion as a match.
func (e *ProviderError) Is(target error) bool {
	return target == ErrCompletion
}

// Unwrap exposes the SDK error so context and transport errors stay
// matchable with errors.Is.
func (e *ProviderError) Unwrap() error {
	return e.Detail
}

// providerMessage picks the human-readable message from an API error.
// OpenAI-style bodies carry it at the top level once unwrapped; Anthropic
// bodies nest it under "error".
func providerMessage(parsed, raw string) string {
	msg := parsed
	if msg == "" && raw != "" {
		var body struct {
			Message string `json:"message"`
			Error   struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal([]byte(raw), &body) == nil {
			msg = body.Message
			if msg == "" {
				msg = body.Error.Message
			}
		}
	}
	msg = strings.Join(strings.Fields(msg), " ")
	if len(msg) > maxProviderMessage {
		msg = strings.ToValidUTF8(msg[:maxProviderMessage], "") + "..."
	}
	return msg
}

// withOptionalTimeout applies d to ctx when d is positive.
func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// Compile-time interface checks.
var (
	_ Completer = (*openAICompleter)(nil)
	_ Completer = (*anthropicCompleter)(nil)
)
