package describe

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"

	"github.com/sells-group/partner-finder/internal/config"
	"github.com/sells-group/partner-finder/pkg/anthropic"
)

const (
	defaultOpenAIModel    = openai.GPT4oMini
	defaultAnthropicModel = "claude-haiku-4-5-20251001"
	defaultMaxTokens      = 700
)

// Completer turns a system and user prompt into free text.
type Completer interface {
	Name() string
	Complete(ctx context.Context, system, user string) (string, error)
}

// Sampling holds the generation knobs shared by both backends.
type Sampling struct {
	MaxTokens   int
	Temperature float64
}

func (s Sampling) maxTokens() int {
	if s.MaxTokens <= 0 {
		return defaultMaxTokens
	}
	return s.MaxTokens
}

// OpenAICompleter calls the Chat Completions API.
type OpenAICompleter struct {
	client   *openai.Client
	model    string
	sampling Sampling
}

// NewOpenAICompleter creates an OpenAI backend. An empty baseURL uses the
// public endpoint.
func NewOpenAICompleter(apiKey, model, baseURL string, s Sampling) *OpenAICompleter {
	cc := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cc.BaseURL = baseURL
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAICompleter{
		client:   openai.NewClientWithConfig(cc),
		model:    model,
		sampling: s,
	}
}

// Name implements Completer.
func (c *OpenAICompleter) Name() string { return "openai" }

// Complete implements Completer.
func (c *OpenAICompleter) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   c.sampling.maxTokens(),
		Temperature: float32(c.sampling.Temperature),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "describe: openai completion")
	}
	if len(resp.Choices) == 0 {
		return "", eris.New("describe: openai returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// AnthropicCompleter calls the Messages API through pkg/anthropic.
type AnthropicCompleter struct {
	client   anthropic.Client
	model    string
	sampling Sampling
}

// NewAnthropicCompleter creates an Anthropic backend over client.
func NewAnthropicCompleter(client anthropic.Client, model string, s Sampling) *AnthropicCompleter {
	if model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicCompleter{client: client, model: model, sampling: s}
}

// Name implements Completer.
func (c *AnthropicCompleter) Name() string { return "anthropic" }

// Complete implements Completer.
func (c *AnthropicCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	temp := c.sampling.Temperature
	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       c.model,
		MaxTokens:   int64(c.sampling.maxTokens()),
		System:      system,
		Messages:    []anthropic.Message{{Role: "user", Content: user}},
		Temperature: &temp,
	})
	if err != nil {
		return "", eris.Wrap(err, "describe: anthropic completion")
	}
	resp.Usage.LogCost(c.model, "describe")
	return strings.TrimSpace(resp.Text()), nil
}

// NewCompleterFromConfig builds the backend selected by describe.provider.
func NewCompleterFromConfig(cfg *config.Config) (Completer, error) {
	s := Sampling{MaxTokens: cfg.Describe.MaxTokens, Temperature: cfg.Describe.Temperature}
	switch strings.ToLower(cfg.Describe.Provider) {
	case "openai":
		return NewOpenAICompleter(cfg.OpenAI.Key, cfg.OpenAI.Model, cfg.OpenAI.BaseURL, s), nil
	case "anthropic":
		return NewAnthropicCompleter(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model, s), nil
	default:
		return nil, eris.Errorf("describe: unknown provider %q", cfg.Describe.Provider)
	}
}
