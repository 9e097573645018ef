package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jdziat/recipe-ingest/pkg/core"
)

const (
	ProviderAnthropic     = "anthropic"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
)

// AnthropicParser extracts recipes with the Messages API.
type AnthropicParser struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// AnthropicOption configures an AnthropicParser.
type AnthropicOption func(*anthropicConfig)

type anthropicConfig struct {
	model     string
	maxTokens int64
	options   []option.RequestOption
}

// WithAnthropicModel sets the model.
func WithAnthropicModel(model string) AnthropicOption {
	return func(c *anthropicConfig) {
		if model != "" {
			c.model = model
		}
	}
}

// WithAnthropicMaxTokens caps the reply length.
func WithAnthropicMaxTokens(n int) AnthropicOption {
	return func(c *anthropicConfig) {
		if n > 0 {
			c.maxTokens = int64(n)
		}
	}
}

// WithAnthropicRequestOptions passes options through to the SDK client.
func WithAnthropicRequestOptions(opts ...option.RequestOption) AnthropicOption {
	return func(c *anthropicConfig) { c.options = append(c.options, opts...) }
}

// NewAnthropicParser creates an Anthropic-backed parser.
func NewAnthropicParser(apiKey string, opts ...AnthropicOption) *AnthropicParser {
	cfg := &anthropicConfig{model: DefaultAnthropicModel, maxTokens: DefaultMaxTokens}
	for _, opt := range opts {
		opt(cfg)
	}
	reqOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, cfg.options...)
	return &AnthropicParser{
		client:    anthropic.NewClient(reqOpts...),
		model:     cfg.model,
		maxTokens: cfg.maxTokens,
	}
}

// Parse implements core.Parser.
func (p *AnthropicParser) Parse(ctx context.Context, req core.ParseRequest) (*core.ParseResult, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   p.maxTokens,
		Temperature: anthropic.Float(temperature),
		System:      []anthropic.TextBlockParam{{Text: SystemPrompt()}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(UserPrompt(req.Text, req.Language, req.Notes))),
		},
	})
	if err != nil {
		return nil, classify(ctx, ProviderAnthropic, err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
			break
		}
	}
	if text.Len() == 0 {
		return nil, malformed(fmt.Errorf("%w: no text block in reply", core.ErrMalformedOutput))
	}

	model := string(msg.Model)
	if model == "" {
		model = p.model
	}
	raw := text.String()
	result := &core.ParseResult{
		Provider: ProviderAnthropic,
		Model:    model,
		Raw:      raw,
		Usage: &core.TokenUsage{
			PromptTokens:     msg.Usage.InputTokens,
			CompletionTokens: msg.Usage.OutputTokens,
			TotalTokens:      msg.Usage.InputTokens + msg.Usage.OutputTokens,
		},
	}

	cand, conf, err := Decode(raw)
	if err != nil {
		return result, malformed(err)
	}
	result.Candidate = cand
	result.Confidence = conf
	return result, nil
}
