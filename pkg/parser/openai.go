package parser

import (
	"context"
	"fmt"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/jdziat/recipe-ingest/pkg/core"
)

const (
	ProviderOpenAI     = "openai"
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultMaxTokens   = 2000
	temperature        = 0.1
)

// OpenAIParser extracts recipes with the chat completions API in JSON mode.
type OpenAIParser struct {
	sdk       openaisdk.Client
	model     string
	maxTokens int64
}

// OpenAIOption configures an OpenAIParser.
type OpenAIOption func(*openAIConfig)

type openAIConfig struct {
	model     string
	maxTokens int64
	options   []option.RequestOption
}

// WithOpenAIModel sets the chat model.
func WithOpenAIModel(model string) OpenAIOption {
	return func(c *openAIConfig) {
		if model != "" {
			c.model = model
		}
	}
}

// WithOpenAIMaxTokens caps the completion length.
func WithOpenAIMaxTokens(n int) OpenAIOption {
	return func(c *openAIConfig) {
		if n > 0 {
			c.maxTokens = int64(n)
		}
	}
}

// WithOpenAIRequestOptions passes options through to the SDK client.
func WithOpenAIRequestOptions(opts ...option.RequestOption) OpenAIOption {
	return func(c *openAIConfig) { c.options = append(c.options, opts...) }
}

// NewOpenAIParser creates an OpenAI-backed parser.
func NewOpenAIParser(apiKey string, opts ...OpenAIOption) *OpenAIParser {
	cfg := &openAIConfig{model: DefaultOpenAIModel, maxTokens: DefaultMaxTokens}
	for _, opt := range opts {
		opt(cfg)
	}
	reqOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, cfg.options...)
	return &OpenAIParser{
		sdk:       openaisdk.NewClient(reqOpts...),
		model:     cfg.model,
		maxTokens: cfg.maxTokens,
	}
}

// Parse implements core.Parser.
func (p *OpenAIParser) Parse(ctx context.Context, req core.ParseRequest) (*core.ParseResult, error) {
	resp, err := p.sdk.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(p.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(SystemPrompt()),
			openaisdk.UserMessage(UserPrompt(req.Text, req.Language, req.Notes)),
		},
		ResponseFormat: openaisdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		Temperature: openaisdk.Float(temperature),
		MaxTokens:   openaisdk.Int(p.maxTokens),
	})
	if err != nil {
		return nil, classify(ctx, ProviderOpenAI, err)
	}
	if len(resp.Choices) == 0 {
		return nil, malformed(fmt.Errorf("%w: no choices in reply", core.ErrMalformedOutput))
	}

	raw := resp.Choices[0].Message.Content
	model := resp.Model
	if model == "" {
		model = p.model
	}
	result := &core.ParseResult{
		Provider: ProviderOpenAI,
		Model:    model,
		Raw:      raw,
		Usage: &core.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
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
