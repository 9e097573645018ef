package language

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/jdziat/recipe-ingest/pkg/core"
)

// ErrEmptyTranslation is returned when the provider answers with no text.
var ErrEmptyTranslation = errors.New("language: translator returned no text")

const defaultTranslationModel = "gpt-4o-mini"

// OpenAITranslator implements core.Translator with a chat completion.
type OpenAITranslator struct {
	sdk   openaisdk.Client
	model string
}

// TranslatorOption configures an OpenAITranslator.
type TranslatorOption func(*translatorConfig)

type translatorConfig struct {
	model   string
	options []option.RequestOption
}

// WithModel sets the chat model.
func WithModel(model string) TranslatorOption {
	return func(c *translatorConfig) {
		if model != "" {
			c.model = model
		}
	}
}

// WithRequestOptions passes options through to the SDK client.
func WithRequestOptions(opts ...option.RequestOption) TranslatorOption {
	return func(c *translatorConfig) { c.options = append(c.options, opts...) }
}

// NewOpenAITranslator creates a translator using the official SDK.
func NewOpenAITranslator(apiKey string, opts ...TranslatorOption) *OpenAITranslator {
	cfg := &translatorConfig{model: defaultTranslationModel}
	for _, opt := range opts {
		opt(cfg)
	}
	reqOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, cfg.options...)
	return &OpenAITranslator{
		sdk:   openaisdk.NewClient(reqOpts...),
		model: cfg.model,
	}
}

// Translate converts text from source to target language.
func (t *OpenAITranslator) Translate(ctx context.Context, text, source, target string) (*core.Translation, error) {
	system := fmt.Sprintf(
		"You translate cooking recipes from %s into %s. Keep every quantity, unit, "+
			"temperature and the line structure. Reply with the translated recipe only.",
		languageName(source), languageName(target))

	resp, err := t.sdk.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(t.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(system),
			openaisdk.UserMessage(text),
		},
		Temperature: openaisdk.Float(0),
	})
	if err != nil {
		return nil, fmt.Errorf("openai translate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyTranslation
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return nil, ErrEmptyTranslation
	}
	return &core.Translation{SourceLanguage: source, Text: out}, nil
}

var languageNames = map[string]string{
	"en": "English",
	"it": "Italian",
	"fr": "French",
	"es": "Spanish",
	"de": "German",
	"pt": "Portuguese",
	"nl": "Dutch",
	"pl": "Polish",
}

func languageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return code
}
