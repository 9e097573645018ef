package core

import "context"

// RecipeStore persists finalized recipes. Create is treated as one atomic call.
type RecipeStore interface {
	Create(ctx context.Context, c *Candidate) (string, error)
	Delete(ctx context.Context, recipeID string) error
}

// ParseRequest is the input to the AI extraction contract.
type ParseRequest struct {
	Text     string
	Language string
	Notes    string // reviewer guidance for a revision pass
}

// ParseResult is a candidate recipe with the provider's accounting.
type ParseResult struct {
	Candidate  *Candidate
	Confidence float64
	Provider   string
	Model      string
	Usage      *TokenUsage
	Raw        string
}

// Parser turns canonical-language text into a candidate recipe.
// Errors wrap ErrParseTimeout, ErrMalformedOutput or ErrQuotaExceeded where applicable.
type Parser interface {
	Parse(ctx context.Context, req ParseRequest) (*ParseResult, error)
}

// Detector guesses the dominant language of a text as an ISO 639-1 code.
type Detector interface {
	Detect(text string) (code string, confidence float64, ok bool)
}

// Translation is the translator's response.
type Translation struct {
	SourceLanguage string
	Text           string
}

// Translator converts text into the target language.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (*Translation, error)
}
