package language

import (
	"context"
	"log/slog"
	"time"

	"github.com/jdziat/recipe-ingest/pkg/core"
)

// ExcerptLength is how much of the original text is kept after translation.
const ExcerptLength = 500

// Result is the canonical-language text plus what was learned on the way.
type Result struct {
	Text       string
	Language   string
	Confidence float64
	Translated bool
	Degraded   bool
	// Original is an excerpt of the pre-translation text, set only when translated.
	Original string
}

// Normalizer detects the language of a text and translates it when needed.
type Normalizer struct {
	detector      core.Detector
	translator    core.Translator
	canonical     string
	minConfidence float64
	timeout       time.Duration
	logger        *slog.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithCanonical sets the language the parser expects. Default "en".
func WithCanonical(code string) Option {
	return func(n *Normalizer) {
		if code != "" {
			n.canonical = code
		}
	}
}

// WithMinConfidence sets the detection confidence below which the text is
// assumed to already be canonical.
func WithMinConfidence(c float64) Option {
	return func(n *Normalizer) { n.minConfidence = c }
}

// WithTimeout bounds a single translation call.
func WithTimeout(d time.Duration) Option {
	return func(n *Normalizer) { n.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Normalizer) { n.logger = l }
}

// NewNormalizer creates a Normalizer. translator may be nil, in which case
// non-canonical text is passed through as degraded.
func NewNormalizer(detector core.Detector, translator core.Translator, opts ...Option) *Normalizer {
	n := &Normalizer{
		detector:      detector,
		translator:    translator,
		canonical:     "en",
		minConfidence: 0.5,
		timeout:       30 * time.Second,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Canonical returns the target language code.
func (n *Normalizer) Canonical() string {
	return n.canonical
}

// Normalize never fails. Detection misses and low-confidence guesses are
// treated as canonical; translation failures keep the original text and mark
// the result degraded.
func (n *Normalizer) Normalize(ctx context.Context, text string) *Result {
	res := &Result{Text: text, Language: n.canonical}
	if n.detector == nil {
		return res
	}

	code, conf, ok := n.detector.Detect(text)
	if !ok {
		return res
	}
	res.Confidence = conf
	if conf < n.minConfidence || code == n.canonical {
		if conf >= n.minConfidence {
			res.Language = code
		}
		return res
	}
	res.Language = code

	if n.translator == nil {
		res.Degraded = true
		return res
	}

	tctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	tr, err := n.translator.Translate(tctx, text, code, n.canonical)
	if err != nil {
		n.logger.Warn("translation failed, continuing with original text",
			"language", code, "error", err)
		res.Degraded = true
		return res
	}

	res.Text = tr.Text
	res.Translated = true
	res.Original = excerpt(text, ExcerptLength)
	return res
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
