package dedupe

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jdziat/recipe-ingest/pkg/core"
)

// Defaults for fuzzy matching.
const (
	DefaultSimilarityThreshold = 0.85
	DefaultTimeTolerance       = 15
)

// Lookup is the slice of core.Storage the detector reads.
type Lookup interface {
	FindFingerprintByHash(ctx context.Context, hash string) (*core.RecipeFingerprint, error)
	FindFingerprintCandidates(ctx context.Context, cuisine string, minMinutes, maxMinutes int) ([]core.RecipeFingerprint, error)
}

// Match is an existing recipe a candidate duplicates.
type Match struct {
	RecipeID   string
	Kind       core.DuplicateMatch
	Similarity float64
	Title      string
}

// Info converts the match into its meta representation.
func (m *Match) Info() *core.DuplicateInfo {
	return &core.DuplicateInfo{RecipeID: m.RecipeID, Match: m.Kind, Similarity: m.Similarity}
}

// Detector finds duplicates among stored fingerprints.
type Detector struct {
	store     Lookup
	threshold float64
	tolerance int
	logger    *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithThreshold sets the minimum fuzzy similarity.
func WithThreshold(t float64) Option {
	return func(d *Detector) {
		if t > 0 {
			d.threshold = t
		}
	}
}

// WithTimeTolerance sets the total-time window in minutes for fuzzy candidates.
func WithTimeTolerance(minutes int) Option {
	return func(d *Detector) {
		if minutes >= 0 {
			d.tolerance = minutes
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) { d.logger = l }
}

// NewDetector creates a Detector reading from store.
func NewDetector(store Lookup, opts ...Option) *Detector {
	d := &Detector{
		store:     store,
		threshold: DefaultSimilarityThreshold,
		tolerance: DefaultTimeTolerance,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Exact looks up fp by hash only.
func (d *Detector) Exact(ctx context.Context, fp Fingerprint) (*Match, error) {
	existing, err := d.store.FindFingerprintByHash(ctx, fp.Hash)
	if err != nil {
		return nil, core.Transient(core.StageDedupe, fmt.Errorf("lookup fingerprint: %w", err))
	}
	if existing == nil {
		return nil, nil
	}
	return &Match{RecipeID: existing.RecipeID, Kind: core.MatchExact, Similarity: 1, Title: existing.TitleNormalized}, nil
}

// Check returns the best duplicate of fp, or nil when it is new.
func (d *Detector) Check(ctx context.Context, fp Fingerprint) (*Match, error) {
	if m, err := d.Exact(ctx, fp); m != nil || err != nil {
		return m, err
	}

	candidates, err := d.store.FindFingerprintCandidates(ctx, fp.Cuisine,
		fp.TotalTimeMinutes-d.tolerance, fp.TotalTimeMinutes+d.tolerance)
	if err != nil {
		return nil, core.Transient(core.StageDedupe, fmt.Errorf("lookup similar fingerprints: %w", err))
	}

	var best *Match
	for _, c := range candidates {
		sim := Similarity(fp.Title, c.TitleNormalized)
		if sim < d.threshold {
			continue
		}
		if best == nil || sim > best.Similarity {
			best = &Match{RecipeID: c.RecipeID, Kind: core.MatchFuzzy, Similarity: sim, Title: c.TitleNormalized}
		}
	}
	if best != nil {
		d.logger.Debug("fuzzy duplicate", "title", fp.Title, "match", best.Title, "similarity", best.Similarity)
	}
	return best, nil
}
