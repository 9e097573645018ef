package dedupe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/recipe-ingest/pkg/core"
)

type memLookup struct {
	rows []core.RecipeFingerprint
	err  error
}

func (m *memLookup) FindFingerprintByHash(ctx context.Context, hash string) (*core.RecipeFingerprint, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.rows {
		if m.rows[i].FingerprintHash == hash {
			return &m.rows[i], nil
		}
	}
	return nil, nil
}

func (m *memLookup) FindFingerprintCandidates(ctx context.Context, cuisine string, lo, hi int) ([]core.RecipeFingerprint, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []core.RecipeFingerprint
	for _, r := range m.rows {
		if r.CuisineNormalized == cuisine && r.TotalTimeMinutes >= lo && r.TotalTimeMinutes <= hi {
			out = append(out, r)
		}
	}
	return out, nil
}

func candidate(title, cuisine string, prep, cook int) *core.Candidate {
	return &core.Candidate{Title: title, Cuisine: cuisine, PrepTimeMinutes: prep, CookTimeMinutes: cook}
}

// ──────────────────────────────────────────────────────────────────────────────
// Fingerprints
// ──────────────────────────────────────────────────────────────────────────────

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "spaghetti carbonara", NormalizeText("Best Easy Spaghetti Carbonara Recipe!"))
	assert.Equal(t, "crèmebrûlée", NormalizeText("  Classic   Crème-Brûlée "))
	assert.Equal(t, "mums apple pie", NormalizeText("Mum's Homemade Apple Pie"))
	assert.Equal(t, "", NormalizeText("Quick & Easy"))
}

func TestRoundTime(t *testing.T) {
	assert.Equal(t, 25, RoundTime(24))
	assert.Equal(t, 25, RoundTime(27))
	assert.Equal(t, 30, RoundTime(28))
	assert.Equal(t, 0, RoundTime(2))
}

func TestCompute_StableAcrossCosmeticChanges(t *testing.T) {
	a := Compute(candidate("Easy Spaghetti Carbonara", "Italian", 10, 14))
	b := Compute(candidate("spaghetti carbonara!", "ITALIAN", 12, 13))
	assert.Equal(t, a.Hash, b.Hash)
	assert.Equal(t, "spaghetti carbonara", a.Title)
	assert.Equal(t, "italian", a.Cuisine)
	assert.Equal(t, 25, a.TotalTimeMinutes)
	assert.Len(t, a.Hash, 40)

	c := Compute(candidate("Spaghetti Carbonara", "Italian", 30, 30))
	assert.NotEqual(t, a.Hash, c.Hash)
}

func TestFingerprint_Record(t *testing.T) {
	fp := Compute(candidate("Pad Thai", "Thai", 15, 15))
	rec := fp.Record("recipe-1")
	assert.Equal(t, "recipe-1", rec.RecipeID)
	assert.Equal(t, fp.Hash, rec.FingerprintHash)
	assert.Equal(t, "pad thai", rec.TitleNormalized)
	assert.Equal(t, 30, rec.TotalTimeMinutes)
}

// ──────────────────────────────────────────────────────────────────────────────
// Similarity
// ──────────────────────────────────────────────────────────────────────────────

func TestRatio(t *testing.T) {
	assert.Equal(t, 1.0, Ratio("", ""))
	assert.Equal(t, 1.0, Ratio("soup", "soup"))
	assert.InDelta(t, 0.75, Ratio("soup", "soap"), 1e-9)
	assert.Equal(t, 0.0, Ratio("abc", "xyz"))
}

func TestPartialRatio(t *testing.T) {
	assert.Equal(t, 1.0, PartialRatio("carbonara", "spaghetti carbonara"))
	assert.Equal(t, 1.0, PartialRatio("spaghetti carbonara", "carbonara"))
	assert.Equal(t, 0.0, PartialRatio("", "x"))
	assert.Less(t, PartialRatio("pizza", "risotto"), 0.85)
}

// ──────────────────────────────────────────────────────────────────────────────
// Detector
// ──────────────────────────────────────────────────────────────────────────────

func TestDetector_ExactMatch(t *testing.T) {
	existing := Compute(candidate("Spaghetti Carbonara", "Italian", 10, 15))
	store := &memLookup{rows: []core.RecipeFingerprint{*existing.Record("r-1")}}

	m, err := NewDetector(store).Check(context.Background(),
		Compute(candidate("Quick Spaghetti Carbonara", "italian", 10, 14)))
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, core.MatchExact, m.Kind)
	assert.Equal(t, "r-1", m.RecipeID)
	assert.Equal(t, 1.0, m.Similarity)
	assert.Equal(t, &core.DuplicateInfo{RecipeID: "r-1", Match: core.MatchExact, Similarity: 1}, m.Info())
}

func TestDetector_FuzzyMatchWithinTolerance(t *testing.T) {
	store := &memLookup{rows: []core.RecipeFingerprint{
		*Compute(candidate("Spagheti Carbonara", "Italian", 10, 15)).Record("r-close"),
		*Compute(candidate("Spaghetti Carbonara", "Italian", 60, 60)).Record("r-slow"),
		*Compute(candidate("Spaghetti Carbonara", "French", 10, 15)).Record("r-french"),
	}}

	m, err := NewDetector(store).Check(context.Background(),
		Compute(candidate("Spaghetti Carbonara", "Italian", 15, 20)))
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, core.MatchFuzzy, m.Kind)
	assert.Equal(t, "r-close", m.RecipeID)
	assert.GreaterOrEqual(t, m.Similarity, DefaultSimilarityThreshold)
}

func TestDetector_PicksBestFuzzyCandidate(t *testing.T) {
	store := &memLookup{rows: []core.RecipeFingerprint{
		*Compute(candidate("Chicken Tika Masala", "Indian", 20, 20)).Record("r-ok"),
		*Compute(candidate("Chicken Tikka Masala Curry", "Indian", 20, 25)).Record("r-best"),
	}}

	m, err := NewDetector(store).Check(context.Background(),
		Compute(candidate("Chicken Tikka Masala", "Indian", 20, 20)))
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "r-best", m.RecipeID)
	assert.Equal(t, 1.0, m.Similarity)
}

func TestDetector_NoMatch(t *testing.T) {
	store := &memLookup{rows: []core.RecipeFingerprint{
		*Compute(candidate("Beef Wellington", "British", 60, 60)).Record("r-1"),
	}}
	m, err := NewDetector(store, WithThreshold(0.9), WithTimeTolerance(5)).Check(context.Background(),
		Compute(candidate("Shepherd's Pie", "British", 60, 60)))
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestDetector_StoreErrorIsTransient(t *testing.T) {
	store := &memLookup{err: errors.New("connection reset")}
	_, err := NewDetector(store).Check(context.Background(), Compute(candidate("Soup", "", 0, 0)))
	require.Error(t, err)
	assert.Equal(t, core.FailureTransient, core.KindOf(err))
}
