// Package dedupe computes recipe fingerprints and finds existing recipes that
// a candidate duplicates, either exactly or by fuzzy title similarity.
package dedupe

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/jdziat/recipe-ingest/pkg/core"
)

// StopWords carry no identity in a recipe title.
var StopWords = map[string]bool{
	"recipe":   true,
	"easy":     true,
	"quick":    true,
	"simple":   true,
	"best":     true,
	"perfect":  true,
	"homemade": true,
	"classic":  true,
}

var punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

// NormalizeText lower-cases s, strips punctuation and stop words and collapses whitespace.
func NormalizeText(s string) string {
	s = punctuation.ReplaceAllString(strings.ToLower(s), "")
	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if !StopWords[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// RoundTime rounds minutes to the nearest multiple of five.
func RoundTime(minutes int) int {
	return int(math.Round(float64(minutes)/5) * 5)
}

// Fingerprint is the normalized identity of a recipe.
type Fingerprint struct {
	Title            string
	Cuisine          string
	TotalTimeMinutes int
	Hash             string
}

// Compute derives the fingerprint of a candidate. It is a pure function.
func Compute(c *core.Candidate) Fingerprint {
	f := Fingerprint{
		Title:            NormalizeText(c.Title),
		Cuisine:          NormalizeText(c.Cuisine),
		TotalTimeMinutes: RoundTime(c.TotalTimeMinutes()),
	}
	sum := sha1.Sum([]byte(fmt.Sprintf("%s|%s|%d", f.Title, f.Cuisine, f.TotalTimeMinutes)))
	f.Hash = hex.EncodeToString(sum[:])
	return f
}

// Record builds the row stored when recipeID is created.
func (f Fingerprint) Record(recipeID string) *core.RecipeFingerprint {
	return &core.RecipeFingerprint{
		RecipeID:          recipeID,
		TitleNormalized:   f.Title,
		CuisineNormalized: f.Cuisine,
		TotalTimeMinutes:  f.TotalTimeMinutes,
		FingerprintHash:   f.Hash,
	}
}
