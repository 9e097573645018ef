package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/jdziat/recipe-ingest/pkg/core"
)

// DefaultConfidence is used when the model omits confidence_scores.overall.
const DefaultConfidence = 0.8

type wireIngredient struct {
	Name     *string  `json:"name"`
	Quantity *float64 `json:"quantity_value"`
	Unit     *string  `json:"unit"`
	Notes    *string  `json:"notes"`
}

type wireRecipe struct {
	Title            *string            `json:"title"`
	Description      *string            `json:"description"`
	Cuisine          *string            `json:"cuisine"`
	Category         *string            `json:"category"`
	Difficulty       *float64           `json:"difficulty"`
	PrepTimeMinutes  *float64           `json:"prep_time_minutes"`
	CookTimeMinutes  *float64           `json:"cook_time_minutes"`
	Servings         *float64           `json:"servings"`
	Ingredients      []wireIngredient   `json:"ingredients"`
	Instructions     []string           `json:"instructions"`
	Tags             []string           `json:"tags"`
	Nutrition        *core.Nutrition    `json:"nutrition"`
	ConfidenceScores map[string]float64 `json:"confidence_scores"`
}

// Decode turns a model reply into a candidate and its self-reported confidence.
// Any reply that is not a JSON object of the expected shape wraps
// core.ErrMalformedOutput.
func Decode(raw string) (*core.Candidate, float64, error) {
	body := jsonBody(raw)
	if body == "" {
		return nil, 0, fmt.Errorf("%w: no JSON object in reply", core.ErrMalformedOutput)
	}

	var w wireRecipe
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	if err := dec.Decode(&w); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", core.ErrMalformedOutput, err)
	}
	if w.Title == nil && w.Ingredients == nil {
		return nil, 0, fmt.Errorf("%w: reply has neither title nor ingredients", core.ErrMalformedOutput)
	}

	c := &core.Candidate{
		Title:           str(w.Title),
		Description:     str(w.Description),
		Cuisine:         str(w.Cuisine),
		Category:        str(w.Category),
		Difficulty:      integer(w.Difficulty),
		PrepTimeMinutes: integer(w.PrepTimeMinutes),
		CookTimeMinutes: integer(w.CookTimeMinutes),
		Servings:        integer(w.Servings),
		Instructions:    w.Instructions,
		Tags:            w.Tags,
		Nutrition:       w.Nutrition,
	}
	for _, in := range w.Ingredients {
		c.Ingredients = append(c.Ingredients, core.Ingredient{
			Name:     str(in.Name),
			Quantity: in.Quantity,
			Unit:     str(in.Unit),
			Notes:    str(in.Notes),
		})
	}

	conf, ok := w.ConfidenceScores["overall"]
	if !ok || math.IsNaN(conf) {
		conf = DefaultConfidence
	}
	return c, math.Max(0, math.Min(1, conf)), nil
}

// jsonBody strips markdown fences and surrounding prose from a reply.
func jsonBody(raw string) string {
	s := strings.TrimSpace(raw)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

// maxInteger bounds whole-number fields before the int conversion.
const maxInteger = 1_000_000

func integer(p *float64) int {
	if p == nil || math.IsNaN(*p) {
		return 0
	}
	return int(math.Round(math.Max(-maxInteger, math.Min(maxInteger, *p))))
}
