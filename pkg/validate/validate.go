// Package validate applies deterministic rules to a candidate recipe and
// computes its final confidence score.
package validate

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/jdziat/recipe-ingest/pkg/core"
)

// Penalties subtracted from the parser's confidence.
const (
	CorrectionPenalty  = 0.05
	QualityPenalty     = 0.05
	TranslationPenalty = 0.10
)

const minTitleLength = 3

// Input is what the validator needs from earlier stages.
type Input struct {
	Candidate           *core.Candidate
	Confidence          float64
	TranslationDegraded bool
}

// Report is the validated candidate and how the score was reached.
type Report struct {
	Candidate      *core.Candidate
	BaseConfidence float64
	Confidence     float64
	Corrections    []string
	QualityIssues  []string

	// Rejected is set when the candidate cannot become a recipe without a human.
	Rejected bool
	Reason   string
}

// Validate never mutates in.Candidate.
func Validate(in Input) *Report {
	r := &Report{BaseConfidence: in.Confidence}
	if in.Candidate == nil {
		r.Rejected = true
		r.Reason = "no candidate recipe"
		return r
	}
	c := clone(in.Candidate)
	r.Candidate = c

	c.Title = strings.TrimSpace(c.Title)
	c.Description = strings.TrimSpace(c.Description)
	if isUnknown(c.Description) {
		c.Description = ""
	}
	if isUnknown(c.Cuisine) {
		if strings.TrimSpace(c.Cuisine) != "" {
			r.correct("cuisine %q cleared", c.Cuisine)
		}
		c.Cuisine = ""
	}
	c.Cuisine = strings.TrimSpace(c.Cuisine)
	if isUnknown(c.Category) {
		if strings.TrimSpace(c.Category) != "" {
			r.correct("category %q cleared", c.Category)
		}
		c.Category = ""
	}
	c.Category = strings.TrimSpace(c.Category)

	r.clampNumbers(c)
	r.cleanIngredients(c)
	cleanInstructions(c)
	c.Tags = normalizeTags(c.Tags)

	if isUnknown(c.Title) || utf8.RuneCountInString(c.Title) < minTitleLength {
		r.Rejected = true
		r.Reason = "title is missing or too short"
		return r
	}
	if len(c.Ingredients) == 0 {
		r.Rejected = true
		r.Reason = "no ingredients found"
		return r
	}

	if len(c.Instructions) == 0 {
		r.QualityIssues = append(r.QualityIssues, "no instructions")
	}
	if c.Description == "" {
		r.QualityIssues = append(r.QualityIssues, "no description")
	}
	if c.Cuisine == "" {
		r.QualityIssues = append(r.QualityIssues, "no cuisine")
	}

	penalty := CorrectionPenalty*float64(len(r.Corrections)) + QualityPenalty*float64(len(r.QualityIssues))
	if in.TranslationDegraded {
		penalty += TranslationPenalty
	}
	r.Confidence = round4(clamp01(in.Confidence - penalty))
	return r
}

func (r *Report) correct(format string, args ...any) {
	r.Corrections = append(r.Corrections, fmt.Sprintf(format, args...))
}

func (r *Report) clampNumbers(c *core.Candidate) {
	switch {
	case c.Difficulty < 1:
		r.correct("difficulty %d raised to 1", c.Difficulty)
		c.Difficulty = 1
	case c.Difficulty > 5:
		r.correct("difficulty %d lowered to 5", c.Difficulty)
		c.Difficulty = 5
	}
	switch {
	case c.PrepTimeMinutes < 0:
		r.correct("negative prep time %d set to 0", c.PrepTimeMinutes)
		c.PrepTimeMinutes = 0
	case c.PrepTimeMinutes > core.MaxTimeMinutes:
		r.correct("prep time %d lowered to %d", c.PrepTimeMinutes, core.MaxTimeMinutes)
		c.PrepTimeMinutes = core.MaxTimeMinutes
	}
	switch {
	case c.CookTimeMinutes < 0:
		r.correct("negative cook time %d set to 0", c.CookTimeMinutes)
		c.CookTimeMinutes = 0
	case c.CookTimeMinutes > core.MaxTimeMinutes:
		r.correct("cook time %d lowered to %d", c.CookTimeMinutes, core.MaxTimeMinutes)
		c.CookTimeMinutes = core.MaxTimeMinutes
	}
	if c.Servings < 1 {
		r.correct("servings %d raised to 1", c.Servings)
		c.Servings = 1
	}
}

func (r *Report) cleanIngredients(c *core.Candidate) {
	kept := c.Ingredients[:0]
	for i, in := range c.Ingredients {
		in.Name = strings.TrimSpace(in.Name)
		if in.Name == "" || isUnknown(in.Name) {
			r.correct("blank ingredient row %d dropped", i+1)
			continue
		}
		if in.Quantity != nil && (*in.Quantity < 0 || math.IsNaN(*in.Quantity)) {
			r.correct("invalid quantity for %q cleared", in.Name)
			in.Quantity = nil
		}
		in.Unit = NormalizeUnit(in.Unit)
		if isUnknown(in.Unit) {
			in.Unit = ""
		}
		in.Notes = strings.TrimSpace(in.Notes)
		kept = append(kept, in)
	}
	c.Ingredients = kept
}

func cleanInstructions(c *core.Candidate) {
	out := c.Instructions[:0]
	for _, step := range c.Instructions {
		if step = strings.TrimSpace(step); step != "" {
			out = append(out, step)
		}
	}
	c.Instructions = out
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func clone(c *core.Candidate) *core.Candidate {
	out := *c
	out.Ingredients = make([]core.Ingredient, len(c.Ingredients))
	for i, in := range c.Ingredients {
		if in.Quantity != nil {
			q := *in.Quantity
			in.Quantity = &q
		}
		out.Ingredients[i] = in
	}
	out.Instructions = append([]string(nil), c.Instructions...)
	out.Tags = append([]string(nil), c.Tags...)
	if c.Nutrition != nil {
		n := *c.Nutrition
		out.Nutrition = &n
	}
	return &out
}

func isUnknown(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "" || s == "unknown" || s == "n/a" || s == "none"
}

func clamp01(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
