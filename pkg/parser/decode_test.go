package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/recipe-ingest/pkg/core"
)

const carbonaraJSON = `{
  "title": " Spaghetti Carbonara ",
  "description": "Silky Roman pasta",
  "cuisine": "Italian",
  "category": "main",
  "difficulty": 2.0,
  "prep_time_minutes": 10,
  "cook_time_minutes": 14.6,
  "servings": 4,
  "ingredients": [
    {"name": "spaghetti", "quantity_value": 400, "unit": "g", "notes": null},
    {"name": "salt", "quantity_value": null, "unit": null, "notes": "to taste"}
  ],
  "instructions": ["Boil pasta", "Toss with eggs"],
  "tags": ["Pasta"],
  "nutrition": {"calories_per_serving": 620, "protein_g": 24.5},
  "confidence_scores": {"overall": 0.91, "title": 0.99}
}`

func TestDecode_FullReply(t *testing.T) {
	c, conf, err := Decode(carbonaraJSON)
	require.NoError(t, err)

	assert.Equal(t, "Spaghetti Carbonara", c.Title)
	assert.Equal(t, "Italian", c.Cuisine)
	assert.Equal(t, 2, c.Difficulty)
	assert.Equal(t, 15, c.CookTimeMinutes)
	assert.Equal(t, 4, c.Servings)
	require.Len(t, c.Ingredients, 2)
	require.NotNil(t, c.Ingredients[0].Quantity)
	assert.InDelta(t, 400, *c.Ingredients[0].Quantity, 1e-9)
	assert.Nil(t, c.Ingredients[1].Quantity)
	assert.Equal(t, "to taste", c.Ingredients[1].Notes)
	require.NotNil(t, c.Nutrition)
	assert.InDelta(t, 620, *c.Nutrition.CaloriesPerServing, 1e-9)
	assert.InDelta(t, 0.91, conf, 1e-9)
}

func TestDecode_StripsFencesAndProse(t *testing.T) {
	raw := "Here you go:\n```json\n{\"title\": \"Soup\", \"ingredients\": [{\"name\": \"water\"}]}\n```"
	c, conf, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "Soup", c.Title)
	assert.InDelta(t, DefaultConfidence, conf, 1e-9)
}

func TestDecode_ConfidenceClamped(t *testing.T) {
	_, conf, err := Decode(`{"title": "Soup", "confidence_scores": {"overall": 1.7}}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, conf)
}

func TestDecode_HugeNumbersAreBounded(t *testing.T) {
	c, _, err := Decode(`{"title": "Stock", "prep_time_minutes": 1e20, "cook_time_minutes": -1e300, "servings": 9.9e18, "ingredients": [{"name": "bones"}]}`)
	require.NoError(t, err)

	assert.Equal(t, maxInteger, c.PrepTimeMinutes)
	assert.Equal(t, -maxInteger, c.CookTimeMinutes)
	assert.Equal(t, maxInteger, c.Servings)
	assert.Equal(t, core.MaxTimeMinutes, c.TotalTimeMinutes())
}

func TestDecode_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":       "I could not find a recipe in this document.",
		"truncated":      `{"title": "Soup", "ingredients": [`,
		"wrong type":     `{"title": "Soup", "servings": "four"}`,
		"no recipe keys": `{"answer": 42}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := Decode(raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrMalformedOutput)
		})
	}
}

func TestUserPrompt(t *testing.T) {
	p := UserPrompt("  Soup text  ", "it", "")
	assert.Contains(t, p, "(language: it)")
	assert.Contains(t, p, "Soup text")
	assert.NotContains(t, p, "reviewer")

	p = UserPrompt("Soup", "", "Servings should be 6")
	assert.Contains(t, p, "Parse this recipe text:")
	assert.Contains(t, p, "reviewer")
	assert.Contains(t, p, "Servings should be 6")
}
