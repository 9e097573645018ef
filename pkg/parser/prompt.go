package parser

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a professional recipe parser. Extract structured recipe data from unstructured text.

RULES:
1. Use "unknown" for any text field you cannot determine from the text.
2. For ingredients separate quantity, unit and name. Preparation goes into "notes".
3. Units: g, kg, ml, l, cup, tbsp, tsp, oz, lb, piece.
4. Difficulty: 1=very easy, 2=easy, 3=medium, 4=hard, 5=very hard.
5. Instructions are clear steps, one per array element.
6. Tags include dietary restrictions when mentioned (vegetarian, vegan, gluten-free).
7. For "to taste" items use null for quantity and unit.

EXAMPLES:
"2 large onions, diced" -> {"name": "onions", "quantity_value": 2, "unit": "piece", "notes": "large, diced"}
"400g spaghetti" -> {"name": "spaghetti", "quantity_value": 400, "unit": "g", "notes": null}
"Salt to taste" -> {"name": "salt", "quantity_value": null, "unit": null, "notes": "to taste"}

Return ONLY a JSON object matching this schema:
{
  "title": "string",
  "description": "string",
  "cuisine": "string",
  "category": "string (appetizer, main, dessert, ...)",
  "difficulty": 1-5,
  "prep_time_minutes": 0,
  "cook_time_minutes": 0,
  "servings": 1,
  "ingredients": [{"name": "string", "quantity_value": 0.0 or null, "unit": "string or null", "notes": "string or null"}],
  "instructions": ["step 1", "step 2"],
  "tags": ["tag"],
  "nutrition": {"calories_per_serving": 0, "protein_g": 0.0, "carbs_g": 0.0, "fat_g": 0.0, "sugar_g": 0.0, "fiber_g": 0.0, "sodium_mg": 0.0} or null,
  "confidence_scores": {"overall": 0.0-1.0, "title": 0.0-1.0, "ingredients": 0.0-1.0, "instructions": 0.0-1.0}
}`

// SystemPrompt returns the instructions shared by every provider.
func SystemPrompt() string {
	return systemPrompt
}

// UserPrompt renders the per-document prompt.
func UserPrompt(text, language, notes string) string {
	var sb strings.Builder
	if language != "" {
		fmt.Fprintf(&sb, "Parse this recipe text (language: %s):\n\n", language)
	} else {
		sb.WriteString("Parse this recipe text:\n\n")
	}
	sb.WriteString(strings.TrimSpace(text))
	sb.WriteString("\n\nRemember to use \"unknown\" for missing information and to provide confidence scores.")
	if notes = strings.TrimSpace(notes); notes != "" {
		sb.WriteString("\n\nA reviewer looked at a previous extraction of this document and asked for changes:\n")
		sb.WriteString(notes)
	}
	return sb.String()
}
