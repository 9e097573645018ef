package core

// Candidate is a structured recipe produced by the AI parser and refined by the validator.
type Candidate struct {
	Title           string       `json:"title"`
	Description     string       `json:"description,omitempty"`
	Cuisine         string       `json:"cuisine,omitempty"`
	Category        string       `json:"category,omitempty"`
	Difficulty      int          `json:"difficulty,omitempty"`
	PrepTimeMinutes int          `json:"prep_time_minutes"`
	CookTimeMinutes int          `json:"cook_time_minutes"`
	Servings        int          `json:"servings"`
	Ingredients     []Ingredient `json:"ingredients"`
	Instructions    []string     `json:"instructions"`
	Tags            []string     `json:"tags,omitempty"`
	Nutrition       *Nutrition   `json:"nutrition,omitempty"`
}

// MaxTimeMinutes caps a prep or cook time (about a week).
const MaxTimeMinutes = 10_000

// TotalTimeMinutes is prep plus cook time, each clamped to [0, MaxTimeMinutes].
func (c *Candidate) TotalTimeMinutes() int {
	return clampMinutes(c.PrepTimeMinutes) + clampMinutes(c.CookTimeMinutes)
}

func clampMinutes(m int) int {
	return max(0, min(m, MaxTimeMinutes))
}

// Ingredient is one line of a recipe's ingredient list.
type Ingredient struct {
	Name     string   `json:"name"`
	Quantity *float64 `json:"quantity_value,omitempty"`
	Unit     string   `json:"unit,omitempty"`
	Notes    string   `json:"notes,omitempty"`
}

// Nutrition holds optional per-serving nutrition facts.
type Nutrition struct {
	CaloriesPerServing *float64 `json:"calories_per_serving,omitempty"`
	ProteinG           *float64 `json:"protein_g,omitempty"`
	CarbsG             *float64 `json:"carbs_g,omitempty"`
	FatG               *float64 `json:"fat_g,omitempty"`
	SugarG             *float64 `json:"sugar_g,omitempty"`
	FiberG             *float64 `json:"fiber_g,omitempty"`
	SodiumMG           *float64 `json:"sodium_mg,omitempty"`
}
