package validate

import "strings"

var unitAliases = map[string]string{
	"tablespoon": "tbsp", "tablespoons": "tbsp", "tbs": "tbsp", "tbl": "tbsp", "tbsps": "tbsp",
	"teaspoon": "tsp", "teaspoons": "tsp", "tsps": "tsp",
	"gram": "g", "grams": "g", "gr": "g", "grs": "g",
	"kilogram": "kg", "kilograms": "kg", "kgs": "kg",
	"milliliter": "ml", "milliliters": "ml", "millilitre": "ml", "millilitres": "ml",
	"liter": "l", "liters": "l", "litre": "l", "litres": "l",
	"ounce": "oz", "ounces": "oz",
	"pound": "lb", "pounds": "lb", "lbs": "lb",
	"cups": "cup", "c": "cup",
	"pieces": "piece", "pcs": "piece", "pc": "piece",
	"cloves": "clove",
	"pinches": "pinch",
}

// NormalizeUnit maps a unit spelling to its canonical abbreviation. Unknown
// units are lower-cased and returned as is.
func NormalizeUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	u = strings.TrimSuffix(u, ".")
	if canonical, ok := unitAliases[u]; ok {
		return canonical
	}
	return u
}
