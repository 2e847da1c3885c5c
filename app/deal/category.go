package deal

import (
	"strings"
)

// categoryKeywords maps a category to the grocery terms that imply it.
// Order matters: the first category whose keyword appears wins.
var categoryOrder = []string{
	"produce", "meat", "dairy", "bakery", "frozen",
	"pantry", "beverages", "snacks", "health", "household",
}

var categoryKeywords = map[string][]string{
	"produce":   {"apple", "banana", "orange", "potato", "onion", "carrot", "fruit", "vegetable"},
	"meat":      {"chicken", "beef", "pork", "turkey", "ham", "bacon", "sausage", "meat"},
	"dairy":     {"milk", "cheese", "yogurt", "butter", "cream", "dairy"},
	"bakery":    {"bread", "cake", "cookie", "bakery", "bagel", "muffin"},
	"frozen":    {"frozen", "ice cream", "pizza"},
	"pantry":    {"pasta", "rice", "sauce", "soup", "cereal", "canned"},
	"beverages": {"juice", "soda", "water", "coffee", "tea", "drink"},
	"snacks":    {"chips", "cracker", "candy", "chocolate", "snack"},
	"health":    {"vitamin", "medicine", "pharmacy", "health"},
	"household": {"cleaner", "detergent", "paper", "household"},
}

// InferCategory classifies a product by keyword lookup over its name
// and description. Returns "other" when nothing matches.
func InferCategory(name, description string) string {
	text := strings.ToLower(name + " " + description)

	for _, category := range categoryOrder {
		for _, keyword := range categoryKeywords[category] {
			if strings.Contains(text, keyword) {
				return category
			}
		}
	}

	return "other"
}
