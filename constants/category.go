package constants

import "strings"

// Category is one of the five vehicle usage categories the external
// classifier distinguishes.
type Category string

const (
	Familiar   Category = "FAMILIAR"
	Comercial  Category = "COMERCIAL"
	Deportivo  Category = "DEPORTIVO"
	Carga      Category = "CARGA"
	Transporte Category = "TRANSPORTE"
)

var allCategories = []Category{
	Familiar,
	Comercial,
	Deportivo,
	Carga,
	Transporte,
}

func CategoriesAsStrings() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// IsKnownCategory reports whether the classifier label is one of the five
// fixed categories (case-insensitive).
func IsKnownCategory(label string) bool {
	normalized := strings.ToUpper(strings.TrimSpace(label))
	for _, cat := range allCategories {
		if normalized == string(cat) {
			return true
		}
	}
	return false
}
