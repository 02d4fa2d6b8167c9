package core

import "strings"

// DefaultCategoryIcon is used for custom categories created without an icon.
const DefaultCategoryIcon = "📦"

type PredefinedCategory struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

var predefinedCategories = []PredefinedCategory{
	{Name: "Food & Dining", Icon: "🍽️"},
	{Name: "Transportation", Icon: "🚗"},
	{Name: "Bills & Utilities", Icon: "💡"},
	{Name: "Shopping", Icon: "🛍️"},
	{Name: "Healthcare", Icon: "🏥"},
	{Name: "Entertainment", Icon: "🎬"},
	{Name: "Travel", Icon: "✈️"},
	{Name: "Education", Icon: "📚"},
	{Name: "Insurance", Icon: "🛡️"},
	{Name: "Other", Icon: "📦"},
}

// PredefinedCategories returns a copy of the fixed category set.
func PredefinedCategories() []PredefinedCategory {
	out := make([]PredefinedCategory, len(predefinedCategories))
	copy(out, predefinedCategories)
	return out
}

// IsPredefinedCategory matches name exactly, after trimming surrounding space.
func IsPredefinedCategory(name string) bool {
	name = strings.TrimSpace(name)
	for _, c := range predefinedCategories {
		if c.Name == name {
			return true
		}
	}
	return false
}
