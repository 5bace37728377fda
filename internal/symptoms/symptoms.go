// Package symptoms holds the fixed self-assessment checklist.
package symptoms

import "strings"

// Symptom is one checklist entry.
type Symptom struct {
	Name     string
	Category string
}

// Label is the display form of Name, e.g. "Sleep disturbance".
func (s Symptom) Label() string {
	words := strings.ReplaceAll(s.Name, "_", " ")
	if words == "" {
		return ""
	}
	return strings.ToUpper(words[:1]) + words[1:]
}

// Catalog is the checklist in display order.
var Catalog = []Symptom{
	{Name: "sadness", Category: "Mood"},
	{Name: "anxiety", Category: "Anxiety"},
	{Name: "sleep_disturbance", Category: "Sleep"},
	{Name: "loss_of_interest", Category: "Depression"},
	{Name: "fatigue", Category: "General"},
	{Name: "difficulty_concentrating", Category: "Cognitive"},
	{Name: "social_isolation", Category: "Social"},
	{Name: "irritability", Category: "Mood"},
	{Name: "excessive_worry", Category: "Anxiety"},
	{Name: "low_energy", Category: "General"},
}

// ByCategory returns the catalog entries in category.
func ByCategory(category string) []Symptom {
	var out []Symptom
	for _, s := range Catalog {
		if s.Category == category {
			out = append(out, s)
		}
	}
	return out
}

// Flags builds the prediction payload: every catalog name mapped to 1 when
// selected and 0 otherwise. Names outside the catalog are ignored.
func Flags(selected map[string]bool) map[string]int {
	flags := make(map[string]int, len(Catalog))
	for _, s := range Catalog {
		if selected[s.Name] {
			flags[s.Name] = 1
		} else {
			flags[s.Name] = 0
		}
	}
	return flags
}
