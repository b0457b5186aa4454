package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Normalize maps one analyzer payload onto Evidence. Analyzer output is untrusted and
// inconsistent, so each field accepts several key aliases and value shapes.
func Normalize(raw map[string]any) Evidence {
	ev := Evidence{
		Type:            firstString(raw, "type", "document_type", "kind"),
		Description:     firstString(raw, "description", "summary"),
		RelevantDetails: firstList(raw, "relevant_details", "details", "key_points"),
		SuggestedUse:    firstString(raw, "suggested_use", "use"),
		Strength:        parseStrength(firstValue(raw, "strength")),
	}
	if ev.Type == "" {
		ev.Type = "document"
	}
	if ev.RelevantDetails == nil {
		ev.RelevantDetails = []string{}
	}
	return ev
}

// Aggregate keeps insertion order and drops items not indexed for the letter.
func Aggregate(items []Evidence) Context {
	out := Context{Items: make([]Evidence, 0, len(items))}
	for _, item := range items {
		if !item.IndexedForLetter {
			continue
		}
		out.Items = append(out.Items, item)
		if out.Strongest == "" || item.Strength.Rank() > out.Strongest.Rank() {
			out.Strongest = item.Strength
		}
	}
	out.Count = len(out.Items)
	return out
}

// ParseStrength reads a strength word; anything unrecognised is moderate.
func ParseStrength(value string) Strength {
	return parseStrength(value)
}

func parseStrength(value any) Strength {
	switch v := value.(type) {
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "strong", "high":
			return StrengthStrong
		case "weak", "low":
			return StrengthWeak
		default:
			return StrengthModerate
		}
	case float64:
		return strengthFromScore(v)
	case int:
		return strengthFromScore(float64(v))
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return strengthFromScore(f)
		}
	}
	return StrengthModerate
}

func strengthFromScore(score float64) Strength {
	switch {
	case score < 0 || score > 1:
		return StrengthModerate
	case score >= 0.7:
		return StrengthStrong
	case score < 0.4:
		return StrengthWeak
	default:
		return StrengthModerate
	}
}

func firstValue(raw map[string]any, keys ...string) any {
	for _, key := range keys {
		if value, ok := raw[key]; ok && value != nil {
			return value
		}
	}
	return nil
}

func firstString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := raw[key].(string); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func firstList(raw map[string]any, keys ...string) []string {
	for _, key := range keys {
		switch value := raw[key].(type) {
		case string:
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return []string{trimmed}
			}
		case []string:
			return compact(value)
		case []any:
			items := make([]string, 0, len(value))
			for _, item := range value {
				if item == nil {
					continue
				}
				items = append(items, fmt.Sprint(item))
			}
			return compact(items)
		}
	}
	return nil
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
