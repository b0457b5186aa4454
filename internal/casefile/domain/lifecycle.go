package domain

import "strings"

// CanTransition reports whether the lifecycle allows moving from one status to another.
// Same-status moves are handled by the caller as no-ops.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusDraft:
		return to == StatusAnalyzing
	case StatusAnalyzing:
		return to == StatusAnalyzed || to == StatusDraft
	case StatusAnalyzed:
		return to == StatusReady
	case StatusReady:
		return to == StatusAnalyzing || to == StatusSent || to == StatusResolved
	case StatusSent:
		return to == StatusResolved
	default:
		return false
	}
}

func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	switch status {
	case StatusDraft, StatusAnalyzing, StatusAnalyzed, StatusReady, StatusSent, StatusResolved:
		return status, true
	}
	return "", false
}

// Display is the user-facing label. Internal stages are not exposed.
func Display(status Status) string {
	if status == StatusResolved {
		return "Resolved"
	}
	return "Preparing"
}

type Resolution string

const (
	ResolutionSuccessful   Resolution = "successful"
	ResolutionUnsuccessful Resolution = "unsuccessful"
	ResolutionNeutral      Resolution = "resolved"
)

var successMarkers = []string{"refund", "compensation", "resolved", "successful", "accepted"}

// ClassifyResolution buckets a free-text resolution outcome.
func ClassifyResolution(outcome string) Resolution {
	text := strings.ToLower(strings.TrimSpace(outcome))
	if text == "" {
		return ResolutionNeutral
	}
	for _, marker := range successMarkers {
		if strings.Contains(text, marker) {
			return ResolutionSuccessful
		}
	}
	return ResolutionUnsuccessful
}
