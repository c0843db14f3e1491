// Package classify defines the classification oracle contract for the
// complaint pipeline and its Gemini implementation.
//
// The oracle answers two questions about a complaint text: how should it be
// routed (summary, urgency, department, location) and whether it is a civic
// complaint at all. Both operations are total: implementations absorb
// transport and parse failures and substitute documented defaults, because
// availability of the intake workflow is prioritized over classification
// accuracy. Callers never see an oracle error.
package classify

import (
	"context"
	"strings"
)

// Urgency levels recognized by the portal.
const (
	UrgencyHigh   = "High"
	UrgencyMedium = "Medium"
	UrgencyLow    = "Low"
)

// LocationNotSpecified is the sentinel for complaints without a usable
// location.
const LocationNotSpecified = "Location not specified"

// Classification is the routing decision for one complaint text.
type Classification struct {
	Summary    string
	Urgency    string // High, Medium or Low
	Department string
	Location   string
}

// Relevance is the oracle's judgment on whether a submission is a valid
// civic complaint. Confidence is in [0, 1].
type Relevance struct {
	IsRelevant bool
	Confidence float64
	Category   string
	Reason     string
}

// Oracle classifies complaint text. Implementations must be safe for
// concurrent use and must not return partial garbage: every field of the
// result is populated, with defaults substituted on failure.
type Oracle interface {
	Classify(ctx context.Context, text string) Classification
	AssessRelevance(ctx context.Context, text string) Relevance
}

// urgencyVisual maps an urgency level to its dashboard color and emoji.
var urgencyVisual = map[string][2]string{
	UrgencyHigh:   {"Red", "🔴"},
	UrgencyMedium: {"Orange", "🟠"},
	UrgencyLow:    {"Green", "🟢"},
}

// Visual returns the color and emoji for an urgency level. Unknown levels
// get the Medium visuals.
func Visual(urgency string) (color, emoji string) {
	v, ok := urgencyVisual[urgency]
	if !ok {
		v = urgencyVisual[UrgencyMedium]
	}
	return v[0], v[1]
}

// NormalizeUrgency maps free-form model output to one of the three levels.
// Anything unrecognized becomes Medium.
func NormalizeUrgency(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HIGH", "EMERGENCY", "URGENT":
		return UrgencyHigh
	case "LOW", "MINOR":
		return UrgencyLow
	case "MEDIUM", "MODERATE":
		return UrgencyMedium
	default:
		return UrgencyMedium
	}
}

// NormalizeDepartment validates model output against the configured
// department enumeration: exact match first, then a substring match in
// either direction, then the fallback department.
func NormalizeDepartment(s string, departments []string, fallback string) string {
	s = strings.TrimSpace(s)
	for _, dept := range departments {
		if strings.EqualFold(s, dept) {
			return dept
		}
	}
	lower := strings.ToLower(s)
	if lower != "" {
		for _, dept := range departments {
			dl := strings.ToLower(dept)
			if strings.Contains(dl, lower) || strings.Contains(lower, dl) {
				return dept
			}
		}
	}
	return fallback
}

// NormalizeLocation maps empty or non-answers to the sentinel.
func NormalizeLocation(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "none", "not specified", "no location", "unknown":
		return LocationNotSpecified
	}
	return s
}

// excerpt returns the first n characters of text, used as a degraded summary
// when the oracle is unreachable.
func excerpt(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
