package testutil

import (
	"context"

	"github.com/civicdesk/civicdesk/internal/classify"
)

// StaticOracle answers every classification with fixed values, recording the
// texts it saw. It is not safe for concurrent use; tests drive it serially.
type StaticOracle struct {
	Classification classify.Classification
	Relevance      classify.Relevance

	ClassifiedTexts []string
	AssessedTexts   []string
}

// RelevantOracle returns an oracle that accepts everything with a plausible
// classification, the common case for pipeline tests.
func RelevantOracle() *StaticOracle {
	return &StaticOracle{
		Classification: classify.Classification{
			Summary:    "Water main leaking on Main Street",
			Urgency:    classify.UrgencyHigh,
			Department: "Water Department",
			Location:   "Main Street",
		},
		Relevance: classify.Relevance{
			IsRelevant: true,
			Confidence: 0.92,
			Category:   "infrastructure",
			Reason:     "Reports a water infrastructure failure",
		},
	}
}

func (o *StaticOracle) Classify(_ context.Context, text string) classify.Classification {
	o.ClassifiedTexts = append(o.ClassifiedTexts, text)
	return o.Classification
}

func (o *StaticOracle) AssessRelevance(_ context.Context, text string) classify.Relevance {
	o.AssessedTexts = append(o.AssessedTexts, text)
	return o.Relevance
}
