package vecstore

import (
	"reflect"
	"testing"
)

func TestMetadataField(t *testing.T) {
	m := Metadata{
		Filename:            "report.pdf",
		Department:          "Water Department",
		Urgency:             "High",
		RelevanceConfidence: 0.85,
		Extra:               map[string]string{"complaint_id": "C-42"},
	}

	tests := []struct {
		key    string
		want   string
		wantOK bool
	}{
		{"filename", "report.pdf", true},
		{"department", "Water Department", true},
		{"urgency", "High", true},
		{"relevance_confidence", "0.85", true},
		{"complaint_id", "C-42", true},
		{"location", "", false},
		{"summary", "", false},
		{"unknown_key", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := m.Field(tt.key)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Field(%q) = (%q, %v), want (%q, %v)", tt.key, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestMetadataMatches(t *testing.T) {
	m := Metadata{
		Department: "Transport Department",
		Urgency:    "Low",
		Extra:      map[string]string{"status": "open"},
	}

	tests := []struct {
		name   string
		filter map[string]string
		want   bool
	}{
		{"empty filter matches", map[string]string{}, true},
		{"single match", map[string]string{"department": "Transport Department"}, true},
		{"conjunction", map[string]string{"department": "Transport Department", "status": "open"}, true},
		{"value mismatch", map[string]string{"department": "Water Department"}, false},
		{"missing key", map[string]string{"location": "anywhere"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.matches(tt.filter); got != tt.want {
				t.Errorf("matches(%v) = %v, want %v", tt.filter, got, tt.want)
			}
		})
	}
}

func TestFilterDoc(t *testing.T) {
	got := filterDoc(map[string]string{
		"department":   "Water Department",
		"urgency":      "High",
		"complaint_id": "C-42",
		"status":       "open",
	})

	want := map[string]any{
		"department": "Water Department",
		"urgency":    "High",
		"extra": map[string]string{
			"complaint_id": "C-42",
			"status":       "open",
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("filterDoc = %#v, want %#v", got, want)
	}
}

func TestFilterDoc_WellKnownOnly(t *testing.T) {
	got := filterDoc(map[string]string{"department": "Municipality"})
	if _, hasExtra := got["extra"]; hasExtra {
		t.Errorf("filterDoc added empty extra nesting: %#v", got)
	}
}
