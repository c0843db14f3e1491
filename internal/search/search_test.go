package search

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/civicdesk/civicdesk/internal/classify"
	"github.com/civicdesk/civicdesk/internal/log"
	"github.com/civicdesk/civicdesk/internal/testutil"
	"github.com/civicdesk/civicdesk/internal/vecstore"
)

// seed inserts a complaint whose embedding equals the fake encoding of its
// text, so searching for the same text is an exact match.
func seed(t *testing.T, index vecstore.Index, enc *testutil.FakeEncoder, id, text string, meta vecstore.Metadata) {
	t.Helper()
	vec, err := enc.Encode(context.Background(), text)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := index.Add(context.Background(), vecstore.Document{
		ID: id, Text: text, Embedding: vec, Metadata: meta,
	}); err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func newFacade(t *testing.T) (*Facade, vecstore.Index, *testutil.FakeEncoder) {
	t.Helper()
	enc := &testutil.FakeEncoder{Dimension: vecstore.VectorDimension}
	index := vecstore.NewMemory(log.NewNop())
	return New(enc, index, log.NewNop()), index, enc
}

func TestSearch_RanksAndShapesResults(t *testing.T) {
	f, index, enc := newFacade(t)

	seed(t, index, enc, "leak", "Water leaking on Main Street for 3 days", vecstore.Metadata{
		Summary:    "Water main leak",
		Urgency:    "High",
		Department: "Water Department",
		Location:   "Main Street",
		Color:      "Red",
		Emoji:      "🔴",
		Filename:   "leak.txt",
		UploadDate: "2026-08-28T10:30:00Z",
	})
	seed(t, index, enc, "light", "Streetlight broken near the park", vecstore.Metadata{
		Summary:    "Broken streetlight",
		Urgency:    "Low",
		Department: "Electricity Department",
	})

	results, err := f.Search(context.Background(), "Water leaking on Main Street for 3 days", 5, "", "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	top := results[0]
	if top.DocumentID != "leak" {
		t.Fatalf("top hit = %q, want leak", top.DocumentID)
	}
	if math.Abs(top.SimilarityScore-1.0) > 1e-6 {
		t.Errorf("exact match similarity = %v, want 1.0", top.SimilarityScore)
	}
	if top.Summary != "Water main leak" || top.Department != "Water Department" {
		t.Errorf("metadata not mapped: %+v", top)
	}
	if top.Location != "Main Street" {
		t.Errorf("location = %q", top.Location)
	}
	if top.TextPreview != "Water leaking on Main Street for 3 days" {
		t.Errorf("short text must not be truncated: %q", top.TextPreview)
	}
	if results[1].SimilarityScore > top.SimilarityScore {
		t.Error("results not ordered by similarity")
	}
	// Empty location displays as the sentinel.
	if results[1].Location != classify.LocationNotSpecified {
		t.Errorf("missing location = %q, want sentinel", results[1].Location)
	}
}

func TestSearch_Filters(t *testing.T) {
	f, index, enc := newFacade(t)

	seed(t, index, enc, "w1", "no water supply", vecstore.Metadata{Department: "Water Department", Urgency: "High"})
	seed(t, index, enc, "w2", "dirty water", vecstore.Metadata{Department: "Water Department", Urgency: "Low"})
	seed(t, index, enc, "t1", "bus never arrives", vecstore.Metadata{Department: "Transport Department", Urgency: "High"})

	results, err := f.Search(context.Background(), "water problems", 10, "Water Department", "High")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].DocumentID != "w1" {
		t.Fatalf("filtered results = %+v, want only w1", results)
	}
}

func TestSearch_PreviewTruncation(t *testing.T) {
	f, index, enc := newFacade(t)

	long := strings.Repeat("flooding in the underpass ", 20) // ~520 chars
	seed(t, index, enc, "long", long, vecstore.Metadata{})

	results, err := f.Search(context.Background(), "flooding", 1, "", "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	preview := results[0].TextPreview
	if !strings.HasSuffix(preview, "...") {
		t.Errorf("long preview missing ellipsis: %q", preview)
	}
	if len([]rune(preview)) != previewLength+3 {
		t.Errorf("preview length = %d runes, want %d", len([]rune(preview)), previewLength+3)
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		want     float64
	}{
		{"exact", 0, 1},
		{"partial", 0.3, 0.7},
		{"orthogonal", 1, 0},
		{"beyond orthogonal clamps", 1.7, 0},
		{"negative distance clamps", -0.2, 1},
		{"nan defaults to full similarity", math.NaN(), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := similarity(tt.distance)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("similarity(%v) = %v, want %v", tt.distance, got, tt.want)
			}
		})
	}
}

func TestDetails(t *testing.T) {
	f, index, enc := newFacade(t)

	seed(t, index, enc, "doc-1", "Water leaking on Main Street for 3 days", vecstore.Metadata{
		Summary:    "Water main leak",
		Urgency:    "High",
		Department: "Water Department",
		Filename:   "leak.txt",
		Extra:      map[string]string{"file_path": "/uploads/leak.txt"},
	})

	details, err := f.Details(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	if details == nil {
		t.Fatal("Details = nil for existing document")
	}
	if details.FullText != "Water leaking on Main Street for 3 days" {
		t.Errorf("FullText = %q", details.FullText)
	}
	if details.FilePath != "/uploads/leak.txt" {
		t.Errorf("FilePath = %q", details.FilePath)
	}
	if details.Location != classify.LocationNotSpecified {
		t.Errorf("empty location = %q, want sentinel", details.Location)
	}
}

func TestDetails_Unknown(t *testing.T) {
	f, _, _ := newFacade(t)

	details, err := f.Details(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	if details != nil {
		t.Errorf("Details = %+v, want nil", details)
	}
}

func TestDashboardStats(t *testing.T) {
	f, index, enc := newFacade(t)

	seed(t, index, enc, "a", "complaint a", vecstore.Metadata{Department: "Water Department", Urgency: "High"})
	seed(t, index, enc, "b", "complaint b", vecstore.Metadata{Department: "Water Department", Urgency: "Low"})
	seed(t, index, enc, "c", "complaint c", vecstore.Metadata{Department: "Transport Department", Urgency: "High"})
	seed(t, index, enc, "d", "complaint d", vecstore.Metadata{})

	stats, err := f.DashboardStats(context.Background())
	if err != nil {
		t.Fatalf("DashboardStats: %v", err)
	}

	if stats.TotalComplaints != 4 {
		t.Errorf("TotalComplaints = %d, want 4", stats.TotalComplaints)
	}
	if stats.Backend != vecstore.BackendMemory {
		t.Errorf("Backend = %q", stats.Backend)
	}
	if stats.DepartmentDistribution["Water Department"] != 2 {
		t.Errorf("water count = %d, want 2", stats.DepartmentDistribution["Water Department"])
	}
	if stats.DepartmentDistribution["Unknown"] != 1 {
		t.Errorf("unknown department count = %d, want 1", stats.DepartmentDistribution["Unknown"])
	}
	if stats.UrgencyDistribution["High"] != 2 {
		t.Errorf("high urgency count = %d, want 2", stats.UrgencyDistribution["High"])
	}
}

func TestDashboardStats_Empty(t *testing.T) {
	f, _, _ := newFacade(t)

	stats, err := f.DashboardStats(context.Background())
	if err != nil {
		t.Fatalf("DashboardStats: %v", err)
	}
	if stats.TotalComplaints != 0 || len(stats.DepartmentDistribution) != 0 {
		t.Errorf("empty stats = %+v", stats)
	}
}
