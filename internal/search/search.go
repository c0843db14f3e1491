// Package search is the read side of the complaint portal: semantic search,
// detail lookup and dashboard statistics over the vector store.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/civicdesk/civicdesk/internal/classify"
	"github.com/civicdesk/civicdesk/internal/embed"
	"github.com/civicdesk/civicdesk/internal/vecstore"
)

// statsScanLimit caps how many documents the dashboard distribution scan
// pulls. Past this the distributions are computed over a sample.
const statsScanLimit = 1000

// previewLength is how many runes of complaint text search results carry.
const previewLength = 200

// Facade answers read queries. It is stateless and safe for concurrent use.
type Facade struct {
	encoder embed.Encoder
	index   vecstore.Index
	logger  *slog.Logger
}

// New creates a Facade. logger may be nil.
func New(encoder embed.Encoder, index vecstore.Index, logger *slog.Logger) *Facade {
	if logger == nil {
		logger = slog.Default()
	}
	return &Facade{encoder: encoder, index: index, logger: logger}
}

// Result is one search hit, shaped for display.
type Result struct {
	DocumentID      string  `json:"document_id"`
	SimilarityScore float64 `json:"similarity_score"`
	Summary         string  `json:"summary"`
	Urgency         string  `json:"urgency"`
	Department      string  `json:"department"`
	Location        string  `json:"location"`
	Color           string  `json:"color"`
	Emoji           string  `json:"emoji"`
	Filename        string  `json:"filename"`
	UploadDate      string  `json:"upload_date"`
	TextPreview     string  `json:"text_preview"`
}

// Search returns up to k complaints similar to the query text, most similar
// first. department and urgency, when non-empty, restrict results to exact
// metadata matches.
func (f *Facade) Search(ctx context.Context, query string, k int, department, urgency string) ([]Result, error) {
	embedding, err := f.encoder.Encode(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("encoding search query: %w", err)
	}

	var filter map[string]string
	if department != "" || urgency != "" {
		filter = make(map[string]string, 2)
		if department != "" {
			filter["department"] = department
		}
		if urgency != "" {
			filter["urgency"] = urgency
		}
	}

	hits, err := f.index.Query(ctx, embedding, k, filter)
	if err != nil {
		return nil, fmt.Errorf("searching complaints: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, Result{
			DocumentID:      hit.ID,
			SimilarityScore: similarity(hit.Distance),
			Summary:         hit.Metadata.Summary,
			Urgency:         hit.Metadata.Urgency,
			Department:      hit.Metadata.Department,
			Location:        displayLocation(hit.Metadata.Location),
			Color:           hit.Metadata.Color,
			Emoji:           hit.Metadata.Emoji,
			Filename:        hit.Metadata.Filename,
			UploadDate:      hit.Metadata.UploadDate,
			TextPreview:     preview(hit.Text),
		})
	}
	return results, nil
}

// Details is the full record for one complaint.
type Details struct {
	DocumentID string `json:"document_id"`
	FullText   string `json:"full_text"`
	Summary    string `json:"summary"`
	Urgency    string `json:"urgency"`
	Department string `json:"department"`
	Location   string `json:"location"`
	Color      string `json:"color"`
	Emoji      string `json:"emoji"`
	Filename   string `json:"filename"`
	UploadDate string `json:"upload_date"`
	FilePath   string `json:"file_path,omitempty"`
}

// Details returns the stored complaint, or (nil, nil) when the id is unknown.
func (f *Facade) Details(ctx context.Context, documentID string) (*Details, error) {
	doc, err := f.index.Get(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetching complaint %q: %w", documentID, err)
	}
	if doc == nil {
		return nil, nil
	}

	filePath, _ := doc.Metadata.Field("file_path")
	return &Details{
		DocumentID: doc.ID,
		FullText:   doc.Text,
		Summary:    doc.Metadata.Summary,
		Urgency:    doc.Metadata.Urgency,
		Department: doc.Metadata.Department,
		Location:   displayLocation(doc.Metadata.Location),
		Color:      doc.Metadata.Color,
		Emoji:      doc.Metadata.Emoji,
		Filename:   doc.Metadata.Filename,
		UploadDate: doc.Metadata.UploadDate,
		FilePath:   filePath,
	}, nil
}

// Stats summarizes the collection for the dashboard.
type Stats struct {
	TotalComplaints        int            `json:"total_complaints"`
	DepartmentDistribution map[string]int `json:"department_distribution"`
	UrgencyDistribution    map[string]int `json:"urgency_distribution"`
	Backend                string         `json:"backend"`
}

// DashboardStats counts complaints per department and urgency. Distributions
// come from a bounded scan of the collection; beyond statsScanLimit documents
// they are computed over a sample while the total stays exact.
func (f *Facade) DashboardStats(ctx context.Context) (Stats, error) {
	collStats, err := f.index.Stats(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("reading collection stats: %w", err)
	}

	// A zero query vector ranks nothing meaningfully, which is fine: only
	// the metadata of the returned documents matters here.
	hits, err := f.index.Query(ctx, make([]float32, vecstore.VectorDimension), statsScanLimit, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("scanning collection for distributions: %w", err)
	}
	if len(hits) == statsScanLimit && collStats.Count > statsScanLimit {
		f.logger.Warn("distribution scan truncated",
			"scanned", statsScanLimit, "total", collStats.Count)
	}

	stats := Stats{
		TotalComplaints:        collStats.Count,
		DepartmentDistribution: make(map[string]int),
		UrgencyDistribution:    make(map[string]int),
		Backend:                collStats.Backend,
	}
	for _, hit := range hits {
		stats.DepartmentDistribution[orUnknown(hit.Metadata.Department)]++
		stats.UrgencyDistribution[orUnknown(hit.Metadata.Urgency)]++
	}
	return stats, nil
}

// similarity converts cosine distance to a score in [0, 1], higher is more
// similar. An unavailable distance (NaN) scores 1 so the hit is not hidden;
// out-of-range values clamp.
func similarity(distance float64) float64 {
	if math.IsNaN(distance) {
		return 1
	}
	s := 1 - distance
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength]) + "..."
}

func displayLocation(location string) string {
	if location == "" {
		return classify.LocationNotSpecified
	}
	return location
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
