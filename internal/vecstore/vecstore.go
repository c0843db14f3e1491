// Package vecstore stores complaint documents as (embedding, text, metadata)
// triples and serves nearest-neighbor queries over them.
//
// Two interchangeable backends implement the Index interface: Postgres
// (pgvector, persistent) and Memory (exact cosine ranking, volatile). Open
// selects the backend at startup, silently downgrading to Memory when the
// database is unreachable, a deliberate availability-over-persistence
// tradeoff for the complaint intake workflow. Callers depend only on Index
// and never need to know which backend is active.
package vecstore

import (
	"context"
	"errors"
	"strconv"
)

// VectorDimension is the embedding dimensionality for every document in the
// collection. gemini-embedding-001 is truncated to this size; the pgvector
// column is declared with it.
const VectorDimension = 768

// ErrDimensionMismatch indicates an embedding whose length differs from the
// collection's dimensionality. This is a hard error: mixed dimensions make
// distance values meaningless.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Backend names reported by Stats.
const (
	BackendPostgres = "pgvector"
	BackendMemory   = "simple"
)

// Metadata is the semi-structured record attached to every stored document:
// a fixed set of well-known optional fields plus an open Extra mapping for
// caller-supplied extension fields (complaint_id, user_id, ...).
type Metadata struct {
	Filename            string            `json:"filename,omitempty"`
	UploadDate          string            `json:"upload_date,omitempty"` // ISO-8601
	Source              string            `json:"source,omitempty"`
	Title               string            `json:"title,omitempty"`
	Summary             string            `json:"summary,omitempty"`
	Urgency             string            `json:"urgency,omitempty"`
	Department          string            `json:"department,omitempty"`
	Location            string            `json:"location,omitempty"`
	Color               string            `json:"color,omitempty"`
	Emoji               string            `json:"emoji,omitempty"`
	RelevanceConfidence float64           `json:"relevance_confidence,omitempty"`
	RelevanceCategory   string            `json:"relevance_category,omitempty"`
	Extra               map[string]string `json:"extra,omitempty"`
}

// Field looks up a metadata value by its wire key, checking the well-known
// fields first and Extra second. Both backends use the same lookup for
// filtering, so filter semantics cannot drift between them.
func (m Metadata) Field(key string) (string, bool) {
	switch key {
	case "filename":
		return m.Filename, m.Filename != ""
	case "upload_date":
		return m.UploadDate, m.UploadDate != ""
	case "source":
		return m.Source, m.Source != ""
	case "title":
		return m.Title, m.Title != ""
	case "summary":
		return m.Summary, m.Summary != ""
	case "urgency":
		return m.Urgency, m.Urgency != ""
	case "department":
		return m.Department, m.Department != ""
	case "location":
		return m.Location, m.Location != ""
	case "color":
		return m.Color, m.Color != ""
	case "emoji":
		return m.Emoji, m.Emoji != ""
	case "relevance_confidence":
		if m.RelevanceConfidence == 0 {
			return "", false
		}
		return strconv.FormatFloat(m.RelevanceConfidence, 'f', -1, 64), true
	case "relevance_category":
		return m.RelevanceCategory, m.RelevanceCategory != ""
	}
	v, ok := m.Extra[key]
	return v, ok
}

// matches reports whether the document satisfies every key=value pair of an
// exact-match filter.
func (m Metadata) matches(filter map[string]string) bool {
	for k, want := range filter {
		got, ok := m.Field(k)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// wellKnownKeys are the metadata keys stored at the top level of the JSONB
// document; everything else nests under "extra".
var wellKnownKeys = map[string]struct{}{
	"filename": {}, "upload_date": {}, "source": {}, "title": {},
	"summary": {}, "urgency": {}, "department": {}, "location": {},
	"color": {}, "emoji": {}, "relevance_confidence": {}, "relevance_category": {},
}

// Document is the unit stored in the index. Embedding is never mutated after
// creation; corrections happen by delete and re-insert.
type Document struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  Metadata
}

// Hit is one nearest-neighbor result. Distance is cosine distance: lower is
// more similar.
type Hit struct {
	Document
	Distance float64
}

// Stats describes the collection.
type Stats struct {
	Count   int
	Backend string
}

// Index is the vector store contract shared by both backends.
//
// Add stores the document, generating an id when none is supplied; inserting
// with an existing id silently overwrites. Query returns up to k neighbors in
// ascending distance order, ties broken by insertion order; a non-nil filter
// restricts eligibility to documents whose metadata matches every pair
// exactly. Get returns (nil, nil) for an unknown id. Delete is idempotent and
// reports whether a document was removed.
type Index interface {
	Add(ctx context.Context, doc Document) (string, error)
	Query(ctx context.Context, embedding []float32, k int, filter map[string]string) ([]Hit, error)
	Get(ctx context.Context, id string) (*Document, error)
	Delete(ctx context.Context, id string) (bool, error)
	Stats(ctx context.Context) (Stats, error)
}
