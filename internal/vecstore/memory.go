package vecstore

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Memory is the in-memory fallback backend: a map of documents ranked by
// exact cosine distance at query time. Data does not survive a process
// restart; the portal accepts that when the persistent backend is down.
//
// Memory is safe for concurrent use. Writes take the exclusive lock; queries
// share the read lock and do not block each other.
type Memory struct {
	mu        sync.RWMutex
	dimension int // pinned by the first insert
	docs      map[string]*memoryDoc
	nextSeq   uint64
	logger    *slog.Logger
}

type memoryDoc struct {
	doc Document
	seq uint64 // insertion order, used as the stable tie-breaker
}

// NewMemory creates an empty in-memory index. logger may be nil.
func NewMemory(logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		docs:   make(map[string]*memoryDoc),
		logger: logger,
	}
}

// Add stores a document, generating an id when none is supplied.
func (m *Memory) Add(_ context.Context, doc Document) (string, error) {
	if len(doc.Embedding) == 0 {
		return "", fmt.Errorf("%w: empty embedding", ErrDimensionMismatch)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dimension == 0 {
		m.dimension = len(doc.Embedding)
	} else if len(doc.Embedding) != m.dimension {
		return "", fmt.Errorf("%w: got %d, collection uses %d",
			ErrDimensionMismatch, len(doc.Embedding), m.dimension)
	}

	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	m.nextSeq++
	m.docs[doc.ID] = &memoryDoc{doc: doc, seq: m.nextSeq}
	m.logger.Debug("added document", "id", doc.ID, "backend", BackendMemory)
	return doc.ID, nil
}

// Query ranks all matching documents by cosine distance to the query
// embedding and returns the k nearest. The metadata filter is applied before
// any distance computation.
func (m *Memory) Query(_ context.Context, embedding []float32, k int, filter map[string]string) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		hit Hit
		seq uint64
	}
	candidates := make([]scored, 0, len(m.docs))
	for _, md := range m.docs {
		if filter != nil && !md.doc.Metadata.matches(filter) {
			continue
		}
		candidates = append(candidates, scored{
			hit: Hit{Document: md.doc, Distance: cosineDistance(embedding, md.doc.Embedding)},
			seq: md.seq,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].hit.Distance != candidates[j].hit.Distance {
			return candidates[i].hit.Distance < candidates[j].hit.Distance
		}
		return candidates[i].seq < candidates[j].seq
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	hits := make([]Hit, k)
	for i := 0; i < k; i++ {
		hits[i] = candidates[i].hit
	}
	return hits, nil
}

// Get returns the document with the given id, or (nil, nil) when absent.
func (m *Memory) Get(_ context.Context, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	md, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	doc := md.doc
	return &doc, nil
}

// Delete removes a document. Deleting an unknown id returns false, not an
// error.
func (m *Memory) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[id]; !ok {
		return false, nil
	}
	delete(m.docs, id)
	m.logger.Debug("deleted document", "id", id, "backend", BackendMemory)
	return true, nil
}

// Stats reports the document count and backend name.
func (m *Memory) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{Count: len(m.docs), Backend: BackendMemory}, nil
}

// cosineDistance returns 1 - cosine similarity, matching pgvector's <=>
// operator. A zero-magnitude vector has no direction; its distance defaults
// to 1 (no similarity signal).
func cosineDistance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
