package vecstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// Querier is the subset of pgx operations the Postgres backend needs.
// Defined by the consumer so the backend can be exercised against a pool or
// a single connection alike.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres is the persistent backend: pgvector cosine distance over the
// complaint_documents table, with JSONB containment for metadata filters.
// Concurrency control is delegated to the database.
type Postgres struct {
	db     Querier
	logger *slog.Logger
}

// NewPostgres creates a Postgres-backed index over an existing connection
// pool. The schema is managed by db.Migrate. logger may be nil.
func NewPostgres(db Querier, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{db: db, logger: logger}
}

// Add upserts a document. An explicit id that already exists is silently
// overwritten.
func (p *Postgres) Add(ctx context.Context, doc Document) (string, error) {
	if len(doc.Embedding) != VectorDimension {
		return "", fmt.Errorf("%w: got %d, collection uses %d",
			ErrDimensionMismatch, len(doc.Embedding), VectorDimension)
	}

	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return "", fmt.Errorf("marshaling metadata for %q: %w", doc.ID, err)
	}

	embedding := pgvector.NewVector(doc.Embedding)
	_, err = p.db.Exec(ctx, `
		INSERT INTO complaint_documents (id, content, embedding, metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET content = EXCLUDED.content,
		    embedding = EXCLUDED.embedding,
		    metadata = EXCLUDED.metadata`,
		doc.ID, doc.Text, &embedding, metadataJSON)
	if err != nil {
		return "", fmt.Errorf("inserting document %q: %w", doc.ID, err)
	}

	p.logger.Debug("added document", "id", doc.ID, "backend", BackendPostgres)
	return doc.ID, nil
}

// Query returns the k nearest neighbors by cosine distance, optionally
// restricted by a metadata containment filter. created_at breaks distance
// ties so result order is stable by insertion.
func (p *Postgres) Query(ctx context.Context, embedding []float32, k int, filter map[string]string) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}

	query := pgvector.NewVector(embedding)

	var (
		rows pgx.Rows
		err  error
	)
	if len(filter) > 0 {
		// filterJSON is always produced by json.Marshal, never raw user
		// input; @> with a bind parameter is injection-safe.
		filterJSON, marshalErr := json.Marshal(filterDoc(filter))
		if marshalErr != nil {
			return nil, fmt.Errorf("marshaling filter: %w", marshalErr)
		}
		rows, err = p.db.Query(ctx, `
			SELECT id, content, metadata, embedding, embedding <=> $1 AS distance
			FROM complaint_documents
			WHERE metadata @> $2
			ORDER BY distance ASC, created_at ASC, id ASC
			LIMIT $3`,
			&query, filterJSON, k)
	} else {
		rows, err = p.db.Query(ctx, `
			SELECT id, content, metadata, embedding, embedding <=> $1 AS distance
			FROM complaint_documents
			ORDER BY distance ASC, created_at ASC, id ASC
			LIMIT $2`,
			&query, k)
	}
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			hit          Hit
			metadataJSON []byte
			vec          pgvector.Vector
			distance     float64
		)
		if err := rows.Scan(&hit.ID, &hit.Text, &metadataJSON, &vec, &distance); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &hit.Metadata); err != nil {
			p.logger.Warn("failed to parse metadata", "document_id", hit.ID, "error", err)
		}
		hit.Embedding = vec.Slice()
		if math.IsNaN(distance) {
			// pgvector yields NaN for zero-magnitude operands
			distance = 1
		}
		hit.Distance = distance
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search rows: %w", err)
	}
	return hits, nil
}

// Get returns the document with the given id, or (nil, nil) when absent.
func (p *Postgres) Get(ctx context.Context, id string) (*Document, error) {
	var (
		doc          Document
		metadataJSON []byte
		vec          pgvector.Vector
	)
	err := p.db.QueryRow(ctx, `
		SELECT id, content, metadata, embedding
		FROM complaint_documents
		WHERE id = $1`, id).Scan(&doc.ID, &doc.Text, &metadataJSON, &vec)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching document %q: %w", id, err)
	}

	if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
		p.logger.Warn("failed to parse metadata", "document_id", id, "error", err)
	}
	doc.Embedding = vec.Slice()
	return &doc, nil
}

// Delete removes a document, reporting whether one existed.
func (p *Postgres) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := p.db.Exec(ctx, `DELETE FROM complaint_documents WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("deleting document %q: %w", id, err)
	}
	deleted := tag.RowsAffected() > 0
	if deleted {
		p.logger.Debug("deleted document", "id", id, "backend", BackendPostgres)
	}
	return deleted, nil
}

// Stats reports the document count and backend name.
func (p *Postgres) Stats(ctx context.Context) (Stats, error) {
	var count int64
	if err := p.db.QueryRow(ctx, `SELECT count(*) FROM complaint_documents`).Scan(&count); err != nil {
		return Stats{}, fmt.Errorf("counting documents: %w", err)
	}
	return Stats{Count: int(count), Backend: BackendPostgres}, nil
}

// filterDoc shapes an exact-match filter into the JSONB containment
// document: well-known keys live at the top level, caller extension keys
// under "extra", mirroring how Metadata marshals.
func filterDoc(filter map[string]string) map[string]any {
	doc := make(map[string]any, len(filter))
	var extra map[string]string
	for k, v := range filter {
		if _, ok := wellKnownKeys[k]; ok {
			doc[k] = v
			continue
		}
		if extra == nil {
			extra = make(map[string]string)
		}
		extra[k] = v
	}
	if extra != nil {
		doc["extra"] = extra
	}
	return doc
}
