// Package pipeline orchestrates complaint intake: extract, clean, gate on
// relevance, classify, embed and store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/civicdesk/civicdesk/internal/classify"
	"github.com/civicdesk/civicdesk/internal/embed"
	"github.com/civicdesk/civicdesk/internal/normalize"
	"github.com/civicdesk/civicdesk/internal/vecstore"
)

// ErrEmptyContent indicates a submission with no usable text after extraction
// and cleaning.
var ErrEmptyContent = errors.New("no text content found in the submission")

// Source values recorded in document metadata.
const (
	SourceFileUpload       = "file_upload"
	SourceTextSubmission   = "text_submission"
	SourceDirectSubmission = "direct_submission"
)

// TextExtractor pulls plain text out of an uploaded file.
type TextExtractor interface {
	Extract(path string) (string, error)
}

// Pipeline wires the intake stages together. All stages are injected so each
// can be replaced in tests; the pipeline itself holds no mutable state and is
// safe for concurrent use.
type Pipeline struct {
	extractor TextExtractor
	oracle    classify.Oracle
	encoder   embed.Encoder
	index     vecstore.Index
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the time source, used by tests to pin upload dates.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline. logger may be nil.
func New(extractor TextExtractor, oracle classify.Oracle, encoder embed.Encoder, index vecstore.Index, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		extractor: extractor,
		oracle:    oracle,
		encoder:   encoder,
		index:     index,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result describes one processed submission. DocumentID is nil when the
// submission was judged irrelevant and therefore not stored; all
// classification fields are populated either way so the caller can show the
// citizen what was decided.
type Result struct {
	DocumentID          *string `json:"document_id"`
	Filename            string  `json:"filename,omitempty"`
	Summary             string  `json:"summary"`
	Urgency             string  `json:"urgency"`
	Color               string  `json:"color"`
	Emoji               string  `json:"emoji"`
	Department          string  `json:"department"`
	Location            string  `json:"location"`
	TextLength          int     `json:"text_length"`
	UploadDate          string  `json:"upload_date"`
	IsRelevant          bool    `json:"is_relevant"`
	RelevanceConfidence float64 `json:"relevance_confidence"`
	RelevanceCategory   string  `json:"relevance_category"`
	RelevanceReason     string  `json:"relevance_reason"`
}

// ProcessUpload runs an uploaded file through the full pipeline. path is
// where the file was saved; filename is the name the citizen gave it, kept in
// metadata for display.
func (p *Pipeline) ProcessUpload(ctx context.Context, path, filename string) (Result, error) {
	p.logger.Info("processing uploaded file", "filename", filename)

	raw, err := p.extractor.Extract(path)
	if err != nil {
		return Result{}, fmt.Errorf("extracting text from %q: %w", filename, err)
	}

	text := normalize.Clean(raw)
	if text == "" {
		return Result{}, fmt.Errorf("%w: %s", ErrEmptyContent, filename)
	}

	return p.process(ctx, text, vecstore.Metadata{
		Filename: filename,
		Source:   SourceFileUpload,
		Extra:    map[string]string{"file_path": path},
	})
}

// ProcessText runs a typed-in complaint through the full pipeline. Title and
// description are joined with a space before cleaning; extras are
// caller-supplied metadata fields (complaint_id, user_id, ...) merged in with
// empty values skipped.
func (p *Pipeline) ProcessText(ctx context.Context, title, description string, extras map[string]string) (Result, error) {
	combined := strings.TrimSpace(strings.TrimSpace(title) + " " + strings.TrimSpace(description))
	if combined == "" {
		return Result{}, ErrEmptyContent
	}

	text := normalize.Clean(combined)
	if text == "" {
		return Result{}, ErrEmptyContent
	}

	meta := vecstore.Metadata{
		Filename: syntheticFilename(),
		Source:   SourceTextSubmission,
		Title:    title,
	}
	mergeExtras(&meta, extras)

	return p.process(ctx, text, meta)
}

// process is the shared tail of the two intake paths: relevance gate,
// classification, embedding and storage.
func (p *Pipeline) process(ctx context.Context, text string, meta vecstore.Metadata) (Result, error) {
	relevance := p.oracle.AssessRelevance(ctx, text)
	classification := p.oracle.Classify(ctx, text)
	color, emoji := classify.Visual(classification.Urgency)

	result := Result{
		Filename:            meta.Filename,
		Summary:             classification.Summary,
		Urgency:             classification.Urgency,
		Color:               color,
		Emoji:               emoji,
		Department:          classification.Department,
		Location:            classification.Location,
		TextLength:          utf8.RuneCountInString(text),
		UploadDate:          p.now().Format(time.RFC3339),
		IsRelevant:          relevance.IsRelevant,
		RelevanceConfidence: relevance.Confidence,
		RelevanceCategory:   relevance.Category,
		RelevanceReason:     relevance.Reason,
	}

	if !relevance.IsRelevant {
		p.logger.Warn("submission flagged as irrelevant",
			"category", relevance.Category,
			"confidence", relevance.Confidence,
			"filename", meta.Filename)
		return result, nil
	}

	embedding, err := p.encoder.Encode(ctx, text)
	if err != nil {
		return Result{}, fmt.Errorf("encoding submission: %w", err)
	}

	meta.UploadDate = result.UploadDate
	meta.Summary = classification.Summary
	meta.Urgency = classification.Urgency
	meta.Department = classification.Department
	meta.Location = classification.Location
	meta.Color = color
	meta.Emoji = emoji
	meta.RelevanceConfidence = relevance.Confidence
	meta.RelevanceCategory = relevance.Category

	id, err := p.index.Add(ctx, vecstore.Document{
		Text:      text,
		Embedding: embedding,
		Metadata:  meta,
	})
	if err != nil {
		return Result{}, fmt.Errorf("storing submission: %w", err)
	}

	result.DocumentID = &id
	p.logger.Info("processed submission",
		"document_id", id,
		"department", classification.Department,
		"urgency", classification.Urgency)
	return result, nil
}

// BackfillComplaint is a complaint that already exists in the system of
// record and only needs to become searchable.
type BackfillComplaint struct {
	ComplaintID string
	Title       string
	Description string
	Category    string
	Location    string
	Status      string
	Extras      map[string]string
}

// Backfill indexes an existing complaint without classification or the
// relevance gate: the record was already accepted elsewhere, this only makes
// it searchable. Title and description are joined with a blank line. Reports
// whether the complaint was stored.
func (p *Pipeline) Backfill(ctx context.Context, c BackfillComplaint) (bool, error) {
	text := strings.TrimSpace(c.Title + "\n\n" + c.Description)
	if text == "" {
		return false, ErrEmptyContent
	}

	status := c.Status
	if status == "" {
		status = "pending"
	}

	embedding, err := p.encoder.Encode(ctx, text)
	if err != nil {
		return false, fmt.Errorf("encoding complaint %q: %w", c.ComplaintID, err)
	}

	meta := vecstore.Metadata{
		Title:      c.Title,
		Location:   c.Location,
		UploadDate: p.now().Format(time.RFC3339),
		Source:     SourceDirectSubmission,
		Extra: map[string]string{
			"complaint_id": c.ComplaintID,
			"category":     c.Category,
			"status":       status,
		},
	}
	mergeExtras(&meta, c.Extras)

	id, err := p.index.Add(ctx, vecstore.Document{
		Text:      text,
		Embedding: embedding,
		Metadata:  meta,
	})
	if err != nil {
		return false, fmt.Errorf("storing complaint %q: %w", c.ComplaintID, err)
	}

	p.logger.Info("backfilled complaint", "complaint_id", c.ComplaintID, "document_id", id)
	return true, nil
}

// mergeExtras folds caller-supplied fields into metadata, last write wins.
// Keys matching well-known fields overwrite them; everything else lands in
// Extra. Empty values are skipped so callers can pass sparse maps.
func mergeExtras(meta *vecstore.Metadata, extras map[string]string) {
	for k, v := range extras {
		if v == "" {
			continue
		}
		switch k {
		case "filename":
			meta.Filename = v
		case "upload_date":
			meta.UploadDate = v
		case "source":
			meta.Source = v
		case "title":
			meta.Title = v
		case "location":
			meta.Location = v
		default:
			if meta.Extra == nil {
				meta.Extra = make(map[string]string)
			}
			meta.Extra[k] = v
		}
	}
}

// syntheticFilename names a typed-in submission the way uploaded files are
// named, so downstream display code has one code path.
func syntheticFilename() string {
	return "text_submission_" + strings.ReplaceAll(uuid.NewString(), "-", "") + ".txt"
}
