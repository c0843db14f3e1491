// Package extract converts uploaded complaint files into plain text.
//
// Supported formats: PDF, DOCX, plain text and common image types. Image
// files go through OCR when an engine is configured; without one they
// degrade to a synthetic description so the rest of the pipeline still has
// non-empty text to classify.
package extract

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat indicates the file extension is not one the
// extractor knows how to read.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// OCR recognizes text in an image file. Implementations are optional; the
// extractor works without one by substituting a description of the image.
type OCR interface {
	Recognize(path string) (string, error)
}

// Extractor dispatches text extraction by file extension.
// Safe for concurrent use: it holds no mutable state.
type Extractor struct {
	ocr    OCR // nil when no OCR engine is available
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithOCR supplies an OCR engine for image files.
func WithOCR(ocr OCR) Option {
	return func(e *Extractor) {
		e.ocr = ocr
	}
}

// New creates an Extractor. logger may be nil (slog.Default is used).
func New(logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads the file at path and returns its textual content.
//
// A missing file returns an error satisfying errors.Is(err, fs.ErrNotExist);
// an unrecognized extension returns ErrUnsupportedFormat; a file that exists
// but fails to parse propagates the underlying extraction error. Missing OCR
// support is not an error.
func (e *Extractor) Extract(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("file not found %q: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf":
		return e.extractPDF(path)
	case ".docx":
		return extractDOCX(path)
	case ".txt":
		return extractTXT(path)
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp":
		return e.extractImage(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// extractImage runs OCR when an engine is configured. When OCR is missing or
// finds no text, a descriptive placeholder keeps the submission processable:
// the classifier can still route the complaint from the description while a
// human reviews the attachment.
func (e *Extractor) extractImage(path string) (string, error) {
	if e.ocr != nil {
		text, err := e.ocr.Recognize(path)
		if err != nil {
			e.logger.Warn("OCR failed, describing image instead", "path", path, "error", err)
		} else if strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text), nil
		}
	}

	filename := filepath.Base(path)
	return fmt.Sprintf("This is an image file (%s) uploaded as a complaint. "+
		"The image may contain visual evidence of the reported issue. "+
		"Please review the attached image for details.", filename), nil
}
