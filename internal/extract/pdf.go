package extract

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// pdfReader is one strategy for pulling text out of a PDF. Strategies are
// tried in preference order; extraction succeeds as long as one of them
// does. This keeps the pipeline working when a reader chokes on a
// particular producer's output.
type pdfReader struct {
	name string
	read func(path string) (string, error)
}

var pdfReaders = []pdfReader{
	{name: "ledongthuc/pdf", read: readPDFPlainText},
}

func (e *Extractor) extractPDF(path string) (string, error) {
	var errs []error
	for _, r := range pdfReaders {
		text, err := r.read(path)
		if err != nil {
			e.logger.Warn("pdf reader failed", "reader", r.name, "path", path, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", r.name, err))
			continue
		}
		return text, nil
	}
	return "", fmt.Errorf("extracting text from PDF %q: %w", path, errors.Join(errs...))
}

func readPDFPlainText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	content, err := r.GetPlainText()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(content); err != nil {
		return "", err
	}
	return buf.String(), nil
}
