package extract

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// extractTXT reads a plain-text file as UTF-8, falling back to Latin-1 when
// the content is not valid UTF-8. Legacy complaint exports are the usual
// source of Latin-1 files.
func extractTXT(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading text file %q: %w", path, err)
	}

	if utf8.Valid(data) {
		return strings.TrimSpace(string(data)), nil
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decoding text file %q as Latin-1: %w", path, err)
	}
	return strings.TrimSpace(string(decoded)), nil
}
