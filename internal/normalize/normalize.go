// Package normalize prepares raw complaint text for classification and
// embedding. Extracted document text tends to carry control characters,
// stray symbols and irregular whitespace; downstream components expect a
// single-line, lightly punctuated string.
package normalize

import (
	"regexp"
	"strings"
)

var (
	// Characters outside letters, combining marks, digits, underscore,
	// whitespace and basic punctuation are replaced by a space before
	// whitespace collapsing. Marks must survive or Indic scripts fall apart.
	unsafeChars = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s.,!?;:()\-]`)
	spaceRuns   = regexp.MustCompile(`\s+`)
)

// Clean collapses whitespace runs to single spaces, strips characters that
// interfere with LLM processing while keeping basic punctuation for context,
// and trims the result. Clean is idempotent: Clean(Clean(s)) == Clean(s).
//
// An empty return value means the input had no usable content; callers treat
// that as a validation failure, not as a document to index.
func Clean(text string) string {
	text = unsafeChars.ReplaceAllString(text, " ")
	text = spaceRuns.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
