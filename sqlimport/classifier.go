package sqlimport

import "strings"

// Class is the severity classification of a statement failure.
type Class int

const (
	// ClassFatal aborts the import; the failure is surfaced to the
	// caller with the triggering statement.
	ClassFatal Class = iota

	// ClassIdempotent means the statement's effect is already in place
	// (re-run of an idempotent script); the statement is silently
	// skipped and counted, not treated as failure.
	ClassIdempotent
)

// ErrorClassifier classifies statement execution failures. The matching
// rules are data, not scattered string checks, so they can be extended
// and tested independently.
type ErrorClassifier interface {
	Classify(err error) Class
}

// Known idempotent-error signatures. These cover the MySQL error codes
// and message phrasings legacy scripts run into when re-applied, plus
// the SQLite phrasings the test driver produces.
var (
	idempotentPatterns = []string{
		"already exists",
		"duplicate column name",
		"duplicate key name",
		"duplicate entry",
		"can't drop",    // dropping an index/column that is already gone
		"unknown table", // DROP TABLE on a table that is already gone
		"doesn't exist", // generic "object is already gone" phrasing
		"no such table", // sqlite DROP/ALTER on missing table
		"no such index", // sqlite DROP INDEX on missing index
	}

	// MySQL error codes with the same meaning, matched against the
	// "Error NNNN" form drivers render.
	idempotentCodes = []string{"1050", "1060", "1061", "1062", "1091"}
)

// IdempotentClassifier is the default ErrorClassifier. Additional
// patterns can be supplied for engine-specific phrasings.
type IdempotentClassifier struct {
	patterns []string
	codes    []string
}

// NewClassifier creates a classifier with the default idempotent-error
// signatures plus any extra message patterns (matched case-insensitively
// as substrings).
func NewClassifier(extraPatterns ...string) *IdempotentClassifier {
	return &IdempotentClassifier{
		patterns: append(append([]string(nil), idempotentPatterns...), extraPatterns...),
		codes:    idempotentCodes,
	}
}

// Classify reports whether the failure matches a known idempotent-error
// signature.
func (c *IdempotentClassifier) Classify(err error) Class {
	if err == nil {
		return ClassIdempotent
	}
	msg := strings.ToLower(err.Error())
	for _, p := range c.patterns {
		if strings.Contains(msg, strings.ToLower(p)) {
			return ClassIdempotent
		}
	}
	for _, code := range c.codes {
		if strings.Contains(msg, "error "+code) {
			return ClassIdempotent
		}
	}
	return ClassFatal
}
