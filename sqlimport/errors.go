package sqlimport

import "fmt"

// StatementError is a fatal statement failure, carrying the triggering
// statement text and its position in the script.
type StatementError struct {
	// Statement is the SQL text that failed.
	Statement string

	// Line is the 1-based line where the statement starts.
	Line int

	// Err is the underlying driver error.
	Err error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement at line %d failed: %v", e.Line, e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}
