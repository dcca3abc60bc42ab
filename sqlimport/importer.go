package sqlimport

import (
	"context"
	"database/sql"
	"io/fs"

	"github.com/saasforge/modlife"
)

// Execer is the subset of database/sql the importer needs. *sql.DB,
// *sql.Conn, and *sql.Tx all satisfy it; callers pass a tenant-scoped
// connection.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Report is the outcome of one script import.
type Report struct {
	// Success is true when no fatal statement failure occurred.
	Success bool `json:"success"`

	// StatementsExecuted counts statements that executed successfully.
	StatementsExecuted int `json:"statementsExecuted"`

	// SkippedIdempotent counts statements whose failure matched a known
	// idempotent-error signature and were skipped.
	SkippedIdempotent int `json:"skippedIdempotent"`

	// Errors lists fatal statement failures. With the default fail-fast
	// behavior it holds at most one entry.
	Errors []StatementError `json:"errors,omitempty"`
}

// Options configures an Importer.
type Options struct {
	// Classifier decides which statement failures are ignorable.
	// Defaults to NewClassifier().
	Classifier ErrorClassifier

	// ContinueOnError keeps executing statements after a fatal failure,
	// collecting every error. Off by default: statements after the
	// failure point do not execute.
	ContinueOnError bool

	// Logger receives per-statement diagnostics. Defaults to a no-op.
	Logger modlife.Logger
}

// Importer executes legacy SQL scripts. Construct one per composition
// root and pass it explicitly to every collaborator that needs it;
// there is no package-level instance.
type Importer struct {
	classifier      ErrorClassifier
	continueOnError bool
	logger          modlife.Logger
}

// New creates an Importer.
func New(opts Options) *Importer {
	if opts.Classifier == nil {
		opts.Classifier = NewClassifier()
	}
	if opts.Logger == nil {
		opts.Logger = modlife.NopLogger{}
	}
	return &Importer{
		classifier:      opts.Classifier,
		continueOnError: opts.ContinueOnError,
		logger:          opts.Logger,
	}
}

// ImportFile reads the script at path from fsys and imports it. A
// missing, unreadable, or empty script is a clean no-op success, not an
// error: legacy modules routinely ship versions without SQL.
func (im *Importer) ImportFile(ctx context.Context, db Execer, fsys fs.FS, path string) (*Report, error) {
	raw, err := fs.ReadFile(fsys, path)
	if err != nil {
		im.logger.Debug("SQL script not readable, treating as no-op", "path", path, "error", err)
		return &Report{Success: true}, nil
	}
	return im.Import(ctx, db, string(raw))
}

// Import splits the script into statements and executes each in order.
// A statement whose failure the classifier marks idempotent is skipped
// and counted. Any other failure aborts the import (fail-fast) and is
// surfaced as a *StatementError carrying the triggering statement; the
// returned Report still describes everything that ran before the abort.
func (im *Importer) Import(ctx context.Context, db Execer, script string) (*Report, error) {
	report := &Report{Success: true}

	statements := Split(script)
	if len(statements) == 0 {
		return report, nil
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt.Text); err != nil {
			if im.classifier.Classify(err) == ClassIdempotent {
				report.SkippedIdempotent++
				im.logger.Debug("Skipping idempotent statement failure",
					"line", stmt.Line, "error", err)
				continue
			}

			stmtErr := &StatementError{Statement: stmt.Text, Line: stmt.Line, Err: err}
			report.Errors = append(report.Errors, *stmtErr)
			report.Success = false
			im.logger.Error("SQL statement failed", "line", stmt.Line, "error", err)

			if !im.continueOnError {
				return report, stmtErr
			}
			continue
		}
		report.StatementsExecuted++
	}

	if !report.Success {
		return report, &report.Errors[0]
	}
	return report, nil
}
