package sqlimport

import (
	"context"
	"database/sql"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// Each pooled connection to :memory: would get its own database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestImportExecutesStatements(t *testing.T) {
	db := openTestDB(t)
	im := New(Options{})

	report, err := im.Import(context.Background(), db, `
CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT);
INSERT INTO customers (name) VALUES ('acme');
INSERT INTO customers (name) VALUES ('globex');
`)
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Equal(t, 3, report.StatementsExecuted)
	assert.Zero(t, report.SkippedIdempotent)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM customers").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestImportSkipsIdempotentFailures(t *testing.T) {
	db := openTestDB(t)
	im := New(Options{})

	script := `
CREATE TABLE billing (id INTEGER PRIMARY KEY);
CREATE INDEX idx_billing ON billing (id);
`
	_, err := im.Import(context.Background(), db, script)
	require.NoError(t, err)

	// Re-running the same script must complete with skips, not failure.
	report, err := im.Import(context.Background(), db, script)
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Equal(t, 2, report.SkippedIdempotent)
	assert.Zero(t, report.StatementsExecuted)
}

func TestImportFailsFastOnFatalError(t *testing.T) {
	db := openTestDB(t)
	im := New(Options{})

	report, err := im.Import(context.Background(), db, `
CREATE TABLE a (id INTEGER);
THIS IS NOT SQL;
CREATE TABLE never_created (id INTEGER);
`)
	require.Error(t, err)

	var stmtErr *StatementError
	require.ErrorAs(t, err, &stmtErr)
	assert.Contains(t, stmtErr.Statement, "THIS IS NOT SQL")

	assert.False(t, report.Success)
	assert.Equal(t, 1, report.StatementsExecuted)
	require.Len(t, report.Errors, 1)

	// Statements after the failure point did not execute.
	var name string
	scanErr := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name='never_created'").Scan(&name)
	assert.ErrorIs(t, scanErr, sql.ErrNoRows)
}

func TestImportContinueOnErrorCollectsAllFailures(t *testing.T) {
	db := openTestDB(t)
	im := New(Options{ContinueOnError: true})

	report, err := im.Import(context.Background(), db, `
NOT SQL ONE;
CREATE TABLE survivors (id INTEGER);
NOT SQL TWO;
`)
	require.Error(t, err)
	assert.False(t, report.Success)
	assert.Equal(t, 1, report.StatementsExecuted)
	assert.Len(t, report.Errors, 2)

	var name string
	require.NoError(t, db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name='survivors'").Scan(&name))
}

func TestImportEmptyScriptIsNoOp(t *testing.T) {
	db := openTestDB(t)
	im := New(Options{})

	report, err := im.Import(context.Background(), db, "  \n-- nothing here\n")
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Zero(t, report.StatementsExecuted)
}

func TestImportFileMissingScriptIsNoOp(t *testing.T) {
	db := openTestDB(t)
	im := New(Options{})

	fsys := fstest.MapFS{}
	report, err := im.ImportFile(context.Background(), db, fsys, "mod/1.0/upgrade.sql")
	require.NoError(t, err)
	assert.True(t, report.Success)
}

func TestImportFileReadsScript(t *testing.T) {
	db := openTestDB(t)
	im := New(Options{})

	fsys := fstest.MapFS{
		"mod/install.sql": &fstest.MapFile{
			Data: []byte("CREATE TABLE from_file (id INTEGER);"),
		},
	}
	report, err := im.ImportFile(context.Background(), db, fsys, "mod/install.sql")
	require.NoError(t, err)
	assert.Equal(t, 1, report.StatementsExecuted)
}
