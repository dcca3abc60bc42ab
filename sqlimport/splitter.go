// Package sqlimport parses legacy SQL scripts into discrete statements
// and executes them against a tenant-scoped connection, classifying
// failures as fatal vs. idempotent-and-ignorable.
//
// Legacy scripts are expected to be idempotent and re-runnable, so the
// importer deliberately does not wrap a script in a transaction: some
// database engines auto-abort the whole transaction on the first error
// even when that error is safe to ignore, which would defeat the
// idempotent-skip semantics.
package sqlimport

import (
	"strings"
	"unicode"
)

// Statement is one discrete SQL statement extracted from a script.
type Statement struct {
	// Text is the statement text without its trailing delimiter.
	Text string

	// Line is the 1-based line number where the statement starts.
	Line int
}

const defaultDelimiter = ";"

// Split parses a SQL script into discrete statements. It is aware of
// single-quoted, double-quoted, and backtick-quoted literals (including
// backslash escapes and doubled quotes), line comments (-- and #),
// block comments, and the DELIMITER directive used by legacy dumps for
// multi-statement blocks such as stored procedures and triggers.
func Split(script string) []Statement {
	var statements []Statement
	delimiter := defaultDelimiter

	var buf strings.Builder
	line := 1
	stmtLine := 1

	flush := func() {
		text := strings.TrimSpace(buf.String())
		buf.Reset()
		if text != "" {
			statements = append(statements, Statement{Text: text, Line: stmtLine})
		}
	}

	i := 0
	atLineStart := true
	for i < len(script) {
		// The DELIMITER directive is only recognized at the start of a
		// line, outside any literal, and is itself never emitted.
		if atLineStart {
			rest := script[i:]
			trimmed := strings.TrimLeft(rest, " \t")
			if len(trimmed) >= 9 && strings.EqualFold(trimmed[:9], "DELIMITER") {
				flush()
				lineEnd := strings.IndexByte(rest, '\n')
				var directive string
				if lineEnd == -1 {
					directive = rest
					i = len(script)
				} else {
					directive = rest[:lineEnd]
					i += lineEnd + 1
					line++
				}
				tok := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(directive)[9:], " \t"))
				if tok != "" {
					delimiter = tok
				}
				stmtLine = line
				atLineStart = true
				continue
			}
		}

		c := script[i]

		// Delimiter match outside literals and comments ends a statement.
		if strings.HasPrefix(script[i:], delimiter) {
			flush()
			i += len(delimiter)
			stmtLine = line
			atLineStart = false
			continue
		}

		switch {
		case c == '\'' || c == '"' || c == '`':
			consumed := consumeQuoted(script[i:], c)
			line += strings.Count(script[i:i+consumed], "\n")
			buf.WriteString(script[i : i+consumed])
			i += consumed
			atLineStart = false
			continue
		case c == '-' && strings.HasPrefix(script[i:], "--"):
			i += consumeLine(script[i:])
			continue
		case c == '#':
			i += consumeLine(script[i:])
			continue
		case c == '/' && strings.HasPrefix(script[i:], "/*"):
			consumed := consumeBlockComment(script[i:])
			line += strings.Count(script[i:i+consumed], "\n")
			i += consumed
			continue
		}

		if buf.Len() == 0 && !unicode.IsSpace(rune(c)) {
			stmtLine = line
		}
		buf.WriteByte(c)
		if c == '\n' {
			line++
			atLineStart = true
		} else if !unicode.IsSpace(rune(c)) {
			atLineStart = false
		}
		i++
	}
	flush()

	return statements
}

// consumeQuoted returns the byte length of a quoted literal starting at
// s[0] == quote, honoring backslash escapes and doubled quotes. An
// unterminated literal consumes the rest of the input.
func consumeQuoted(s string, quote byte) int {
	i := 1
	for i < len(s) {
		switch s[i] {
		case '\\':
			i += 2
			continue
		case quote:
			// Doubled quote is an escaped quote inside the literal.
			if i+1 < len(s) && s[i+1] == quote {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return len(s)
}

// consumeLine returns the byte length up to (but not including) the
// next newline.
func consumeLine(s string) int {
	if idx := strings.IndexByte(s, '\n'); idx != -1 {
		return idx
	}
	return len(s)
}

// consumeBlockComment returns the byte length of a /* ... */ comment,
// or the rest of the input when unterminated.
func consumeBlockComment(s string) int {
	if idx := strings.Index(s[2:], "*/"); idx != -1 {
		return idx + 4
	}
	return len(s)
}
