package sqlast

import (
	"strings"
)

// Format formats a statement AST back to a SQL string.
// The output is flat (no pretty-printing). Keywords are upper-case and
// identifiers are quoted only when they were quoted in the input or would not
// lex back as the same identifier. Format(Parse(Format(s))) == Format(s).
func Format(stmt *SelectStmt) string {
	f := &formatter{}
	f.formatSelectStmt(stmt)
	return strings.TrimSpace(f.buf.String())
}

// FormatExpr formats an expression AST back to a SQL string.
func FormatExpr(expr Expr) string {
	f := &formatter{}
	f.formatExpr(expr)
	return strings.TrimSpace(f.buf.String())
}

// FormatTableRef formats a single FROM item.
func FormatTableRef(ref TableRef) string {
	f := &formatter{}
	f.formatTableRef(ref)
	return strings.TrimSpace(f.buf.String())
}

// formatter is a simple SQL string builder. No indentation or pretty-printing.
type formatter struct {
	buf strings.Builder
}

func (f *formatter) write(s string) {
	f.buf.WriteString(s)
}

func (f *formatter) space() {
	f.buf.WriteByte(' ')
}

// QuoteIdent double-quotes an identifier, doubling embedded quotes.
func QuoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// isPlainIdent reports whether s lexes back as an unquoted, non-keyword identifier.
func isPlainIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', isLetter(c):
		case isDigit(c) || c == '$':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return lookupKeyword(strings.ToLower(s)) == TOKEN_IDENT
}

func formatIdent(s string, quoted bool) string {
	if quoted || !isPlainIdent(s) {
		return QuoteIdent(s)
	}
	return s
}

func (f *formatter) writeIdent(s string) {
	f.write(formatIdent(s, false))
}

// commaSep writes items separated by ", ".
func (f *formatter) commaSep(n int, fn func(i int)) {
	for i := 0; i < n; i++ {
		if i > 0 {
			f.write(", ")
		}
		fn(i)
	}
}
