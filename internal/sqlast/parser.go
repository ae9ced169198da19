package sqlast

import (
	"fmt"
	"strings"
)

// SyntaxError describes the first problem the parser ran into.
type SyntaxError struct {
	Pos int // byte offset in the input
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at position %d: %s", e.Pos, e.Msg)
}

// Parser parses SQL into an AST.
type Parser struct {
	lexer  *Lexer
	token  Token // current token
	peek   Token // lookahead token
	peek2  Token // second lookahead token
	depth  int   // current nesting of expressions and subqueries
	errors []error
}

// NewParser creates a new parser for the given SQL input.
func NewParser(sql string) *Parser {
	p := &Parser{lexer: NewLexer(sql)}
	// Initialize three-token lookahead
	p.nextToken()
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a single SELECT statement. A trailing semicolon is accepted;
// anything after it is rejected as a second statement.
func Parse(sql string) (*SelectStmt, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, fmt.Errorf("empty SQL")
	}

	p := NewParser(sql)
	if !p.check(TOKEN_SELECT) && !p.check(TOKEN_WITH) {
		return nil, &SyntaxError{Pos: p.token.Pos, Msg: fmt.Sprintf("expected SELECT or WITH, got %s", p.describe(p.token))}
	}
	stmt := p.parseSelectStatement()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}

	p.match(TOKEN_SEMICOLON)
	if !p.check(TOKEN_EOF) {
		if p.check(TOKEN_SELECT) || p.check(TOKEN_WITH) {
			return nil, fmt.Errorf("multi-statement queries are not allowed")
		}
		return nil, &SyntaxError{Pos: p.token.Pos, Msg: fmt.Sprintf("unexpected %s", p.describe(p.token))}
	}

	return stmt, nil
}

// ParseExpr parses a standalone expression from SQL text.
func ParseExpr(sql string) (Expr, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, fmt.Errorf("empty expression")
	}

	p := NewParser(sql)
	expr := p.parseExpression()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	if !p.check(TOKEN_EOF) {
		return nil, &SyntaxError{Pos: p.token.Pos, Msg: fmt.Sprintf("unexpected %s after expression", p.describe(p.token))}
	}
	return expr, nil
}

// === Token Helpers ===

func (p *Parser) nextToken() {
	p.token = p.peek
	p.peek = p.peek2
	p.peek2 = p.lexer.NextToken()
}

func (p *Parser) check(t TokenType) bool {
	return p.token.Type == t
}

func (p *Parser) checkPeek(t TokenType) bool {
	return p.peek.Type == t
}

// match consumes the current token if it matches and returns true.
func (p *Parser) match(t TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

// isSoftKeyword reports whether tok is an unquoted identifier spelled keyword.
func isSoftKeyword(tok Token, keyword string) bool {
	return tok.Type == TOKEN_IDENT && !tok.Quoted && strings.EqualFold(tok.Literal, keyword)
}

// matchSoftKeyword consumes the current token if it's an identifier matching
// the given soft keyword (case-insensitive).
func (p *Parser) matchSoftKeyword(keyword string) bool {
	if isSoftKeyword(p.token, keyword) {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes the current token if it matches, otherwise adds an error.
func (p *Parser) expect(t TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf("expected %s, got %s", t, p.describe(p.token)))
	return false
}

func (p *Parser) expectSoftKeyword(keyword string) {
	if !p.matchSoftKeyword(keyword) {
		p.addError(fmt.Sprintf("expected %s, got %s", keyword, p.describe(p.token)))
	}
}

func (p *Parser) addError(msg string) {
	if len(p.errors) > 0 {
		return
	}
	p.errors = append(p.errors, &SyntaxError{Pos: p.token.Pos, Msg: msg})
}

func (p *Parser) failed() bool {
	return len(p.errors) > 0
}

func (p *Parser) describe(tok Token) string {
	switch tok.Type {
	case TOKEN_EOF:
		return "end of input"
	case TOKEN_ILLEGAL:
		return fmt.Sprintf("illegal input %q", tok.Literal)
	case TOKEN_IDENT, TOKEN_NUMBER:
		return fmt.Sprintf("%q", tok.Literal)
	case TOKEN_STRING:
		return fmt.Sprintf("string '%s'", tok.Literal)
	}
	return tok.Type.String()
}

// === Keyword Classification ===

// canBeAlias reports whether tok may be taken as an implicit alias after a
// table reference.
func (p *Parser) canBeAlias(tok Token) bool {
	if tok.Type != TOKEN_IDENT {
		return false
	}
	if tok.Quoted {
		return true
	}
	switch strings.ToLower(tok.Literal) {
	case "qualify", "fetch", "tablesample":
		return false
	}
	return true
}

// parseIdentName consumes an identifier and returns its text.
func (p *Parser) parseIdentName(what string) (string, bool) {
	if !p.check(TOKEN_IDENT) {
		p.addError(fmt.Sprintf("expected %s, got %s", what, p.describe(p.token)))
		return "", false
	}
	name, quoted := p.token.Literal, p.token.Quoted
	p.nextToken()
	return name, quoted
}
