package sqlast

import (
	"fmt"
	"strings"
)

// Primary expression parsing: literals, column refs, function calls, CASE,
// CAST, EXTRACT, INTERVAL, EXISTS and parenthesized expressions.

// typedLiteralTypes are the type names allowed in front of a string literal.
var typedLiteralTypes = map[string]bool{
	"DATE":        true,
	"TIME":        true,
	"TIMESTAMP":   true,
	"TIMESTAMPTZ": true,
}

// intervalUnits are the units accepted after INTERVAL 'n'.
var intervalUnits = map[string]bool{
	"YEAR": true, "YEARS": true, "QUARTER": true, "MONTH": true, "MONTHS": true,
	"WEEK": true, "WEEKS": true, "DAY": true, "DAYS": true, "HOUR": true, "HOURS": true,
	"MINUTE": true, "MINUTES": true, "SECOND": true, "SECONDS": true,
}

func (p *Parser) parsePrimary() Expr {
	switch p.token.Type {
	case TOKEN_NUMBER:
		lit := &Literal{Type: LiteralNumber, Value: p.token.Literal}
		p.nextToken()
		return lit

	case TOKEN_STRING:
		lit := &Literal{Type: LiteralString, Value: p.token.Literal}
		p.nextToken()
		return lit

	case TOKEN_TRUE:
		p.nextToken()
		return &Literal{Type: LiteralBool, Value: "TRUE"}

	case TOKEN_FALSE:
		p.nextToken()
		return &Literal{Type: LiteralBool, Value: "FALSE"}

	case TOKEN_NULL:
		p.nextToken()
		return &Literal{Type: LiteralNull, Value: "NULL"}

	case TOKEN_CASE:
		return p.parseCaseExpr()

	case TOKEN_CAST:
		return p.parseCastExpr()

	case TOKEN_EXTRACT:
		return p.parseExtractExpr()

	case TOKEN_EXISTS:
		return p.parseExistsExpr(false)

	case TOKEN_INTERVAL:
		return p.parseIntervalExpr()

	case TOKEN_IDENT:
		return p.parseIdentifierExpr()

	case TOKEN_LPAREN:
		return p.parseParenExpr()

	case TOKEN_LEFT, TOKEN_RIGHT:
		// LEFT(s, n) and RIGHT(s, n) are ordinary string functions.
		if p.checkPeek(TOKEN_LPAREN) {
			name := p.token.Literal
			p.nextToken()
			return p.parseFuncCall(name, "")
		}
	}

	p.addError(fmt.Sprintf("unexpected %s in expression", p.describe(p.token)))
	return nil
}

// parseIdentifierExpr parses an identifier (column ref, function call, or typed literal).
func (p *Parser) parseIdentifierExpr() Expr {
	name, quoted := p.token.Literal, p.token.Quoted

	if !quoted && p.checkPeek(TOKEN_STRING) && typedLiteralTypes[strings.ToUpper(name)] {
		p.nextToken()
		lit := &TypedLiteral{TypeName: strings.ToUpper(name), Value: p.token.Literal}
		p.nextToken()
		return lit
	}

	p.nextToken()

	if p.check(TOKEN_LPAREN) {
		return p.parseFuncCall(name, "")
	}
	if p.check(TOKEN_DOT) {
		return p.parseQualifiedRef(name, quoted)
	}
	return &ColumnRef{Column: name, Quoted: quoted}
}

// parseQualifiedRef parses table.column, schema.table.column, table.* or schema.func(...).
func (p *Parser) parseQualifiedRef(firstPart string, firstQuoted bool) Expr {
	parts := []string{firstPart}
	lastQuoted := firstQuoted

	for p.match(TOKEN_DOT) {
		if p.check(TOKEN_STAR) {
			p.nextToken()
			return &StarExpr{Table: parts[len(parts)-1]}
		}
		if !p.check(TOKEN_IDENT) {
			p.addError(fmt.Sprintf("expected identifier after '.', got %s", p.describe(p.token)))
			return nil
		}
		parts = append(parts, p.token.Literal)
		lastQuoted = p.token.Quoted
		p.nextToken()
	}

	if p.check(TOKEN_LPAREN) && len(parts) == 2 {
		return p.parseFuncCall(parts[1], parts[0])
	}

	ref := &ColumnRef{Column: parts[len(parts)-1], Quoted: lastQuoted}
	switch len(parts) {
	case 2:
		ref.Table = parts[0]
	case 3:
		ref.Schema = parts[0]
		ref.Table = parts[1]
	default:
		p.addError(fmt.Sprintf("too many name parts in %q", strings.Join(parts, ".")))
		return nil
	}
	return ref
}

// parseFuncCall parses name([DISTINCT] args) [FILTER (WHERE ...)] [OVER ...].
func (p *Parser) parseFuncCall(name string, schema string) Expr {
	fn := &FuncCall{Name: name, Schema: schema}

	p.expect(TOKEN_LPAREN)

	if p.check(TOKEN_STAR) {
		fn.Star = true
		p.nextToken()
	} else if !p.check(TOKEN_RPAREN) {
		if p.match(TOKEN_DISTINCT) {
			fn.Distinct = true
		} else {
			p.match(TOKEN_ALL)
		}
		fn.Args = p.parseExpressionList()
	}

	p.expect(TOKEN_RPAREN)

	if isSoftKeyword(p.token, "FILTER") && p.checkPeek(TOKEN_LPAREN) {
		p.nextToken()
		p.expect(TOKEN_LPAREN)
		p.expect(TOKEN_WHERE)
		fn.Filter = p.parseExpression()
		p.expect(TOKEN_RPAREN)
	}

	if p.match(TOKEN_OVER) {
		fn.Window = p.parseWindowSpec()
	}

	return fn
}

// parseWindowSpec parses a window specification or a named window reference.
func (p *Parser) parseWindowSpec() *WindowSpec {
	spec := &WindowSpec{}

	if p.check(TOKEN_IDENT) {
		spec.Name = p.token.Literal
		p.nextToken()
		return spec
	}

	p.expect(TOKEN_LPAREN)
	p.parseWindowBody(spec)
	p.expect(TOKEN_RPAREN)
	return spec
}

// parseWindowBody parses PARTITION BY / ORDER BY / frame inside window parens.
func (p *Parser) parseWindowBody(spec *WindowSpec) {
	if p.check(TOKEN_IDENT) && !isFrameKeyword(p.token) {
		spec.Name = p.token.Literal
		p.nextToken()
	}

	if p.match(TOKEN_PARTITION) {
		p.expect(TOKEN_BY)
		spec.PartitionBy = p.parseExpressionList()
	}

	if p.match(TOKEN_ORDER) {
		p.expect(TOKEN_BY)
		spec.OrderBy = p.parseOrderByList()
	}

	if isFrameKeyword(p.token) {
		spec.Frame = p.parseFrameSpec()
	}
}

func isFrameKeyword(tok Token) bool {
	return isSoftKeyword(tok, "ROWS") || isSoftKeyword(tok, "RANGE") || isSoftKeyword(tok, "GROUPS")
}

// parseFrameSpec parses a window frame specification.
func (p *Parser) parseFrameSpec() *FrameSpec {
	frame := &FrameSpec{Type: FrameType(strings.ToUpper(p.token.Literal))}
	p.nextToken()

	if p.match(TOKEN_BETWEEN) {
		frame.Start = p.parseFrameBound()
		p.expect(TOKEN_AND)
		frame.End = p.parseFrameBound()
	} else {
		frame.Start = p.parseFrameBound()
	}

	return frame
}

func (p *Parser) parseFrameBound() *FrameBound {
	bound := &FrameBound{}

	switch {
	case p.matchSoftKeyword("UNBOUNDED"):
		if p.matchSoftKeyword("PRECEDING") {
			bound.Type = FrameUnboundedPreceding
		} else {
			p.expectSoftKeyword("FOLLOWING")
			bound.Type = FrameUnboundedFollowing
		}
	case p.matchSoftKeyword("CURRENT"):
		p.expectSoftKeyword("ROW")
		bound.Type = FrameCurrentRow
	default:
		bound.Offset = p.parseExpressionWithPrecedence(PrecedenceAddition)
		if p.matchSoftKeyword("PRECEDING") {
			bound.Type = FrameExprPreceding
		} else {
			p.expectSoftKeyword("FOLLOWING")
			bound.Type = FrameExprFollowing
		}
	}

	return bound
}

func (p *Parser) parseCaseExpr() Expr {
	p.expect(TOKEN_CASE)
	caseExpr := &CaseExpr{}

	if !p.check(TOKEN_WHEN) {
		caseExpr.Operand = p.parseExpression()
	}

	for p.match(TOKEN_WHEN) {
		when := WhenClause{}
		when.Condition = p.parseExpression()
		p.expect(TOKEN_THEN)
		when.Result = p.parseExpression()
		caseExpr.Whens = append(caseExpr.Whens, when)
	}
	if len(caseExpr.Whens) == 0 {
		p.addError("CASE requires at least one WHEN")
	}

	if p.match(TOKEN_ELSE) {
		caseExpr.Else = p.parseExpression()
	}

	p.expect(TOKEN_END)
	return caseExpr
}

// parseCastExpr parses CAST(expr AS type).
func (p *Parser) parseCastExpr() Expr {
	p.expect(TOKEN_CAST)
	p.expect(TOKEN_LPAREN)

	cast := &CastExpr{}
	cast.Expr = p.parseExpression()
	p.expect(TOKEN_AS)
	cast.TypeName = p.parseTypeName()

	p.expect(TOKEN_RPAREN)
	return cast
}

// parseExtractExpr parses EXTRACT(field FROM expr).
func (p *Parser) parseExtractExpr() Expr {
	p.nextToken() // consume EXTRACT
	p.expect(TOKEN_LPAREN)

	if !p.check(TOKEN_IDENT) && !p.check(TOKEN_STRING) {
		p.addError(fmt.Sprintf("expected date part in EXTRACT, got %s", p.describe(p.token)))
		return nil
	}
	field := strings.ToUpper(p.token.Literal)
	p.nextToken()

	p.expect(TOKEN_FROM)
	expr := p.parseExpression()
	p.expect(TOKEN_RPAREN)

	return &ExtractExpr{Field: field, Expr: expr}
}

// parseTypeName parses a type name with optional parameters, e.g. DECIMAL(10, 2).
func (p *Parser) parseTypeName() string {
	if !p.check(TOKEN_IDENT) {
		p.addError(fmt.Sprintf("expected type name, got %s", p.describe(p.token)))
		return ""
	}
	typeName := strings.ToUpper(p.token.Literal)
	p.nextToken()

	// Compound names: DOUBLE PRECISION, CHARACTER VARYING, TIMESTAMP WITH TIME ZONE
compound:
	for {
		switch {
		case p.matchSoftKeyword("PRECISION"):
			typeName += " PRECISION"
		case p.matchSoftKeyword("VARYING"):
			typeName += " VARYING"
		case p.check(TOKEN_WITH) && isSoftKeyword(p.peek, "TIME"):
			p.nextToken()
			p.nextToken()
			p.expectSoftKeyword("ZONE")
			typeName += " WITH TIME ZONE"
		case p.matchSoftKeyword("WITHOUT"):
			p.expectSoftKeyword("TIME")
			p.expectSoftKeyword("ZONE")
			typeName += " WITHOUT TIME ZONE"
		default:
			break compound
		}
	}

	if p.match(TOKEN_LPAREN) {
		var args []string
		for p.check(TOKEN_NUMBER) {
			args = append(args, p.token.Literal)
			p.nextToken()
			if !p.match(TOKEN_COMMA) {
				break
			}
		}
		p.expect(TOKEN_RPAREN)
		typeName += "(" + strings.Join(args, ", ") + ")"
	}

	return typeName
}

// parseExistsExpr parses [NOT] EXISTS (subquery).
func (p *Parser) parseExistsExpr(not bool) Expr {
	p.nextToken() // consume EXISTS
	p.expect(TOKEN_LPAREN)
	exists := &ExistsExpr{Not: not, Select: p.parseSelectStatement()}
	p.expect(TOKEN_RPAREN)
	return exists
}

// parseParenExpr parses a parenthesized expression or subquery.
func (p *Parser) parseParenExpr() Expr {
	p.expect(TOKEN_LPAREN)

	if p.check(TOKEN_SELECT) || p.check(TOKEN_WITH) {
		subquery := &SubqueryExpr{Select: p.parseSelectStatement()}
		p.expect(TOKEN_RPAREN)
		return subquery
	}

	expr := p.parseExpression()
	if expr == nil {
		return nil
	}
	p.expect(TOKEN_RPAREN)
	return &ParenExpr{Expr: expr}
}

// parseIntervalExpr parses INTERVAL 'value' [unit] and INTERVAL n unit.
func (p *Parser) parseIntervalExpr() Expr {
	p.nextToken() // consume INTERVAL

	iv := &IntervalExpr{}
	switch p.token.Type {
	case TOKEN_STRING, TOKEN_NUMBER:
		iv.Value = p.parsePrimary()
	case TOKEN_LPAREN:
		iv.Value = p.parseParenExpr()
	default:
		p.addError(fmt.Sprintf("expected interval value, got %s", p.describe(p.token)))
		return nil
	}

	if p.check(TOKEN_IDENT) && !p.token.Quoted {
		if upper := strings.ToUpper(p.token.Literal); intervalUnits[upper] {
			iv.Unit = upper
			p.nextToken()
		}
	}

	return iv
}

func (p *Parser) parseOrderByList() []OrderByItem {
	var items []OrderByItem
	for {
		items = append(items, p.parseOrderByItem())
		if p.failed() || !p.match(TOKEN_COMMA) {
			break
		}
	}
	return items
}

func (p *Parser) parseOrderByItem() OrderByItem {
	item := OrderByItem{}
	item.Expr = p.parseExpression()
	if item.Expr == nil {
		p.addError("expected ORDER BY expression")
		return item
	}

	if p.match(TOKEN_DESC) {
		item.Desc = true
	} else {
		p.match(TOKEN_ASC)
	}

	if p.matchSoftKeyword("NULLS") {
		switch {
		case p.matchSoftKeyword("FIRST"):
			b := true
			item.NullsFirst = &b
		case p.matchSoftKeyword("LAST"):
			b := false
			item.NullsFirst = &b
		default:
			p.addError("expected FIRST or LAST after NULLS")
		}
	}

	return item
}
