package sqlast

import "fmt"

// Statement parsing: WITH, set operations and the SELECT core.

// parseSelectStatement parses a complete SELECT statement (WITH ... SELECT ...).
func (p *Parser) parseSelectStatement() *SelectStmt {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxExprDepth {
		p.addError("query nested too deeply")
		return &SelectStmt{}
	}

	stmt := &SelectStmt{}
	if p.check(TOKEN_WITH) {
		stmt.With = p.parseWithClause()
	}
	stmt.Body = p.parseSelectBody()
	return stmt
}

func (p *Parser) parseWithClause() *WithClause {
	p.expect(TOKEN_WITH)
	with := &WithClause{}

	if p.match(TOKEN_RECURSIVE) {
		with.Recursive = true
	}

	for {
		with.CTEs = append(with.CTEs, p.parseCTE())
		if p.failed() || !p.match(TOKEN_COMMA) {
			break
		}
	}

	return with
}

func (p *Parser) parseCTE() *CTE {
	cte := &CTE{}

	name, _ := p.parseIdentName("CTE name")
	cte.Name = name

	// Optional column list: cte(col1, col2, ...)
	if p.match(TOKEN_LPAREN) {
		cte.Columns = p.parseColumnAliasList()
		p.expect(TOKEN_RPAREN)
	}

	p.expect(TOKEN_AS)
	p.expect(TOKEN_LPAREN)
	cte.Select = p.parseSelectStatement()
	p.expect(TOKEN_RPAREN)

	return cte
}

// parseSelectBody parses a SELECT body with possible set operations.
func (p *Parser) parseSelectBody() *SelectBody {
	body := &SelectBody{}
	body.Left = p.parseSelectCore()
	if p.failed() {
		return body
	}

	switch p.token.Type {
	case TOKEN_UNION:
		body.Op = SetOpUnion
	case TOKEN_INTERSECT:
		body.Op = SetOpIntersect
	case TOKEN_EXCEPT:
		body.Op = SetOpExcept
	default:
		return body
	}
	p.nextToken()
	if p.match(TOKEN_ALL) {
		body.All = true
	} else {
		p.match(TOKEN_DISTINCT)
	}

	body.Right = p.parseSelectBody()
	return body
}

// parseSelectCore parses a single SELECT clause with all optional clauses.
func (p *Parser) parseSelectCore() *SelectCore {
	p.expect(TOKEN_SELECT)
	sc := &SelectCore{}

	if p.match(TOKEN_DISTINCT) {
		sc.Distinct = true
	} else {
		p.match(TOKEN_ALL)
	}

	sc.Columns = p.parseSelectList()

	if p.match(TOKEN_FROM) {
		sc.From = p.parseFromClause()
	}

	if p.match(TOKEN_WHERE) {
		sc.Where = p.requireExpression("WHERE")
	}

	if p.match(TOKEN_GROUP) {
		p.expect(TOKEN_BY)
		sc.GroupBy = p.parseExpressionList()
	}

	if p.match(TOKEN_HAVING) {
		sc.Having = p.requireExpression("HAVING")
	}

	if p.match(TOKEN_WINDOW) {
		sc.Windows = p.parseWindowDefs()
	}

	if p.match(TOKEN_ORDER) {
		p.expect(TOKEN_BY)
		sc.OrderBy = p.parseOrderByList()
	}

	if p.match(TOKEN_LIMIT) {
		sc.Limit = p.requireExpression("LIMIT")
	}

	if p.match(TOKEN_OFFSET) {
		sc.Offset = p.requireExpression("OFFSET")
		if !p.matchSoftKeyword("ROWS") {
			p.matchSoftKeyword("ROW")
		}
	}

	return sc
}

func (p *Parser) requireExpression(clause string) Expr {
	expr := p.parseExpression()
	if expr == nil {
		p.addError(fmt.Sprintf("expected expression after %s", clause))
	}
	return expr
}

// parseWindowDefs parses named window definitions.
func (p *Parser) parseWindowDefs() []WindowDef {
	var defs []WindowDef
	for {
		def := WindowDef{Spec: &WindowSpec{}}
		def.Name, _ = p.parseIdentName("window name")
		p.expect(TOKEN_AS)
		p.expect(TOKEN_LPAREN)
		p.parseWindowBody(def.Spec)
		p.expect(TOKEN_RPAREN)
		defs = append(defs, def)
		if p.failed() || !p.match(TOKEN_COMMA) {
			break
		}
	}
	return defs
}

func (p *Parser) parseSelectList() []SelectItem {
	var items []SelectItem
	for {
		items = append(items, p.parseSelectItem())
		if p.failed() || !p.match(TOKEN_COMMA) {
			break
		}
	}
	return items
}

func (p *Parser) parseSelectItem() SelectItem {
	item := SelectItem{}

	if p.match(TOKEN_STAR) {
		item.Star = true
		return item
	}

	// table.* pattern using 3-token lookahead
	if p.check(TOKEN_IDENT) && p.checkPeek(TOKEN_DOT) && p.peek2.Type == TOKEN_STAR {
		item.TableStar = p.token.Literal
		p.nextToken() // consume ident
		p.nextToken() // consume DOT
		p.nextToken() // consume STAR
		return item
	}

	item.Expr = p.parseExpression()
	if item.Expr == nil {
		p.addError("expected select expression")
		return item
	}

	if p.match(TOKEN_AS) {
		if p.check(TOKEN_IDENT) || p.check(TOKEN_STRING) {
			item.Alias = p.token.Literal
			p.nextToken()
		} else {
			p.addError("expected alias after AS")
		}
	} else if p.canBeAlias(p.token) {
		item.Alias = p.token.Literal
		p.nextToken()
	}

	return item
}
