package sqlast

// Expression parsing using Pratt parser (precedence climbing).

// maxExprDepth bounds nesting so hostile input cannot exhaust the stack.
const maxExprDepth = 512

func (p *Parser) parseExpression() Expr {
	return p.parseExpressionWithPrecedence(PrecedenceNone + 1)
}

// parseExpressionWithPrecedence implements Pratt parsing.
func (p *Parser) parseExpressionWithPrecedence(minPrecedence int) Expr {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxExprDepth {
		p.addError("expression nested too deeply")
		return nil
	}

	left := p.parsePrefixExpr()
	if left == nil {
		return nil
	}

	for !p.failed() {
		prec := p.getInfixPrecedence()
		if prec < minPrecedence {
			break
		}
		left = p.parseInfixExpr(left, prec)
		if left == nil {
			break
		}
	}

	return left
}

// parsePrefixExpr parses prefix expressions (unary operators and primary expressions).
func (p *Parser) parsePrefixExpr() Expr {
	switch p.token.Type {
	case TOKEN_NOT:
		if p.checkPeek(TOKEN_EXISTS) {
			p.nextToken() // consume NOT
			return p.parseExistsExpr(true)
		}
		p.nextToken()
		expr := p.parseExpressionWithPrecedence(PrecedenceNot)
		return &UnaryExpr{Op: TOKEN_NOT, Expr: expr}

	case TOKEN_MINUS, TOKEN_PLUS:
		op := p.token.Type
		p.nextToken()
		expr := p.parseExpressionWithPrecedence(PrecedenceUnary)
		return &UnaryExpr{Op: op, Expr: expr}

	default:
		return p.parsePrimary()
	}
}

// getInfixPrecedence returns the precedence of the current token as an infix operator.
func (p *Parser) getInfixPrecedence() int {
	switch p.token.Type {
	case TOKEN_OR:
		return PrecedenceOr
	case TOKEN_AND:
		return PrecedenceAnd
	case TOKEN_EQ, TOKEN_NE, TOKEN_LT, TOKEN_GT, TOKEN_LE, TOKEN_GE:
		return PrecedenceComparison
	case TOKEN_IS, TOKEN_IN, TOKEN_BETWEEN, TOKEN_LIKE, TOKEN_ILIKE:
		return PrecedenceComparison
	case TOKEN_NOT:
		switch p.peek.Type {
		case TOKEN_IN, TOKEN_BETWEEN, TOKEN_LIKE, TOKEN_ILIKE:
			return PrecedenceComparison
		}
		return PrecedenceNone
	case TOKEN_PLUS, TOKEN_MINUS, TOKEN_DPIPE:
		return PrecedenceAddition
	case TOKEN_STAR, TOKEN_SLASH, TOKEN_MOD:
		return PrecedenceMultiply
	case TOKEN_DCOLON:
		return PrecedencePostfix
	default:
		return PrecedenceNone
	}
}

// parseInfixExpr parses an infix expression given the left operand.
func (p *Parser) parseInfixExpr(left Expr, prec int) Expr {
	switch p.token.Type {
	case TOKEN_NOT:
		return p.parseNotInfixExpr(left)
	case TOKEN_IS:
		return p.parseIsExpr(left)
	case TOKEN_IN:
		p.nextToken()
		return p.parseInExpr(left, false)
	case TOKEN_BETWEEN:
		p.nextToken()
		return p.parseBetweenExpr(left, false)
	case TOKEN_LIKE:
		p.nextToken()
		return p.parseLikeExpr(left, false, false)
	case TOKEN_ILIKE:
		p.nextToken()
		return p.parseLikeExpr(left, false, true)
	case TOKEN_DCOLON:
		p.nextToken()
		return &TypeCastExpr{Expr: left, TypeName: p.parseTypeName()}
	default:
		op := p.token.Type
		p.nextToken()
		right := p.parseExpressionWithPrecedence(prec + 1)
		if right == nil {
			p.addError("missing right operand")
			return nil
		}
		return &BinaryExpr{Left: left, Op: op, Right: right}
	}
}

// parseNotInfixExpr handles NOT IN, NOT BETWEEN, NOT LIKE, NOT ILIKE.
func (p *Parser) parseNotInfixExpr(left Expr) Expr {
	p.nextToken() // consume NOT

	switch p.token.Type {
	case TOKEN_IN:
		p.nextToken()
		return p.parseInExpr(left, true)
	case TOKEN_BETWEEN:
		p.nextToken()
		return p.parseBetweenExpr(left, true)
	case TOKEN_LIKE:
		p.nextToken()
		return p.parseLikeExpr(left, true, false)
	case TOKEN_ILIKE:
		p.nextToken()
		return p.parseLikeExpr(left, true, true)
	default:
		p.addError("expected IN, BETWEEN, LIKE, or ILIKE after NOT")
		return left
	}
}

// parseIsExpr parses IS [NOT] NULL / IS [NOT] TRUE / IS [NOT] FALSE.
func (p *Parser) parseIsExpr(left Expr) Expr {
	p.nextToken() // consume IS
	isNot := p.match(TOKEN_NOT)

	switch p.token.Type {
	case TOKEN_NULL:
		p.nextToken()
		return &IsNullExpr{Expr: left, Not: isNot}
	case TOKEN_TRUE:
		p.nextToken()
		return &IsBoolExpr{Expr: left, Not: isNot, Value: true}
	case TOKEN_FALSE:
		p.nextToken()
		return &IsBoolExpr{Expr: left, Not: isNot, Value: false}
	default:
		p.addError("expected NULL, TRUE, or FALSE after IS")
		return left
	}
}

// parseInExpr parses IN (values) or IN (subquery).
func (p *Parser) parseInExpr(left Expr, not bool) Expr {
	in := &InExpr{Expr: left, Not: not}

	p.expect(TOKEN_LPAREN)
	if p.check(TOKEN_SELECT) || p.check(TOKEN_WITH) {
		in.Query = p.parseSelectStatement()
	} else {
		in.Values = p.parseExpressionList()
	}
	p.expect(TOKEN_RPAREN)

	return in
}

// parseBetweenExpr parses BETWEEN low AND high.
func (p *Parser) parseBetweenExpr(left Expr, not bool) Expr {
	between := &BetweenExpr{Expr: left, Not: not}
	between.Low = p.parseExpressionWithPrecedence(PrecedenceAddition)
	p.expect(TOKEN_AND)
	between.High = p.parseExpressionWithPrecedence(PrecedenceAddition)
	return between
}

// parseLikeExpr parses LIKE/ILIKE pattern [ESCAPE char].
func (p *Parser) parseLikeExpr(left Expr, not bool, ilike bool) Expr {
	like := &LikeExpr{Expr: left, Not: not, ILike: ilike}
	like.Pattern = p.parseExpressionWithPrecedence(PrecedenceAddition)
	if p.matchSoftKeyword("ESCAPE") {
		like.Escape = p.parseExpressionWithPrecedence(PrecedenceAddition)
	}
	return like
}

// parseExpressionList parses a comma-separated list of expressions.
func (p *Parser) parseExpressionList() []Expr {
	var exprs []Expr
	for {
		expr := p.parseExpression()
		if expr == nil {
			p.addError("expected expression")
			return exprs
		}
		exprs = append(exprs, expr)
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	return exprs
}
