package sqlast

import "fmt"

// FROM clause parsing: table references, derived tables, function tables and JOINs.

func (p *Parser) parseFromClause() *FromClause {
	from := &FromClause{}
	from.Source = p.parseTableRef()

	for !p.failed() {
		join := p.parseJoin()
		if join == nil {
			break
		}
		from.Joins = append(from.Joins, join)
	}

	return from
}

func (p *Parser) parseTableRef() TableRef {
	if p.match(TOKEN_LATERAL) {
		if !p.check(TOKEN_LPAREN) {
			p.addError("expected subquery after LATERAL")
			return &DerivedTable{}
		}
		derived := p.parseDerivedTable()
		derived.Lateral = true
		return derived
	}

	if p.check(TOKEN_LPAREN) {
		return p.parseDerivedTable()
	}

	return p.parseTableNameOrFunc()
}

// parseTableNameOrFunc parses a table name or table-valued function.
func (p *Parser) parseTableNameOrFunc() TableRef {
	if !p.check(TOKEN_IDENT) {
		p.addError(fmt.Sprintf("expected table name, got %s", p.describe(p.token)))
		return &TableName{}
	}

	parts := []string{p.token.Literal}
	quoted := p.token.Quoted
	p.nextToken()

	for p.match(TOKEN_DOT) {
		name, q := p.parseIdentName("identifier after '.'")
		parts = append(parts, name)
		quoted = q
	}

	if p.check(TOKEN_LPAREN) {
		var schema string
		if len(parts) > 1 {
			schema = parts[len(parts)-2]
		}
		fn, _ := p.parseFuncCall(parts[len(parts)-1], schema).(*FuncCall)
		ft := &FuncTable{Func: fn}
		ft.Alias = p.parseOptionalAlias()
		return ft
	}

	table := &TableName{Quoted: quoted}
	switch len(parts) {
	case 1:
		table.Name = parts[0]
	case 2:
		table.Schema = parts[0]
		table.Name = parts[1]
	case 3:
		table.Catalog = parts[0]
		table.Schema = parts[1]
		table.Name = parts[2]
	default:
		p.addError(fmt.Sprintf("too many name parts in table reference (%d)", len(parts)))
	}
	table.Alias = p.parseOptionalAlias()

	return table
}

// parseOptionalAlias parses [AS] alias after a table reference.
func (p *Parser) parseOptionalAlias() string {
	if p.match(TOKEN_AS) {
		name, _ := p.parseIdentName("alias")
		return name
	}
	if p.canBeAlias(p.token) {
		name := p.token.Literal
		p.nextToken()
		return name
	}
	return ""
}

func (p *Parser) parseDerivedTable() *DerivedTable {
	p.expect(TOKEN_LPAREN)
	derived := &DerivedTable{}
	if !p.check(TOKEN_SELECT) && !p.check(TOKEN_WITH) {
		p.addError(fmt.Sprintf("expected subquery, got %s", p.describe(p.token)))
		return derived
	}
	derived.Select = p.parseSelectStatement()
	p.expect(TOKEN_RPAREN)

	derived.Alias = p.parseOptionalAlias()
	if derived.Alias != "" && p.match(TOKEN_LPAREN) {
		derived.ColumnAliases = p.parseColumnAliasList()
		p.expect(TOKEN_RPAREN)
	}

	return derived
}

// parseJoin parses a JOIN clause. It returns nil when no join follows.
func (p *Parser) parseJoin() *Join {
	join := &Join{}

	if p.match(TOKEN_COMMA) {
		join.Type = JoinComma
		join.Right = p.parseTableRef()
		return join
	}

	if p.match(TOKEN_NATURAL) {
		join.Natural = true
	}

	gotJoinType := true
	switch p.token.Type {
	case TOKEN_INNER:
		join.Type = JoinInner
		p.nextToken()
	case TOKEN_LEFT:
		join.Type = JoinLeft
		p.nextToken()
		p.match(TOKEN_OUTER)
	case TOKEN_RIGHT:
		join.Type = JoinRight
		p.nextToken()
		p.match(TOKEN_OUTER)
	case TOKEN_FULL:
		join.Type = JoinFull
		p.nextToken()
		p.match(TOKEN_OUTER)
	case TOKEN_CROSS:
		join.Type = JoinCross
		p.nextToken()
	case TOKEN_JOIN:
		join.Type = JoinInner
	default:
		gotJoinType = false
	}

	if !gotJoinType {
		if join.Natural {
			join.Type = JoinInner
		} else {
			return nil
		}
	}

	if !p.expect(TOKEN_JOIN) {
		return nil
	}

	join.Right = p.parseTableRef()
	p.parseJoinCondition(join)
	return join
}

// parseJoinCondition handles ON/USING.
func (p *Parser) parseJoinCondition(join *Join) {
	switch {
	case join.Natural, join.Type == JoinCross:
		// no condition
	case p.match(TOKEN_ON):
		join.Condition = p.requireExpression("ON")
	case p.match(TOKEN_USING):
		p.expect(TOKEN_LPAREN)
		join.Using = p.parseColumnAliasList()
		if len(join.Using) == 0 {
			p.addError("expected column name in USING clause")
		}
		p.expect(TOKEN_RPAREN)
	default:
		p.addError(fmt.Sprintf("expected ON or USING after %s JOIN", join.Type))
	}
}

// parseColumnAliasList parses col1, col2, ... The opening paren has already been consumed.
func (p *Parser) parseColumnAliasList() []string {
	var aliases []string
	for p.check(TOKEN_IDENT) {
		aliases = append(aliases, p.token.Literal)
		p.nextToken()
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	return aliases
}
