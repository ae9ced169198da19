package sqlast

func (f *formatter) formatSelectStmt(stmt *SelectStmt) {
	if stmt == nil {
		return
	}
	if stmt.With != nil && len(stmt.With.CTEs) > 0 {
		f.formatWithClause(stmt.With)
	}
	f.formatSelectBody(stmt.Body)
}

func (f *formatter) formatWithClause(with *WithClause) {
	f.write("WITH ")
	if with.Recursive {
		f.write("RECURSIVE ")
	}
	f.commaSep(len(with.CTEs), func(i int) {
		cte := with.CTEs[i]
		f.writeIdent(cte.Name)
		f.formatColumnAliases(cte.Columns)
		f.write(" AS (")
		f.formatSelectStmt(cte.Select)
		f.write(")")
	})
	f.space()
}

func (f *formatter) formatSelectBody(body *SelectBody) {
	if body == nil {
		return
	}
	f.formatSelectCore(body.Left)

	if body.Op != SetOpNone {
		f.space()
		f.write(string(body.Op))
		if body.All {
			f.write(" ALL")
		}
		f.space()
		f.formatSelectBody(body.Right)
	}
}

func (f *formatter) formatSelectCore(sc *SelectCore) {
	if sc == nil {
		return
	}

	f.write("SELECT ")
	if sc.Distinct {
		f.write("DISTINCT ")
	}

	f.commaSep(len(sc.Columns), func(i int) {
		f.formatSelectItem(sc.Columns[i])
	})

	if sc.From != nil {
		f.write(" FROM ")
		f.formatTableRef(sc.From.Source)
		for _, join := range sc.From.Joins {
			f.formatJoin(join)
		}
	}

	if sc.Where != nil {
		f.write(" WHERE ")
		f.formatExpr(sc.Where)
	}

	if len(sc.GroupBy) > 0 {
		f.write(" GROUP BY ")
		f.commaSep(len(sc.GroupBy), func(i int) {
			f.formatExpr(sc.GroupBy[i])
		})
	}

	if sc.Having != nil {
		f.write(" HAVING ")
		f.formatExpr(sc.Having)
	}

	if len(sc.Windows) > 0 {
		f.write(" WINDOW ")
		f.commaSep(len(sc.Windows), func(i int) {
			w := sc.Windows[i]
			f.writeIdent(w.Name)
			f.write(" AS (")
			f.formatWindowBody(w.Spec)
			f.write(")")
		})
	}

	if len(sc.OrderBy) > 0 {
		f.write(" ORDER BY ")
		f.formatOrderBy(sc.OrderBy)
	}

	if sc.Limit != nil {
		f.write(" LIMIT ")
		f.formatExpr(sc.Limit)
	}

	if sc.Offset != nil {
		f.write(" OFFSET ")
		f.formatExpr(sc.Offset)
	}
}

func (f *formatter) formatSelectItem(item SelectItem) {
	if item.Star {
		f.write("*")
		return
	}
	if item.TableStar != "" {
		f.writeIdent(item.TableStar)
		f.write(".*")
		return
	}
	f.formatExpr(item.Expr)
	if item.Alias != "" {
		f.write(" AS ")
		f.writeIdent(item.Alias)
	}
}

func (f *formatter) formatJoin(join *Join) {
	if join.Type == JoinComma {
		f.write(", ")
		f.formatTableRef(join.Right)
		return
	}

	f.space()
	if join.Natural {
		f.write("NATURAL ")
	}
	if join.Type != JoinInner {
		f.write(string(join.Type))
		f.space()
	}
	f.write("JOIN ")
	f.formatTableRef(join.Right)

	switch {
	case join.Condition != nil:
		f.write(" ON ")
		f.formatExpr(join.Condition)
	case len(join.Using) > 0:
		f.write(" USING ")
		f.formatColumnAliases(join.Using)
	}
}

func (f *formatter) formatTableRef(ref TableRef) {
	switch t := ref.(type) {
	case *TableName:
		f.write(t.QualifiedName())
		if t.Alias != "" {
			f.space()
			f.writeIdent(t.Alias)
		}
	case *DerivedTable:
		if t.Lateral {
			f.write("LATERAL ")
		}
		f.write("(")
		f.formatSelectStmt(t.Select)
		f.write(")")
		if t.Alias != "" {
			f.space()
			f.writeIdent(t.Alias)
			f.formatColumnAliases(t.ColumnAliases)
		}
	case *FuncTable:
		f.formatFuncCall(t.Func)
		if t.Alias != "" {
			f.space()
			f.writeIdent(t.Alias)
		}
	}
}

func (f *formatter) formatColumnAliases(aliases []string) {
	if len(aliases) == 0 {
		return
	}
	f.write("(")
	f.commaSep(len(aliases), func(i int) {
		f.writeIdent(aliases[i])
	})
	f.write(")")
}
