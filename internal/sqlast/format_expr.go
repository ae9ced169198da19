package sqlast

import "strings"

// formatExpr dispatches expression formatting by type.
func (f *formatter) formatExpr(e Expr) {
	if e == nil {
		return
	}

	switch expr := e.(type) {
	case *Literal:
		f.formatLiteral(expr)
	case *TypedLiteral:
		f.write(expr.TypeName)
		f.space()
		f.writeString(expr.Value)
	case *ColumnRef:
		f.formatColumnRef(expr)
	case *BinaryExpr:
		f.formatExpr(expr.Left)
		f.space()
		f.write(expr.Op.String())
		f.space()
		f.formatExpr(expr.Right)
	case *UnaryExpr:
		f.formatUnaryExpr(expr)
	case *ParenExpr:
		f.write("(")
		f.formatExpr(expr.Expr)
		f.write(")")
	case *FuncCall:
		f.formatFuncCall(expr)
	case *CaseExpr:
		f.formatCaseExpr(expr)
	case *CastExpr:
		f.write("CAST(")
		f.formatExpr(expr.Expr)
		f.write(" AS ")
		f.write(expr.TypeName)
		f.write(")")
	case *TypeCastExpr:
		f.formatExpr(expr.Expr)
		f.write("::")
		f.write(expr.TypeName)
	case *InExpr:
		f.formatInExpr(expr)
	case *BetweenExpr:
		f.formatExpr(expr.Expr)
		f.writeNot(expr.Not)
		f.write(" BETWEEN ")
		f.formatExpr(expr.Low)
		f.write(" AND ")
		f.formatExpr(expr.High)
	case *IsNullExpr:
		f.formatExpr(expr.Expr)
		f.write(" IS ")
		if expr.Not {
			f.write("NOT ")
		}
		f.write("NULL")
	case *IsBoolExpr:
		f.formatExpr(expr.Expr)
		f.write(" IS ")
		if expr.Not {
			f.write("NOT ")
		}
		if expr.Value {
			f.write("TRUE")
		} else {
			f.write("FALSE")
		}
	case *LikeExpr:
		f.formatLikeExpr(expr)
	case *ExistsExpr:
		if expr.Not {
			f.write("NOT ")
		}
		f.write("EXISTS (")
		f.formatSelectStmt(expr.Select)
		f.write(")")
	case *SubqueryExpr:
		f.write("(")
		f.formatSelectStmt(expr.Select)
		f.write(")")
	case *StarExpr:
		if expr.Table != "" {
			f.writeIdent(expr.Table)
			f.write(".")
		}
		f.write("*")
	case *IntervalExpr:
		f.write("INTERVAL ")
		f.formatExpr(expr.Value)
		if expr.Unit != "" {
			f.space()
			f.write(expr.Unit)
		}
	case *ExtractExpr:
		f.write("EXTRACT(")
		f.write(expr.Field)
		f.write(" FROM ")
		f.formatExpr(expr.Expr)
		f.write(")")
	}
}

func (f *formatter) writeString(s string) {
	f.write("'")
	f.write(strings.ReplaceAll(s, "'", "''"))
	f.write("'")
}

func (f *formatter) writeNot(not bool) {
	if not {
		f.write(" NOT")
	}
}

func (f *formatter) formatLiteral(lit *Literal) {
	switch lit.Type {
	case LiteralString:
		f.writeString(lit.Value)
	case LiteralBool:
		f.write(strings.ToUpper(lit.Value))
	case LiteralNull:
		f.write("NULL")
	default:
		f.write(lit.Value)
	}
}

func (f *formatter) formatColumnRef(col *ColumnRef) {
	if col.Schema != "" {
		f.writeIdent(col.Schema)
		f.write(".")
	}
	if col.Table != "" {
		f.writeIdent(col.Table)
		f.write(".")
	}
	f.write(formatIdent(col.Column, col.Quoted))
}

func (f *formatter) formatUnaryExpr(expr *UnaryExpr) {
	switch expr.Op {
	case TOKEN_NOT:
		f.write("NOT ")
	case TOKEN_MINUS, TOKEN_PLUS:
		f.write(expr.Op.String())
		// "- -x" must not collapse into a "--" comment.
		if inner, ok := expr.Expr.(*UnaryExpr); ok && inner.Op != TOKEN_NOT {
			f.space()
		}
	default:
		f.write(expr.Op.String())
	}
	f.formatExpr(expr.Expr)
}

// formatFuncName writes a function name unquoted unless it cannot lex back.
func (f *formatter) formatFuncName(name string) {
	if isPlainIdent(name) || lookupKeyword(strings.ToLower(name)) != TOKEN_IDENT {
		f.write(name)
		return
	}
	f.write(QuoteIdent(name))
}

func (f *formatter) formatFuncCall(fn *FuncCall) {
	if fn.Schema != "" {
		f.writeIdent(fn.Schema)
		f.write(".")
	}
	f.formatFuncName(fn.Name)
	f.write("(")

	if fn.Distinct {
		f.write("DISTINCT ")
	}

	if fn.Star {
		f.write("*")
	} else {
		f.commaSep(len(fn.Args), func(i int) {
			f.formatExpr(fn.Args[i])
		})
	}

	f.write(")")

	if fn.Filter != nil {
		f.write(" FILTER (WHERE ")
		f.formatExpr(fn.Filter)
		f.write(")")
	}

	if fn.Window != nil {
		f.write(" OVER ")
		f.formatWindowSpec(fn.Window)
	}
}

func (f *formatter) formatWindowSpec(w *WindowSpec) {
	// Named window reference without details: emit without parens
	if w.Name != "" && len(w.PartitionBy) == 0 && len(w.OrderBy) == 0 && w.Frame == nil {
		f.writeIdent(w.Name)
		return
	}

	f.write("(")
	f.formatWindowBody(w)
	f.write(")")
}

func (f *formatter) formatWindowBody(w *WindowSpec) {
	needSpace := false
	if w.Name != "" {
		f.writeIdent(w.Name)
		needSpace = true
	}

	if len(w.PartitionBy) > 0 {
		if needSpace {
			f.space()
		}
		f.write("PARTITION BY ")
		f.commaSep(len(w.PartitionBy), func(i int) {
			f.formatExpr(w.PartitionBy[i])
		})
		needSpace = true
	}

	if len(w.OrderBy) > 0 {
		if needSpace {
			f.space()
		}
		f.write("ORDER BY ")
		f.formatOrderBy(w.OrderBy)
		needSpace = true
	}

	if w.Frame != nil {
		if needSpace {
			f.space()
		}
		f.write(string(w.Frame.Type))
		if w.Frame.End != nil {
			f.write(" BETWEEN ")
			f.formatFrameBound(w.Frame.Start)
			f.write(" AND ")
			f.formatFrameBound(w.Frame.End)
		} else {
			f.space()
			f.formatFrameBound(w.Frame.Start)
		}
	}
}

func (f *formatter) formatFrameBound(b *FrameBound) {
	if b == nil {
		return
	}
	switch b.Type {
	case FrameExprPreceding, FrameExprFollowing:
		f.formatExpr(b.Offset)
		f.space()
	}
	f.write(string(b.Type))
}

func (f *formatter) formatCaseExpr(c *CaseExpr) {
	f.write("CASE")
	if c.Operand != nil {
		f.space()
		f.formatExpr(c.Operand)
	}
	for _, when := range c.Whens {
		f.write(" WHEN ")
		f.formatExpr(when.Condition)
		f.write(" THEN ")
		f.formatExpr(when.Result)
	}
	if c.Else != nil {
		f.write(" ELSE ")
		f.formatExpr(c.Else)
	}
	f.write(" END")
}

func (f *formatter) formatInExpr(in *InExpr) {
	f.formatExpr(in.Expr)
	f.writeNot(in.Not)
	f.write(" IN (")
	if in.Query != nil {
		f.formatSelectStmt(in.Query)
	} else {
		f.commaSep(len(in.Values), func(i int) {
			f.formatExpr(in.Values[i])
		})
	}
	f.write(")")
}

func (f *formatter) formatLikeExpr(like *LikeExpr) {
	f.formatExpr(like.Expr)
	f.writeNot(like.Not)
	if like.ILike {
		f.write(" ILIKE ")
	} else {
		f.write(" LIKE ")
	}
	f.formatExpr(like.Pattern)
	if like.Escape != nil {
		f.write(" ESCAPE ")
		f.formatExpr(like.Escape)
	}
}

func (f *formatter) formatOrderBy(items []OrderByItem) {
	f.commaSep(len(items), func(i int) {
		item := items[i]
		f.formatExpr(item.Expr)
		if item.Desc {
			f.write(" DESC")
		}
		if item.NullsFirst != nil {
			if *item.NullsFirst {
				f.write(" NULLS FIRST")
			} else {
				f.write(" NULLS LAST")
			}
		}
	})
}
