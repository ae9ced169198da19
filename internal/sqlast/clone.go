package sqlast

// CloneExpr returns a deep copy of e.
func CloneExpr(e Expr) Expr {
	if e == nil {
		return nil
	}

	switch expr := e.(type) {
	case *ColumnRef:
		c := *expr
		return &c
	case *Literal:
		c := *expr
		return &c
	case *TypedLiteral:
		c := *expr
		return &c
	case *StarExpr:
		c := *expr
		return &c
	case *BinaryExpr:
		return &BinaryExpr{Left: CloneExpr(expr.Left), Op: expr.Op, Right: CloneExpr(expr.Right)}
	case *UnaryExpr:
		return &UnaryExpr{Op: expr.Op, Expr: CloneExpr(expr.Expr)}
	case *ParenExpr:
		return &ParenExpr{Expr: CloneExpr(expr.Expr)}
	case *FuncCall:
		return cloneFuncCall(expr)
	case *CaseExpr:
		c := &CaseExpr{Operand: CloneExpr(expr.Operand), Else: CloneExpr(expr.Else)}
		for _, w := range expr.Whens {
			c.Whens = append(c.Whens, WhenClause{Condition: CloneExpr(w.Condition), Result: CloneExpr(w.Result)})
		}
		return c
	case *CastExpr:
		return &CastExpr{Expr: CloneExpr(expr.Expr), TypeName: expr.TypeName}
	case *TypeCastExpr:
		return &TypeCastExpr{Expr: CloneExpr(expr.Expr), TypeName: expr.TypeName}
	case *InExpr:
		return &InExpr{Expr: CloneExpr(expr.Expr), Not: expr.Not, Values: cloneExprs(expr.Values), Query: CloneSelect(expr.Query)}
	case *BetweenExpr:
		return &BetweenExpr{Expr: CloneExpr(expr.Expr), Not: expr.Not, Low: CloneExpr(expr.Low), High: CloneExpr(expr.High)}
	case *IsNullExpr:
		return &IsNullExpr{Expr: CloneExpr(expr.Expr), Not: expr.Not}
	case *IsBoolExpr:
		return &IsBoolExpr{Expr: CloneExpr(expr.Expr), Not: expr.Not, Value: expr.Value}
	case *LikeExpr:
		return &LikeExpr{Expr: CloneExpr(expr.Expr), Not: expr.Not, Pattern: CloneExpr(expr.Pattern), Escape: CloneExpr(expr.Escape), ILike: expr.ILike}
	case *ExistsExpr:
		return &ExistsExpr{Not: expr.Not, Select: CloneSelect(expr.Select)}
	case *SubqueryExpr:
		return &SubqueryExpr{Select: CloneSelect(expr.Select)}
	case *IntervalExpr:
		return &IntervalExpr{Value: CloneExpr(expr.Value), Unit: expr.Unit}
	case *ExtractExpr:
		return &ExtractExpr{Field: expr.Field, Expr: CloneExpr(expr.Expr)}
	}
	return e
}

func cloneExprs(list []Expr) []Expr {
	if list == nil {
		return nil
	}
	out := make([]Expr, len(list))
	for i, e := range list {
		out[i] = CloneExpr(e)
	}
	return out
}

func cloneOrderBy(items []OrderByItem) []OrderByItem {
	if items == nil {
		return nil
	}
	out := make([]OrderByItem, len(items))
	for i, item := range items {
		out[i] = OrderByItem{Expr: CloneExpr(item.Expr), Desc: item.Desc}
		if item.NullsFirst != nil {
			b := *item.NullsFirst
			out[i].NullsFirst = &b
		}
	}
	return out
}

func cloneFuncCall(fn *FuncCall) *FuncCall {
	if fn == nil {
		return nil
	}
	return &FuncCall{
		Schema:   fn.Schema,
		Name:     fn.Name,
		Distinct: fn.Distinct,
		Args:     cloneExprs(fn.Args),
		Star:     fn.Star,
		Filter:   CloneExpr(fn.Filter),
		Window:   cloneWindowSpec(fn.Window),
	}
}

func cloneWindowSpec(w *WindowSpec) *WindowSpec {
	if w == nil {
		return nil
	}
	c := &WindowSpec{Name: w.Name, PartitionBy: cloneExprs(w.PartitionBy), OrderBy: cloneOrderBy(w.OrderBy)}
	if w.Frame != nil {
		c.Frame = &FrameSpec{Type: w.Frame.Type, Start: cloneFrameBound(w.Frame.Start), End: cloneFrameBound(w.Frame.End)}
	}
	return c
}

func cloneFrameBound(b *FrameBound) *FrameBound {
	if b == nil {
		return nil
	}
	return &FrameBound{Type: b.Type, Offset: CloneExpr(b.Offset)}
}

// CloneSelect returns a deep copy of sel.
func CloneSelect(sel *SelectStmt) *SelectStmt {
	if sel == nil {
		return nil
	}
	c := &SelectStmt{Body: cloneBody(sel.Body)}
	if sel.With != nil {
		c.With = &WithClause{Recursive: sel.With.Recursive}
		for _, cte := range sel.With.CTEs {
			c.With.CTEs = append(c.With.CTEs, &CTE{
				Name:    cte.Name,
				Columns: append([]string(nil), cte.Columns...),
				Select:  CloneSelect(cte.Select),
			})
		}
	}
	return c
}

func cloneBody(body *SelectBody) *SelectBody {
	if body == nil {
		return nil
	}
	return &SelectBody{Left: cloneCore(body.Left), Op: body.Op, All: body.All, Right: cloneBody(body.Right)}
}

func cloneCore(sc *SelectCore) *SelectCore {
	if sc == nil {
		return nil
	}
	c := &SelectCore{
		Distinct: sc.Distinct,
		Where:    CloneExpr(sc.Where),
		GroupBy:  cloneExprs(sc.GroupBy),
		Having:   CloneExpr(sc.Having),
		OrderBy:  cloneOrderBy(sc.OrderBy),
		Limit:    CloneExpr(sc.Limit),
		Offset:   CloneExpr(sc.Offset),
	}
	for _, item := range sc.Columns {
		c.Columns = append(c.Columns, SelectItem{Star: item.Star, TableStar: item.TableStar, Expr: CloneExpr(item.Expr), Alias: item.Alias})
	}
	for _, w := range sc.Windows {
		c.Windows = append(c.Windows, WindowDef{Name: w.Name, Spec: cloneWindowSpec(w.Spec)})
	}
	if sc.From != nil {
		c.From = &FromClause{Source: cloneTableRef(sc.From.Source)}
		for _, j := range sc.From.Joins {
			c.From.Joins = append(c.From.Joins, &Join{
				Type:      j.Type,
				Natural:   j.Natural,
				Right:     cloneTableRef(j.Right),
				Condition: CloneExpr(j.Condition),
				Using:     append([]string(nil), j.Using...),
			})
		}
	}
	return c
}

func cloneTableRef(ref TableRef) TableRef {
	switch t := ref.(type) {
	case *TableName:
		c := *t
		return &c
	case *DerivedTable:
		return &DerivedTable{
			Select:        CloneSelect(t.Select),
			Alias:         t.Alias,
			ColumnAliases: append([]string(nil), t.ColumnAliases...),
			Lateral:       t.Lateral,
		}
	case *FuncTable:
		return &FuncTable{Func: cloneFuncCall(t.Func), Alias: t.Alias}
	}
	return ref
}
