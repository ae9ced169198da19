package sqlast

// RewriteFunc is called pre-order for each expression. When handled is true
// the returned expression replaces e and its children are not visited.
type RewriteFunc func(e Expr) (replacement Expr, handled bool, err error)

// RewriteExpr rewrites e in place and returns the (possibly replaced) root.
// Nested SELECT statements are rewritten too. The walk stops at the first error.
func RewriteExpr(e Expr, fn RewriteFunc) (Expr, error) {
	r := &rewriter{fn: fn}
	r.expr(&e)
	return e, r.err
}

// RewriteSelect rewrites every expression slot of sel in place: CTE bodies,
// select lists, join conditions, WHERE, GROUP BY, HAVING, window definitions,
// ORDER BY, LIMIT/OFFSET and all nested subqueries.
func RewriteSelect(sel *SelectStmt, fn RewriteFunc) error {
	r := &rewriter{fn: fn}
	r.selectStmt(sel)
	return r.err
}

type rewriter struct {
	fn  RewriteFunc
	err error
}

func (r *rewriter) expr(slot *Expr) {
	if r.err != nil || *slot == nil {
		return
	}

	repl, handled, err := r.fn(*slot)
	if err != nil {
		r.err = err
		return
	}
	if handled {
		*slot = repl
		return
	}

	switch e := (*slot).(type) {
	case *BinaryExpr:
		r.expr(&e.Left)
		r.expr(&e.Right)
	case *UnaryExpr:
		r.expr(&e.Expr)
	case *ParenExpr:
		r.expr(&e.Expr)
	case *FuncCall:
		r.funcCall(e)
	case *CaseExpr:
		r.expr(&e.Operand)
		for i := range e.Whens {
			r.expr(&e.Whens[i].Condition)
			r.expr(&e.Whens[i].Result)
		}
		r.expr(&e.Else)
	case *CastExpr:
		r.expr(&e.Expr)
	case *TypeCastExpr:
		r.expr(&e.Expr)
	case *InExpr:
		r.expr(&e.Expr)
		r.exprs(e.Values)
		r.selectStmt(e.Query)
	case *BetweenExpr:
		r.expr(&e.Expr)
		r.expr(&e.Low)
		r.expr(&e.High)
	case *IsNullExpr:
		r.expr(&e.Expr)
	case *IsBoolExpr:
		r.expr(&e.Expr)
	case *LikeExpr:
		r.expr(&e.Expr)
		r.expr(&e.Pattern)
		r.expr(&e.Escape)
	case *ExistsExpr:
		r.selectStmt(e.Select)
	case *SubqueryExpr:
		r.selectStmt(e.Select)
	case *IntervalExpr:
		r.expr(&e.Value)
	case *ExtractExpr:
		r.expr(&e.Expr)
	}
}

func (r *rewriter) exprs(list []Expr) {
	for i := range list {
		r.expr(&list[i])
	}
}

func (r *rewriter) orderBy(items []OrderByItem) {
	for i := range items {
		r.expr(&items[i].Expr)
	}
}

func (r *rewriter) funcCall(fn *FuncCall) {
	r.exprs(fn.Args)
	r.expr(&fn.Filter)
	r.windowSpec(fn.Window)
}

func (r *rewriter) windowSpec(w *WindowSpec) {
	if w == nil {
		return
	}
	r.exprs(w.PartitionBy)
	r.orderBy(w.OrderBy)
	if w.Frame != nil {
		if w.Frame.Start != nil {
			r.expr(&w.Frame.Start.Offset)
		}
		if w.Frame.End != nil {
			r.expr(&w.Frame.End.Offset)
		}
	}
}

func (r *rewriter) selectStmt(sel *SelectStmt) {
	if sel == nil || r.err != nil {
		return
	}
	if sel.With != nil {
		for _, cte := range sel.With.CTEs {
			r.selectStmt(cte.Select)
		}
	}
	if sel.Body == nil {
		return
	}
	for _, sc := range sel.Body.Cores() {
		r.selectCore(sc)
	}
}

func (r *rewriter) selectCore(sc *SelectCore) {
	for i := range sc.Columns {
		r.expr(&sc.Columns[i].Expr)
	}
	if sc.From != nil {
		for _, ref := range sc.From.TableRefs() {
			switch t := ref.(type) {
			case *DerivedTable:
				r.selectStmt(t.Select)
			case *FuncTable:
				if t.Func != nil {
					r.funcCall(t.Func)
				}
			}
		}
		for _, join := range sc.From.Joins {
			r.expr(&join.Condition)
		}
	}
	r.expr(&sc.Where)
	r.exprs(sc.GroupBy)
	r.expr(&sc.Having)
	for _, w := range sc.Windows {
		r.windowSpec(w.Spec)
	}
	r.orderBy(sc.OrderBy)
	r.expr(&sc.Limit)
	r.expr(&sc.Offset)
}
