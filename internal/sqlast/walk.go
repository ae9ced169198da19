package sqlast

import "sort"

// === Expression Traversal ===

// WalkExpr calls fn for e and, while fn returns true, for every expression
// nested in it: operands, function arguments, FILTER clauses, window
// PARTITION BY/ORDER BY, CASE branches. It does not enter nested SELECT
// statements; callers that need them match *SubqueryExpr, *ExistsExpr and
// *InExpr in fn and recurse themselves.
func WalkExpr(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}

	switch expr := e.(type) {
	case *BinaryExpr:
		WalkExpr(expr.Left, fn)
		WalkExpr(expr.Right, fn)
	case *UnaryExpr:
		WalkExpr(expr.Expr, fn)
	case *ParenExpr:
		WalkExpr(expr.Expr, fn)
	case *FuncCall:
		for _, arg := range expr.Args {
			WalkExpr(arg, fn)
		}
		WalkExpr(expr.Filter, fn)
		walkWindowSpec(expr.Window, fn)
	case *CaseExpr:
		WalkExpr(expr.Operand, fn)
		for _, when := range expr.Whens {
			WalkExpr(when.Condition, fn)
			WalkExpr(when.Result, fn)
		}
		WalkExpr(expr.Else, fn)
	case *CastExpr:
		WalkExpr(expr.Expr, fn)
	case *TypeCastExpr:
		WalkExpr(expr.Expr, fn)
	case *InExpr:
		WalkExpr(expr.Expr, fn)
		for _, v := range expr.Values {
			WalkExpr(v, fn)
		}
	case *BetweenExpr:
		WalkExpr(expr.Expr, fn)
		WalkExpr(expr.Low, fn)
		WalkExpr(expr.High, fn)
	case *IsNullExpr:
		WalkExpr(expr.Expr, fn)
	case *IsBoolExpr:
		WalkExpr(expr.Expr, fn)
	case *LikeExpr:
		WalkExpr(expr.Expr, fn)
		WalkExpr(expr.Pattern, fn)
		WalkExpr(expr.Escape, fn)
	case *IntervalExpr:
		WalkExpr(expr.Value, fn)
	case *ExtractExpr:
		WalkExpr(expr.Expr, fn)
	}
}

func walkWindowSpec(w *WindowSpec, fn func(Expr) bool) {
	if w == nil {
		return
	}
	for _, e := range w.PartitionBy {
		WalkExpr(e, fn)
	}
	for _, item := range w.OrderBy {
		WalkExpr(item.Expr, fn)
	}
	if w.Frame != nil {
		if w.Frame.Start != nil {
			WalkExpr(w.Frame.Start.Offset, fn)
		}
		if w.Frame.End != nil {
			WalkExpr(w.Frame.End.Offset, fn)
		}
	}
}

// NestedSelect returns the SELECT statement carried by a subquery-bearing
// expression, or nil.
func NestedSelect(e Expr) *SelectStmt {
	switch expr := e.(type) {
	case *SubqueryExpr:
		return expr.Select
	case *ExistsExpr:
		return expr.Select
	case *InExpr:
		return expr.Query
	}
	return nil
}

// Exprs returns the core's top-level expression slots in clause order,
// excluding those inside FROM (join conditions and table functions).
func (sc *SelectCore) Exprs() []Expr {
	var exprs []Expr
	for _, item := range sc.Columns {
		if item.Expr != nil {
			exprs = append(exprs, item.Expr)
		}
	}
	add := func(e Expr) {
		if e != nil {
			exprs = append(exprs, e)
		}
	}
	add(sc.Where)
	for _, e := range sc.GroupBy {
		add(e)
	}
	add(sc.Having)
	for _, w := range sc.Windows {
		for _, e := range w.Spec.PartitionBy {
			add(e)
		}
		for _, item := range w.Spec.OrderBy {
			add(item.Expr)
		}
	}
	for _, item := range sc.OrderBy {
		add(item.Expr)
	}
	add(sc.Limit)
	add(sc.Offset)
	return exprs
}

// Cores returns the SELECT cores of a body, left to right across set operations.
func (body *SelectBody) Cores() []*SelectCore {
	var cores []*SelectCore
	for b := body; b != nil; b = b.Right {
		if b.Left != nil {
			cores = append(cores, b.Left)
		}
	}
	return cores
}

// TableRefs returns the FROM source followed by each joined table.
func (from *FromClause) TableRefs() []TableRef {
	if from == nil {
		return nil
	}
	refs := []TableRef{from.Source}
	for _, join := range from.Joins {
		refs = append(refs, join.Right)
	}
	return refs
}

// === Table Reference Collection ===

// BaseTable is a reference to a stored table, as opposed to a CTE or derived table.
type BaseTable struct {
	Name          string // unqualified table name
	Alias         string // empty when the table has no alias
	QualifiedName string // schema-qualified name as written
	Node          *TableName
}

// CTEScope tracks which names are bound by WITH clauses at a point in a query.
type CTEScope struct {
	parent *CTEScope
	names  map[string]bool
}

// Has reports whether name is bound by this scope or an enclosing one.
func (s *CTEScope) Has(name string) bool {
	for c := s; c != nil; c = c.parent {
		if c.names[name] {
			return true
		}
	}
	return false
}

func (s *CTEScope) child() *CTEScope {
	return &CTEScope{parent: s, names: map[string]bool{}}
}

// WalkSelects visits sel and every SELECT nested inside it (CTE bodies,
// derived tables, subqueries in any expression, set-operation branches).
// fn receives each core along with the CTE names visible to it.
func WalkSelects(sel *SelectStmt, fn func(sc *SelectCore, ctes *CTEScope)) {
	walkSelects(sel, nil, fn)
}

func walkSelects(sel *SelectStmt, scope *CTEScope, fn func(*SelectCore, *CTEScope)) {
	if sel == nil {
		return
	}

	if sel.With != nil && len(sel.With.CTEs) > 0 {
		scope = scope.child()
		for _, cte := range sel.With.CTEs {
			if sel.With.Recursive {
				scope.names[cte.Name] = true
			}
			walkSelects(cte.Select, scope, fn)
			scope.names[cte.Name] = true
		}
	}

	if sel.Body == nil {
		return
	}
	for _, sc := range sel.Body.Cores() {
		fn(sc, scope)
		walkCoreSelects(sc, scope, fn)
	}
}

// walkCoreSelects descends into the SELECT statements nested in one core.
func walkCoreSelects(sc *SelectCore, scope *CTEScope, fn func(*SelectCore, *CTEScope)) {
	visit := func(e Expr) {
		WalkExpr(e, func(n Expr) bool {
			if nested := NestedSelect(n); nested != nil {
				walkSelects(nested, scope, fn)
			}
			return true
		})
	}

	if sc.From != nil {
		for _, ref := range sc.From.TableRefs() {
			switch t := ref.(type) {
			case *DerivedTable:
				walkSelects(t.Select, scope, fn)
			case *FuncTable:
				if t.Func != nil {
					visit(t.Func)
				}
			}
		}
		for _, join := range sc.From.Joins {
			visit(join.Condition)
		}
	}
	for _, e := range sc.Exprs() {
		visit(e)
	}
}

// CollectBaseTables returns every base-table reference in the statement, in
// the order encountered, at any nesting depth. Names bound by a WITH clause in
// scope are skipped.
func CollectBaseTables(sel *SelectStmt) []BaseTable {
	var tables []BaseTable
	WalkSelects(sel, func(sc *SelectCore, ctes *CTEScope) {
		if sc.From == nil {
			return
		}
		for _, ref := range sc.From.TableRefs() {
			t, ok := ref.(*TableName)
			if !ok || (t.Schema == "" && ctes.Has(t.Name)) {
				continue
			}
			tables = append(tables, BaseTable{
				Name:          t.Name,
				Alias:         t.Alias,
				QualifiedName: t.QualifiedName(),
				Node:          t,
			})
		}
	})
	return tables
}

// CollectTableNames returns the sorted, deduplicated base-table names
// referenced by the statement.
func CollectTableNames(sel *SelectStmt) []string {
	seen := make(map[string]bool)
	var names []string
	for _, t := range CollectBaseTables(sel) {
		if !seen[t.Name] {
			seen[t.Name] = true
			names = append(names, t.Name)
		}
	}
	sort.Strings(names)
	return names
}
