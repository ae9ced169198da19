package sqlrewrite

import "semsql/internal/sqlast"

// qualifiers maps the names visible in one SELECT core to the filter CTE they
// now refer to. An empty value shadows an outer binding of the same name.
type qualifiers struct {
	parent *qualifiers
	names  map[string]string
}

func (q *qualifiers) lookup(name string) (string, bool) {
	for c := q; c != nil; c = c.parent {
		if cte, ok := c.names[name]; ok {
			return cte, cte != ""
		}
	}
	return "", false
}

// renameSelect points matched table nodes at their filter CTEs and rewrites
// column qualifiers that referred to them, recursing into every nested SELECT.
func renameSelect(sel *sqlast.SelectStmt, parent *qualifiers, targets map[*sqlast.TableName]*filterCTE) {
	if sel == nil {
		return
	}
	if sel.With != nil {
		for _, cte := range sel.With.CTEs {
			renameSelect(cte.Select, parent, targets)
		}
	}
	if sel.Body == nil {
		return
	}
	for _, sc := range sel.Body.Cores() {
		renameCore(sc, parent, targets)
	}
}

func renameCore(sc *sqlast.SelectCore, parent *qualifiers, targets map[*sqlast.TableName]*filterCTE) {
	q := &qualifiers{parent: parent, names: make(map[string]string)}

	var matched []*sqlast.TableName
	for _, ref := range sc.From.TableRefs() {
		switch t := ref.(type) {
		case *sqlast.TableName:
			cte, ok := targets[t]
			name := ""
			if ok {
				name = cte.name
				matched = append(matched, t)
			}
			q.names[t.RefName()] = name
			if t.Alias == "" && t.Schema != "" {
				q.names[t.Schema+"."+t.Name] = name
			}
		case *sqlast.DerivedTable:
			if t.Alias != "" {
				q.names[t.Alias] = ""
			}
		case *sqlast.FuncTable:
			if t.Alias != "" {
				q.names[t.Alias] = ""
			}
		}
	}

	if sc.From != nil {
		for _, ref := range sc.From.TableRefs() {
			switch t := ref.(type) {
			case *sqlast.DerivedTable:
				outer := parent
				if t.Lateral {
					outer = q
				}
				renameSelect(t.Select, outer, targets)
			case *sqlast.FuncTable:
				if t.Func != nil {
					renameExpr(t.Func, q, targets)
				}
			}
		}
		for _, join := range sc.From.Joins {
			renameExpr(join.Condition, q, targets)
		}
	}

	for i := range sc.Columns {
		item := &sc.Columns[i]
		if item.TableStar != "" {
			if cte, ok := q.lookup(item.TableStar); ok {
				item.TableStar = cte
			}
		}
	}
	for _, e := range sc.Exprs() {
		renameExpr(e, q, targets)
	}

	for _, t := range matched {
		cte := targets[t]
		t.Catalog = ""
		t.Schema = ""
		t.Name = cte.name
		t.Alias = ""
		t.Quoted = false
	}
}

// renameExpr rewrites column and star qualifiers in e, descending into subqueries.
func renameExpr(e sqlast.Expr, q *qualifiers, targets map[*sqlast.TableName]*filterCTE) {
	sqlast.WalkExpr(e, func(n sqlast.Expr) bool {
		switch expr := n.(type) {
		case *sqlast.ColumnRef:
			if expr.Table == "" {
				break
			}
			key := expr.Table
			if expr.Schema != "" {
				key = expr.Schema + "." + expr.Table
			}
			if cte, ok := q.lookup(key); ok {
				expr.Schema = ""
				expr.Table = cte
			}
		case *sqlast.StarExpr:
			if expr.Table == "" {
				break
			}
			if cte, ok := q.lookup(expr.Table); ok {
				expr.Table = cte
			}
		}
		if nested := sqlast.NestedSelect(n); nested != nil {
			renameSelect(nested, q, targets)
		}
		return true
	})
}
