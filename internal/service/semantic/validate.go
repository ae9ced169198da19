package semantic

import (
	"fmt"
	"slices"
	"strings"

	"semsql/internal/domain"
	"semsql/internal/sqlast"
)

// scope holds the tables visible to one SELECT core. Nested cores chain to
// their enclosing core so correlated references resolve.
type scope struct {
	parent *scope
	ctes   map[string]bool
	// tables holds the layer tables in FROM, by table name.
	tables map[string]bool
	// refs maps a qualifier (alias or table name) to its layer table, or to
	// "" for CTEs and derived tables.
	refs map[string]string
}

func newScope(parent *scope) *scope {
	return &scope{
		parent: parent,
		ctes:   make(map[string]bool),
		tables: make(map[string]bool),
		refs:   make(map[string]string),
	}
}

func (s *scope) isCTE(name string) bool {
	for c := s; c != nil; c = c.parent {
		if c.ctes[name] {
			return true
		}
	}
	return false
}

func (s *scope) hasTable(name string) bool {
	for c := s; c != nil; c = c.parent {
		if c.tables[name] {
			return true
		}
	}
	return false
}

// resolve maps a column qualifier to its layer table. ok is false when the
// qualifier names a CTE, a derived table or nothing at all.
func (s *scope) resolve(qualifier string) (string, bool) {
	for c := s; c != nil; c = c.parent {
		if table, found := c.refs[qualifier]; found {
			return table, table != ""
		}
	}
	return "", false
}

// validator walks one statement and collects every violation.
type validator struct {
	layer      *domain.SemanticLayer
	mode       domain.ValidationMode
	messages   []string
	seen       map[string]bool
	calculated []string
}

func newValidator(layer *domain.SemanticLayer, mode domain.ValidationMode) *validator {
	return &validator{layer: layer, mode: mode, seen: make(map[string]bool)}
}

func (v *validator) report(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if v.seen[msg] {
		return
	}
	v.seen[msg] = true
	v.messages = append(v.messages, msg)
}

// result returns the accumulated violations as one error, or nil.
func (v *validator) result() error {
	msgs := v.messages
	if len(v.calculated) > 0 {
		msgs = append(msgs, fmt.Sprintf(
			"Calculated expressions are not allowed in strict mode; use a declared metric instead: %s",
			strings.Join(v.calculated, ", ")))
	}
	if len(msgs) == 0 {
		return nil
	}
	return &domain.SemanticValidationError{Messages: msgs}
}

func (v *validator) visitSelect(sel *sqlast.SelectStmt, parent *scope) {
	if sel == nil {
		return
	}

	s := parent
	if sel.With != nil && len(sel.With.CTEs) > 0 {
		s = newScope(parent)
		for _, cte := range sel.With.CTEs {
			if sel.With.Recursive {
				s.ctes[cte.Name] = true
			}
			v.visitSelect(cte.Select, s)
			s.ctes[cte.Name] = true
		}
	}

	if sel.Body == nil {
		return
	}
	for _, sc := range sel.Body.Cores() {
		v.visitCore(sc, newScope(s))
	}
}

func (v *validator) visitCore(sc *sqlast.SelectCore, s *scope) {
	if sc.From != nil {
		v.visitFrom(sc.From, s)
	}

	for _, e := range sc.Exprs() {
		v.visitExpr(e, s)
	}

	if v.mode == domain.ModeStrict {
		for _, item := range sc.Columns {
			if item.Expr != nil {
				v.checkSelectItem(item.Expr, s)
			}
		}
	}
}

// visitFrom registers the core's tables, then checks each join pair and the
// expressions inside FROM.
func (v *validator) visitFrom(from *sqlast.FromClause, s *scope) {
	var known []string
	refs := from.TableRefs()

	for i, ref := range refs {
		switch t := ref.(type) {
		case *sqlast.TableName:
			table, ok := v.registerTable(t, s)
			if !ok {
				continue
			}
			if i > 0 {
				v.checkJoin(from.Joins[i-1], table, known, s)
			}
			known = append(known, table)
		case *sqlast.DerivedTable:
			if t.Alias != "" {
				s.refs[t.Alias] = ""
			}
			inner := s.parent
			if t.Lateral {
				inner = s
			}
			v.visitSelect(t.Select, inner)
		case *sqlast.FuncTable:
			if t.Alias != "" {
				s.refs[t.Alias] = ""
			}
			if t.Func != nil {
				v.visitExpr(t.Func, s)
			}
		}
	}

	for _, join := range from.Joins {
		if join.Condition != nil {
			v.visitExpr(join.Condition, s)
		}
	}
}

// registerTable adds a base table to the scope. ok is false for CTE
// references and unknown tables.
func (v *validator) registerTable(t *sqlast.TableName, s *scope) (string, bool) {
	if t.Schema == "" && s.isCTE(t.Name) {
		s.refs[t.RefName()] = ""
		return "", false
	}
	if !v.layer.HasTable(t.Name) {
		v.report("Unknown table: %s", t.QualifiedName())
		s.refs[t.RefName()] = ""
		return "", false
	}
	s.tables[t.Name] = true
	s.refs[t.RefName()] = t.Name
	return t.Name, true
}

// checkJoin requires the joined table to be related to at least one table
// already in the FROM clause. Comma joins carry no join semantics and are skipped.
func (v *validator) checkJoin(join *sqlast.Join, table string, known []string, s *scope) {
	if join.Type == sqlast.JoinComma || len(known) == 0 {
		return
	}
	for _, other := range known {
		if v.layer.AreTablesRelated(other, table) {
			return
		}
	}
	if partner, ok := joinPartner(join, table, known, s); ok {
		v.report("Invalid join: no relationship between %s and %s", partner, table)
		return
	}
	if len(known) == 1 {
		v.report("Invalid join: no relationship between %s and %s", known[0], table)
		return
	}
	v.report("Invalid join: no relationship between %s and any of %s", table, strings.Join(known, ", "))
}

// joinPartner returns the earlier table the ON condition compares against.
func joinPartner(join *sqlast.Join, table string, known []string, s *scope) (string, bool) {
	if join.Condition == nil {
		return "", false
	}
	var partner string
	sqlast.WalkExpr(join.Condition, func(n sqlast.Expr) bool {
		col, ok := n.(*sqlast.ColumnRef)
		if !ok || col.Table == "" || partner != "" {
			return partner == ""
		}
		if t := s.refs[col.Table]; t != "" && t != table && slices.Contains(known, t) {
			partner = t
		}
		return partner == ""
	})
	return partner, partner != ""
}

// visitExpr checks metric and filter references in e and descends into subqueries.
func (v *validator) visitExpr(e sqlast.Expr, s *scope) {
	sqlast.WalkExpr(e, func(n sqlast.Expr) bool {
		if nested := sqlast.NestedSelect(n); nested != nil {
			v.visitSelect(nested, s)
		}
		if name, ok := referenceName(n); ok {
			v.checkReference(name, s)
		}
		return true
	})
}

// referenceName returns the name of a bare identifier or unqualified function
// call that carries a metric or filter prefix.
func referenceName(e sqlast.Expr) (string, bool) {
	var name string
	switch n := e.(type) {
	case *sqlast.ColumnRef:
		if n.Table != "" || n.Schema != "" {
			return "", false
		}
		name = n.Column
	case *sqlast.FuncCall:
		if n.Schema != "" {
			return "", false
		}
		name = n.Name
	default:
		return "", false
	}
	if strings.HasPrefix(name, domain.MetricPrefix) || strings.HasPrefix(name, domain.FilterPrefix) {
		return name, true
	}
	return "", false
}

func (v *validator) checkReference(name string, s *scope) {
	var (
		def *domain.Definition
		ok  bool
	)
	if strings.HasPrefix(name, domain.MetricPrefix) {
		if def, ok = v.layer.Metric(name); !ok {
			v.report("Unknown metric: %s", name)
			return
		}
	} else {
		if def, ok = v.layer.Filter(name); !ok {
			v.report("Unknown filter: %s", name)
			return
		}
	}

	if !s.hasTable(def.Table) {
		kind := "Metric"
		if def.Kind == domain.KindFilter {
			kind = "Filter"
		}
		v.report("%s %s requires table %s in the FROM clause", kind, name, def.Table)
	}
}

// checkSelectItem applies the strict-mode rules to one SELECT-list expression.
func (v *validator) checkSelectItem(e sqlast.Expr, s *scope) {
	sqlast.WalkExpr(e, func(n sqlast.Expr) bool {
		if col, ok := n.(*sqlast.ColumnRef); ok && col.Table != "" {
			v.checkColumn(col, s)
		}
		return true
	})

	inner := e
	for {
		p, ok := inner.(*sqlast.ParenExpr)
		if !ok {
			break
		}
		inner = p.Expr
	}

	switch n := inner.(type) {
	case *sqlast.FuncCall:
		if n.Schema != "" || !v.layer.HasMetric(n.Name) {
			v.calculated = append(v.calculated, sqlast.FormatExpr(e))
		}
	case *sqlast.BinaryExpr:
		v.calculated = append(v.calculated, sqlast.FormatExpr(e))
	}
}

func (v *validator) checkColumn(col *sqlast.ColumnRef, s *scope) {
	table := col.Table
	if col.Schema == "" {
		resolved, ok := s.resolve(col.Table)
		if !ok {
			return
		}
		table = resolved
	} else if !v.layer.HasTable(table) {
		return
	}
	if !v.layer.HasColumn(table, col.Column) {
		v.report("Unknown column: %s.%s", table, col.Column)
	}
}
