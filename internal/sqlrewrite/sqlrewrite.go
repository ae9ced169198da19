// Package sqlrewrite enforces row-level security on SELECT statements.
//
// Each base table that has a predicate is replaced by a synthesized CTE,
// filtered_<alias-or-table>, that selects only the permitted rows. The
// rewrite is structural: table nodes are renamed and column qualifiers
// that referred to them are redirected to the CTE.
package sqlrewrite

import (
	"fmt"

	"semsql/internal/domain"
	"semsql/internal/sqlast"
)

// FilteredPrefix prefixes every synthesized row-filter CTE.
const FilteredPrefix = "filtered_"

// TableRef is one base-table reference found in a query.
type TableRef struct {
	Table         string `json:"table"`
	Alias         string `json:"alias,omitempty"`
	QualifiedName string `json:"qualified_name"`
}

// ExtractTableNames parses a SQL query and returns the sorted, deduplicated
// base-table names it references at any depth. CTE names are not included.
func ExtractTableNames(sql string) ([]string, error) {
	stmt, err := sqlast.Parse(sql)
	if err != nil {
		return nil, &domain.ParseError{SQL: sql, Err: err}
	}
	return sqlast.CollectTableNames(stmt), nil
}

// ExtractTableRefs parses a SQL query and returns every base-table
// reference in the order encountered, duplicates included.
func ExtractTableRefs(sql string) ([]TableRef, error) {
	stmt, err := sqlast.Parse(sql)
	if err != nil {
		return nil, &domain.ParseError{SQL: sql, Err: err}
	}
	bases := sqlast.CollectBaseTables(stmt)
	refs := make([]TableRef, 0, len(bases))
	for _, b := range bases {
		refs = append(refs, TableRef{Table: b.Name, Alias: b.Alias, QualifiedName: b.QualifiedName})
	}
	return refs, nil
}

// ApplyRowLevelFilters restricts every table named in tableFilters to the
// rows its predicate admits. Keys match a table's qualified name first and
// its bare name second. The input is returned byte-for-byte when no
// referenced table has a filter.
func ApplyRowLevelFilters(sql string, tableFilters map[string]string) (string, error) {
	if len(tableFilters) == 0 {
		return sql, nil
	}

	stmt, err := sqlast.Parse(sql)
	if err != nil {
		return "", &domain.ParseError{SQL: sql, Err: err}
	}

	plan, err := planFilters(stmt, tableFilters)
	if err != nil {
		return "", err
	}
	if len(plan.ctes) == 0 {
		return sql, nil
	}

	order := plan.placement(stmt)
	renameSelect(stmt, nil, plan.targets)
	plan.inject(stmt, order)

	return sqlast.Format(stmt), nil
}

// filterCTE is one synthesized CTE and the table it reads.
type filterCTE struct {
	name      string
	source    sqlast.TableName
	predicate sqlast.Expr
}

type filterPlan struct {
	ctes []*filterCTE
	// targets maps each matched table node to the CTE replacing it.
	targets map[*sqlast.TableName]*filterCTE
}

// planFilters decides which table references get a CTE. References that
// share a qualifier and a source table share one CTE.
func planFilters(stmt *sqlast.SelectStmt, tableFilters map[string]string) (*filterPlan, error) {
	plan := &filterPlan{targets: make(map[*sqlast.TableName]*filterCTE)}
	reserved := reservedNames(stmt)
	byKey := make(map[string]*filterCTE)

	for _, base := range sqlast.CollectBaseTables(stmt) {
		predicate, ok := tableFilters[base.QualifiedName]
		if !ok {
			predicate, ok = tableFilters[base.Name]
		}
		if !ok {
			continue
		}

		key := base.Node.RefName() + "\x00" + base.QualifiedName
		if cte, seen := byKey[key]; seen {
			plan.targets[base.Node] = cte
			continue
		}

		expr, err := sqlast.ParseExpr(predicate)
		if err != nil {
			return nil, &domain.ParseError{SQL: predicate, Err: fmt.Errorf("row filter for %s: %w", base.QualifiedName, err)}
		}

		cte := &filterCTE{
			name:      uniqueName(FilteredPrefix+base.Node.RefName(), reserved),
			source:    sqlast.TableName{Catalog: base.Node.Catalog, Schema: base.Node.Schema, Name: base.Node.Name, Quoted: base.Node.Quoted},
			predicate: expr,
		}
		reserved[cte.name] = true
		byKey[key] = cte
		plan.ctes = append(plan.ctes, cte)
		plan.targets[base.Node] = cte
	}
	return plan, nil
}

// reservedNames returns the CTE and table names already used by the statement.
func reservedNames(stmt *sqlast.SelectStmt) map[string]bool {
	names := make(map[string]bool)
	if stmt.With != nil {
		for _, cte := range stmt.With.CTEs {
			names[cte.Name] = true
		}
	}
	sqlast.WalkSelects(stmt, func(sc *sqlast.SelectCore, _ *sqlast.CTEScope) {
		for _, ref := range sc.From.TableRefs() {
			if t, ok := ref.(*sqlast.TableName); ok {
				names[t.Name] = true
			}
		}
	})
	return names
}

func uniqueName(base string, reserved map[string]bool) string {
	if !reserved[base] {
		return base
	}
	for i := 2; ; i++ {
		name := fmt.Sprintf("%s_%d", base, i)
		if !reserved[name] {
			return name
		}
	}
}

// placement returns, for each filter CTE, the index of the first existing
// top-level CTE whose body reads it. CTEs read by no existing CTE go last.
// It must run before renaming, while table nodes still hold their names.
func (p *filterPlan) placement(stmt *sqlast.SelectStmt) map[*filterCTE]int {
	var existing []*sqlast.CTE
	if stmt.With != nil {
		existing = stmt.With.CTEs
	}

	order := make(map[*filterCTE]int, len(p.ctes))
	for _, cte := range p.ctes {
		order[cte] = len(existing)
	}
	for i := len(existing) - 1; i >= 0; i-- {
		for _, base := range sqlast.CollectBaseTables(existing[i].Select) {
			if cte, ok := p.targets[base.Node]; ok {
				order[cte] = i
			}
		}
	}
	return order
}

// inject splices the filter CTEs into the top-level WITH clause.
func (p *filterPlan) inject(stmt *sqlast.SelectStmt, order map[*filterCTE]int) {
	if stmt.With == nil {
		stmt.With = &sqlast.WithClause{}
	}
	existing := stmt.With.CTEs

	merged := make([]*sqlast.CTE, 0, len(existing)+len(p.ctes))
	for i := 0; i <= len(existing); i++ {
		for _, cte := range p.ctes {
			if order[cte] == i {
				merged = append(merged, cte.node())
			}
		}
		if i < len(existing) {
			merged = append(merged, existing[i])
		}
	}
	stmt.With.CTEs = merged
}

// node builds SELECT * FROM <source> WHERE <predicate> as a CTE.
func (c *filterCTE) node() *sqlast.CTE {
	source := c.source
	return &sqlast.CTE{
		Name: c.name,
		Select: &sqlast.SelectStmt{
			Body: &sqlast.SelectBody{
				Left: &sqlast.SelectCore{
					Columns: []sqlast.SelectItem{{Star: true}},
					From:    &sqlast.FromClause{Source: &source},
					Where:   c.predicate,
				},
			},
		},
	}
}
