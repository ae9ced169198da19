package domain

import (
	"sort"
	"strings"
)

// RowFilter is a row-level security predicate for one table.
type RowFilter struct {
	Table       string
	Predicate   string
	Description string
}

// Validate checks that the filter is well-formed.
func (r *RowFilter) Validate() error {
	if strings.TrimSpace(r.Table) == "" {
		return ErrValidation("row filter table is required")
	}
	if strings.TrimSpace(r.Predicate) == "" {
		return ErrValidation("row filter predicate for %q is required", r.Table)
	}
	return nil
}

// RowFilterMap builds the table → predicate map consumed by the row-level
// rewriter. Several filters on one table are ORed: each grants a separate
// visibility window.
func RowFilterMap(filters []RowFilter) (map[string]string, error) {
	byTable := make(map[string][]string)
	for i := range filters {
		if err := filters[i].Validate(); err != nil {
			return nil, err
		}
		t := strings.TrimSpace(filters[i].Table)
		byTable[t] = append(byTable[t], strings.TrimSpace(filters[i].Predicate))
	}

	out := make(map[string]string, len(byTable))
	for table, preds := range byTable {
		if len(preds) == 1 {
			out[table] = preds[0]
			continue
		}
		sort.Strings(preds)
		parts := make([]string, len(preds))
		for i, p := range preds {
			parts[i] = "(" + p + ")"
		}
		out[table] = strings.Join(parts, " OR ")
	}
	return out, nil
}
