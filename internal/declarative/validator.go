package declarative

import (
	"fmt"
	"strings"

	"semsql/internal/domain"
	"semsql/internal/sqlast"
)

// ValidationError represents a single validation problem.
type ValidationError struct {
	Path    string // e.g. "metric[metric_Revenue]" or "filter[eu_only]"
	Message string
}

func (e ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// Valid parameter types.
var validParamTypes = map[string]bool{
	string(domain.ParamNumber):  true,
	string(domain.ParamString):  true,
	string(domain.ParamDate):    true,
	string(domain.ParamBoolean): true,
}

// ValidateLayerDoc checks a layer document for structural problems the
// layer builder cannot see. Referential checks (unknown tables and
// columns, placeholders, prefixes) are left to domain.LayerBuilder.
func ValidateLayerDoc(doc *SemanticLayerDoc) []ValidationError {
	var errs []ValidationError

	if len(doc.Tables) == 0 {
		errs = append(errs, ValidationError{Message: "at least one table is required"})
	}
	for i, t := range doc.Tables {
		path := fmt.Sprintf("table[%d]", i)
		if t.Name != "" {
			path = "table[" + t.Name + "]"
		}
		if len(t.Columns) == 0 {
			errs = append(errs, ValidationError{Path: path, Message: "at least one column is required"})
		}
		seen := make(map[string]bool, len(t.Columns))
		for _, c := range t.Columns {
			if strings.TrimSpace(c) == "" {
				errs = append(errs, ValidationError{Path: path, Message: "column name is required"})
				continue
			}
			if seen[c] {
				errs = append(errs, ValidationError{Path: path, Message: fmt.Sprintf("duplicate column %q", c)})
			}
			seen[c] = true
		}
	}

	for i, r := range doc.Relationships {
		path := fmt.Sprintf("relationship[%d]", i)
		for _, end := range []struct{ field, value string }{{"from", r.From}, {"to", r.To}} {
			if _, _, ok := splitColumnRef(end.value); !ok {
				errs = append(errs, ValidationError{Path: path, Message: fmt.Sprintf("%s must be table.column, got %q", end.field, end.value)})
			}
		}
	}

	validateDefinitions("metric", doc.Metrics, &errs)
	validateDefinitions("filter", doc.Filters, &errs)
	return errs
}

func validateDefinitions(kind string, defs []DefinitionSpec, errs *[]ValidationError) {
	for i, d := range defs {
		path := fmt.Sprintf("%s[%d]", kind, i)
		if d.Name != "" {
			path = kind + "[" + d.Name + "]"
		}
		for _, p := range d.Parameters {
			if p.Type == "" {
				*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("parameter %q: type is required", p.Name)})
				continue
			}
			if !validParamTypes[strings.ToLower(p.Type)] {
				*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("parameter %q: invalid type %q", p.Name, p.Type)})
			}
		}
	}
}

// ValidateRowFilterDoc checks a row filter document. Every predicate must
// parse as a SQL expression.
func ValidateRowFilterDoc(doc *RowFilterListDoc) []ValidationError {
	var errs []ValidationError
	names := make(map[string]bool, len(doc.Filters))

	for i, f := range doc.Filters {
		path := fmt.Sprintf("filter[%d]", i)
		if f.Name != "" {
			path = "filter[" + f.Name + "]"
			if names[f.Name] {
				errs = append(errs, ValidationError{Path: path, Message: "duplicate filter name"})
			}
			names[f.Name] = true
		}
		if strings.TrimSpace(f.Table) == "" {
			errs = append(errs, ValidationError{Path: path, Message: "table is required"})
		}
		if strings.TrimSpace(f.FilterSQL) == "" {
			errs = append(errs, ValidationError{Path: path, Message: "filter_sql is required"})
		} else if _, err := sqlast.ParseExpr(f.FilterSQL); err != nil {
			errs = append(errs, ValidationError{Path: path, Message: fmt.Sprintf("filter_sql: %v", err)})
		}
		for _, b := range f.Bindings {
			if strings.TrimSpace(b.Principal) == "" {
				errs = append(errs, ValidationError{Path: path, Message: "binding principal is required"})
			}
		}
	}
	return errs
}

// splitColumnRef splits "table.column". The table part may itself be
// schema-qualified; the column is everything after the last dot.
func splitColumnRef(ref string) (table, column string, ok bool) {
	i := strings.LastIndex(ref, ".")
	if i <= 0 || i == len(ref)-1 {
		return "", "", false
	}
	return ref[:i], ref[i+1:], true
}

// joinErrors renders validation errors one per line.
func joinErrors(errs []ValidationError) string {
	lines := make([]string, len(errs))
	for i, e := range errs {
		lines[i] = e.Error()
	}
	return strings.Join(lines, "\n  ")
}
