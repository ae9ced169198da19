package domain

import (
	"regexp"
	"sort"
	"strings"
)

const (
	// MetricPrefix marks metric names so they can be recognized in a query
	// without type information.
	MetricPrefix = "metric_"
	// FilterPrefix marks filter names.
	FilterPrefix = "filter_"

	// MaxSubstitutionDepth bounds nested metric/filter expansion.
	MaxSubstitutionDepth = 10
)

// placeholderPattern matches {{name}} placeholders in a definition's expression.
var placeholderPattern = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

var (
	numericLiteral  = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)
	temporalLiteral = regexp.MustCompile(`(?i)^(DATE|TIMESTAMP)\s+'([^']|'')*'$`)
)

// ParamType is the declared type of a metric or filter parameter.
type ParamType string

// Parameter types.
const (
	ParamNumber  ParamType = "number"
	ParamString  ParamType = "string"
	ParamDate    ParamType = "date"
	ParamBoolean ParamType = "boolean"
)

// ParseParamType parses a parameter type name, case-insensitively.
func ParseParamType(s string) (ParamType, error) {
	switch t := ParamType(strings.ToLower(strings.TrimSpace(s))); t {
	case ParamNumber, ParamString, ParamDate, ParamBoolean:
		return t, nil
	}
	return "", ErrValidation("unknown parameter type %q (want number, string, date or boolean)", s)
}

var booleanLiterals = map[string]bool{
	"true": true, "false": true, "0": true, "1": true,
	"'true'": true, "'false'": true, "'0'": true, "'1'": true,
	`"true"`: true, `"false"`: true, `"0"`: true, `"1"`: true,
}

// Check reports whether value, in its SQL literal form, is acceptable for the
// type. The returned string explains a rejection.
func (t ParamType) Check(value string) (bool, string) {
	v := strings.TrimSpace(value)
	switch t {
	case ParamNumber:
		if isQuoted(v) {
			return true, ""
		}
		if numericLiteral.MatchString(v) {
			return true, ""
		}
		return false, "expected a numeric literal"
	case ParamString:
		if isQuoted(v) {
			return true, ""
		}
		return false, "expected a quoted string"
	case ParamDate:
		if isQuoted(v) || temporalLiteral.MatchString(v) {
			return true, ""
		}
		return false, "expected a quoted date or a TIMESTAMP literal"
	case ParamBoolean:
		if booleanLiterals[strings.ToLower(v)] {
			return true, ""
		}
		return false, "expected true, false, 0 or 1"
	}
	return false, "unknown parameter type " + string(t)
}

func isQuoted(v string) bool {
	return strings.HasPrefix(v, "'") || strings.HasPrefix(v, `"`)
}

// Parameter is a positional parameter of a metric or filter.
type Parameter struct {
	Name        string
	Type        ParamType
	Default     *string // nil means required
	Description string
}

// Required reports whether the parameter has no default.
func (p Parameter) Required() bool { return p.Default == nil }

// DefinitionKind distinguishes metrics from filters.
type DefinitionKind string

// Definition kinds.
const (
	KindMetric DefinitionKind = "metric"
	KindFilter DefinitionKind = "filter"
)

// Definition is a named, parameterized SQL fragment owned by one table. A
// metric's expression is a value; a filter's expression is a predicate.
type Definition struct {
	Kind        DefinitionKind
	Name        string
	Table       string
	Expression  string
	Parameters  []Parameter
	Description string
}

// Key identifies the definition in cycle detection, e.g. "metric:metric_total".
func (d *Definition) Key() string { return string(d.Kind) + ":" + d.Name }

// Placeholders returns the parameter names referenced by the expression, in
// order of first appearance.
func (d *Definition) Placeholders() []string {
	return Placeholders(d.Expression)
}

// Placeholders returns the distinct {{name}} placeholders in text.
func Placeholders(text string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// ReplacePlaceholders substitutes every {{name}} in text using lookup. The
// first name lookup cannot resolve is returned with ok=false.
func ReplacePlaceholders(text string, lookup func(name string) (string, bool)) (result string, missing string, ok bool) {
	var b strings.Builder
	last := 0
	for _, m := range placeholderPattern.FindAllStringSubmatchIndex(text, -1) {
		name := text[m[2]:m[3]]
		value, found := lookup(name)
		if !found {
			return "", name, false
		}
		b.WriteString(text[last:m[0]])
		b.WriteString(value)
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String(), "", true
}

// Relationship is an undirected join edge between two tables.
type Relationship struct {
	FromTable  string
	FromColumn string
	ToTable    string
	ToColumn   string
}

// ValidationMode selects whether ad hoc calculated expressions are allowed.
type ValidationMode string

// Validation modes.
const (
	ModeStrict   ValidationMode = "strict"
	ModeFlexible ValidationMode = "flexible"
)

// ParseValidationMode parses "strict" or "flexible", case-insensitively.
func ParseValidationMode(s string) (ValidationMode, error) {
	switch m := ValidationMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeStrict, ModeFlexible:
		return m, nil
	}
	return "", ErrValidation("unknown validation mode %q (want strict or flexible)", s)
}

// SemanticLayer is an immutable registry of tables, relationships, metrics
// and filters. It is safe for concurrent use once built.
type SemanticLayer struct {
	tables        map[string]map[string]bool
	relationships []Relationship
	related       map[[2]string]bool
	metrics       map[string]*Definition
	filters       map[string]*Definition
}

// HasTable reports whether the table is declared.
func (l *SemanticLayer) HasTable(name string) bool {
	_, ok := l.tables[name]
	return ok
}

// HasColumn reports whether the table declares the column.
func (l *SemanticLayer) HasColumn(table, column string) bool {
	return l.tables[table][column]
}

// AreTablesRelated reports whether a relationship joins a and b, in either direction.
func (l *SemanticLayer) AreTablesRelated(a, b string) bool {
	return l.related[[2]string{a, b}]
}

// HasMetric reports whether the metric is declared.
func (l *SemanticLayer) HasMetric(name string) bool {
	_, ok := l.metrics[name]
	return ok
}

// Metric returns the named metric.
func (l *SemanticLayer) Metric(name string) (*Definition, bool) {
	m, ok := l.metrics[name]
	return m, ok
}

// HasFilter reports whether the filter is declared.
func (l *SemanticLayer) HasFilter(name string) bool {
	_, ok := l.filters[name]
	return ok
}

// Filter returns the named filter.
func (l *SemanticLayer) Filter(name string) (*Definition, bool) {
	f, ok := l.filters[name]
	return f, ok
}

// Lookup returns the metric or filter with the given name. Metrics win
// when both exist.
func (l *SemanticLayer) Lookup(name string) (*Definition, bool) {
	if m, ok := l.metrics[name]; ok {
		return m, true
	}
	f, ok := l.filters[name]
	return f, ok
}

// TableNames returns the declared tables, sorted.
func (l *SemanticLayer) TableNames() []string {
	return sortedKeys(l.tables)
}

// Columns returns a table's declared columns, sorted.
func (l *SemanticLayer) Columns(table string) []string {
	return sortedKeys(l.tables[table])
}

// Relationships returns a copy of the declared relationships.
func (l *SemanticLayer) Relationships() []Relationship {
	return append([]Relationship(nil), l.relationships...)
}

// Metrics returns all metrics sorted by name.
func (l *SemanticLayer) Metrics() []*Definition {
	return sortedDefinitions(l.metrics)
}

// Filters returns all filters sorted by name.
func (l *SemanticLayer) Filters() []*Definition {
	return sortedDefinitions(l.filters)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedDefinitions(m map[string]*Definition) []*Definition {
	out := make([]*Definition, 0, len(m))
	for _, name := range sortedKeys(m) {
		out = append(out, m[name])
	}
	return out
}
