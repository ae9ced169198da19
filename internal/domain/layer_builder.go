package domain

import (
	"fmt"
	"strings"
)

// LayerBuilder accumulates definitions and checks them as a whole in Build.
// A SemanticLayer can only be obtained from a successful Build.
type LayerBuilder struct {
	tables        map[string]map[string]bool
	relationships []Relationship
	metrics       []Definition
	filters       []Definition
	problems      []string
}

// NewLayerBuilder returns an empty builder.
func NewLayerBuilder() *LayerBuilder {
	return &LayerBuilder{tables: make(map[string]map[string]bool)}
}

// AddTable declares a table and its columns.
func (b *LayerBuilder) AddTable(name string, columns ...string) *LayerBuilder {
	if name == "" {
		b.problems = append(b.problems, "table name is required")
		return b
	}
	if _, dup := b.tables[name]; dup {
		b.problems = append(b.problems, fmt.Sprintf("table %q declared more than once", name))
		return b
	}
	cols := make(map[string]bool, len(columns))
	for _, c := range columns {
		cols[c] = true
	}
	b.tables[name] = cols
	return b
}

// AddRelationship declares a join edge.
func (b *LayerBuilder) AddRelationship(r Relationship) *LayerBuilder {
	b.relationships = append(b.relationships, r)
	return b
}

// AddMetric declares a metric. Kind is set by the builder.
func (b *LayerBuilder) AddMetric(d Definition) *LayerBuilder {
	d.Kind = KindMetric
	b.metrics = append(b.metrics, d)
	return b
}

// AddFilter declares a filter. Kind is set by the builder.
func (b *LayerBuilder) AddFilter(d Definition) *LayerBuilder {
	d.Kind = KindFilter
	b.filters = append(b.filters, d)
	return b
}

// Build checks every definition and returns the layer, or a ValidationError
// listing all problems found.
func (b *LayerBuilder) Build() (*SemanticLayer, error) {
	problems := append([]string(nil), b.problems...)

	tables := make(map[string]map[string]bool, len(b.tables))
	for name, cols := range b.tables {
		copied := make(map[string]bool, len(cols))
		for c := range cols {
			copied[c] = true
		}
		tables[name] = copied
	}

	layer := &SemanticLayer{
		tables:        tables,
		relationships: append([]Relationship(nil), b.relationships...),
		related:       make(map[[2]string]bool),
		metrics:       make(map[string]*Definition),
		filters:       make(map[string]*Definition),
	}

	for _, r := range b.relationships {
		problems = append(problems, b.checkRelationship(r)...)
		layer.related[[2]string{r.FromTable, r.ToTable}] = true
		layer.related[[2]string{r.ToTable, r.FromTable}] = true
	}

	for i := range b.metrics {
		d := b.metrics[i]
		problems = append(problems, b.checkDefinition(&d, MetricPrefix, layer.metrics)...)
		layer.metrics[d.Name] = &d
	}
	for i := range b.filters {
		d := b.filters[i]
		problems = append(problems, b.checkDefinition(&d, FilterPrefix, layer.filters)...)
		layer.filters[d.Name] = &d
	}

	if len(problems) > 0 {
		return nil, ErrValidation("invalid semantic layer:\n  %s", strings.Join(problems, "\n  "))
	}
	return layer, nil
}

func (b *LayerBuilder) checkRelationship(r Relationship) []string {
	var problems []string
	for _, end := range [][2]string{{r.FromTable, r.FromColumn}, {r.ToTable, r.ToColumn}} {
		cols, ok := b.tables[end[0]]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("relationship references unknown table %q", end[0]))
		case end[1] != "" && !cols[end[1]]:
			problems = append(problems, fmt.Sprintf("relationship references unknown column %s.%s", end[0], end[1]))
		}
	}
	return problems
}

func (b *LayerBuilder) checkDefinition(d *Definition, prefix string, existing map[string]*Definition) []string {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf("%s %q: ", d.Kind, d.Name)+fmt.Sprintf(format, args...))
	}

	if !strings.HasPrefix(d.Name, prefix) || len(d.Name) == len(prefix) {
		add("name must start with %q", prefix)
	}
	if _, dup := existing[d.Name]; dup {
		add("declared more than once")
	}
	if _, ok := b.tables[d.Table]; !ok {
		add("owning table %q is not declared", d.Table)
	}
	if strings.TrimSpace(d.Expression) == "" {
		add("expression is required")
	}

	d.Parameters = append([]Parameter(nil), d.Parameters...)
	declared := make(map[string]bool, len(d.Parameters))
	for i := range d.Parameters {
		p := &d.Parameters[i]
		if p.Name == "" {
			add("parameter name is required")
			continue
		}
		if declared[p.Name] {
			add("parameter %q declared more than once", p.Name)
		}
		declared[p.Name] = true
		typ, err := ParseParamType(string(p.Type))
		if err != nil {
			add("parameter %q: %v", p.Name, err)
			continue
		}
		p.Type = typ
		if p.Default != nil {
			if ok, reason := p.Type.Check(*p.Default); !ok {
				add("default for parameter %q: %s", p.Name, reason)
			}
		}
	}
	for _, name := range d.Placeholders() {
		if !declared[name] {
			add("placeholder {{%s}} has no declared parameter", name)
		}
	}
	return problems
}
