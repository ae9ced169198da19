// Package declarative loads semantic layers and row filters from YAML.
package declarative

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"semsql/internal/domain"
)

// LoadOptions configures YAML loading behavior.
type LoadOptions struct {
	AllowUnknownFields bool
}

// LoadLayerFile reads a SemanticLayer document and builds the layer.
func LoadLayerFile(path string, opts LoadOptions) (*domain.SemanticLayer, error) {
	data, err := os.ReadFile(path) //nolint:gosec // intentional: reading user-specified config files
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseLayer(data, path, opts)
}

// ParseLayer decodes and builds a SemanticLayer document. source names the
// input in error messages.
func ParseLayer(data []byte, source string, opts LoadOptions) (*domain.SemanticLayer, error) {
	var doc SemanticLayerDoc
	if err := decodeYAML(data, &doc, opts); err != nil {
		return nil, fmt.Errorf("parse %s: %w", source, err)
	}
	if err := validateDocument(source, doc.APIVersion, doc.Kind, KindNameSemanticLayer); err != nil {
		return nil, err
	}
	if errs := ValidateLayerDoc(&doc); len(errs) > 0 {
		return nil, domain.ErrValidation("%s: invalid semantic layer:\n  %s", source, joinErrors(errs))
	}

	layer, err := doc.Build()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return layer, nil
}

// Build converts the document into a semantic layer.
func (doc *SemanticLayerDoc) Build() (*domain.SemanticLayer, error) {
	b := domain.NewLayerBuilder()
	for _, t := range doc.Tables {
		b.AddTable(t.Name, t.Columns...)
	}
	for _, r := range doc.Relationships {
		fromTable, fromCol, _ := splitColumnRef(r.From)
		toTable, toCol, _ := splitColumnRef(r.To)
		b.AddRelationship(domain.Relationship{
			FromTable: fromTable, FromColumn: fromCol,
			ToTable: toTable, ToColumn: toCol,
		})
	}
	for _, m := range doc.Metrics {
		b.AddMetric(definitionFromSpec(m))
	}
	for _, f := range doc.Filters {
		b.AddFilter(definitionFromSpec(f))
	}
	return b.Build()
}

func definitionFromSpec(s DefinitionSpec) domain.Definition {
	params := make([]domain.Parameter, len(s.Parameters))
	for i, p := range s.Parameters {
		params[i] = domain.Parameter{
			Name:        p.Name,
			Type:        domain.ParamType(p.Type),
			Default:     p.Default,
			Description: p.Description,
		}
	}
	return domain.Definition{
		Name:        s.Name,
		Table:       s.Table,
		Expression:  s.Expression,
		Description: s.Description,
		Parameters:  params,
	}
}

// RowFilterSet holds loaded row filters and resolves them per principal.
type RowFilterSet struct {
	filters []RowFilterSpec
}

// LoadRowFilterFile reads a RowFilterList document.
func LoadRowFilterFile(path string, opts LoadOptions) (*RowFilterSet, error) {
	data, err := os.ReadFile(path) //nolint:gosec // intentional: reading user-specified config files
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseRowFilters(data, path, opts)
}

// ParseRowFilters decodes and validates a RowFilterList document.
func ParseRowFilters(data []byte, source string, opts LoadOptions) (*RowFilterSet, error) {
	var doc RowFilterListDoc
	if err := decodeYAML(data, &doc, opts); err != nil {
		return nil, fmt.Errorf("parse %s: %w", source, err)
	}
	if err := validateDocument(source, doc.APIVersion, doc.Kind, KindNameRowFilterList); err != nil {
		return nil, err
	}
	if errs := ValidateRowFilterDoc(&doc); len(errs) > 0 {
		return nil, domain.ErrValidation("%s: invalid row filters:\n  %s", source, joinErrors(errs))
	}
	return &RowFilterSet{filters: doc.Filters}, nil
}

// Len returns the number of filters in the set.
func (s *RowFilterSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.filters)
}

// ForPrincipal returns the table → predicate map that applies to principal:
// unbound filters plus those bound to it. An empty principal gets only the
// unbound filters.
func (s *RowFilterSet) ForPrincipal(principal string) (map[string]string, error) {
	if s == nil {
		return map[string]string{}, nil
	}

	var applicable []domain.RowFilter
	for _, f := range s.filters {
		if len(f.Bindings) > 0 && (principal == "" || !slices.ContainsFunc(f.Bindings, func(b FilterBindingRef) bool {
			return b.Principal == principal
		})) {
			continue
		}
		applicable = append(applicable, domain.RowFilter{Table: f.Table, Predicate: f.FilterSQL, Description: f.Description})
	}
	return domain.RowFilterMap(applicable)
}

// decodeYAML unmarshals data into target, rejecting unknown fields unless
// the options allow them.
func decodeYAML(data []byte, target interface{}, opts LoadOptions) error {
	if opts.AllowUnknownFields {
		return yaml.Unmarshal(data, target)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	return decoder.Decode(target)
}

// validateDocument checks the apiVersion and kind fields.
func validateDocument(path string, apiVersion, kind, expectedKind string) error {
	if apiVersion != SupportedAPIVersion {
		return domain.ErrValidation("%s: unsupported apiVersion %q (expected %q)", path, apiVersion, SupportedAPIVersion)
	}
	if kind != expectedKind {
		return domain.ErrValidation("%s: unexpected kind %q (expected %q)", path, kind, expectedKind)
	}
	return nil
}
