package declarative

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"semsql/internal/domain"
)

// ExportLayer converts a semantic layer back into its document form, with
// tables and definitions sorted by name.
func ExportLayer(layer *domain.SemanticLayer) *SemanticLayerDoc {
	doc := &SemanticLayerDoc{
		APIVersion: SupportedAPIVersion,
		Kind:       KindNameSemanticLayer,
	}
	for _, name := range layer.TableNames() {
		doc.Tables = append(doc.Tables, TableSpec{Name: name, Columns: layer.Columns(name)})
	}
	for _, r := range layer.Relationships() {
		doc.Relationships = append(doc.Relationships, RelationshipSpec{
			From: r.FromTable + "." + r.FromColumn,
			To:   r.ToTable + "." + r.ToColumn,
		})
	}
	for _, d := range layer.Metrics() {
		doc.Metrics = append(doc.Metrics, specFromDefinition(d))
	}
	for _, d := range layer.Filters() {
		doc.Filters = append(doc.Filters, specFromDefinition(d))
	}
	return doc
}

func specFromDefinition(d *domain.Definition) DefinitionSpec {
	spec := DefinitionSpec{
		Name:        d.Name,
		Table:       d.Table,
		Expression:  d.Expression,
		Description: d.Description,
	}
	for _, p := range d.Parameters {
		spec.Parameters = append(spec.Parameters, ParameterSpec{
			Name:        p.Name,
			Type:        string(p.Type),
			Default:     p.Default,
			Description: p.Description,
		})
	}
	return spec
}

// MarshalLayer renders a semantic layer as a YAML document that ParseLayer accepts.
func MarshalLayer(layer *domain.SemanticLayer) ([]byte, error) {
	out, err := yaml.Marshal(ExportLayer(layer))
	if err != nil {
		return nil, fmt.Errorf("marshal semantic layer: %w", err)
	}
	return out, nil
}
