package declarative

// SupportedAPIVersion is the current API version for YAML documents.
const SupportedAPIVersion = "semsql/v1"

// Document kinds.
const (
	KindNameSemanticLayer = "SemanticLayer"
	KindNameRowFilterList = "RowFilterList"
)

// Document is the generic envelope parsed first to determine Kind.
type Document struct {
	APIVersion string `yaml:"apiVersion" json:"apiVersion"`
	Kind       string `yaml:"kind" json:"kind"`
}

// === Semantic Layer ===

// SemanticLayerDoc declares tables, relationships, metrics and filters.
type SemanticLayerDoc struct {
	APIVersion    string             `yaml:"apiVersion" json:"apiVersion"`
	Kind          string             `yaml:"kind" json:"kind"`
	Tables        []TableSpec        `yaml:"tables" json:"tables"`
	Relationships []RelationshipSpec `yaml:"relationships,omitempty" json:"relationships,omitempty"`
	Metrics       []DefinitionSpec   `yaml:"metrics,omitempty" json:"metrics,omitempty"`
	Filters       []DefinitionSpec   `yaml:"filters,omitempty" json:"filters,omitempty"`
}

// TableSpec describes a table and its columns.
type TableSpec struct {
	Name    string   `yaml:"name" json:"name"`
	Columns []string `yaml:"columns" json:"columns"`
}

// RelationshipSpec declares a join path between two columns, each written
// as "table.column".
type RelationshipSpec struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// DefinitionSpec describes a metric or filter.
type DefinitionSpec struct {
	Name        string          `yaml:"name" json:"name"`
	Table       string          `yaml:"table" json:"table"`
	Expression  string          `yaml:"expression" json:"expression"`
	Description string          `yaml:"description,omitempty" json:"description,omitempty"`
	Parameters  []ParameterSpec `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// ParameterSpec describes one positional parameter. Default is SQL text
// and must include its own quotes for string and date values.
type ParameterSpec struct {
	Name        string  `yaml:"name" json:"name"`
	Type        string  `yaml:"type" json:"type"` // number, string, date, boolean
	Default     *string `yaml:"default,omitempty" json:"default,omitempty"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
}

// === Row Filters ===

// RowFilterListDoc declares row-level security filters.
type RowFilterListDoc struct {
	APIVersion string          `yaml:"apiVersion" json:"apiVersion"`
	Kind       string          `yaml:"kind" json:"kind"`
	Filters    []RowFilterSpec `yaml:"filters" json:"filters"`
}

// RowFilterSpec describes a single row filter and the principals it binds to.
// A filter without bindings applies to every principal.
type RowFilterSpec struct {
	Name        string             `yaml:"name" json:"name"`
	Table       string             `yaml:"table" json:"table"`
	FilterSQL   string             `yaml:"filter_sql" json:"filter_sql"`
	Description string             `yaml:"description,omitempty" json:"description,omitempty"`
	Bindings    []FilterBindingRef `yaml:"bindings,omitempty" json:"bindings,omitempty"`
}

// FilterBindingRef binds a row filter to a principal.
type FilterBindingRef struct {
	Principal string `yaml:"principal" json:"principal"`
}
