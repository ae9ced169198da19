package sqlast

// Node is the base interface for all AST nodes.
type Node interface {
	node()
}

// Expr is a marker interface for expression nodes.
type Expr interface {
	Node
	exprNode()
}

// TableRef is a marker interface for table reference nodes.
type TableRef interface {
	Node
	tableRefNode()
}

// === Table Reference Nodes ===

// TableName represents a table name reference (up to 3-part: catalog.schema.name).
type TableName struct {
	Catalog string
	Schema  string
	Name    string
	Alias   string
	Quoted  bool // Name was double-quoted in the original SQL
}

func (*TableName) node()         {}
func (*TableName) tableRefNode() {}

// QualifiedName returns the dotted name as written, without the alias.
func (t *TableName) QualifiedName() string {
	name := formatIdent(t.Name, t.Quoted)
	if t.Schema != "" {
		name = formatIdent(t.Schema, false) + "." + name
	}
	if t.Catalog != "" {
		name = formatIdent(t.Catalog, false) + "." + name
	}
	return name
}

// RefName is the name columns use to qualify this table: the alias if any.
func (t *TableName) RefName() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// DerivedTable represents a subquery in FROM, optionally LATERAL.
type DerivedTable struct {
	Select        *SelectStmt
	Alias         string
	ColumnAliases []string
	Lateral       bool
}

func (*DerivedTable) node()         {}
func (*DerivedTable) tableRefNode() {}

// FuncTable represents a table-valued function in FROM (e.g., generate_series()).
type FuncTable struct {
	Func  *FuncCall
	Alias string
}

func (*FuncTable) node()         {}
func (*FuncTable) tableRefNode() {}
