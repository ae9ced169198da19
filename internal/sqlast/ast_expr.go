package sqlast

// === Expression Nodes ===

// ColumnRef represents a column reference, optionally qualified with table name.
// An unqualified ColumnRef is also how a bare identifier such as a metric name
// appears in the tree.
type ColumnRef struct {
	Schema string // optional schema qualifier (schema.table.column)
	Table  string // optional table/alias qualifier
	Column string
	Quoted bool // true if the column was double-quoted in the original SQL
}

func (*ColumnRef) node()     {}
func (*ColumnRef) exprNode() {}

// Literal represents a literal value (number, string, bool, null).
type Literal struct {
	Type  LiteralType
	Value string
}

func (*Literal) node()     {}
func (*Literal) exprNode() {}

// LiteralType represents the type of a literal.
type LiteralType int

const (
	LiteralNumber LiteralType = iota
	LiteralString
	LiteralBool
	LiteralNull
)

// TypedLiteral represents a type-prefixed string literal: DATE '2024-01-01',
// TIMESTAMP '2024-01-01 10:00:00', TIME '10:00'.
type TypedLiteral struct {
	TypeName string // upper-case
	Value    string
}

func (*TypedLiteral) node()     {}
func (*TypedLiteral) exprNode() {}

// BinaryExpr represents a binary expression (left op right).
type BinaryExpr struct {
	Left  Expr
	Op    TokenType
	Right Expr
}

func (*BinaryExpr) node()     {}
func (*BinaryExpr) exprNode() {}

// UnaryExpr represents a unary expression (NOT x, -x, +x).
type UnaryExpr struct {
	Op   TokenType
	Expr Expr
}

func (*UnaryExpr) node()     {}
func (*UnaryExpr) exprNode() {}

// ParenExpr represents a parenthesized expression.
type ParenExpr struct {
	Expr Expr
}

func (*ParenExpr) node()     {}
func (*ParenExpr) exprNode() {}

// FuncCall represents a function call.
type FuncCall struct {
	Schema   string // optional schema qualifier
	Name     string // function name (stored in original case)
	Distinct bool   // COUNT(DISTINCT ...)
	Args     []Expr
	Star     bool        // COUNT(*)
	Filter   Expr        // FILTER (WHERE ...) clause
	Window   *WindowSpec // OVER clause
}

func (*FuncCall) node()     {}
func (*FuncCall) exprNode() {}

// WindowSpec represents a window specification (OVER clause).
type WindowSpec struct {
	Name        string // named window reference
	PartitionBy []Expr
	OrderBy     []OrderByItem
	Frame       *FrameSpec
}

// FrameSpec represents a window frame specification.
type FrameSpec struct {
	Type  FrameType
	Start *FrameBound
	End   *FrameBound
}

// FrameType represents the type of window frame.
type FrameType string

const (
	FrameRows   FrameType = "ROWS"
	FrameRange  FrameType = "RANGE"
	FrameGroups FrameType = "GROUPS"
)

// FrameBound represents a window frame bound.
type FrameBound struct {
	Type   FrameBoundType
	Offset Expr // for N PRECEDING/FOLLOWING
}

// FrameBoundType represents the type of frame bound.
type FrameBoundType string

const (
	FrameUnboundedPreceding FrameBoundType = "UNBOUNDED PRECEDING"
	FrameUnboundedFollowing FrameBoundType = "UNBOUNDED FOLLOWING"
	FrameCurrentRow         FrameBoundType = "CURRENT ROW"
	FrameExprPreceding      FrameBoundType = "PRECEDING"
	FrameExprFollowing      FrameBoundType = "FOLLOWING"
)

// CaseExpr represents a CASE expression.
type CaseExpr struct {
	Operand Expr // nil for searched CASE
	Whens   []WhenClause
	Else    Expr
}

func (*CaseExpr) node()     {}
func (*CaseExpr) exprNode() {}

// WhenClause represents a WHEN clause in a CASE expression.
type WhenClause struct {
	Condition Expr
	Result    Expr
}

// CastExpr represents CAST(expr AS type).
type CastExpr struct {
	Expr     Expr
	TypeName string
}

func (*CastExpr) node()     {}
func (*CastExpr) exprNode() {}

// TypeCastExpr represents the postfix cast expr::type.
type TypeCastExpr struct {
	Expr     Expr
	TypeName string
}

func (*TypeCastExpr) node()     {}
func (*TypeCastExpr) exprNode() {}

// InExpr represents an IN expression.
type InExpr struct {
	Expr   Expr
	Not    bool
	Values []Expr      // IN (1, 2, 3)
	Query  *SelectStmt // IN (SELECT ...)
}

func (*InExpr) node()     {}
func (*InExpr) exprNode() {}

// BetweenExpr represents a BETWEEN expression.
type BetweenExpr struct {
	Expr Expr
	Not  bool
	Low  Expr
	High Expr
}

func (*BetweenExpr) node()     {}
func (*BetweenExpr) exprNode() {}

// IsNullExpr represents IS [NOT] NULL.
type IsNullExpr struct {
	Expr Expr
	Not  bool
}

func (*IsNullExpr) node()     {}
func (*IsNullExpr) exprNode() {}

// IsBoolExpr represents IS [NOT] TRUE/FALSE.
type IsBoolExpr struct {
	Expr  Expr
	Not   bool
	Value bool
}

func (*IsBoolExpr) node()     {}
func (*IsBoolExpr) exprNode() {}

// LikeExpr represents a LIKE or ILIKE expression.
type LikeExpr struct {
	Expr    Expr
	Not     bool
	Pattern Expr
	Escape  Expr
	ILike   bool
}

func (*LikeExpr) node()     {}
func (*LikeExpr) exprNode() {}

// ExistsExpr represents [NOT] EXISTS (subquery).
type ExistsExpr struct {
	Not    bool
	Select *SelectStmt
}

func (*ExistsExpr) node()     {}
func (*ExistsExpr) exprNode() {}

// SubqueryExpr represents a scalar subquery used as an expression.
type SubqueryExpr struct {
	Select *SelectStmt
}

func (*SubqueryExpr) node()     {}
func (*SubqueryExpr) exprNode() {}

// StarExpr represents * or table.* inside an expression, e.g. COUNT(t.*).
type StarExpr struct {
	Table string
}

func (*StarExpr) node()     {}
func (*StarExpr) exprNode() {}

// IntervalExpr represents INTERVAL 'value' unit.
type IntervalExpr struct {
	Value Expr
	Unit  string // DAY, HOUR, etc. Empty when the unit is inside the string.
}

func (*IntervalExpr) node()     {}
func (*IntervalExpr) exprNode() {}

// ExtractExpr represents EXTRACT(field FROM expr).
type ExtractExpr struct {
	Field string
	Expr  Expr
}

func (*ExtractExpr) node()     {}
func (*ExtractExpr) exprNode() {}
