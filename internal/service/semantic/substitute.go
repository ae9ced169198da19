package semantic

import (
	"fmt"
	"strings"

	"semsql/internal/domain"
	"semsql/internal/sqlast"
)

// substituter expands metric and filter references for a single call. Its
// cache, depth counter and in-progress set never outlive that call.
type substituter struct {
	layer      *domain.SemanticLayer
	cache      map[string]sqlast.Expr
	depth      int
	inProgress map[string]bool
}

func newSubstituter(layer *domain.SemanticLayer) *substituter {
	return &substituter{
		layer:      layer,
		cache:      make(map[string]sqlast.Expr),
		inProgress: make(map[string]bool),
	}
}

// rewrite is the sqlast.RewriteFunc that replaces substitution sites.
func (s *substituter) rewrite(e sqlast.Expr) (sqlast.Expr, bool, error) {
	def, args, ok := s.site(e)
	if !ok {
		return nil, false, nil
	}
	expanded, err := s.expand(def, args)
	if err != nil {
		return nil, false, err
	}
	return expanded, true, nil
}

// site reports whether e references a known metric or filter: a bare
// identifier, or a plain call whose arguments bind positionally.
func (s *substituter) site(e sqlast.Expr) (*domain.Definition, []sqlast.Expr, bool) {
	switch n := e.(type) {
	case *sqlast.ColumnRef:
		if n.Table != "" || n.Schema != "" {
			return nil, nil, false
		}
		def, ok := s.layer.Lookup(n.Column)
		return def, nil, ok
	case *sqlast.FuncCall:
		if n.Schema != "" || n.Star || n.Distinct || n.Filter != nil || n.Window != nil {
			return nil, nil, false
		}
		def, ok := s.layer.Lookup(n.Name)
		return def, n.Args, ok
	}
	return nil, nil, false
}

// expand renders, parses and recursively substitutes one definition, and
// returns it wrapped in parentheses.
func (s *substituter) expand(def *domain.Definition, args []sqlast.Expr) (sqlast.Expr, error) {
	key := def.Key()
	if s.inProgress[key] {
		return nil, domain.ErrSubstitution("circular reference detected while expanding %s %s", def.Kind, def.Name)
	}
	if s.depth >= domain.MaxSubstitutionDepth {
		return nil, domain.ErrSubstitution("maximum substitution depth (%d) exceeded while expanding %s %s",
			domain.MaxSubstitutionDepth, def.Kind, def.Name)
	}

	s.depth++
	s.inProgress[key] = true
	defer func() {
		s.depth--
		delete(s.inProgress, key)
	}()

	values, err := bindParameters(def, args)
	if err != nil {
		return nil, err
	}

	text, missing, ok := domain.ReplacePlaceholders(def.Expression, func(name string) (string, bool) {
		v, found := values[name]
		return v, found
	})
	if !ok {
		return nil, domain.ErrSubstitution("%s %s references undeclared parameter {{%s}}", def.Kind, def.Name, missing)
	}

	parsed, err := s.parse(def, text)
	if err != nil {
		return nil, err
	}

	expanded, err := sqlast.RewriteExpr(parsed, s.rewrite)
	if err != nil {
		return nil, err
	}
	return &sqlast.ParenExpr{Expr: expanded}, nil
}

// bindParameters binds arguments to parameters by position, falling back
// to defaults for parameters past the last argument.
func bindParameters(def *domain.Definition, args []sqlast.Expr) (map[string]string, error) {
	if len(args) > len(def.Parameters) {
		return nil, &domain.InvalidParameterError{
			Definition: def.Name,
			Reason:     pluralArgs(len(def.Parameters), len(args)),
		}
	}

	values := make(map[string]string, len(def.Parameters))
	for i, p := range def.Parameters {
		if i < len(args) {
			value := sqlast.FormatExpr(args[i])
			if ok, reason := p.Type.Check(value); !ok {
				return nil, &domain.InvalidParameterError{
					Definition: def.Name,
					Parameter:  p.Name,
					Value:      value,
					Reason:     reason,
				}
			}
			values[p.Name] = value
			continue
		}
		if p.Default == nil {
			return nil, &domain.MissingParameterError{Definition: def.Name, Parameter: p.Name}
		}
		values[p.Name] = *p.Default
	}
	return values, nil
}

func pluralArgs(want, got int) string {
	noun := "parameters"
	if want == 1 {
		noun = "parameter"
	}
	return fmt.Sprintf("takes %d %s, got %d arguments", want, noun, got)
}

// parse turns substituted expression text into an expression node. Results
// are cached by text; callers get a fresh copy to mutate.
func (s *substituter) parse(def *domain.Definition, text string) (sqlast.Expr, error) {
	if cached, ok := s.cache[text]; ok {
		return sqlast.CloneExpr(cached), nil
	}

	stmt, err := sqlast.Parse("SELECT " + text)
	if err != nil {
		return nil, &domain.ParseError{SQL: text, Err: err}
	}
	expr, ok := singleProjection(stmt)
	if !ok {
		return nil, domain.ErrSubstitution("invalid generated SQL for %s %s: %q is not a single expression",
			def.Kind, def.Name, strings.TrimSpace(text))
	}

	s.cache[text] = expr
	return sqlast.CloneExpr(expr), nil
}

// singleProjection extracts the expression from SELECT <expr>.
func singleProjection(stmt *sqlast.SelectStmt) (sqlast.Expr, bool) {
	if stmt.With != nil || stmt.Body == nil || stmt.Body.Right != nil {
		return nil, false
	}
	core := stmt.Body.Left
	if core == nil || core.From != nil || core.Where != nil || len(core.GroupBy) > 0 ||
		core.Having != nil || len(core.OrderBy) > 0 || core.Limit != nil || core.Distinct {
		return nil, false
	}
	if len(core.Columns) != 1 {
		return nil, false
	}
	item := core.Columns[0]
	if item.Expr == nil || item.Alias != "" {
		return nil, false
	}
	return item.Expr, true
}
