// Package semantic validates SQL against a semantic layer and expands metric
// and filter references into the SQL they stand for.
//
// Every entry point is a pure function of its arguments. The layer is only
// read, so one layer may be shared by concurrent calls.
package semantic

import (
	"semsql/internal/domain"
	"semsql/internal/sqlast"
)

// ValidateQuery checks sql against the layer. All violations are returned
// together as a *domain.SemanticValidationError; an unparseable query is a
// *domain.ParseError.
func ValidateQuery(sql string, layer *domain.SemanticLayer, mode domain.ValidationMode) error {
	stmt, err := sqlast.Parse(sql)
	if err != nil {
		return &domain.ParseError{SQL: sql, Err: err}
	}
	return ValidateStatement(stmt, layer, mode)
}

// ValidateStatement is ValidateQuery for an already parsed statement.
func ValidateStatement(stmt *sqlast.SelectStmt, layer *domain.SemanticLayer, mode domain.ValidationMode) error {
	v := newValidator(layer, mode)
	v.visitSelect(stmt, nil)
	return v.result()
}

// SubstituteQuery replaces every metric and filter reference in sql with its
// parenthesized expansion and returns the rewritten SQL.
func SubstituteQuery(sql string, layer *domain.SemanticLayer) (string, error) {
	stmt, err := sqlast.Parse(sql)
	if err != nil {
		return "", &domain.ParseError{SQL: sql, Err: err}
	}
	if err := SubstituteStatement(stmt, layer); err != nil {
		return "", err
	}
	return sqlast.Format(stmt), nil
}

// SubstituteStatement expands references in stmt in place.
func SubstituteStatement(stmt *sqlast.SelectStmt, layer *domain.SemanticLayer) error {
	return sqlast.RewriteSelect(stmt, newSubstituter(layer).rewrite)
}

// ValidateAndSubstitute validates sql and, only if it is valid, substitutes it.
func ValidateAndSubstitute(sql string, layer *domain.SemanticLayer, mode domain.ValidationMode) (string, error) {
	stmt, err := sqlast.Parse(sql)
	if err != nil {
		return "", &domain.ParseError{SQL: sql, Err: err}
	}
	if err := ValidateStatement(stmt, layer, mode); err != nil {
		return "", err
	}
	if err := SubstituteStatement(stmt, layer); err != nil {
		return "", err
	}
	return sqlast.Format(stmt), nil
}
