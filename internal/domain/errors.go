// Package domain defines the semantic layer model and the error kinds shared
// by the validator, the substituter and the row-level filter rewriter.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies an error so callers can choose user-facing messaging.
type ErrorKind string

// Error kinds reported by KindOf.
const (
	KindParse              ErrorKind = "parse_error"
	KindSemanticValidation ErrorKind = "semantic_validation"
	KindSubstitution       ErrorKind = "substitution_error"
	KindMissingParameter   ErrorKind = "missing_parameter"
	KindInvalidParameter   ErrorKind = "invalid_parameter"
	KindValidation         ErrorKind = "validation_error"
	KindNotFound           ErrorKind = "not_found"
	KindInternal           ErrorKind = "internal"
)

// ParseError indicates SQL or expression text that could not be parsed.
type ParseError struct {
	SQL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %v (in %q)", e.Err, e.SQL)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SemanticValidationError carries every violation found in one query.
type SemanticValidationError struct {
	Messages []string
}

func (e *SemanticValidationError) Error() string { return strings.Join(e.Messages, "\n") }

// SubstitutionError indicates a failed metric or filter expansion: a cycle,
// the depth limit, or generated SQL that is not a single expression.
type SubstitutionError struct {
	Message string
}

func (e *SubstitutionError) Error() string { return e.Message }

// MissingParameterError indicates a required parameter with no argument and no default.
type MissingParameterError struct {
	Definition string
	Parameter  string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing required parameter %q for %s", e.Parameter, e.Definition)
}

// InvalidParameterError indicates an argument that fails its parameter's type check.
type InvalidParameterError struct {
	Definition string
	Parameter  string
	Value      string
	Reason     string
}

func (e *InvalidParameterError) Error() string {
	if e.Parameter == "" {
		return fmt.Sprintf("invalid arguments for %s: %s", e.Definition, e.Reason)
	}
	return fmt.Sprintf("invalid value %s for parameter %q of %s: %s", e.Value, e.Parameter, e.Definition, e.Reason)
}

// ValidationError indicates invalid input, such as a malformed layer definition.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError indicates a named definition does not exist.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrSubstitution creates a SubstitutionError with a formatted message.
func ErrSubstitution(format string, args ...interface{}) *SubstitutionError {
	return &SubstitutionError{Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first domain error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) ErrorKind {
	var (
		parseErr    *ParseError
		semErr      *SemanticValidationError
		substErr    *SubstitutionError
		missingErr  *MissingParameterError
		invalidErr  *InvalidParameterError
		validErr    *ValidationError
		notFoundErr *NotFoundError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &semErr):
		return KindSemanticValidation
	case errors.As(err, &missingErr):
		return KindMissingParameter
	case errors.As(err, &invalidErr):
		return KindInvalidParameter
	case errors.As(err, &substErr):
		return KindSubstitution
	case errors.As(err, &parseErr):
		return KindParse
	case errors.As(err, &validErr):
		return KindValidation
	case errors.As(err, &notFoundErr):
		return KindNotFound
	default:
		return KindInternal
	}
}
