// Package engine runs the semantic pipeline (validation, metric and filter
// substitution, row-level filtering) against one shared semantic layer,
// with per-call logging and optional verification of the generated SQL.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"semsql/internal/domain"
	"semsql/internal/service/semantic"
	"semsql/internal/sqlrewrite"
)

// DefaultBatchConcurrency bounds ValidateBatch when no limit is configured.
const DefaultBatchConcurrency = 8

// Verifier checks that generated SQL is accepted by the target database.
type Verifier interface {
	Verify(ctx context.Context, sql string) error
}

// Engine composes the semantic operations over a read-only layer. It is
// safe for concurrent use.
type Engine struct {
	layer    *domain.SemanticLayer
	mode     domain.ValidationMode
	logger   *slog.Logger
	verifier Verifier
	limit    int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. A nil logger selects slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMode sets the validation mode used by Validate, ValidateAndSubstitute,
// Prepare and ValidateBatch.
func WithMode(m domain.ValidationMode) Option {
	return func(e *Engine) { e.mode = m }
}

// WithVerifier makes Prepare check its output with v.
func WithVerifier(v Verifier) Option {
	return func(e *Engine) { e.verifier = v }
}

// WithBatchConcurrency bounds the number of concurrent validations in ValidateBatch.
func WithBatchConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.limit = n
		}
	}
}

// New creates an Engine over layer.
func New(layer *domain.SemanticLayer, opts ...Option) *Engine {
	e := &Engine{
		layer:  layer,
		mode:   domain.ModeFlexible,
		logger: slog.Default(),
		limit:  DefaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Layer returns the engine's semantic layer.
func (e *Engine) Layer() *domain.SemanticLayer { return e.layer }

// Mode returns the engine's validation mode.
func (e *Engine) Mode() domain.ValidationMode { return e.mode }

// Validate checks sql against the layer.
func (e *Engine) Validate(ctx context.Context, sql string) error {
	return e.observe(ctx, "validate", func() error {
		return semantic.ValidateQuery(sql, e.layer, e.mode)
	})
}

// Substitute expands metric and filter references without validating.
func (e *Engine) Substitute(ctx context.Context, sql string) (string, error) {
	var out string
	err := e.observe(ctx, "substitute", func() (err error) {
		out, err = semantic.SubstituteQuery(sql, e.layer)
		return err
	})
	return out, err
}

// ValidateAndSubstitute validates sql and substitutes it only if it is valid.
func (e *Engine) ValidateAndSubstitute(ctx context.Context, sql string) (string, error) {
	var out string
	err := e.observe(ctx, "validate_and_substitute", func() (err error) {
		out, err = semantic.ValidateAndSubstitute(sql, e.layer, e.mode)
		return err
	})
	return out, err
}

// ApplyRowFilters injects the table predicates into sql.
func (e *Engine) ApplyRowFilters(ctx context.Context, sql string, filters map[string]string) (string, error) {
	var out string
	err := e.observe(ctx, "row_filters", func() (err error) {
		out, err = sqlrewrite.ApplyRowLevelFilters(sql, filters)
		return err
	})
	return out, err
}

// PrepareRequest is the input to Prepare.
type PrepareRequest struct {
	SQL        string
	RowFilters map[string]string
}

// Prepared is a query ready for execution.
type Prepared struct {
	CallID   string   `json:"call_id"`
	Original string   `json:"original"`
	SQL      string   `json:"sql"`
	Tables   []string `json:"tables"`
	Verified bool     `json:"verified"`
}

// Prepare validates, substitutes and row-filters a query, then verifies the
// result when a Verifier is configured.
func (e *Engine) Prepare(ctx context.Context, req PrepareRequest) (*Prepared, error) {
	callID := uuid.New().String()
	logger := e.logger.With("call_id", callID, "op", "prepare")
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	substituted, err := semantic.ValidateAndSubstitute(req.SQL, e.layer, e.mode)
	if err != nil {
		e.logResult(logger, start, err)
		return nil, err
	}

	tables, err := sqlrewrite.ExtractTableNames(substituted)
	if err != nil {
		e.logResult(logger, start, err)
		return nil, err
	}

	filtered, err := sqlrewrite.ApplyRowLevelFilters(substituted, req.RowFilters)
	if err != nil {
		e.logResult(logger, start, err)
		return nil, err
	}

	out := &Prepared{CallID: callID, Original: req.SQL, SQL: filtered, Tables: tables}
	if e.verifier != nil {
		if err := e.verifier.Verify(ctx, filtered); err != nil {
			var subErr *domain.SubstitutionError
			if !errors.As(err, &subErr) {
				err = fmt.Errorf("verify prepared query: %w", err)
			}
			logger.Warn("prepared query failed verification", "error", err)
			return nil, err
		}
		out.Verified = true
	}

	e.logResult(logger, start, nil)
	return out, nil
}

// BatchResult is the outcome of validating one query in a batch.
type BatchResult struct {
	Index int    `json:"index"`
	SQL   string `json:"sql"`
	Err   error  `json:"-"`
}

// ValidateBatch validates queries concurrently against the shared layer.
// Results are returned in input order; a cancelled context stops queries
// that have not started yet.
func (e *Engine) ValidateBatch(ctx context.Context, queries []string) ([]BatchResult, error) {
	results := make([]BatchResult, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.limit)

	for i, q := range queries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = BatchResult{Index: i, SQL: q, Err: semantic.ValidateQuery(q, e.layer, e.mode)}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("validate batch: %w", err)
	}
	return results, nil
}

// observe runs fn with a fresh call ID and logs its outcome.
func (e *Engine) observe(ctx context.Context, op string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger := e.logger.With("call_id", uuid.New().String(), "op", op)
	start := time.Now()
	err := fn()
	e.logResult(logger, start, err)
	return err
}

func (e *Engine) logResult(logger *slog.Logger, start time.Time, err error) {
	duration := time.Since(start)
	if err == nil {
		logger.Debug("semantic call complete", "duration", duration)
		return
	}

	kind := domain.KindOf(err)
	switch kind {
	case domain.KindInternal:
		logger.Warn("semantic call failed", "duration", duration, "kind", kind, "error", err)
	default:
		logger.Info("semantic call rejected", "duration", duration, "kind", kind, "error", err)
	}
}
