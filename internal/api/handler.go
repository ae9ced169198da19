// Package api exposes the semantic SQL engine over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"semsql/internal/declarative"
	"semsql/internal/domain"
	"semsql/internal/engine"
	"semsql/internal/middleware"
	"semsql/internal/sqlrewrite"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Handler serves the /v1 endpoints.
type Handler struct {
	engine  *engine.Engine
	filters *declarative.RowFilterSet
	logger  *slog.Logger
}

// NewHandler creates a Handler. filters may be nil, in which case requests
// that omit explicit filters are not row-filtered.
func NewHandler(eng *engine.Engine, filters *declarative.RowFilterSet, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: eng, filters: filters, logger: logger}
}

// === Request and response bodies ===

// QueryRequest carries a single SQL statement.
type QueryRequest struct {
	SQL string `json:"sql"`
}

// SubstituteRequest asks for metric and filter expansion.
type SubstituteRequest struct {
	SQL string `json:"sql"`
	// Validate runs the validator before substitution.
	Validate bool `json:"validate"`
}

// RowFilterRequest carries a query and optional explicit filters. The
// configured filters for the caller's principal always apply; Filters can
// only narrow them.
type RowFilterRequest struct {
	SQL     string            `json:"sql"`
	Filters map[string]string `json:"filters,omitempty"`
}

// BatchRequest carries queries to validate concurrently.
type BatchRequest struct {
	Queries []string `json:"queries"`
}

// ValidateResponse is returned when a query passes validation.
type ValidateResponse struct {
	Valid bool `json:"valid"`
}

// SQLResponse carries rewritten SQL.
type SQLResponse struct {
	SQL    string                `json:"sql"`
	Tables []sqlrewrite.TableRef `json:"tables,omitempty"`
}

// BatchItem is one entry of a BatchResponse.
type BatchItem struct {
	Index int    `json:"index"`
	Valid bool   `json:"valid"`
	Error *Error `json:"error,omitempty"`
}

// BatchResponse lists per-query validation outcomes in input order.
type BatchResponse struct {
	Results []BatchItem `json:"results"`
}

// === Handlers ===

// Validate handles POST /v1/validate.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.engine.Validate(r.Context(), req.SQL); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ValidateResponse{Valid: true})
}

// ValidateBatch handles POST /v1/validate/batch. Individual failures are
// reported per item; the response is 200 unless the batch itself fails.
func (h *Handler) ValidateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Queries) == 0 {
		h.fail(w, r, domain.ErrValidation("queries must not be empty"))
		return
	}

	results, err := h.engine.ValidateBatch(r.Context(), req.Queries)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := BatchResponse{Results: make([]BatchItem, len(results))}
	for i, res := range results {
		item := BatchItem{Index: res.Index, Valid: res.Err == nil}
		if res.Err != nil {
			body := errorBody(res.Err)
			item.Error = &body
		}
		resp.Results[i] = item
	}
	writeJSON(w, http.StatusOK, resp)
}

// Substitute handles POST /v1/substitute.
func (h *Handler) Substitute(w http.ResponseWriter, r *http.Request) {
	var req SubstituteRequest
	if !h.decode(w, r, &req) {
		return
	}

	var (
		out string
		err error
	)
	if req.Validate {
		out, err = h.engine.ValidateAndSubstitute(r.Context(), req.SQL)
	} else {
		out, err = h.engine.Substitute(r.Context(), req.SQL)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SQLResponse{SQL: out})
}

// Prepare handles POST /v1/prepare.
func (h *Handler) Prepare(w http.ResponseWriter, r *http.Request) {
	var req RowFilterRequest
	if !h.decode(w, r, &req) {
		return
	}
	filters, err := h.resolveFilters(r, req.Filters)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	prepared, err := h.engine.Prepare(r.Context(), engine.PrepareRequest{SQL: req.SQL, RowFilters: filters})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prepared)
}

// RowFilters handles POST /v1/row-filters.
func (h *Handler) RowFilters(w http.ResponseWriter, r *http.Request) {
	var req RowFilterRequest
	if !h.decode(w, r, &req) {
		return
	}
	filters, err := h.resolveFilters(r, req.Filters)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	refs, err := sqlrewrite.ExtractTableRefs(req.SQL)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.engine.ApplyRowFilters(r.Context(), req.SQL, filters)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SQLResponse{SQL: out, Tables: refs})
}

// Layer handles GET /v1/layer.
func (h *Handler) Layer(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, declarative.ExportLayer(h.engine.Layer()))
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"mode":   h.engine.Mode(),
	})
}

// === helpers ===

// resolveFilters returns the configured filters for the request's principal
// narrowed by any explicit filters. Explicit filters never drop a configured
// predicate: for a table in both, the two are ANDed.
func (h *Handler) resolveFilters(r *http.Request, explicit map[string]string) (map[string]string, error) {
	principal, _ := middleware.PrincipalFromContext(r.Context())
	bound, err := h.filters.ForPrincipal(principal)
	if err != nil {
		return nil, err
	}
	return mergeFilters(bound, explicit), nil
}

func mergeFilters(bound, explicit map[string]string) map[string]string {
	merged := make(map[string]string, len(bound)+len(explicit))
	for table, predicate := range bound {
		merged[table] = predicate
	}
	for table, predicate := range explicit {
		existing, ok := bound[table]
		if !ok {
			// A schema-qualified key wins over the bare name in the rewriter,
			// so it must carry the bare table's configured predicate too.
			if i := strings.LastIndexByte(table, '.'); i >= 0 {
				existing, ok = bound[table[i+1:]]
			}
		}
		if ok {
			predicate = "(" + existing + ") AND (" + predicate + ")"
		}
		merged[table] = predicate
	}
	return merged
}

// decode reads a JSON body into v and writes a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			h.fail(w, r, domain.ErrValidation("request body exceeds %d bytes", maxErr.Limit))
		case errors.Is(err, io.EOF):
			h.fail(w, r, domain.ErrValidation("request body is required"))
		default:
			h.fail(w, r, domain.ErrValidation("invalid request body: %v", err))
		}
		return false
	}
	if q, ok := v.(interface{ sqlText() string }); ok && q.sqlText() == "" {
		h.fail(w, r, domain.ErrValidation("sql is required"))
		return false
	}
	return true
}

func (q *QueryRequest) sqlText() string      { return q.SQL }
func (q *SubstituteRequest) sqlText() string { return q.SQL }
func (q *RowFilterRequest) sqlText() string  { return q.SQL }

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpStatusFromDomainError(err) == http.StatusInternalServerError {
		h.logger.Error("request failed",
			"request_id", middleware.RequestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeError(w, err)
}
