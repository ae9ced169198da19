package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2" // registers the "duckdb" driver

	"semsql/internal/domain"
)

// Compile-time check.
var _ Verifier = (*DuckDBVerifier)(nil)

// DuckDBVerifier parse-checks SQL with DuckDB's own parser. Nothing is
// executed: json_serialize_sql only parses its argument.
type DuckDBVerifier struct {
	db *sql.DB
}

// NewDuckDBVerifier wraps an open DuckDB connection.
func NewDuckDBVerifier(db *sql.DB) *DuckDBVerifier {
	return &DuckDBVerifier{db: db}
}

// OpenDuckDBVerifier opens a private in-memory DuckDB database for verification.
func OpenDuckDBVerifier(ctx context.Context) (*DuckDBVerifier, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return &DuckDBVerifier{db: db}, nil
}

// Close releases the underlying connection.
func (v *DuckDBVerifier) Close() error {
	return v.db.Close()
}

type serializedSQL struct {
	Error        bool   `json:"error"`
	ErrorType    string `json:"error_type"`
	ErrorMessage string `json:"error_message"`
}

// Verify returns a *domain.SubstitutionError when DuckDB cannot parse query.
func (v *DuckDBVerifier) Verify(ctx context.Context, query string) error {
	var raw string
	if err := v.db.QueryRowContext(ctx, "SELECT json_serialize_sql(?)", query).Scan(&raw); err != nil {
		return fmt.Errorf("serialize sql: %w", err)
	}

	var out serializedSQL
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return fmt.Errorf("decode serialized sql: %w", err)
	}
	if out.Error {
		return domain.ErrSubstitution("invalid generated SQL: %s", out.ErrorMessage)
	}
	return nil
}
