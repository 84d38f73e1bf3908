// Package duckdb persists annotated variant records in DuckDB, one run per
// annotated input file.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection for annotated records.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create results directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database path, empty for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		run_id VARCHAR PRIMARY KEY,
		input_path VARCHAR,
		input_size BIGINT,
		input_mtime_ns BIGINT,
		created_at TIMESTAMP,
		record_count BIGINT,
		settings VARCHAR DEFAULT ''
	)`); err != nil {
		return err
	}
	if _, err := s.db.Exec(`ALTER TABLE runs ADD COLUMN IF NOT EXISTS settings VARCHAR DEFAULT ''`); err != nil {
		return err
	}
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS annotated_variants (
		run_id VARCHAR,
		seq BIGINT,
		chrom VARCHAR,
		pos BIGINT,
		ref VARCHAR,
		alt VARCHAR,
		variant_key VARCHAR,
		external_id VARCHAR,
		gene VARCHAR,
		transcript VARCHAR,
		consequence VARCHAR,
		clinvar_significance VARCHAR,
		clinvar_id VARCHAR,
		gnomad_af DOUBLE,
		cadd_score DOUBLE,
		phylop_score DOUBLE,
		phastcons_score DOUBLE,
		protein_domain VARCHAR,
		is_drug_metabolizer_gene BOOLEAN,
		cyp_family VARCHAR,
		predicted_impact VARCHAR,
		PRIMARY KEY (run_id, seq)
	)`)
	return err
}
